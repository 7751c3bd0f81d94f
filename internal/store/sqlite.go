package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	tax_id        TEXT PRIMARY KEY,
	legal_name    TEXT NOT NULL,
	icp_score     INTEGER NOT NULL DEFAULT 0,
	temperature   TEXT NOT NULL DEFAULT 'cold',
	status        TEXT NOT NULL DEFAULT 'pendente',
	reject_reason TEXT,
	evidence      TEXT,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_log (
	id          TEXT PRIMARY KEY,
	tax_id      TEXT NOT NULL,
	legal_name  TEXT NOT NULL,
	origin      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pendente',
	raw_fields  TEXT,
	icp_score   INTEGER,
	temperature TEXT,
	breakdown   TEXT,
	reason      TEXT,
	error       TEXT,
	analyzed_at DATETIME,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS mapping_templates (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT,
	mappings      TEXT NOT NULL,
	custom_fields TEXT,
	last_used_at  DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status);
CREATE INDEX IF NOT EXISTS idx_prospects_temperature ON prospects(temperature);
CREATE INDEX IF NOT EXISTS idx_analysis_log_tax_id ON analysis_log(tax_id);
CREATE INDEX IF NOT EXISTS idx_analysis_log_status ON analysis_log(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProspect(ctx context.Context, rec model.QuarantineRecord) error {
	evidenceJSON, err := marshalOrNull(rec.Evidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prospects (tax_id, legal_name, icp_score, temperature, status, reject_reason, evidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tax_id) DO UPDATE SET
			legal_name    = excluded.legal_name,
			icp_score     = excluded.icp_score,
			temperature   = excluded.temperature,
			status        = excluded.status,
			reject_reason = excluded.reject_reason,
			evidence      = excluded.evidence,
			updated_at    = excluded.updated_at`,
		rec.TaxID, rec.LegalName, rec.ICPScore, string(rec.Temperature), string(rec.Status),
		nullString(rec.RejectReason), evidenceJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert prospect %s", rec.TaxID)
}

func (s *SQLiteStore) GetProspect(ctx context.Context, taxID string) (*model.QuarantineRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tax_id, legal_name, icp_score, temperature, status, reject_reason, evidence, updated_at
		FROM prospects WHERE tax_id = ?`, taxID)
	rec, err := scanProspect(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", taxID)
	}
	return rec, nil
}

func (s *SQLiteStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.QuarantineRecord, error) {
	query := `SELECT tax_id, legal_name, icp_score, temperature, status, reject_reason, evidence, updated_at FROM prospects`
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Temperature != "" {
		conds = append(conds, "temperature = ?")
		args = append(args, string(filter.Temperature))
	}
	if filter.MinScore > 0 {
		conds = append(conds, "icp_score >= ?")
		args = append(args, filter.MinScore)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY icp_score DESC, updated_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var out []model.QuarantineRecord
	for rows.Next() {
		rec, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate prospects")
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) (string, error) {
	id := uuid.New().String()
	rawJSON, err := marshalOrNull(rec.RawFields)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal raw fields")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_log (id, tax_id, legal_name, origin, status, raw_fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.TaxID, rec.LegalName, rec.Origin, string(model.StatusPending), rawJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create analysis")
	}
	return id, nil
}

func (s *SQLiteStore) FinalizeAnalysis(ctx context.Context, id string, rec model.AnalysisRecord) error {
	breakdownJSON, err := marshalOrNull(rec.Breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_log
		SET status = ?, icp_score = ?, temperature = ?, breakdown = ?, reason = ?, error = ?, analyzed_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.ICPScore, string(rec.Temperature), breakdownJSON,
		nullString(rec.Reason), nullString(rec.Error), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize analysis %s", id)
	}
	return checkRowsAffected(res, "analysis", id)
}

func (s *SQLiteStore) SaveTemplate(ctx context.Context, tpl mapping.Template) (string, error) {
	id := tpl.ID
	if id == "" {
		id = uuid.New().String()
	}
	mappingsJSON, err := json.Marshal(tpl.Mappings)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal template mappings")
	}
	customJSON, err := marshalOrNull(tpl.CustomFields)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal custom fields")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mapping_templates (id, name, description, mappings, custom_fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			description   = excluded.description,
			mappings      = excluded.mappings,
			custom_fields = excluded.custom_fields`,
		id, tpl.Name, nullString(tpl.Description), string(mappingsJSON), customJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: save template %s", tpl.Name)
	}
	return id, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]mapping.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, mappings, custom_fields, last_used_at, created_at
		FROM mapping_templates ORDER BY last_used_at DESC NULLS LAST, name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close()

	var out []mapping.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template")
		}
		out = append(out, *tpl)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate templates")
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*mapping.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, mappings, custom_fields, last_used_at, created_at
		FROM mapping_templates WHERE id = ? OR name = ?`, id, id)
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get template %s", id)
	}
	return tpl, nil
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mapping_templates WHERE id = ? OR name = ?`, id, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete template %s", id)
	}
	return checkRowsAffected(res, "template", id)
}

func (s *SQLiteStore) TouchTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE mapping_templates SET last_used_at = ? WHERE id = ? OR name = ?`,
		time.Now().UTC(), id, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch template %s", id)
	}
	return checkRowsAffected(res, "template", id)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProspect(row scannable) (*model.QuarantineRecord, error) {
	var rec model.QuarantineRecord
	var temperature, status string
	var rejectReason, evidenceJSON sql.NullString

	if err := row.Scan(&rec.TaxID, &rec.LegalName, &rec.ICPScore, &temperature, &status,
		&rejectReason, &evidenceJSON, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Temperature = model.Temperature(temperature)
	rec.Status = model.RecordStatus(status)
	rec.RejectReason = rejectReason.String
	if evidenceJSON.Valid && evidenceJSON.String != "" {
		if err := json.Unmarshal([]byte(evidenceJSON.String), &rec.Evidence); err != nil {
			return nil, eris.Wrap(err, "unmarshal evidence")
		}
	}
	return &rec, nil
}

func scanTemplate(row scannable) (*mapping.Template, error) {
	var tpl mapping.Template
	var description, customJSON sql.NullString
	var mappingsJSON string
	var lastUsed sql.NullTime

	if err := row.Scan(&tpl.ID, &tpl.Name, &description, &mappingsJSON, &customJSON,
		&lastUsed, &tpl.CreatedAt); err != nil {
		return nil, err
	}
	tpl.Description = description.String
	if err := json.Unmarshal([]byte(mappingsJSON), &tpl.Mappings); err != nil {
		return nil, eris.Wrap(err, "unmarshal mappings")
	}
	if customJSON.Valid && customJSON.String != "" {
		if err := json.Unmarshal([]byte(customJSON.String), &tpl.CustomFields); err != nil {
			return nil, eris.Wrap(err, "unmarshal custom fields")
		}
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		tpl.LastUsedAt = &t
	}
	return &tpl, nil
}

func marshalOrNull(v any) (any, error) {
	switch val := v.(type) {
	case []model.Evidence:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case *model.ScoreBreakdown:
		if val == nil {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
