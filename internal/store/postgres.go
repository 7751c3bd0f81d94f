package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the queries on the batch engine's hot path,
// prepared on each new connection.
var preparedStatements = map[string]string{
	"upsert_prospect": `INSERT INTO prospects (tax_id, legal_name, icp_score, temperature, status, reject_reason, evidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tax_id) DO UPDATE SET
			legal_name = EXCLUDED.legal_name, icp_score = EXCLUDED.icp_score,
			temperature = EXCLUDED.temperature, status = EXCLUDED.status,
			reject_reason = EXCLUDED.reject_reason, evidence = EXCLUDED.evidence,
			updated_at = EXCLUDED.updated_at`,
	"get_prospect": `SELECT tax_id, legal_name, icp_score, temperature, status, reject_reason, evidence, updated_at
		FROM prospects WHERE tax_id = $1`,
	"insert_analysis": `INSERT INTO analysis_log (id, tax_id, legal_name, origin, status, raw_fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"finalize_analysis": `UPDATE analysis_log
		SET status = $1, icp_score = $2, temperature = $3, breakdown = $4, reason = $5, error = $6, analyzed_at = $7
		WHERE id = $8`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	tax_id        TEXT PRIMARY KEY,
	legal_name    TEXT NOT NULL,
	icp_score     INTEGER NOT NULL DEFAULT 0,
	temperature   TEXT NOT NULL DEFAULT 'cold',
	status        TEXT NOT NULL DEFAULT 'pendente',
	reject_reason TEXT,
	evidence      JSONB,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_log (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tax_id      TEXT NOT NULL,
	legal_name  TEXT NOT NULL,
	origin      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pendente',
	raw_fields  JSONB,
	icp_score   INTEGER,
	temperature TEXT,
	breakdown   JSONB,
	reason      TEXT,
	error       TEXT,
	analyzed_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mapping_templates (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT,
	mappings      JSONB NOT NULL,
	custom_fields JSONB,
	last_used_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status);
CREATE INDEX IF NOT EXISTS idx_prospects_temperature ON prospects(temperature);
CREATE INDEX IF NOT EXISTS idx_analysis_log_tax_id ON analysis_log(tax_id);
CREATE INDEX IF NOT EXISTS idx_analysis_log_status ON analysis_log(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) UpsertProspect(ctx context.Context, rec model.QuarantineRecord) error {
	evidenceJSON, err := marshalOrNull(rec.Evidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}

	_, err = s.pool.Exec(ctx, preparedStatements["upsert_prospect"],
		rec.TaxID, rec.LegalName, rec.ICPScore, string(rec.Temperature), string(rec.Status),
		nullString(rec.RejectReason), evidenceJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert prospect %s", rec.TaxID)
}

func (s *PostgresStore) GetProspect(ctx context.Context, taxID string) (*model.QuarantineRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_prospect"], taxID)
	rec, err := scanPgProspect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prospect %s", taxID)
	}
	return rec, nil
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.QuarantineRecord, error) {
	query := `SELECT tax_id, legal_name, icp_score, temperature, status, reject_reason, evidence, updated_at FROM prospects`
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Temperature != "" {
		args = append(args, string(filter.Temperature))
		conds = append(conds, fmt.Sprintf("temperature = $%d", len(args)))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		conds = append(conds, fmt.Sprintf("icp_score >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY icp_score DESC, updated_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var out []model.QuarantineRecord
	for rows.Next() {
		rec, err := scanPgProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate prospects")
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) (string, error) {
	id := uuid.New().String()
	rawJSON, err := marshalOrNull(rec.RawFields)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal raw fields")
	}

	_, err = s.pool.Exec(ctx, preparedStatements["insert_analysis"],
		id, rec.TaxID, rec.LegalName, rec.Origin, string(model.StatusPending), rawJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create analysis")
	}
	return id, nil
}

func (s *PostgresStore) FinalizeAnalysis(ctx context.Context, id string, rec model.AnalysisRecord) error {
	breakdownJSON, err := marshalOrNull(rec.Breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}

	tag, err := s.pool.Exec(ctx, preparedStatements["finalize_analysis"],
		string(rec.Status), rec.ICPScore, string(rec.Temperature), breakdownJSON,
		nullString(rec.Reason), nullString(rec.Error), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: analysis %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SaveTemplate(ctx context.Context, tpl mapping.Template) (string, error) {
	id := tpl.ID
	if id == "" {
		id = uuid.New().String()
	}
	mappingsJSON, err := json.Marshal(tpl.Mappings)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal template mappings")
	}
	customJSON, err := marshalOrNull(tpl.CustomFields)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal custom fields")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO mapping_templates (id, name, description, mappings, custom_fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			mappings = EXCLUDED.mappings,
			custom_fields = EXCLUDED.custom_fields`,
		id, tpl.Name, nullString(tpl.Description), string(mappingsJSON), customJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: save template %s", tpl.Name)
	}
	return id, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]mapping.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, mappings, custom_fields, last_used_at, created_at
		FROM mapping_templates ORDER BY last_used_at DESC NULLS LAST, name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var out []mapping.Template
	for rows.Next() {
		tpl, err := scanPgTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		out = append(out, *tpl)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate templates")
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*mapping.Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, mappings, custom_fields, last_used_at, created_at
		FROM mapping_templates WHERE id = $1 OR name = $1`, id)
	tpl, err := scanPgTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get template %s", id)
	}
	return tpl, nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mapping_templates WHERE id = $1 OR name = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete template %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: template %s not found", id)
	}
	return nil
}

func (s *PostgresStore) TouchTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE mapping_templates SET last_used_at = $1 WHERE id = $2 OR name = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch template %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: template %s not found", id)
	}
	return nil
}

func scanPgProspect(row pgx.Row) (*model.QuarantineRecord, error) {
	var rec model.QuarantineRecord
	var temperature, status string
	var rejectReason, evidenceJSON *string

	if err := row.Scan(&rec.TaxID, &rec.LegalName, &rec.ICPScore, &temperature, &status,
		&rejectReason, &evidenceJSON, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Temperature = model.Temperature(temperature)
	rec.Status = model.RecordStatus(status)
	if rejectReason != nil {
		rec.RejectReason = *rejectReason
	}
	if evidenceJSON != nil && *evidenceJSON != "" {
		if err := json.Unmarshal([]byte(*evidenceJSON), &rec.Evidence); err != nil {
			return nil, eris.Wrap(err, "unmarshal evidence")
		}
	}
	return &rec, nil
}

func scanPgTemplate(row pgx.Row) (*mapping.Template, error) {
	var tpl mapping.Template
	var description, customJSON *string
	var mappingsJSON string
	var lastUsed *time.Time

	if err := row.Scan(&tpl.ID, &tpl.Name, &description, &mappingsJSON, &customJSON,
		&lastUsed, &tpl.CreatedAt); err != nil {
		return nil, err
	}
	if description != nil {
		tpl.Description = *description
	}
	if err := json.Unmarshal([]byte(mappingsJSON), &tpl.Mappings); err != nil {
		return nil, eris.Wrap(err, "unmarshal mappings")
	}
	if customJSON != nil && *customJSON != "" {
		if err := json.Unmarshal([]byte(*customJSON), &tpl.CustomFields); err != nil {
			return nil, eris.Wrap(err, "unmarshal custom fields")
		}
	}
	tpl.LastUsedAt = lastUsed
	return &tpl, nil
}
