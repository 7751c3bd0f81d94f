package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadscope/prospect-cli/internal/engine"
	"github.com/leadscope/prospect-cli/internal/ingest"
	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
	"github.com/leadscope/prospect-cli/internal/resilience"
	"github.com/leadscope/prospect-cli/internal/scoring"
	"github.com/leadscope/prospect-cli/internal/store"
	"github.com/leadscope/prospect-cli/pkg/oracle"
)

func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func buildOracle() oracle.Client {
	if cfg.Oracle.URL == "" {
		return nil
	}
	return oracle.NewClient(cfg.Oracle.URL,
		oracle.WithAPIKey(cfg.Oracle.Key),
		oracle.WithTimeout(time.Duration(cfg.Oracle.TimeoutSecs)*time.Second),
		oracle.WithRateLimit(cfg.Oracle.RatePerSec),
	)
}

func buildEngine(st store.Store, criteria model.ICPCriteria, origin string) *engine.Engine {
	retry := resilience.DefaultRetryConfig()
	if cfg.Oracle.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Oracle.MaxAttempts
	}
	return engine.New(engine.Config{
		Concurrency:           cfg.Batch.Concurrency,
		ExistingCustomerScore: cfg.Oracle.ExistingCustomerScore,
		BreakerThreshold:      cfg.Oracle.BreakerThreshold,
		Origin:                origin,
		Retry:                 retry,
	}, buildOracle(), st, criteria)
}

func loadCriteria() (model.ICPCriteria, error) {
	return scoring.LoadCriteria(cfg.ICP.CriteriaPath)
}

// loadAndMap reads the file and maps its headers, optionally applying a
// saved template on top of the automatic mapping.
func loadAndMap(ctx context.Context, st store.Store, path, templateName string) (*ingest.Dataset, []mapping.ColumnMapping, error) {
	maxBytes := int64(cfg.Ingest.MaxFileMB) << 20
	ds, err := ingest.ReadFile(path, maxBytes)
	if err != nil {
		return nil, nil, err
	}

	mappings := mapping.MapColumns(ds.Headers)

	if templateName != "" && st != nil {
		tpl, err := st.GetTemplate(ctx, templateName)
		if err != nil {
			return nil, nil, err
		}
		if tpl == nil {
			return nil, nil, eris.Errorf("template %q not found", templateName)
		}
		mappings, _, _ = mapping.ApplyTemplate(mappings, *tpl)
		if err := st.TouchTemplate(ctx, tpl.ID); err != nil {
			return nil, nil, err
		}
	}

	return ds, mappings, nil
}
