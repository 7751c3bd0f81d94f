// Package store persists qualified prospects, the analysis audit trail and
// saved column mapping templates.
package store

import (
	"context"

	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
)

// ProspectFilter narrows ListProspects results.
type ProspectFilter struct {
	Status      model.RecordStatus `json:"status,omitempty"`
	Temperature model.Temperature  `json:"temperature,omitempty"`
	MinScore    int                `json:"min_score,omitempty"`
	Limit       int                `json:"limit,omitempty"`
	Offset      int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the qualification pipeline.
type Store interface {
	// Prospects
	UpsertProspect(ctx context.Context, rec model.QuarantineRecord) error
	GetProspect(ctx context.Context, taxID string) (*model.QuarantineRecord, error)
	ListProspects(ctx context.Context, filter ProspectFilter) ([]model.QuarantineRecord, error)

	// Analysis audit trail
	CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) (string, error)
	FinalizeAnalysis(ctx context.Context, id string, rec model.AnalysisRecord) error

	// Mapping templates
	SaveTemplate(ctx context.Context, tpl mapping.Template) (string, error)
	ListTemplates(ctx context.Context) ([]mapping.Template, error)
	GetTemplate(ctx context.Context, id string) (*mapping.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
	TouchTemplate(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
