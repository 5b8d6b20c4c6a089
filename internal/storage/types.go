// Package storage persists evaluation reports. Two backends implement the
// same interface: an embedded SQLite store for standalone runs and a
// PostgreSQL store for shared deployments.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/VarenyaJ/P5/internal/report"
)

// Store is the persistence contract for evaluation reports. Reports are
// immutable, so Save with an existing ID simply rewrites the same row.
// Get returns (nil, nil) when no report has the given ID.
type Store interface {
	Save(ctx context.Context, r *report.Report) error
	Get(ctx context.Context, id string) (*report.Report, error)
	List(ctx context.Context, limit, offset int) ([]*report.Report, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	ExportJSON(ctx context.Context, w io.Writer) error
	Close() error
}

// Export is the envelope written by ExportJSON.
type Export struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Reports    []*report.Report `json:"reports"`
}

// exportVersion identifies the export envelope format.
const exportVersion = "1.0"

// maxExportLimit bounds the number of reports fetched for an export.
const maxExportLimit = 1000000
