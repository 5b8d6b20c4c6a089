package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/VarenyaJ/P5/internal/report"
)

// PostgresStore implements Store on PostgreSQL. The reports table is owned
// by the migrations under migrations/; the store assumes it exists.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging report database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDSN opens a connection from a DSN and wraps it.
func NewPostgresStoreFromDSN(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening report database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save stores a report, rewriting the row when the ID already exists.
func (s *PostgresStore) Save(ctx context.Context, r *report.Report) error {
	extra, err := encodeExtra(r)
	if err != nil {
		return err
	}

	meta := r.Metadata()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, creator, experiment, model, notes,
			true_positives, false_positives, false_negatives,
			extra, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			creator = EXCLUDED.creator,
			experiment = EXCLUDED.experiment,
			model = EXCLUDED.model,
			notes = EXCLUDED.notes,
			true_positives = EXCLUDED.true_positives,
			false_positives = EXCLUDED.false_positives,
			false_negatives = EXCLUDED.false_negatives,
			extra = EXCLUDED.extra,
			created_at = EXCLUDED.created_at
	`,
		r.ID(), meta.Creator, meta.Experiment, meta.Model, meta.Notes,
		r.TruePositives(), r.FalsePositives(), r.FalseNegatives(),
		extra, r.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID, returning (nil, nil) when absent.
func (s *PostgresStore) Get(ctx context.Context, id string) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, creator, experiment, model, notes,
			true_positives, false_positives, false_negatives,
			extra, created_at
		FROM reports
		WHERE id = $1
	`, id)

	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	return r, nil
}

// List returns reports newest-first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*report.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, creator, experiment, model, notes,
			true_positives, false_positives, false_negatives,
			extra, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var result []*report.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the number of stored reports.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// Delete removes a report by ID. Deleting an absent ID is not an error.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = $1", id)
	return err
}

// ExportJSON writes all stored reports to w as a single JSON envelope.
func (s *PostgresStore) ExportJSON(ctx context.Context, w io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("listing reports for export: %w", err)
	}

	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Reports:    all,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
