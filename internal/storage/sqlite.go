package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/VarenyaJ/P5/internal/report"
)

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) a report database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory for report database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening report database: %w", err)
	}

	// WAL keeps concurrent readers from blocking the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := createReportSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating report schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createReportSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		creator TEXT NOT NULL,
		experiment TEXT NOT NULL,
		model TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		true_positives INTEGER NOT NULL CHECK (true_positives >= 0),
		false_positives INTEGER NOT NULL CHECK (false_positives >= 0),
		false_negatives INTEGER NOT NULL CHECK (false_negatives >= 0),
		extra TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_experiment ON reports(experiment);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is satisfied by both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*report.Report, error) {
	var (
		snap      report.Snapshot
		extraJSON []byte
		createdAt time.Time
	)
	err := s.Scan(
		&snap.ID, &snap.Creator, &snap.Experiment, &snap.Model, &snap.Notes,
		&snap.TruePositives, &snap.FalsePositives, &snap.FalseNegatives,
		&extraJSON, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &snap.Extra); err != nil {
			return nil, fmt.Errorf("decoding extra metadata: %w", err)
		}
	}
	snap.CreatedAt = createdAt

	return report.FromSnapshot(snap)
}

func encodeExtra(r *report.Report) (string, error) {
	extra := r.Metadata().Extra
	if len(extra) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encoding extra metadata: %w", err)
	}
	return string(data), nil
}

// Save stores a report. Saving a report with an already-stored ID rewrites
// the row; reports are immutable so the content is identical either way.
func (s *SQLiteStore) Save(ctx context.Context, r *report.Report) error {
	extra, err := encodeExtra(r)
	if err != nil {
		return err
	}

	meta := r.Metadata()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (
			id, creator, experiment, model, notes,
			true_positives, false_positives, false_negatives,
			extra, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
func (s *SQLiteStore) Get(ctx context.Context, id string) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, creator, experiment, model, notes,
			true_positives, false_positives, false_negatives,
			extra, created_at
		FROM reports
		WHERE id = ?
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
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*report.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, creator, experiment, model, notes,
			true_positives, false_positives, false_negatives,
			extra, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// Delete removes a report by ID. Deleting an absent ID is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	return err
}

// ExportJSON writes all stored reports to w as a single JSON envelope.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
