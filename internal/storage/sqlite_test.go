package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VarenyaJ/P5/internal/report"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustReport(t *testing.T, tp, fp, fn int) *report.Report {
	t.Helper()
	r, err := report.New(tp, fp, fn, report.Metadata{
		Creator:    "alice",
		Experiment: "pdf-extraction-2026-08",
		Model:      "llama-3-70b",
		Notes:      "nightly run",
		Extra:      map[string]string{"dataset": "phenopacket-store"},
	})
	require.NoError(t, err)
	return r
}

func TestNewSQLiteStore_CreatesDatabaseFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "reports.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	original := mustReport(t, 5, 2, 1)
	require.NoError(t, store.Save(ctx, original))

	retrieved, err := store.Get(ctx, original.ID())
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, original.ID(), retrieved.ID())
	assert.Equal(t, original.TruePositives(), retrieved.TruePositives())
	assert.Equal(t, original.FalsePositives(), retrieved.FalsePositives())
	assert.Equal(t, original.FalseNegatives(), retrieved.FalseNegatives())
	assert.Equal(t, original.Metadata(), retrieved.Metadata())
	assert.Equal(t, original.Metrics(), retrieved.Metrics())
	assert.WithinDuration(t, original.CreatedAt(), retrieved.CreatedAt(), time.Second)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := createTestStore(t)

	retrieved, err := store.Get(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_SaveIsIdempotentPerID(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	r := mustReport(t, 1, 0, 0)
	require.NoError(t, store.Save(ctx, r))
	require.NoError(t, store.Save(ctx, r))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, mustReport(t, i, 1, 1)))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	page, err := store.List(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := store.List(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	r := mustReport(t, 2, 0, 0)
	require.NoError(t, store.Save(ctx, r))
	require.NoError(t, store.Delete(ctx, r.ID()))

	retrieved, err := store.Get(ctx, r.ID())
	require.NoError(t, err)
	assert.Nil(t, retrieved)

	assert.NoError(t, store.Delete(ctx, "no-such-id"))
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, mustReport(t, 3, 1, 1)))
	require.NoError(t, store.Save(ctx, mustReport(t, 4, 0, 2)))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export struct {
		Version string            `json:"version"`
		Count   int               `json:"count"`
		Reports []json.RawMessage `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 2, export.Count)
	assert.Len(t, export.Reports, 2)
}
