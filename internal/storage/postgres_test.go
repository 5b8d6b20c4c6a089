package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mock
}

func TestNewPostgresStore_RequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := createMockStore(t)
	r := mustReport(t, 5, 2, 1)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(
			r.ID(), "alice", "pdf-extraction-2026-08", "llama-3-70b", "nightly run",
			5, 2, 1, `{"dataset":"phenopacket-store"}`, r.CreatedAt(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func reportColumns() []string {
	return []string{
		"id", "creator", "experiment", "model", "notes",
		"true_positives", "false_positives", "false_negatives",
		"extra", "created_at",
	}
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := createMockStore(t)
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs("report-1").
		WillReturnRows(sqlmock.NewRows(reportColumns()).AddRow(
			"report-1", "alice", "exp", "model-x", "",
			3, 1, 2, []byte(`{"dataset":"v1"}`), created,
		))

	r, err := store.Get(context.Background(), "report-1")
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, "report-1", r.ID())
	assert.Equal(t, 3, r.TruePositives())
	assert.Equal(t, 1, r.FalsePositives())
	assert.Equal(t, 2, r.FalseNegatives())
	assert.Equal(t, "v1", r.Metadata().Extra["dataset"])
	assert.True(t, created.Equal(r.CreatedAt()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := createMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows(reportColumns()))

	r, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRejectsCorruptRow(t *testing.T) {
	store, mock := createMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs("corrupt").
		WillReturnRows(sqlmock.NewRows(reportColumns()).AddRow(
			"corrupt", "alice", "exp", "model-x", "",
			-1, 0, 0, []byte(`{}`), time.Now(),
		))

	_, err := store.Get(context.Background(), "corrupt")
	assert.Error(t, err, "negative counts in the database must not produce a report")
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := createMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(reportColumns()).
			AddRow("r1", "alice", "exp", "m", "", 1, 0, 0, []byte(`{}`), now).
			AddRow("r2", "bob", "exp", "m", "", 2, 1, 0, []byte(`{}`), now.Add(-time.Hour)))

	reports, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "r1", reports[0].ID())
	assert.Equal(t, "bob", reports[1].Metadata().Creator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := createMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := createMockStore(t)

	mock.ExpectExec("DELETE FROM reports").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
