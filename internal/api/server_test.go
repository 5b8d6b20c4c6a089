package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VarenyaJ/P5/internal/config"
	"github.com/VarenyaJ/P5/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
		Logging: config.LoggingConfig{Level: "error"},
	}
	return NewServer(cfg, logger, store, nil)
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func evaluateBody(samples []map[string]any) map[string]any {
	return map[string]any{
		"creator":    "alice",
		"experiment": "pdf-extraction-2026-08",
		"model":      "llama-3-70b",
		"extra":      map[string]string{"dataset": "v1"},
		"samples":    samples,
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "ok", resp["storage"])
}

func TestHandleEvaluate(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/evaluate", evaluateBody([]map[string]any{
		{
			"predicted":    []string{"Macrocephaly", "Short stature"},
			"ground_truth": []string{"Macrocephaly", "Seizure"},
		},
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID             string `json:"id"`
		TruePositives  int    `json:"true_positives"`
		FalsePositives int    `json:"false_positives"`
		FalseNegatives int    `json:"false_negatives"`
		Metrics        struct {
			Precision float64 `json:"precision"`
			Recall    float64 `json:"recall"`
			F1        float64 `json:"f1"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 1, resp.TruePositives)
	assert.Equal(t, 1, resp.FalsePositives)
	assert.Equal(t, 1, resp.FalseNegatives)
	assert.InDelta(t, 0.5, resp.Metrics.Precision, 1e-9)
	assert.InDelta(t, 0.5, resp.Metrics.F1, 1e-9)
}

func TestHandleEvaluate_MissingMetadata(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"experiment": "e",
		"model":      "m",
		"samples":    []map[string]any{{"predicted": []string{"A"}, "ground_truth": []string{"A"}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportLifecycle(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/evaluate", evaluateBody([]map[string]any{
		{"predicted": []string{"Seizure"}, "ground_truth": []string{"Seizure"}},
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doRequest(s, http.MethodGet, "/api/v1/reports/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/reports/"+created.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Contains(t, summary["summary"], "TP=1")

	w = doRequest(s, http.MethodGet, "/api/v1/reports?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Total   int64             `json:"total"`
		Reports []json.RawMessage `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, int64(1), listing.Total)
	assert.Len(t, listing.Reports, 1)

	w = doRequest(s, http.MethodDelete, "/api/v1/reports/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/reports/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetReport_NotFound(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodGet, "/api/v1/reports/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListReports_InvalidPagination(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/reports?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/reports?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleExport(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/evaluate", evaluateBody([]map[string]any{
		{"predicted": []string{"A"}, "ground_truth": []string{"B"}},
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var export struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	assert.Equal(t, 1, export.Count)
}

func TestRequestIDHeader(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
