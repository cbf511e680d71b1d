package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"movies-etl/internal/middleware"
	"movies-etl/internal/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPhase orchestrator.Phase

func (s stubPhase) Phase() orchestrator.Phase { return orchestrator.Phase(s) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name  string
		phase orchestrator.Phase
	}{
		{name: "Bootstrapping", phase: orchestrator.Bootstrapping},
		{name: "Initial indexing", phase: orchestrator.InitialIndexing},
		{name: "Sync idle", phase: orchestrator.SyncIdle},
		{name: "Sync running", phase: orchestrator.SyncRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(zap.NewNop().Sugar(), stubPhase(tt.phase), middleware.NewMetrics())

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, string(tt.phase), body["phase"])
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	metrics := middleware.NewMetrics()
	metrics.DocsIndexed.Add(3)
	r := NewRouter(zap.NewNop().Sugar(), stubPhase(orchestrator.SyncIdle), metrics)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "etl_documents_indexed_total 3")
	assert.True(t, strings.Contains(text, `http_requests_total{method="GET",path="/healthz",status="200"} 1`))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r := NewRouter(zap.NewNop().Sugar(), stubPhase(orchestrator.SyncIdle), middleware.NewMetrics())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
