package handlers

import (
	"encoding/json"
	"net/http"

	"movies-etl/internal/middleware"
	"movies-etl/internal/orchestrator"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PhaseProvider - источник текущей фазы ETL
type PhaseProvider interface {
	Phase() orchestrator.Phase
}

type HealthHandler struct {
	Logger *zap.SugaredLogger
	Phases PhaseProvider
}

func NewHealthHandler(l *zap.SugaredLogger, phases PhaseProvider) *HealthHandler {
	return &HealthHandler{
		Logger: l,
		Phases: phases,
	}
}

type healthResponse struct {
	Phase orchestrator.Phase `json:"phase"`
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Phase: h.Phases.Phase()}); err != nil {
		h.Logger.Errorw("Failed to encode health response", zap.Error(err))
	}
}

// NewRouter - роутер служебного HTTP сервера: /healthz и /metrics
func NewRouter(l *zap.SugaredLogger, phases PhaseProvider, metrics *middleware.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.MetricsMiddleware)

	health := NewHealthHandler(l, phases)
	r.HandleFunc("/healthz", health.Health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	return r
}
