package middleware

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const runtimeCollectInterval = 10 * time.Second

// Metrics - счетчики ETL и ops HTTP сервера на собственном реестре
type Metrics struct {
	Registry *prometheus.Registry

	RowsMigrated    *prometheus.CounterVec
	RowsDropped     *prometheus.CounterVec
	DocsIndexed     prometheus.Counter
	DocsFailed      prometheus.Counter
	Retries         *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	LastSuccessTime prometheus.Gauge

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpInFlightRequests prometheus.Gauge
	httpErrorsTotal      *prometheus.CounterVec

	goGoroutines         prometheus.Gauge
	goMemStatsHeapAlloc  prometheus.Gauge
	goMemStatsStackInuse prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RowsMigrated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_rows_migrated_total",
				Help: "Rows written to the destination schema during bootstrap",
			},
			[]string{"table"},
		),
		RowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_rows_dropped_total",
				Help: "Source rows dropped because they failed validation",
			},
			[]string{"table"},
		),
		DocsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "etl_documents_indexed_total",
				Help: "Documents accepted by the search index",
			},
		),
		DocsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "etl_documents_failed_total",
				Help: "Documents rejected by the search index",
			},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_retries_total",
				Help: "Retried attempts of operations against external stores",
			},
			[]string{"operation"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "etl_sync_cycle_duration_seconds",
				Help:    "Duration of a sync cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		LastSuccessTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "etl_last_success_timestamp_seconds",
				Help: "Unix time of the last successful sync cycle",
			},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of response time for handler",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpInFlightRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_in_flight_requests",
				Help: "Current number of HTTP requests being handled",
			},
		),
		httpErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_errors_total",
				Help: "Total number of HTTP error responses (status 4xx and 5xx)",
			},
			[]string{"method", "path", "status"},
		),

		goGoroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "go_goroutines",
				Help: "Number of goroutines",
			},
		),
		goMemStatsHeapAlloc: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "go_memstats_heap_alloc_bytes",
				Help: "Number of heap bytes allocated and still in use",
			},
		),
		goMemStatsStackInuse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "go_memstats_stack_inuse_bytes",
				Help: "Bytes in stack spans in use",
			},
		),
	}

	m.Registry.MustRegister(
		m.RowsMigrated,
		m.RowsDropped,
		m.DocsIndexed,
		m.DocsFailed,
		m.Retries,
		m.CycleDuration,
		m.LastSuccessTime,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInFlightRequests,
		m.httpErrorsTotal,
		m.goGoroutines,
		m.goMemStatsHeapAlloc,
		m.goMemStatsStackInuse,
	)

	return m
}

// ObserveRetry - подходит как retry.Observer
func (m *Metrics) ObserveRetry(operation string) {
	m.Retries.WithLabelValues(operation).Inc()
}

// CollectRuntime - периодически обновляет метрики runtime до отмены ctx
func (m *Metrics) CollectRuntime(ctx context.Context) {
	ticker := time.NewTicker(runtimeCollectInterval)
	defer ticker.Stop()

	for {
		m.collectRuntime()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Metrics) collectRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.goGoroutines.Set(float64(runtime.NumGoroutine()))
	m.goMemStatsHeapAlloc.Set(float64(ms.HeapAlloc))
	m.goMemStatsStackInuse.Set(float64(ms.StackInuse))
}

func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlightRequests.Inc()
		defer m.httpInFlightRequests.Dec()
		start := time.Now()

		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rr, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rr.status)

		m.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)

		if rr.status >= 400 {
			m.httpErrorsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		}
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}
