package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/internal/metrics"
)

// Router bundles the handlers behind one http.Handler.
type Router struct {
	research  *ResearchHandler
	stream    *StreamHandler
	health    *HealthHandler
	collector *metrics.Collector
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

// NewRouter builds the API router. The collector and gatherer are
// optional; without a gatherer the /metrics endpoint serves the default
// registry.
func NewRouter(research *ResearchHandler, stream *StreamHandler, health *HealthHandler, collector *metrics.Collector, gatherer prometheus.Gatherer, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		research:  research,
		stream:    stream,
		health:    health,
		collector: collector,
		gatherer:  gatherer,
		logger:    logger.With(zap.String("component", "router")),
	}
}

// Handler returns the fully wired ServeMux.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/research", rt.research.HandleStart)
	mux.HandleFunc("GET /api/v1/research", rt.research.HandleHistory)
	mux.HandleFunc("GET /api/v1/research/{id}", rt.research.HandleStatus)
	mux.HandleFunc("POST /api/v1/research/{id}/cancel", rt.research.HandleCancel)
	mux.HandleFunc("GET /api/v1/research/{id}/stream", rt.stream.HandleSSE)
	mux.HandleFunc("GET /api/v1/research/{id}/ws", rt.stream.HandleWebSocket)

	mux.HandleFunc("GET /health", rt.health.HandleHealth)
	mux.HandleFunc("GET /ready", rt.health.HandleReady)

	mux.Handle("GET /metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	return rt.observe(mux)
}

// observe wraps the mux with request logging and HTTP metrics.
func (rt *Router) observe(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := NewResponseWriter(w)

		mux.ServeHTTP(rw, r)

		duration := time.Since(start)

		// The matched pattern keeps metric cardinality bounded; an
		// unmatched request falls back to its raw path.
		_, path := mux.Handler(r)
		if path == "" {
			path = r.URL.Path
		}

		if rt.collector != nil {
			rt.collector.RecordHTTPRequest(r.Method, path, rw.StatusCode, duration)
		}

		rt.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.StatusCode),
			zap.Duration("duration", duration),
		)
	})
}
