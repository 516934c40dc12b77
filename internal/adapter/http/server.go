package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/cset-bake/internal/operators"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OperatorLister reports the operators a worker can run.
type OperatorLister interface {
	Operators() []operators.Operator
}

type operatorInfo struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

// Server exposes health, readiness, metrics, and operator catalogue endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /operators routes. Metrics are served from gatherer.
func NewServer(addr string, ready sharedobs.ReadinessChecker, ops OperatorLister, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /operators", handleOperators(ops))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleOperators(ops OperatorLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list := ops.Operators()
		out := make([]operatorInfo, len(list))
		for i, op := range list {
			out[i] = operatorInfo{Name: op.Name, Input: op.Input}
		}
		sharedobs.WriteJSON(w, http.StatusOK, out)
	}
}
