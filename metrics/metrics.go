// Package metrics holds the service's Prometheus collectors and the server
// that exposes them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/metadata-governance-backend/common"
)

// Reconciler outcomes counted by ExternalIDOutcomes.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeLinked    = "linked"
	OutcomeConfirmed = "confirmed"
	OutcomeRemoved   = "removed"
)

var registry = prometheus.NewRegistry()

var (
	// ExternalIDOutcomes counts what each external identifier operation did.
	ExternalIDOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "external_id_outcomes_total",
		Help:      "External identifier reconciliation outcomes",
	}, []string{"outcome"})

	// RepositoryErrors counts repository faults surfaced as property server errors.
	RepositoryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "repository_errors_total",
		Help:      "Metadata repository faults by handler operation",
	}, []string{"operation"})

	// HandlerCalls counts handler operations by handler and operation name.
	HandlerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "handler_calls_total",
		Help:      "Handler operations invoked",
	}, []string{"handler", "operation"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ExternalIDOutcomes,
		RepositoryErrors,
		HandlerCalls,
	)
}

// MetricsServer serves /metrics on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New returns a metrics server for listenAddr.
func New(listenAddr string) (*MetricsServer, error) {
	mux := chi.NewRouter()
	mux.Handle("/metrics", Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the HTTP handler exposing every collector.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
