// Package metrics counts pipeline activity on a private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "postai"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns      *prometheus.CounterVec // by branch
	executions *prometheus.CounterVec // by outcome: ok, http_error, transport_error
	searches   *prometheus.CounterVec // by mode: literal, semantic, none
	latency    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns handled, by pipeline branch.",
		}, []string{"branch"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Confirmed requests executed, by outcome.",
		}, []string{"outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Endpoint searches, by the pass that produced the result.",
		}, []string{"mode"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time to complete a confirmed request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	m.registry.MustRegister(m.turns, m.executions, m.searches, m.latency)
	return m
}

// Outcomes of an execution.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

func (m *Metrics) Turn(branch string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(branch).Inc()
}

func (m *Metrics) Execution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) Search(mode string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode).Inc()
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
