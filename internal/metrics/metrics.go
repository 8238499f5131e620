// Package metrics exposes Prometheus instruments for poll chains and mutations.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics bundles the dashboard's instruments on a private registry.
type Metrics struct {
	Registry  *prometheus.Registry
	chains    *prometheus.GaugeVec
	fetches   *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		chains: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "otadash",
			Name:      "poll_chains",
			Help:      "Number of poll chains currently polling.",
		}, []string{"registry"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otadash",
			Name:      "poll_fetches_total",
			Help:      "Poll fetches by outcome.",
		}, []string{"registry", "result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otadash",
			Name:      "mutations_total",
			Help:      "Backend mutations by kind and outcome.",
		}, []string{"kind", "result"}),
	}
	m.Registry.MustRegister(m.chains, m.fetches, m.mutations)
	return m
}

// ChainsChanged implements poll.Observer.
func (m *Metrics) ChainsChanged(registry string, active int) {
	if m == nil {
		return
	}
	m.chains.WithLabelValues(registry).Set(float64(active))
}

// Fetched implements poll.Observer.
func (m *Metrics) Fetched(registry string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(registry, result(err)).Inc()
}

// Mutation records a backend write.
func (m *Metrics) Mutation(kind string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, result(err)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
