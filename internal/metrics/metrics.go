// Package metrics exposes prometheus counters for the question pipeline.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "climq"

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	questions *prometheus.CounterVec   // questions by domain and outcome status
	queries   *prometheus.CounterVec   // dispatched queries by result
	latency   *prometheus.HistogramVec // query latency by result
	entities  *prometheus.CounterVec   // resolved entities by kind and source
	drops     *prometheus.CounterVec   // dropped items by stage
}

// New creates and registers the collectors on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered, by domain and outcome status",
		}, []string{"domain", "status"}),

		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execute",
			Name:      "queries_total",
			Help:      "Queries dispatched to the dataset, by result",
		}, []string{"result"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execute",
			Name:      "query_duration_seconds",
			Help:      "Dataset query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),

		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "entities_total",
			Help:      "Resolved entities, by kind and resolution source",
		}, []string{"kind", "source"}),

		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Items dropped while answering, by pipeline stage",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.questions, m.queries, m.latency, m.entities, m.drops} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Question counts one answered question.
func (m *Metrics) Question(domain, status string) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(domain, status).Inc()
}

// Query counts one dispatched query. result is "ok", "no_data" or "error".
func (m *Metrics) Query(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(result).Inc()
	m.latency.WithLabelValues(result).Observe(d.Seconds())
}

// Entity counts one resolved entity.
func (m *Metrics) Entity(kind, source string) {
	if m == nil {
		return
	}
	m.entities.WithLabelValues(kind, source).Inc()
}

// Drop counts one dropped item.
func (m *Metrics) Drop(stage string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
