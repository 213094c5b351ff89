// Package metrics exposes watcher activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/botwatch/internal/extractor"
)

const (
	DefaultNamespace = "botwatch"
	DefaultPath      = "/metrics"
)

// Metrics holds the watcher counters on a private registry, so several
// watchers (or tests) in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	polls        prometheus.Counter
	bytesRead    prometheus.Counter
	events       *prometheus.CounterVec
	lastCoverage prometheus.Gauge

	server *http.Server
	mu     sync.Mutex
}

// New registers the botwatch metrics under namespace ("botwatch" if empty).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.polls = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polls_total",
		Help:      "Total number of poll cycles run over the log",
	})

	m.bytesRead = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_read_total",
		Help:      "Total bytes consumed from the log",
	})

	m.events = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total classified events by kind",
	}, []string{"kind"})

	m.lastCoverage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_coverage_percent",
		Help:      "Most recent activity coverage percentage reported by the engine",
	})

	// Pre-create every kind so all series are exported from the start.
	for _, k := range []extractor.Kind{extractor.KindException, extractor.KindStatistics, extractor.KindCoverage} {
		m.events.WithLabelValues(k.String())
	}

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePoll counts one poll cycle that consumed n bytes. It matches
// watcher.Options.OnPoll.
func (m *Metrics) ObservePoll(n int) {
	m.polls.Inc()
	if n > 0 {
		m.bytesRead.Add(float64(n))
	}
}

// Record counts ev. It satisfies watcher.Sink and never fails.
func (m *Metrics) Record(_ context.Context, ev extractor.Event) error {
	m.events.WithLabelValues(ev.Kind.String()).Inc()
	if ev.Coverage != nil {
		m.lastCoverage.Set(ev.Coverage.Percent)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves Handler at DefaultPath on addr in the background.
func (m *Metrics) StartServer(addr string, log zerolog.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return errors.New("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultPath, m.Handler())

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := m.server
	go func() {
		log.Info().Str("addr", addr).Str("path", DefaultPath).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}

// StopServer shuts the metrics server down, if running.
func (m *Metrics) StopServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}
	err := m.server.Close()
	m.server = nil
	return err
}
