package controlplane

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vhq-lag/vhq/internal/models"
)

// Metrics holds the daemon's Prometheus instruments. It implements
// scheduler.Observer.
type Metrics struct {
	registry   *prometheus.Registry
	invokes    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	dispatched *prometheus.CounterVec
	finished   *prometheus.CounterVec
}

// NewMetrics creates the instruments on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invokes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vhq",
			Name:      "invoke_requests_total",
			Help:      "Host commands invoked, by command and HTTP status code.",
		}, []string{"command", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vhq",
			Name:      "invoke_duration_seconds",
			Help:      "Time spent serving host commands.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vhq",
			Name:      "tasks_dispatched_total",
			Help:      "Tasks handed to an agent.",
		}, []string{"agent"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vhq",
			Name:      "tasks_finished_total",
			Help:      "Tasks finished by an agent, by final status.",
		}, []string{"agent", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.invokes, m.latency, m.dispatched, m.finished,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeInvoke(command string, code int, elapsed time.Duration) {
	m.invokes.WithLabelValues(command, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(command).Observe(elapsed.Seconds())
}

// TaskDispatched counts a task handed to agent.
func (m *Metrics) TaskDispatched(agent string) {
	m.dispatched.WithLabelValues(agent).Inc()
}

// TaskFinished counts a task finishing with status.
func (m *Metrics) TaskFinished(agent string, status models.TaskStatus) {
	m.finished.WithLabelValues(agent, string(status)).Inc()
}
