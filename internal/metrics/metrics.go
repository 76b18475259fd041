package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the service exports. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	BookingsTotal          *prometheus.CounterVec
	SlotsGeneratedTotal    prometheus.Counter
	SlotsSkippedTotal      prometheus.Counter
	ScheduleConflictsTotal prometheus.Counter
}

// NewCollector namespaces every metric under serviceName, with dashes
// turned into underscores.
func NewCollector(serviceName string) *Collector {
	serviceName = strings.ReplaceAll(serviceName, "-", "_")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"result"}),

		SlotsGeneratedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "slots",
			Name:      "generated_total",
			Help:      "Slots materialized from schedules.",
		}),

		SlotsSkippedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "slots",
			Name:      "skipped_total",
			Help:      "Candidate slots skipped because they collided with existing slots or absences.",
		}),

		ScheduleConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "schedules",
			Name:      "conflicts_total",
			Help:      "Schedule writes rejected for overlapping an existing window.",
		}),
	}
}

func (c *Collector) ObserveRequest(method, route, status string, seconds float64) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, status).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func (c *Collector) Booking(result string) {
	if c == nil {
		return
	}
	c.BookingsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) SlotsGenerated(created, skipped int) {
	if c == nil {
		return
	}
	c.SlotsGeneratedTotal.Add(float64(created))
	c.SlotsSkippedTotal.Add(float64(skipped))
}

func (c *Collector) ScheduleConflict() {
	if c == nil {
		return
	}
	c.ScheduleConflictsTotal.Inc()
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
