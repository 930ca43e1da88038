package projects

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for guard decisions and HTTP traffic
type Metrics struct {
	guardDecisions  *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

var _ GuardObserver = (*Metrics)(nil)

// NewMetrics creates and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		guardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projects_guard_decisions_total",
				Help: "Guard decisions by guard and outcome.",
			},
			[]string{"guard", "outcome", "code"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projects_state_transitions_total",
				Help: "Project state transitions by source and target state.",
			},
			[]string{"from", "to"},
		),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "projects_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projects_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projects_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.guardDecisions, m.transitions, m.httpInFlight, m.httpRequests, m.httpRequestTime)
	}

	return m
}

// ObserveGuard implements GuardObserver
func (m *Metrics) ObserveGuard(guard string, err error) {
	if err == nil {
		m.guardDecisions.WithLabelValues(guard, "allow", "").Inc()
		return
	}

	code := ""
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		code = richErr.TextCode
	}
	m.guardDecisions.WithLabelValues(guard, "deny", code).Inc()
}

// ObserveTransition is an after transition hook counting state changes
func (m *Metrics) ObserveTransition(_ context.Context, tc TransitionContext) error {
	if tc.From != tc.To {
		m.transitions.WithLabelValues(string(tc.From), string(tc.To)).Inc()
	}
	return nil
}

// Middleware records request counts and latencies. The route pattern is
// used as path label so ids do not blow up cardinality.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusCodeFor(err)
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		path := c.Route().Path
		if path == "" {
			path = "unmatched"
		}

		labels := []string{c.Method(), path, strconv.Itoa(status)}
		m.httpRequests.WithLabelValues(labels...).Inc()
		m.httpRequestTime.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

		return err
	}
}

// MetricsHandler serves the gatherer in the prometheus text format
func MetricsHandler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
