package health

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sesh/pkg/session"
)

// Metrics holds all Prometheus metrics for sesh. It implements
// session.Observer so a Session reports into it directly.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestErrors    *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	ClientsCreated   prometheus.Counter
	ClientsReused    prometheus.Counter
	CookiesStored    prometheus.Counter
	CookieJarSize    prometheus.Gauge
	StepRequests     *prometheus.CounterVec
	CurrentRPS       prometheus.Gauge
	TargetRPS        prometheus.Gauge
	ActiveWorkers    prometheus.Gauge
	QueuedRequests   prometheus.Gauge
	TargetHealth     *prometheus.GaugeVec
}

var _ session.Observer = (*Metrics)(nil)

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sesh",
				Name:      "requests_total",
				Help:      "Total number of completed requests by method and status code",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sesh",
				Name:      "request_duration_seconds",
				Help:      "Request latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method"},
		),
		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sesh",
				Name:      "request_errors_total",
				Help:      "Failed requests by error kind",
			},
			[]string{"kind"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "requests_in_flight",
				Help:      "Current number of requests being processed",
			},
		),
		ClientsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sesh",
				Name:      "pool_clients_created_total",
				Help:      "Transport clients built by the session pool",
			},
		),
		ClientsReused: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sesh",
				Name:      "pool_clients_reused_total",
				Help:      "Requests served by an already pooled transport client",
			},
		),
		CookiesStored: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sesh",
				Name:      "cookies_stored_total",
				Help:      "Cookies captured from Set-Cookie headers",
			},
		),
		CookieJarSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "cookie_jar_size",
				Help:      "Number of cookies held by the session",
			},
		),
		StepRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sesh",
				Name:      "step_requests_total",
				Help:      "Scenario requests by step name and outcome",
			},
			[]string{"step", "outcome"},
		),
		CurrentRPS: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "current_rps",
				Help:      "Requests completed during the last second",
			},
		),
		TargetRPS: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "target_rps",
				Help:      "Configured request rate",
			},
		),
		ActiveWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "active_workers",
				Help:      "Number of workers currently sending a request",
			},
		),
		QueuedRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "queued_requests",
				Help:      "Number of requests waiting in queue",
			},
		),
		TargetHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sesh",
				Name:      "target_health",
				Help:      "Health status of the probed target (1=healthy, 0=unhealthy)",
			},
			[]string{"target"},
		),
	}
}

func (m *Metrics) ClientCreated(session.ClientKey) {
	m.ClientsCreated.Inc()
}

func (m *Metrics) ClientReused(session.ClientKey) {
	m.ClientsReused.Inc()
}

func (m *Metrics) RequestDone(method string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) RequestFailed(method string, kind session.Kind, elapsed time.Duration) {
	m.RequestErrors.WithLabelValues(kind.String()).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) CookiesUpdated(stored, total int) {
	m.CookiesStored.Add(float64(stored))
	m.CookieJarSize.Set(float64(total))
}

// RecordStep counts one scenario request under its step name.
func (m *Metrics) RecordStep(step string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.StepRequests.WithLabelValues(step, outcome).Inc()
}

// SetCurrentRPS updates the measured request rate.
func (m *Metrics) SetCurrentRPS(rps float64) {
	m.CurrentRPS.Set(rps)
}

// SetTargetRPS updates the configured request rate.
func (m *Metrics) SetTargetRPS(rps float64) {
	m.TargetRPS.Set(rps)
}

// SetActiveWorkers updates the active workers metric.
func (m *Metrics) SetActiveWorkers(count int) {
	m.ActiveWorkers.Set(float64(count))
}

// SetQueuedRequests updates the queued requests metric.
func (m *Metrics) SetQueuedRequests(count int) {
	m.QueuedRequests.Set(float64(count))
}

// SetTargetHealth updates the health status for a target.
func (m *Metrics) SetTargetHealth(target string, healthy bool) {
	if healthy {
		m.TargetHealth.WithLabelValues(target).Set(1)
	} else {
		m.TargetHealth.WithLabelValues(target).Set(0)
	}
}

// IncRequestsInFlight increments the in-flight requests counter.
func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter.
func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
