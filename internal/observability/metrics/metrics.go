package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
)

// GatewayMetrics exposes counters/histograms for gateway traffic.
type GatewayMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptLatency  *prometheus.HistogramVec
	operationsTotal *prometheus.CounterVec
	failoversTotal  *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmxsms",
			Subsystem: "gateway",
			Name:      "attempts_total",
			Help:      "HTTP attempts against gateway hosts",
		}, []string{"protocol", "operation", "host", "outcome"}),
		attemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gmxsms",
			Subsystem: "gateway",
			Name:      "attempt_latency_seconds",
			Help:      "Latency of single gateway attempts",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"protocol", "operation"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmxsms",
			Subsystem: "connector",
			Name:      "operations_total",
			Help:      "Connector operations by result",
		}, []string{"operation", "outcome"}),
		failoversTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmxsms",
			Subsystem: "gateway",
			Name:      "failovers_total",
			Help:      "Switches to the next host after a timeout",
		}, []string{"from_host"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmxsms",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Queued jobs processed by the worker",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.attemptLatency, m.operationsTotal, m.failoversTotal, m.jobsTotal)
	return m
}

// ObserveAttempt implements gateway.Observer.
func (m *GatewayMetrics) ObserveAttempt(protocol string, op gateway.Operation, host, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(protocol, string(op), host, outcome).Inc()
	m.attemptLatency.WithLabelValues(protocol, string(op)).Observe(seconds)
}

func (m *GatewayMetrics) ObserveOperation(op gateway.Operation, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(string(op), gateway.Outcome(err)).Inc()
}

func (m *GatewayMetrics) ObserveFailover(fromHost string) {
	if m == nil {
		return
	}
	m.failoversTotal.WithLabelValues(fromHost).Inc()
}

func (m *GatewayMetrics) ObserveJob(kind, status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, status).Inc()
}
