// Package metrics exposes Prometheus collectors for the account service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smart_account"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	opDuration  prometheus.Histogram
	deployments *prometheus.CounterVec
	recoveries  *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Account operations handled, by outcome and revert reason.",
		}, []string{"outcome", "reason"}),
		opDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent validating and executing one operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Account deployments, by outcome.",
		}, []string{"outcome"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_actions_total",
			Help:      "Recovery module actions, by module, stage and outcome.",
		}, []string{"module", "stage", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.opDuration,
		m.deployments,
		m.recoveries,
		m.requests,
		collectors.NewGoCollector(),
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveOperation records one operation. reason is the revert tag, empty on success.
func (m *Metrics) ObserveOperation(reason string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(outcome(err), reason).Inc()
	m.opDuration.Observe(elapsed.Seconds())
}

// ObserveDeployment records one deployment attempt.
func (m *Metrics) ObserveDeployment(err error) {
	m.deployments.WithLabelValues(outcome(err)).Inc()
}

// ObserveRecovery records one recovery action such as "start" or "execute".
func (m *Metrics) ObserveRecovery(module, stage string, err error) {
	m.recoveries.WithLabelValues(module, stage, outcome(err)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, code string) {
	m.requests.WithLabelValues(method, route, code).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
