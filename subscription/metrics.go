package subscription

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/gqlbridge/metric"
)

// Metrics holds Prometheus metrics for the subscription engine.
type Metrics struct {
	connectionState     *prometheus.GaugeVec
	payloadsReceived    *prometheus.CounterVec
	payloadErrors       *prometheus.CounterVec
	reconnectAttempts   *prometheus.CounterVec
	authFailures        *prometheus.CounterVec
	connects            *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
	errorsTotal         *prometheus.CounterVec
}

// newMetrics creates and registers engine metrics. A nil registry yields a
// nil Metrics; all recording methods tolerate a nil receiver.
func newMetrics(registry *metric.MetricsRegistry, componentName string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	metrics := &Metrics{
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "connection_state",
			Help:      "Current connection state per subscription (1 for the active state)",
		}, []string{"subscription", "state"}),

		payloadsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "payloads_received_total",
			Help:      "Total data payloads received per subscription",
		}, []string{"subscription"}),

		payloadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "payload_errors_total",
			Help:      "Total data frames carrying GraphQL errors",
		}, []string{"subscription"}),

		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "reconnect_attempts_total",
			Help:      "Total connection attempts per subscription",
		}, []string{"subscription"}),

		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "auth_failures_total",
			Help:      "Total authentication rejections per subscription",
		}, []string{"subscription"}),

		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "connects_total",
			Help:      "Total successful WebSocket connections per subscription",
		}, []string{"subscription"}),

		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "active_subscriptions",
			Help:      "Number of subscriptions with a live task",
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"subscription", "type"}),
	}

	if err := registry.RegisterGaugeVec(componentName, "connection_state", metrics.connectionState); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "payloads_received", metrics.payloadsReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "payload_errors", metrics.payloadErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "reconnect_attempts", metrics.reconnectAttempts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "auth_failures", metrics.authFailures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "connects", metrics.connects); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "active_subscriptions", metrics.activeSubscriptions); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "errors_total", metrics.errorsTotal); err != nil {
		return nil, err
	}

	return metrics, nil
}

// stateChanged flips the state gauge from the old state to the new one.
func (m *Metrics) stateChanged(subscription string, from, to ConnectionState) {
	if m == nil {
		return
	}
	if from != "" {
		m.connectionState.WithLabelValues(subscription, from.String()).Set(0)
	}
	m.connectionState.WithLabelValues(subscription, to.String()).Set(1)
}

func (m *Metrics) payloadReceived(subscription string) {
	if m == nil {
		return
	}
	m.payloadsReceived.WithLabelValues(subscription).Inc()
}

func (m *Metrics) payloadError(subscription string) {
	if m == nil {
		return
	}
	m.payloadErrors.WithLabelValues(subscription).Inc()
}

func (m *Metrics) reconnectAttempt(subscription string) {
	if m == nil {
		return
	}
	m.reconnectAttempts.WithLabelValues(subscription).Inc()
}

func (m *Metrics) authFailure(subscription string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(subscription).Inc()
}

func (m *Metrics) connected(subscription string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(subscription).Inc()
}

func (m *Metrics) setActive(count int) {
	if m == nil {
		return
	}
	m.activeSubscriptions.Set(float64(count))
}

// trackError counts an error by type for alerting on failure patterns.
func (m *Metrics) trackError(subscription, errorType string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(subscription, errorType).Inc()
}
