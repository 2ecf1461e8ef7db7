package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockComponent simulates a component that can register its own metrics
type MockComponent struct {
	name    string
	metrics struct {
		payloadsStored prometheus.Counter
		cacheDepth     prometheus.Gauge
	}
}

func NewMockComponent(name string) *MockComponent {
	return &MockComponent{name: name}
}

func (m *MockComponent) Name() string {
	return m.name
}

// RegisterMetrics registers domain-specific metrics for the mock component
func (m *MockComponent) RegisterMetrics(registrar MetricsRegistrar) error {
	// Register a custom counter
	m.metrics.payloadsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "mock_component",
		Name:      "payloads_stored_total",
		Help:      "Total number of payloads stored",
	})

	err := registrar.RegisterCounter(m.name, "payloads_stored_total", m.metrics.payloadsStored)
	if err != nil {
		return err
	}

	// Register a custom gauge
	m.metrics.cacheDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "mock_component",
		Name:      "cache_depth",
		Help:      "Current number of cached entries",
	})

	return registrar.RegisterGauge(m.name, "cache_depth", m.metrics.cacheDepth)
}

// StorePayloads simulates payload arrival and updates metrics
func (m *MockComponent) StorePayloads(items int, cacheDepth int) {
	m.metrics.payloadsStored.Add(float64(items))
	m.metrics.cacheDepth.Set(float64(cacheDepth))
}

func TestMetricsIntegration_ComponentRegistration(t *testing.T) {
	// Create a new metrics registry
	registry := NewMetricsRegistry()

	// Create mock component
	mockComponent := NewMockComponent("test-component")

	// Register the component's metrics
	err := mockComponent.RegisterMetrics(registry)
	require.NoError(t, err)

	// Simulate some component activity
	mockComponent.StorePayloads(10, 5)

	// Verify metrics are registered and have values
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundMetrics := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundMetrics[mf.GetName()] = true
	}

	// Verify custom metrics are registered
	assert.True(t, foundMetrics["gqlbridge_mock_component_payloads_stored_total"],
		"Custom payloads_stored metric should be registered")
	assert.True(t, foundMetrics["gqlbridge_mock_component_cache_depth"],
		"Custom cache_depth metric should be registered")
}

func TestMetricsIntegration_NoDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	// Create two components with the same name (this shouldn't happen in real usage)
	component1 := NewMockComponent("duplicate-component")
	component2 := NewMockComponent("duplicate-component")

	// Register first component's metrics
	err := component1.RegisterMetrics(registry)
	require.NoError(t, err)

	// Try to register second component's metrics - should fail
	err = component2.RegisterMetrics(registry)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestMetricsIntegration_CoreAndComponentMetricsSeparate(t *testing.T) {
	registry := NewMetricsRegistry()
	coreMetrics := registry.CoreMetrics()

	mockComponent := NewMockComponent("separation-test")
	err := mockComponent.RegisterMetrics(registry)
	require.NoError(t, err)

	// Use core metrics
	coreMetrics.RecordServiceStatus("separation-test", 2)
	coreMetrics.RecordHealthStatus("separation-test", true)

	// Use component-specific metrics
	mockComponent.StorePayloads(5, 3)

	// Verify both types of metrics are present
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundMetrics := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundMetrics[mf.GetName()] = true
	}

	// Verify core metrics
	assert.True(t, foundMetrics["gqlbridge_service_status"],
		"core service status metric should be present")
	assert.True(t, foundMetrics["gqlbridge_health_status"],
		"core health status metric should be present")

	// Verify component-specific metrics
	assert.True(t, foundMetrics["gqlbridge_mock_component_payloads_stored_total"],
		"Component-specific payloads stored metric should be present")
	assert.True(t, foundMetrics["gqlbridge_mock_component_cache_depth"],
		"Component-specific cache depth metric should be present")

	// Verify engine metrics are NOT present (they are registered by the
	// subscription manager only)
	assert.False(t, foundMetrics["gqlbridge_engine_connection_state"],
		"Engine connection state metric should NOT be in core registry")
	assert.False(t, foundMetrics["gqlbridge_engine_payloads_received_total"],
		"Engine payloads metric should NOT be in core registry")
}

func TestMetricsIntegration_MetricsUnregistration(t *testing.T) {
	registry := NewMetricsRegistry()

	mockComponent := NewMockComponent("unregister-test")

	// Register metrics
	err := mockComponent.RegisterMetrics(registry)
	require.NoError(t, err)

	// Store some payloads to make metrics visible
	mockComponent.StorePayloads(1, 1)

	// Verify metrics are present
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundBefore := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundBefore[mf.GetName()] = true
	}

	assert.True(t, foundBefore["gqlbridge_mock_component_payloads_stored_total"],
		"Metric should be present before unregistration")

	// Unregister one of the metrics
	success := registry.Unregister("unregister-test", "payloads_stored_total")
	assert.True(t, success, "Unregistration should succeed")

	// Verify metric is no longer present
	metricFamilies, err = registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundAfter := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundAfter[mf.GetName()] = true
	}

	assert.False(t, foundAfter["gqlbridge_mock_component_payloads_stored_total"],
		"Metric should be absent after unregistration")
	assert.True(t, foundAfter["gqlbridge_mock_component_cache_depth"],
		"Other component metrics should remain")
}

func TestMetricsIntegration_MultipleComponentsWithUniqueMetrics(t *testing.T) {
	registry := NewMetricsRegistry()

	// Create multiple components - they need different metric names to coexist
	component1 := NewMockComponent("log-streamer")
	component2 := NewMockComponent("event-streamer")

	// Register first component
	err := component1.RegisterMetrics(registry)
	require.NoError(t, err)

	// The second component will fail because it tries to register the same
	// Prometheus metric names. This demonstrates that our registry correctly
	// prevents Prometheus-level conflicts
	err = component2.RegisterMetrics(registry)
	assert.Error(t, err, "Second component should fail due to Prometheus metric name conflict")
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsIntegration_MultipleComponentsSameNames(t *testing.T) {
	registry := NewMetricsRegistry()

	// Create components with identical names - this simulates trying to
	// register the same component twice, which should be prevented
	component1 := NewMockComponent("identical-component")
	component2 := NewMockComponent("identical-component")

	// Register first component
	err := component1.RegisterMetrics(registry)
	require.NoError(t, err)

	// Second component with same name should fail at our registry level
	err = component2.RegisterMetrics(registry)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}
