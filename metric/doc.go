// Package metric provides Prometheus-based metrics collection and HTTP server
// for GQLBridge monitoring and observability.
//
// The package offers a centralized metrics registry managing both core platform
// metrics (service status, health status, error counts) and component-specific
// metrics such as the subscription engine's connection and payload counters. It
// includes an HTTP server exposing metrics in Prometheus format for monitoring
// system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This architecture separates infrastructure concerns (core metrics) from
// application concerns (component-specific metrics) while providing a unified
// metrics endpoint for monitoring systems.
//
// # Basic Usage
//
// Setting up metrics collection and HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("gateway", 2)
//	coreMetrics.RecordHealthStatus("gateway", true)
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
// The package automatically registers core platform metrics tracking:
//
//   - Service lifecycle: service_status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)
//   - Error tracking: errors_total by service and type
//   - Health checks: health_status (0=unhealthy, 1=healthy)
//
// Access core metrics through the registry:
//
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("subscription_manager", 2) // 2 = running
//	coreMetrics.RecordError("subscription_manager", "connection_lost")
//	coreMetrics.RecordHealthStatus("subscription_manager", true)
//
// # Component-Specific Metrics
//
// Components register custom metrics through the registry. The subscription
// engine uses this to publish its connection state gauges and payload
// counters:
//
//	counter := prometheus.NewCounterVec(
//	    prometheus.CounterOpts{
//	        Namespace: metric.Namespace,
//	        Subsystem: "engine",
//	        Name:      "payloads_received_total",
//	        Help:      "Total data payloads received",
//	    },
//	    []string{"subscription"},
//	)
//	err := registry.RegisterCounterVec("subscription_manager", "payloads_received_total", counter)
//
// Registration is duplicate-checked: registering the same component and metric
// name twice returns a classified error instead of panicking.
//
// # HTTP Server
//
// The metrics server provides three endpoints:
//
//   - GET / - HTML page with links to metrics and health endpoints
//   - GET /metrics - Prometheus-formatted metrics (default path, configurable)
//   - GET /health - plain OK response
//
// Server.Start() blocks until the server shuts down; run it in a goroutine or
// under an errgroup and call Stop() to trigger a clean exit. A Stop-initiated
// shutdown returns nil from Start.
//
// # Prometheus Integration
//
// The package uses the official Prometheus Go client library and exposes
// metrics in OpenMetrics format. Configure Prometheus to scrape the endpoint:
//
//	# prometheus.yml
//	scrape_configs:
//	  - job_name: 'gqlbridge'
//	    static_configs:
//	      - targets: ['localhost:9090']
//	    metrics_path: '/metrics'
//	    scrape_interval: 15s
//
// All metrics use the namespace "gqlbridge" (the Namespace constant) and
// subsystems per concern:
//   - gqlbridge_service_status{service="..."}
//   - gqlbridge_engine_connection_state{subscription="...",state="..."}
//   - gqlbridge_cache_size
//
// # MetricsRegistrar Interface
//
// Components accept the MetricsRegistrar interface for dependency injection:
//
//	type MyComponent struct {
//	    metrics metric.MetricsRegistrar
//	}
//
// This enables testing with mock registrars and provides loose coupling.
//
// # Thread Safety
//
// All registry operations are thread-safe:
//   - Registration methods use mutex protection
//   - Metric recording is lock-free (Prometheus guarantee)
//   - CoreMetrics() returns a thread-safe shared instance
//   - PrometheusRegistry() is safe for concurrent access
//
// # Error Handling
//
// Registration methods return classified errors for:
//
//   - Duplicate registration: attempting to register same metric name twice
//   - Prometheus conflicts: internal Prometheus registration failures
//
// The Server.Start() method returns errors for an already-running server, a
// nil registry, and HTTP listener failures (port in use, permission denied).
package metric
