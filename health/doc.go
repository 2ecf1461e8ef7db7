// Package health provides health monitoring functionality for GQLBridge components
// and subscriptions with thread-safe status tracking and aggregation.
//
// The health package enables tracking the health status of individual components
// and aggregating system-wide health information for monitoring, alerting, and
// operational visibility.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality
//   - Unhealthy: component not functioning properly
//
// This three-state model enables nuanced health reporting and appropriate
// operational responses. A subscription sleeping out a reconnect backoff is
// degraded; a subscription whose credentials were rejected is unhealthy and
// needs an operator.
//
// # Core Components
//
// Status: Individual component health state containing status level, descriptive
// message, timestamp, optional metrics, and hierarchical sub-statuses for
// complex systems.
//
// Monitor: Thread-safe centralized tracking system for multiple component health
// statuses with concurrent read/write access and automatic timestamp management.
//
// Helpers: Convenience functions for creating status objects and aggregating
// system health.
//
// # Basic Usage
//
// Creating and tracking component health:
//
//	monitor := health.NewMonitor()
//
//	// Update component health
//	monitor.UpdateHealthy("gateway", "HTTP server listening")
//	monitor.UpdateDegraded("logFileSubscription", "connection reconnecting (attempt 3)")
//	monitor.UpdateUnhealthy("arraySubscription", "authentication rejected")
//
//	// Check individual component health
//	if status, exists := monitor.Get("gateway"); exists {
//	    if status.IsHealthy() {
//	        log.Println("Gateway is healthy")
//	    }
//	}
//
// # Subscription Integration
//
// FromSubscription converts the engine's status documents into health statuses
// and decides which subscriptions belong in health output at all:
//
//	for name, sub := range manager.Status() {
//	    if status, ok := health.FromSubscription(name, sub); ok {
//	        monitor.Update(name, status)
//	    }
//	}
//
// Or use the monitor's sync helper, which also removes entries for
// subscriptions that have since been stopped:
//
//	monitor.SyncSubscriptions(manager.Status())
//
// The mapping rules:
//   - Active and subscribed → healthy
//   - Connecting, reconnecting, or recovering from errors → degraded
//   - Auth failure, invalid endpoint, exhausted retries → unhealthy
//   - Never started, stopped on request, completed by server → omitted
//
// Error messages are sanitized before they enter a Status: URLs, file paths,
// IP addresses, ports and credential fragments are replaced with placeholders
// so health output can be exposed without leaking connection details.
//
// # System-Wide Health Aggregation
//
// Combining multiple component health statuses into system-wide indicators:
//
//	systemHealth := monitor.AggregateHealth("gqlbridge")
//	if systemHealth.IsUnhealthy() {
//	    log.Printf("System unhealthy: %s", systemHealth.Message)
//	}
//
//	// Aggregation uses hierarchical rules:
//	// - Any unhealthy component → system unhealthy
//	// - Any degraded component (with no unhealthy) → system degraded
//	// - All healthy → system healthy
//
// # Thread Safety
//
// All Monitor operations are safe for concurrent use. Update and Remove take a
// write lock; Get, GetAll, AggregateHealth, ListComponents and Count take a
// read lock, and GetAll returns a copy so callers can iterate without holding
// any lock.
package health
