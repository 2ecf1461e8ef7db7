// Package subscription maintains GraphQL subscriptions over WebSocket and
// caches their latest payloads for pull-based readers.
//
// # Overview
//
// GraphQL subscriptions push data; the readers this daemon serves can only
// pull. The package bridges the two models: a Manager keeps one background
// task per subscription, each task holds a WebSocket connection to the
// remote GraphQL endpoint, and every data frame replaces that
// subscription's entry in a shared payload cache. Readers poll the cache
// and always get the most recent payload without ever waiting on the
// network.
//
//	                 ┌──────────────────────────────┐
//	 GraphQL API     │           Manager            │
//	┌───────────┐    │  ┌─────────┐   ┌─────────┐   │     ┌─────────┐
//	│subscription├─ws─┼─►│controller├──►│ session │───┼────►│  Store  │
//	└───────────┘    │  └─────────┘   └─────────┘   │     └────┬────┘
//	                 │   (retry loop)  (one attempt)│          │ poll
//	                 └──────────────────────────────┘      readers
//
// # Connection Lifecycle
//
// Each attempt follows the same sequence: derive the wss:// endpoint from
// the configured API base URL, dial offering both GraphQL WebSocket
// subprotocols, send connection_init with the API key payload, wait for
// connection_ack, send the subscribe frame, then consume frames until the
// server completes the subscription or the connection drops.
//
// The controller wraps attempts in a retry loop with exponential backoff
// (5s growing by 1.5x, capped at 5 minutes). The attempt counter resets
// whenever a connection authenticates, so an endpoint that flaps after
// hours of uptime gets a fresh budget. Authentication rejection, an
// invalid endpoint URL and an exhausted attempt budget are terminal; the
// task exits and leaves its state readable in Status.
//
// # Wire Protocol
//
// Both GraphQL-over-WebSocket dialects are supported and selected by the
// negotiated subprotocol:
//
//	graphql-transport-ws:  subscribe / next / ping / pong
//	graphql-ws (legacy):   start / data / ka
//
// Frames use the shared envelope:
//
//	{"id": "logFileSubscription", "type": "next", "payload": {"data": {...}}}
//
// Data frames accept either spelling regardless of dialect; servers are
// not consistent about this. Server pings get exactly one pong each.
// Frames that fail to decode are logged and skipped without ending the
// session.
//
// # Caching
//
// The Store keeps the latest payload per subscription. Writes replace the
// whole entry; there is no merging. Entries survive disconnects,
// reconnects and stops, so readers keep seeing the last known data while
// a connection recovers. Only Forget removes an entry.
//
// # Status and Diagnostics
//
// Status reports configuration, runtime state (connection state, attempt
// count, last error) and cache freshness for every known subscription.
// Diagnostics adds environment checks, summary counts and recommendation
// strings for the usual misconfigurations. Probe opens a throwaway
// connection to test a subscription query against the live endpoint.
//
// # Metrics
//
// Prometheus metrics exposed (namespace gqlbridge):
//
//	engine_connection_state{subscription,state} - Current state (1 = active)
//	engine_payloads_received_total{subscription} - Data payloads applied
//	engine_payload_errors_total{subscription} - Frames carrying GraphQL errors
//	engine_reconnect_attempts_total{subscription} - Connection attempts
//	engine_auth_failures_total{subscription} - Authentication rejections
//	engine_connects_total{subscription} - Successful connections
//	engine_active_subscriptions - Live task count
//	engine_errors_total{subscription,type} - Errors by type
//	cache_hits_total / cache_misses_total / cache_sets_total / cache_size
//
// # Error Handling
//
// Attempt failures are classified with the gqlbridge error framework:
//
//   - Transient: dial failures, read errors, ack timeouts (retried)
//   - Fatal: authentication rejection, missing endpoint (terminal)
//   - Invalid: malformed frames (init frame aborts the attempt, which is
//     retried; in-stream frames are skipped)
//
// # Thread Safety
//
// The manager lock covers task registration only; it is never held during
// network activity. Each cache entry is written by exactly one session
// and read freely. Start and Stop are protected by a lifecycle mutex.
//
// # Integration Example
//
//	registry, _ := subscription.NewRegistry(subscription.DefaultCatalog()...)
//
//	cfg := subscription.DefaultConfig()
//	cfg.Endpoint = "https://api.example.com"
//	cfg.APIKey = os.Getenv("GQLBRIDGE_API_KEY")
//
//	manager, _ := subscription.New(cfg, registry,
//	    subscription.WithMetrics(metricsRegistry))
//
//	manager.Start(ctx)
//	defer manager.Stop(30 * time.Second)
//
//	subscription.NewSequencer(manager).Ensure(ctx)
//
//	if payload, ok := manager.Data("logFileSubscription"); ok {
//	    fmt.Println(string(payload.Data))
//	}
package subscription
