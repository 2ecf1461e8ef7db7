// Package gateway exposes the subscription engine over HTTP.
//
// The gateway is the pull half of the bridge: GraphQL subscriptions push
// data into the cache, and REST clients pull the latest snapshot out of
// it. Reads never touch the WebSocket side and never block on it.
//
// # Architecture
//
//	┌─────────────────┐
//	│  HTTP Client    │  GET /api/v1/resources/dockerEvents
//	└────────┬────────┘
//	         ↓
//	┌────────────────────────────────────────┐
//	│  gateway.Server (chi router)           │
//	│  resources / control plane / health    │
//	└────────┬───────────────────────────────┘
//	         ↓ cache read or manager call
//	┌────────────────────────────────────────┐
//	│  subscription.Manager                  │
//	│  WebSocket sessions keep cache fresh   │
//	└────────────────────────────────────────┘
//
// # Routes
//
//	GET  /api/v1/resources/{name}            cached payload by subscription name
//	GET  /api/v1/resources?path=...          cached payload by resource path
//	GET  /api/v1/subscriptions               active subscription list
//	GET  /api/v1/subscriptions/status        full status document
//	POST /api/v1/subscriptions/{name}/start  start one subscription
//	POST /api/v1/subscriptions/{name}/stop   stop one subscription
//	GET  /api/v1/diagnostics                 troubleshooting document
//	POST /api/v1/probe                       single-shot subscription test
//	GET  /health                             aggregated component health
//
// Resource reads trigger the lazy auto-start sweep on first use, so a
// fresh process begins populating its cache the moment anyone asks for
// data.
//
// # Usage
//
//	srv, err := gateway.NewServer(gateway.DefaultConfig(), manager, sequencer, monitor)
//	if err != nil {
//	    return err
//	}
//	if err := srv.Initialize(); err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop(10 * time.Second)
//
// Querying from the outside:
//
//	# Latest docker events snapshot
//	curl http://localhost:8080/api/v1/resources/dockerEvents
//
//	# Start a catalog subscription with variables
//	curl -X POST http://localhost:8080/api/v1/subscriptions/logFile/start \
//	  -H "Content-Type: application/json" \
//	  -d '{"variables": {"path": "/var/log/syslog"}}'
//
// # Error Responses
//
// Errors are JSON objects with "error" and "status" fields. Cached
// reads answer 404 until the subscription has produced data. Control
// plane failures answer 409 with the underlying reason; probe faults
// map their error class to 4xx/5xx. The health endpoint sanitizes
// every error message before it leaves the process.
package gateway
