// Package gqlbridge bridges push-style GraphQL subscriptions into
// pull-friendly snapshots.
//
// A remote API publishes data over GraphQL-over-WebSocket subscriptions.
// Consumers on this side are request/response clients that want the
// current value now, without holding a socket open. The bridge holds the
// sockets, caches the latest payload per subscription, and serves the
// snapshots over a local REST gateway.
//
// # Architecture
//
//	┌──────────────────────┐
//	│   Remote GraphQL API │   wss://host/graphql
//	└──────────┬───────────┘
//	           │ graphql-transport-ws / graphql-ws
//	           ↓
//	┌──────────────────────┐
//	│ Subscription Manager │   one cancellable task per
//	│  session + reconnect │   active subscription
//	└──────────┬───────────┘
//	           │ latest payload, overwrite
//	           ↓
//	┌──────────────────────┐
//	│    Payload Cache     │   survives reconnects and stops
//	└──────────┬───────────┘
//	           │ read at the caller's pace
//	           ↓
//	┌──────────────────────┐
//	│     REST Gateway     │   resources, control plane,
//	│      (chi router)    │   diagnostics, health
//	└──────────────────────┘
//
// The push side and the pull side never block each other: a slow reader
// cannot stall the socket, and a dead socket still serves the last
// cached value.
//
// # Packages
//
// Core:
//   - subscription: registry, WebSocket session, reconnect controller,
//     manager, payload cache, auto-start sequencer, endpoint probe
//   - gateway: REST surface over the manager and cache
//   - config: layered configuration (defaults, JSON/YAML file, env)
//
// Infrastructure:
//   - errors: classified errors (transient, fatal, invalid) and bridge
//     fault sentinels
//   - lifecycle: the Initialize/Start/Stop contract shared by long-lived
//     components
//   - health: per-component health with aggregation and sanitizing
//   - metric: Prometheus registry and exposition server
//
// # Subscription lifecycle
//
// Each started subscription runs as one task: derive the WebSocket URL
// from the configured HTTP endpoint, dial with subprotocol negotiation,
// send connection_init, wait for the ack, then stream. Data frames
// overwrite the cache; error frames are recorded without killing the
// stream; a close or read failure hands control to the reconnect
// controller, which retries with bounded exponential backoff until the
// attempt limit. Stopping a subscription cancels its task and awaits the
// unwind, leaving the cached payload in place.
//
// # Usage
//
//	cfg := subscription.DefaultConfig()
//	cfg.Endpoint = "https://api.local"
//	cfg.APIKey = os.Getenv("API_KEY")
//
//	registry, err := subscription.NewRegistry(subscription.DefaultCatalog()...)
//	if err != nil {
//	    return err
//	}
//
//	manager, err := subscription.New(cfg, registry)
//	if err != nil {
//	    return err
//	}
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return err
//	}
//	defer manager.Stop(10 * time.Second)
//
//	gw, err := gateway.NewServer(gateway.DefaultConfig(), manager,
//	    subscription.NewSequencer(manager), health.NewMonitor())
//	if err != nil {
//	    return err
//	}
//	if err := gw.Initialize(); err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(10 * time.Second)
//
// # Binary
//
// cmd/gqlbridge wires the full system:
//
//	# run with defaults plus environment overrides
//	GQLBRIDGE_API_URL=https://api.local GQLBRIDGE_API_KEY=... gqlbridge serve
//
//	# run with a config file
//	gqlbridge serve --config configs/gqlbridge.yaml
//
//	# check a config without starting anything
//	gqlbridge validate --config configs/gqlbridge.yaml
//
// # Design principles
//
// Explicit ownership:
//   - No package-level singletons; the manager is constructed and passed
//   - Every blocking operation takes a context
//   - Stop always bounds its wait with a timeout
//
// Fault isolation:
//   - One subscription failing never affects another
//   - Auto-start failures log and continue
//   - Cached data outlives the connection that produced it
package gqlbridge
