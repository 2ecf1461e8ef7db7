// Package config provides configuration management for the bridge.
//
// It handles loading, merging and validation of application configuration
// from JSON and YAML files plus environment variable overrides.
//
// # Core Components
//
// Config: The main configuration structure with sections for the remote
// API (api), the subscription engine (engine), auto-start behavior
// (autostart), extra subscription definitions (subscriptions), the local
// REST gateway (gateway), the Prometheus endpoint (metrics) and logging.
//
// Loader: Loads configuration with layer merging (base + overrides) and
// environment variable substitution for flexible deployment scenarios.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Layer Merging
//
// Configuration layers are merged with last-wins semantics:
//
//	base.yaml:
//	  api:
//	    url: https://api.local
//	    ack_timeout: 30s
//
//	production.json:
//	  {"api": {"url": "https://api.example.com"}}
//
//	Result: production URL, base ack_timeout, defaults for the rest.
//
// Duration fields accept Go duration strings ("30s", "5m") in both
// formats.
//
// # Environment Variable Overrides
//
// Selected values can be overridden at runtime:
//
//	export GQLBRIDGE_API_URL="https://api.example.com"
//	export GQLBRIDGE_API_KEY="..."
//	export GQLBRIDGE_VERIFY_SSL="false"
//	export GQLBRIDGE_MAX_RECONNECT_ATTEMPTS="20"
//	export GQLBRIDGE_AUTO_START_SUBSCRIPTIONS="no"
//	export GQLBRIDGE_AUTOSTART_LOG_PATH="/var/log/messages"
//	export GQLBRIDGE_LOG_LEVEL="debug"
//
// # Security
//
// The package validates configuration input before parsing:
//   - File size limits (10MB max) to prevent memory exhaustion
//   - JSON depth validation (100 levels max) to prevent DoS attacks
//   - Path validation to prevent directory traversal
//   - Regular file checks (no directories or device files)
package config
