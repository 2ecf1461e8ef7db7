package subscription

import (
	"fmt"
	"time"

	"github.com/c360/gqlbridge/errors"
)

// Config holds the subscription engine configuration.
type Config struct {
	// Endpoint is the HTTP(S) base URL of the remote GraphQL API. The
	// WebSocket endpoint is derived from it (https becomes wss, /graphql
	// appended when missing).
	Endpoint string `json:"endpoint"`

	// APIKey authenticates the connection_init payload.
	APIKey string `json:"api_key"`

	// AuthCompat presents the API key under every header spelling servers
	// are known to read. Disable to send only a bearer Authorization.
	AuthCompat bool `json:"auth_compat"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `json:"insecure_skip_verify"`

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`

	// AckTimeout bounds the wait for the server's connection_ack.
	AckTimeout time.Duration `json:"ack_timeout"`

	// ProbeTimeout bounds the wait for the first frame of a probe.
	ProbeTimeout time.Duration `json:"probe_timeout"`

	// StopTimeout bounds how long StopSubscription waits for the task.
	StopTimeout time.Duration `json:"stop_timeout"`

	// MaxReconnectAttempts is the attempt budget before a subscription
	// gives up. The counter resets when a connection authenticates.
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`

	// InitialBackoff is the first reconnect delay.
	InitialBackoff time.Duration `json:"initial_backoff"`

	// MaxBackoff caps the reconnect delay.
	MaxBackoff time.Duration `json:"max_backoff"`

	// BackoffMultiplier grows the delay after each failed attempt.
	BackoffMultiplier float64 `json:"backoff_multiplier"`

	// AutoStart enables the auto-start sweep over the registry.
	AutoStart bool `json:"auto_start"`

	// AutostartLogPath is the file path handed to the log streaming
	// subscription during auto-start. Empty falls back to /var/log/syslog
	// when that file exists.
	AutostartLogPath string `json:"autostart_log_path,omitempty"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		AuthCompat:           true,
		HandshakeTimeout:     10 * time.Second,
		AckTimeout:           30 * time.Second,
		ProbeTimeout:         5 * time.Second,
		StopTimeout:          10 * time.Second,
		MaxReconnectAttempts: 10,
		InitialBackoff:       5 * time.Second,
		MaxBackoff:           5 * time.Minute,
		BackoffMultiplier:    1.5,
		AutoStart:            true,
	}
}

// withDefaults fills zero-valued timing and retry fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	return c
}

// Validate checks the configuration for values the engine cannot run with.
// A missing endpoint is allowed here; it fails at start time so status and
// diagnostics can report the misconfiguration.
func (c Config) Validate() error {
	if c.MaxBackoff < c.InitialBackoff {
		return errors.WrapInvalid(
			fmt.Errorf("max_backoff %s is below initial_backoff %s", c.MaxBackoff, c.InitialBackoff),
			"subscription", "Validate", "check backoff bounds")
	}
	if c.BackoffMultiplier <= 1 {
		return errors.WrapInvalid(
			fmt.Errorf("backoff_multiplier %v must be greater than 1", c.BackoffMultiplier),
			"subscription", "Validate", "check backoff multiplier")
	}
	return nil
}
