package gateway

import (
	"fmt"
	"time"

	"github.com/c360/gqlbridge/errors"
)

// Config holds configuration for the HTTP gateway.
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool `json:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// RequestTimeout bounds reads and writes per request (default: 30s)
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`

	// MaxRequestSize caps request bodies in bytes (default: 1 MiB)
	MaxRequestSize int64 `json:"max_request_size,omitempty"`
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress:    ":8080",
		EnableCORS:     true,
		CORSOrigins:    []string{"*"},
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

// Validate ensures the configuration is valid, filling defaults for
// unset fields.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RequestTimeout < 100*time.Millisecond || c.RequestTimeout > 5*time.Minute {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("request_timeout %v must be between 100ms and 5m", c.RequestTimeout))
	}

	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = 1 << 20
	}
	if c.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size must be positive")
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	return nil
}
