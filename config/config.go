package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/gqlbridge/subscription"
)

// Config represents the complete application configuration: where the
// remote GraphQL API lives, how the subscription engine behaves, which
// subscriptions are known beyond the built-in catalog, and how the local
// gateway, metrics and logging surfaces are exposed.
type Config struct {
	API           APIConfig                 `json:"api"`
	Engine        EngineConfig              `json:"engine"`
	Autostart     AutostartConfig           `json:"autostart"`
	Subscriptions []subscription.Definition `json:"subscriptions,omitempty"`
	Gateway       GatewayConfig             `json:"gateway"`
	Metrics       MetricsConfig             `json:"metrics"`
	Logging       LoggingConfig             `json:"logging"`
}

// APIConfig locates and authenticates the remote GraphQL API.
type APIConfig struct {
	// URL is the HTTP(S) base URL of the remote API. The WebSocket
	// endpoint is derived from it at connect time.
	URL string `json:"url"`

	// Key authenticates the connection_init payload. Empty is allowed
	// for servers that accept anonymous subscriptions.
	Key string `json:"key,omitempty"`

	// VerifySSL controls TLS certificate verification.
	VerifySSL bool `json:"verify_ssl"`

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration `json:"handshake_timeout,omitempty"`

	// AckTimeout bounds the wait for the server's connection_ack.
	AckTimeout time.Duration `json:"ack_timeout,omitempty"`
}

// EngineConfig tunes reconnection and protocol behavior of the
// subscription engine.
type EngineConfig struct {
	// MaxReconnectAttempts is the attempt budget before a subscription
	// gives up. The counter resets whenever a connection authenticates.
	MaxReconnectAttempts int `json:"max_reconnect_attempts,omitempty"`

	// InitialBackoff is the first reconnect delay.
	InitialBackoff time.Duration `json:"initial_backoff,omitempty"`

	// MaxBackoff caps the reconnect delay.
	MaxBackoff time.Duration `json:"max_backoff,omitempty"`

	// BackoffMultiplier grows the delay after each failed attempt.
	BackoffMultiplier float64 `json:"backoff_multiplier,omitempty"`

	// AuthCompat presents the API key under every header spelling
	// servers are known to read. Disable to send only a bearer
	// Authorization.
	AuthCompat bool `json:"auth_compat"`

	// ProbeTimeout bounds the wait for the first frame of a probe.
	ProbeTimeout time.Duration `json:"probe_timeout,omitempty"`

	// StopTimeout bounds how long stopping a subscription waits for its
	// task to unwind.
	StopTimeout time.Duration `json:"stop_timeout,omitempty"`
}

// AutostartConfig controls the subscription auto-start sweep.
type AutostartConfig struct {
	// Enabled runs every catalog definition marked auto-start once the
	// first reader arrives.
	Enabled bool `json:"enabled"`

	// LogPath is the file path handed to the log streaming subscription.
	// Empty falls back to /var/log/syslog when that file exists.
	LogPath string `json:"log_path,omitempty"`
}

// GatewayConfig exposes the local REST gateway.
type GatewayConfig struct {
	Enabled bool `json:"enabled"`

	// Addr is the listen address, host optional (":8080").
	Addr string `json:"addr,omitempty"`

	// AllowedOrigins is the CORS allow list. "*" allows any origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// RequestTimeout bounds each gateway request.
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// Default returns the built-in configuration. File layers and environment
// overrides are applied on top of it.
func Default() *Config {
	return &Config{
		API: APIConfig{
			VerifySSL:        true,
			HandshakeTimeout: 10 * time.Second,
			AckTimeout:       30 * time.Second,
		},
		Engine: EngineConfig{
			MaxReconnectAttempts: 10,
			InitialBackoff:       5 * time.Second,
			MaxBackoff:           5 * time.Minute,
			BackoffMultiplier:    1.5,
			AuthCompat:           true,
			ProbeTimeout:         5 * time.Second,
			StopTimeout:          10 * time.Second,
		},
		Autostart: AutostartConfig{
			Enabled: true,
		},
		Gateway: GatewayConfig{
			Enabled:        true,
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate fills unset fields with defaults and rejects values the bridge
// cannot run with. A missing api.url passes here; it surfaces as a
// start-time failure so offline commands keep working.
func (c *Config) Validate() error {
	c.applyDefaults()

	if err := c.ToEngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	seen := make(map[string]bool, len(c.Subscriptions))
	for _, def := range c.Subscriptions {
		if def.Name == "" {
			return fmt.Errorf("subscriptions: entry with empty name")
		}
		if def.Query == "" {
			return fmt.Errorf("subscriptions: %q has no query", def.Name)
		}
		if seen[def.Name] {
			return fmt.Errorf("subscriptions: duplicate name %q", def.Name)
		}
		seen[def.Name] = true
	}

	return nil
}

// applyDefaults fills zero-valued fields from Default. Explicit false
// booleans are kept; only empty and non-positive values are replaced.
func (c *Config) applyDefaults() {
	def := Default()

	if c.API.HandshakeTimeout <= 0 {
		c.API.HandshakeTimeout = def.API.HandshakeTimeout
	}
	if c.API.AckTimeout <= 0 {
		c.API.AckTimeout = def.API.AckTimeout
	}
	if c.Engine.MaxReconnectAttempts <= 0 {
		c.Engine.MaxReconnectAttempts = def.Engine.MaxReconnectAttempts
	}
	if c.Engine.InitialBackoff <= 0 {
		c.Engine.InitialBackoff = def.Engine.InitialBackoff
	}
	if c.Engine.MaxBackoff <= 0 {
		c.Engine.MaxBackoff = def.Engine.MaxBackoff
	}
	if c.Engine.BackoffMultiplier == 0 {
		c.Engine.BackoffMultiplier = def.Engine.BackoffMultiplier
	}
	if c.Engine.ProbeTimeout <= 0 {
		c.Engine.ProbeTimeout = def.Engine.ProbeTimeout
	}
	if c.Engine.StopTimeout <= 0 {
		c.Engine.StopTimeout = def.Engine.StopTimeout
	}
	if c.Gateway.Addr == "" {
		c.Gateway.Addr = def.Gateway.Addr
	}
	if c.Gateway.AllowedOrigins == nil {
		c.Gateway.AllowedOrigins = def.Gateway.AllowedOrigins
	}
	if c.Gateway.RequestTimeout <= 0 {
		c.Gateway.RequestTimeout = def.Gateway.RequestTimeout
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// ToEngineConfig flattens the api, engine and autostart sections into the
// subscription engine's configuration.
func (c *Config) ToEngineConfig() subscription.Config {
	return subscription.Config{
		Endpoint:             c.API.URL,
		APIKey:               c.API.Key,
		AuthCompat:           c.Engine.AuthCompat,
		InsecureSkipVerify:   !c.API.VerifySSL,
		HandshakeTimeout:     c.API.HandshakeTimeout,
		AckTimeout:           c.API.AckTimeout,
		ProbeTimeout:         c.Engine.ProbeTimeout,
		StopTimeout:          c.Engine.StopTimeout,
		MaxReconnectAttempts: c.Engine.MaxReconnectAttempts,
		InitialBackoff:       c.Engine.InitialBackoff,
		MaxBackoff:           c.Engine.MaxBackoff,
		BackoffMultiplier:    c.Engine.BackoffMultiplier,
		AutoStart:            c.Autostart.Enabled,
		AutostartLogPath:     c.Autostart.LogPath,
	}
}

// Summary returns a loggable view of the configuration with secrets
// reduced to presence flags.
func (c *Config) Summary() map[string]any {
	preview := c.API.URL
	if len(preview) > 20 {
		preview = preview[:20] + "..."
	}

	return map[string]any{
		"api_url_configured": c.API.URL != "",
		"api_url_preview":    preview,
		"api_key_configured": c.API.Key != "",
		"verify_ssl":         c.API.VerifySSL,
		"auto_start":         c.Autostart.Enabled,
		"gateway_addr":       c.Gateway.Addr,
		"metrics_addr":       c.Metrics.Addr,
		"log_level":          c.Logging.Level,
		"log_format":         c.Logging.Format,
		"subscriptions":      len(c.Subscriptions),
	}
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "GQLBRIDGE",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
	}

	// Apply environment overrides
	l.applyEnvOverrides(cfg)

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw loads one configuration layer into a map. JSON and YAML files
// are accepted, chosen by extension.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any

	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return raw, nil
	}

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}

func isYAMLPath(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// mergeFromMap merges configuration from a raw map, only overriding fields
// present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}

	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := l.envValue("API_URL"); val != "" {
		cfg.API.URL = val
	}
	if val := l.envValue("API_KEY"); val != "" {
		cfg.API.Key = val
	}
	if val := l.envValue("VERIFY_SSL"); val != "" {
		if b, ok := parseBoolValue(val); ok {
			cfg.API.VerifySSL = b
		}
	}
	if val := l.envValue("MAX_RECONNECT_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Engine.MaxReconnectAttempts = n
		}
	}
	if val := l.envValue("AUTO_START_SUBSCRIPTIONS"); val != "" {
		if b, ok := parseBoolValue(val); ok {
			cfg.Autostart.Enabled = b
		}
	}
	if val := l.envValue("AUTOSTART_LOG_PATH"); val != "" {
		cfg.Autostart.LogPath = val
	}
	if val := l.envValue("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
}

// envValue reads one prefixed environment variable, dropping values that
// fail basic validation.
func (l *Loader) envValue(name string) string {
	key := l.envPrefix + "_" + name
	val := os.Getenv(key)
	if err := validateEnvVar(key, val); err != nil {
		return ""
	}
	return val
}

// parseBoolValue accepts the spellings deployments actually use for
// boolean environment variables.
func parseBoolValue(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// parseDurationValue converts a decoded JSON duration that may be a Go
// duration string or a number of nanoseconds.
func parseDurationValue(v any, dst *time.Duration) error {
	switch val := v.(type) {
	case nil:
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*dst = d
	case float64:
		*dst = time.Duration(val)
	default:
		return fmt.Errorf("unsupported duration value %v", v)
	}
	return nil
}

// UnmarshalJSON accepts Go duration strings for the timeout fields.
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	type Alias APIConfig
	aux := &struct {
		HandshakeTimeout any `json:"handshake_timeout"`
		AckTimeout       any `json:"ack_timeout"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if err := parseDurationValue(aux.HandshakeTimeout, &a.HandshakeTimeout); err != nil {
		return fmt.Errorf("api.handshake_timeout: %w", err)
	}
	if err := parseDurationValue(aux.AckTimeout, &a.AckTimeout); err != nil {
		return fmt.Errorf("api.ack_timeout: %w", err)
	}

	return nil
}

// UnmarshalJSON accepts Go duration strings for the backoff and timeout
// fields.
func (e *EngineConfig) UnmarshalJSON(data []byte) error {
	type Alias EngineConfig
	aux := &struct {
		InitialBackoff any `json:"initial_backoff"`
		MaxBackoff     any `json:"max_backoff"`
		ProbeTimeout   any `json:"probe_timeout"`
		StopTimeout    any `json:"stop_timeout"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if err := parseDurationValue(aux.InitialBackoff, &e.InitialBackoff); err != nil {
		return fmt.Errorf("engine.initial_backoff: %w", err)
	}
	if err := parseDurationValue(aux.MaxBackoff, &e.MaxBackoff); err != nil {
		return fmt.Errorf("engine.max_backoff: %w", err)
	}
	if err := parseDurationValue(aux.ProbeTimeout, &e.ProbeTimeout); err != nil {
		return fmt.Errorf("engine.probe_timeout: %w", err)
	}
	if err := parseDurationValue(aux.StopTimeout, &e.StopTimeout); err != nil {
		return fmt.Errorf("engine.stop_timeout: %w", err)
	}

	return nil
}

// UnmarshalJSON accepts a Go duration string for the request timeout.
func (g *GatewayConfig) UnmarshalJSON(data []byte) error {
	type Alias GatewayConfig
	aux := &struct {
		RequestTimeout any `json:"request_timeout"`
		*Alias
	}{
		Alias: (*Alias)(g),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if err := parseDurationValue(aux.RequestTimeout, &g.RequestTimeout); err != nil {
		return fmt.Errorf("gateway.request_timeout: %w", err)
	}

	return nil
}
