package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/c360/gqlbridge/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "gqlbridge",
	Short: "Bridge GraphQL subscriptions into a pull-friendly cache",
	Long: `gqlbridge maintains GraphQL-over-WebSocket subscriptions against a
remote API, keeps the latest payload of each subscription in a cache,
and serves the snapshots over a local REST gateway. The push side feeds
the cache; readers pull at their own pace and never block on the
socket.`,
	SilenceUsage: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c",
		getEnv("GQLBRIDGE_CONFIG", ""),
		"configuration file, JSON or YAML (env: GQLBRIDGE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format: text, json (overrides config)")
}

// loadConfig builds the layered configuration: defaults, then the config
// file when one is given, then GQLBRIDGE_* environment overrides.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	if cfgFile == "" {
		return loader.Load()
	}
	return loader.LoadFile(cfgFile)
}

// effectiveLogging resolves the log level and format, CLI flags winning
// over the configuration file.
func effectiveLogging(cfg *config.Config) (level, format string) {
	level = cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	format = cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	return level, format
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
