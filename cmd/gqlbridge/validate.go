package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/c360/gqlbridge/subscription"
)

type validationResult struct {
	section string
	status  string
	message string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without starting the bridge",
	Long: `Loads the layered configuration, checks every section plus the merged
subscription catalog, and prints a per-section report. Exits non-zero
when any section fails.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	var results []validationResult
	hasFailure := false

	fail := func(section, message string) {
		results = append(results, validationResult{section, "FAIL", message})
		hasFailure = true
	}
	ok := func(section, message string) {
		results = append(results, validationResult{section, "OK", message})
	}
	warn := func(section, message string) {
		results = append(results, validationResult{section, "WARN", message})
	}
	skip := func(section, message string) {
		results = append(results, validationResult{section, "SKIP", message})
	}

	cfg, err := loadConfig()
	if err != nil {
		fail("config", err.Error())
		printResults(results)
		return fmt.Errorf("validation failed")
	}
	ok("config", "structural checks passed")

	if cfg.API.URL == "" {
		warn("api", "api.url is not set, subscriptions cannot connect")
	} else if ws, err := subscription.DeriveEndpoint(cfg.API.URL); err != nil {
		fail("api", err.Error())
	} else {
		ok("api", fmt.Sprintf("websocket endpoint %s", ws))
	}

	if cfg.API.Key == "" {
		warn("api/key", "api.key is not set, the server will reject the handshake")
	} else {
		ok("api/key", "configured")
	}
	if !cfg.API.VerifySSL {
		warn("api/tls", "certificate verification is disabled")
	}

	engineCfg := cfg.ToEngineConfig()
	if err := engineCfg.Validate(); err != nil {
		fail("engine", err.Error())
	} else {
		ok("engine", fmt.Sprintf("max_reconnects=%d backoff=%s..%s",
			engineCfg.MaxReconnectAttempts, engineCfg.InitialBackoff, engineCfg.MaxBackoff))
	}

	if catalog, err := buildCatalog(cfg); err != nil {
		fail("subscriptions", err.Error())
	} else {
		ok("subscriptions", fmt.Sprintf("%d definitions in catalog", catalog.Len()))
	}

	switch {
	case !cfg.Autostart.Enabled:
		skip("autostart", "disabled")
	case cfg.Autostart.LogPath == "":
		ok("autostart", "enabled, no log path configured")
	default:
		if _, err := os.Stat(cfg.Autostart.LogPath); err != nil {
			warn("autostart", fmt.Sprintf("log path %s is not readable here", cfg.Autostart.LogPath))
		} else {
			ok("autostart", fmt.Sprintf("log path %s", cfg.Autostart.LogPath))
		}
	}

	if cfg.Gateway.Enabled {
		ok("gateway", fmt.Sprintf("addr=%s", cfg.Gateway.Addr))
	} else {
		skip("gateway", "disabled")
	}

	if !cfg.Metrics.Enabled {
		skip("metrics", "disabled")
	} else if _, err := portFromAddr(cfg.Metrics.Addr); err != nil {
		fail("metrics", err.Error())
	} else {
		ok("metrics", fmt.Sprintf("addr=%s path=%s", cfg.Metrics.Addr, cfg.Metrics.Path))
	}

	printResults(results)

	if hasFailure {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func printResults(results []validationResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\tSTATUS\tMESSAGE")
	fmt.Fprintln(w, "-------\t------\t-------")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.section, r.status, r.message)
	}
	_ = w.Flush()
}
