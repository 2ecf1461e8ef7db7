package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c360/gqlbridge/config"
	"github.com/c360/gqlbridge/gateway"
	"github.com/c360/gqlbridge/health"
	"github.com/c360/gqlbridge/metric"
	"github.com/c360/gqlbridge/subscription"
)

var (
	serveAddr       string
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the subscription bridge",
	Long: `Starts the bridge: WebSocket subscriptions keep the payload cache
fresh while the REST gateway serves cached snapshots, the subscription
control plane and health. Prometheus metrics are exported on a separate
listener.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"gateway listen address (overrides config)")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second,
		"graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Gateway.Addr = serveAddr
	}

	logger := setupLogger(effectiveLogging(cfg))
	slog.SetDefault(logger)

	slog.Info("starting gqlbridge", "config", cfg.Summary())

	metricsRegistry := metric.NewMetricsRegistry()
	coreMetrics := metricsRegistry.CoreMetrics()

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("build subscription catalog: %w", err)
	}

	manager, err := subscription.New(cfg.ToEngineConfig(), catalog,
		subscription.WithMetrics(metricsRegistry))
	if err != nil {
		return fmt.Errorf("build subscription manager: %w", err)
	}
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("initialize subscription manager: %w", err)
	}

	monitor := health.NewMonitor()
	sequencer := subscription.NewSequencer(manager)

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw, err = gateway.NewServer(gateway.Config{
			BindAddress: cfg.Gateway.Addr,
			// An empty allow list disables CORS headers entirely.
			EnableCORS:     len(cfg.Gateway.AllowedOrigins) > 0,
			CORSOrigins:    cfg.Gateway.AllowedOrigins,
			RequestTimeout: cfg.Gateway.RequestTimeout,
		}, manager, sequencer, monitor)
		if err != nil {
			return fmt.Errorf("build gateway: %w", err)
		}
		if err := gw.Initialize(); err != nil {
			return fmt.Errorf("initialize gateway: %w", err)
		}
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		port, err := portFromAddr(cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("metrics address: %w", err)
		}
		metricsServer = metric.NewServer(port, cfg.Metrics.Path, metricsRegistry)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	if err := manager.Start(gCtx); err != nil {
		return fmt.Errorf("start subscription manager: %w", err)
	}

	if gw != nil {
		if err := gw.Start(gCtx); err != nil {
			if stopErr := manager.Stop(shutdownTimeout); stopErr != nil {
				slog.Error("failed to stop subscription manager", "error", stopErr)
			}
			return fmt.Errorf("start gateway: %w", err)
		}
		coreMetrics.RecordServiceStatus("gateway", 2) // running
		coreMetrics.RecordHealthStatus("gateway", true)
		slog.Info("gateway listening", "addr", gw.Addr())
	}

	if metricsServer != nil {
		g.Go(func() error {
			// Blocks until the server is stopped.
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		slog.Info("metrics exported", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
	}

	// Kick the auto-start sweep at boot. Resource reads trigger it as
	// well; whichever runs first wins and the other is a no-op.
	g.Go(func() error {
		sequencer.Ensure(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down", "timeout", shutdownTimeout)

		if gw != nil {
			coreMetrics.RecordServiceStatus("gateway", 3) // stopping
			if err := gw.Stop(shutdownTimeout); err != nil {
				slog.Error("gateway shutdown failed", "error", err)
			}
			coreMetrics.RecordServiceStatus("gateway", 0) // stopped
			coreMetrics.RecordHealthStatus("gateway", false)
		}
		if err := manager.Stop(shutdownTimeout); err != nil {
			slog.Error("subscription manager shutdown failed", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Stop(); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}
		return nil
	})

	slog.Info("gqlbridge started", "subscriptions", catalog.Len())

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// buildCatalog merges the built-in subscription catalog with the
// definitions from the configuration file. A configured definition that
// reuses a built-in name replaces it; new names extend the catalog.
func buildCatalog(cfg *config.Config) (*subscription.Registry, error) {
	defs := subscription.DefaultCatalog()
	index := make(map[string]int, len(defs))
	for i, def := range defs {
		index[def.Name] = i
	}
	for _, def := range cfg.Subscriptions {
		if i, ok := index[def.Name]; ok {
			defs[i] = def
			continue
		}
		defs = append(defs, def)
	}
	return subscription.NewRegistry(defs...)
}

// portFromAddr extracts the numeric port from a host:port address.
func portFromAddr(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("%q is not host:port: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("%q has a non-numeric port: %w", addr, err)
	}
	return port, nil
}
