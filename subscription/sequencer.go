package subscription

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// defaultLogPath is streamed when no log path is configured and the file
// exists on this host.
const defaultLogPath = "/var/log/syslog"

// Sequencer runs the auto-start sweep exactly once, on the first read
// that needs subscription data. Failures are logged and never propagate
// to the reader path.
type Sequencer struct {
	manager *Manager
	logger  *slog.Logger
	once    sync.Once
}

// NewSequencer creates a sequencer over the manager.
func NewSequencer(manager *Manager) *Sequencer {
	return &Sequencer{
		manager: manager,
		logger:  slog.Default().With("component", "autostart"),
	}
}

// Ensure triggers the sweep on first call; later calls are no-ops.
func (s *Sequencer) Ensure(ctx context.Context) {
	s.once.Do(func() {
		s.run(ctx)
	})
}

func (s *Sequencer) run(ctx context.Context) {
	s.logger.Info("first use detected, starting subscriptions")
	s.manager.AutoStartAll(ctx)

	// The log streaming subscription needs a path parameter, so it starts
	// here rather than in the sweep. It runs even when the sweep is
	// disabled, matching the standalone opt-in via autostart_log_path.
	logPath := s.manager.cfg.AutostartLogPath
	if logPath == "" {
		if _, err := os.Stat(defaultLogPath); err == nil {
			logPath = defaultLogPath
			s.logger.Info("using default log path", "path", defaultLogPath)
		}
	}
	if logPath == "" {
		s.logger.Info("no log file path configured for auto-start")
		return
	}

	if _, ok := s.manager.Registry().Get(logFileSubscriptionName); !ok {
		s.logger.Error("log file subscription missing from catalog",
			"subscription", logFileSubscriptionName)
		return
	}

	s.logger.Info("starting log file subscription", "path", logPath)
	if err := s.manager.StartSubscription(ctx, logFileSubscriptionName, map[string]any{"path": logPath}); err != nil {
		s.logger.Error("failed to start log file subscription",
			"path", logPath, "error", err)
		return
	}
	s.logger.Info("log file subscription started", "path", logPath)
}
