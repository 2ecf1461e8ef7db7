package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/gqlbridge/errors"
	"github.com/c360/gqlbridge/health"
	"github.com/c360/gqlbridge/lifecycle"
	"github.com/c360/gqlbridge/subscription"
)

// Server is the pull-side HTTP surface over the subscription engine:
// cached resource reads, the subscription control plane, diagnostics
// and health.
type Server struct {
	config    Config
	manager   *subscription.Manager
	sequencer *subscription.Sequencer
	monitor   *health.Monitor
	logger    *slog.Logger

	httpServer *http.Server
	listener   net.Listener

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once

	// Request metrics (atomic operations)
	requestsTotal   atomic.Uint64
	requestsSuccess atomic.Uint64
	requestsFailed  atomic.Uint64
}

var _ lifecycle.Component = (*Server)(nil)

// NewServer creates a gateway over the subscription manager. The
// sequencer is optional; when present, resource reads trigger the lazy
// auto-start sweep. A nil monitor gets replaced with a fresh one.
func NewServer(config Config, manager *subscription.Manager, sequencer *subscription.Sequencer, monitor *health.Monitor) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "NewServer", "config validation")
	}

	if manager == nil {
		return nil, errors.WrapFatal(fmt.Errorf("manager is nil"), "Server", "NewServer",
			"subscription manager is required")
	}

	if monitor == nil {
		monitor = health.NewMonitor()
	}

	return &Server{
		config:    config,
		manager:   manager,
		sequencer: sequencer,
		monitor:   monitor,
		logger:    slog.Default().With("component", "gateway"),
		stopChan:  make(chan struct{}),
	}, nil
}

// Initialize builds the router and the HTTP server. Implements
// lifecycle.Component.
func (s *Server) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var handler http.Handler = s.routes()
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.config.RequestTimeout,
		WriteTimeout: s.config.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("gateway configured",
		"address", s.config.BindAddress,
		"cors", s.config.EnableCORS,
		"timeout", s.config.RequestTimeout)

	return nil
}

// Start binds the listener and begins serving. The socket is bound
// before Start returns, so Addr reports a routable address immediately
// and bind failures surface here rather than in a goroutine. Cancelling
// ctx shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	if s.httpServer == nil {
		s.mu.Unlock()
		return errors.WrapFatal(fmt.Errorf("server not initialized"), "Server", "Start",
			"Initialize must run before Start")
	}

	listener, err := net.Listen("tcp", s.config.BindAddress)
	if err != nil {
		s.mu.Unlock()
		return errors.WrapTransient(err, "Server", "Start",
			fmt.Sprintf("bind %s", s.config.BindAddress))
	}
	s.listener = listener
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("gateway listening", "address", listener.Addr().String())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("gateway serve failed", "error", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("gateway context cancelled, shutting down")
			if err := s.Stop(30 * time.Second); err != nil {
				s.logger.Error("gateway shutdown failed", "error", err)
			}
		case <-s.stopChan:
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server. In-flight requests get
// until the timeout to finish.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("gateway stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("gateway shutdown not clean", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("gateway stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start. With a
// ":0" bind address this reports the ephemeral port the kernel picked.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RequestStats reports the request counters: total, success, failed.
func (s *Server) RequestStats() (total, success, failed uint64) {
	return s.requestsTotal.Load(), s.requestsSuccess.Load(), s.requestsFailed.Load()
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
