package subscription

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/gqlbridge/errors"
	"github.com/c360/gqlbridge/lifecycle"
	"github.com/c360/gqlbridge/metric"
)

const componentName = "subscription_manager"

// Ensure Manager implements the lifecycle contract
var _ lifecycle.Component = (*Manager)(nil)

// task is one live subscription loop.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
	track  *tracker
}

// Manager owns the subscription runtime: it launches controller loops,
// tracks their state, and serves cached data to readers. The manager lock
// covers task registration only, never network activity.
type Manager struct {
	cfg             Config
	registry        *Registry
	cache           *Store
	metrics         *Metrics
	metricsRegistry *metric.MetricsRegistry
	logger          *slog.Logger

	mu       sync.Mutex
	tasks    map[string]*task
	trackers map[string]*tracker
	adhoc    map[string]Definition

	lifecycleMu sync.Mutex
	started     atomic.Bool
	stopping    atomic.Bool
	runCtx      context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics wires the manager, its cache and its sessions into the
// given metrics registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Manager) {
		m.metricsRegistry = registry
	}
}

// WithStore substitutes a pre-built payload store.
func WithStore(store *Store) Option {
	return func(m *Manager) {
		m.cache = store
	}
}

// New creates a subscription manager over the given registry.
func New(cfg Config, registry *Registry, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("registry is required"),
			componentName, "New", "validate dependencies")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		registry: registry,
		logger:   slog.Default().With("component", componentName),
		tasks:    make(map[string]*task),
		trackers: make(map[string]*tracker),
		adhoc:    make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(m)
	}

	metrics, err := newMetrics(m.metricsRegistry, componentName)
	if err != nil {
		return nil, err
	}
	m.metrics = metrics

	if m.cache == nil {
		store, err := NewStore(m.metricsRegistry)
		if err != nil {
			return nil, err
		}
		m.cache = store
	}

	m.logger.Info("subscription manager created",
		"subscriptions", registry.Len(),
		"auto_start", cfg.AutoStart,
		"max_reconnects", cfg.MaxReconnectAttempts)
	return m, nil
}

// Initialize implements lifecycle.Component.
func (m *Manager) Initialize() error {
	// Everything is set up in New; launching happens in Start.
	return nil
}

// Start arms the manager. Subscriptions are launched individually through
// StartSubscription or the auto-start sweep, not here.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.started.Load() {
		return errors.WrapFatal(errors.ErrAlreadyStarted, componentName, "Start", "check started state")
	}

	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.stopping.Store(false)
	m.started.Store(true)
	m.recordServiceStatus(2) // running
	m.logger.Info("subscription manager started")
	return nil
}

// Stop cancels every task and waits for the loops to finish.
func (m *Manager) Stop(timeout time.Duration) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if !m.started.Load() {
		return nil
	}

	m.stopping.Store(true)
	m.recordServiceStatus(3) // stopping
	m.cancel()

	doneCh := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(timeout):
		m.recordServiceError("stop_timeout")
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			componentName, "Stop", "wait for subscription tasks")
	}

	m.started.Store(false)
	m.recordServiceStatus(0) // stopped
	m.logger.Info("subscription manager stopped")
	return nil
}

// recordServiceStatus publishes the platform-level service gauge when a
// metrics registry is wired. Status values follow the gauge help text.
func (m *Manager) recordServiceStatus(status int) {
	if m.metricsRegistry != nil {
		m.metricsRegistry.CoreMetrics().RecordServiceStatus(componentName, status)
	}
}

// recordServiceError counts a service-level error by type.
func (m *Manager) recordServiceError(errorType string) {
	if m.metricsRegistry != nil {
		m.metricsRegistry.CoreMetrics().RecordError(componentName, errorType)
	}
}

// StartSubscription launches the named catalog subscription. Starting an
// already-active subscription logs and returns nil.
func (m *Manager) StartSubscription(ctx context.Context, name string, variables map[string]any) error {
	def, ok := m.registry.Get(name)
	if !ok {
		return errors.Wrap(errors.ErrUnknownSubscription, componentName, "StartSubscription",
			fmt.Sprintf("look up %q", name))
	}
	return m.launch(ctx, def, variables)
}

// StartDefinition launches a subscription that is not in the catalog. The
// definition is validated the same way registry entries are and shows up
// in status output alongside them.
func (m *Manager) StartDefinition(ctx context.Context, def Definition, variables map[string]any) error {
	if def.Name == "" || def.Query == "" {
		return errors.Wrap(errors.ErrInvalidConfig, componentName, "StartDefinition", "validate definition")
	}
	if _, exists := m.registry.Get(def.Name); exists {
		return errors.Wrap(errors.ErrDuplicateSubscription, componentName, "StartDefinition",
			fmt.Sprintf("register %q", def.Name))
	}
	if err := validateQuery(def); err != nil {
		return err
	}

	m.mu.Lock()
	m.adhoc[def.Name] = def
	m.mu.Unlock()

	return m.launch(ctx, def, variables)
}

func (m *Manager) launch(_ context.Context, def Definition, variables map[string]any) error {
	if !m.started.Load() {
		return errors.Wrap(errors.ErrNotStarted, componentName, "launch", "check started state")
	}
	if m.stopping.Load() {
		return errors.Wrap(errors.ErrShuttingDown, componentName, "launch", "reject start during shutdown")
	}

	m.logger.Info("starting subscription", "subscription", def.Name)

	m.mu.Lock()
	if _, active := m.tasks[def.Name]; active {
		m.mu.Unlock()
		m.logger.Warn("subscription already active, skipping", "subscription", def.Name)
		return nil
	}
	track := m.trackers[def.Name]
	if track == nil {
		track = newTracker(def.Name, m.metrics)
		m.trackers[def.Name] = track
	}
	m.mu.Unlock()

	track.resetAttempts()
	track.setState(StateStarting)

	endpoint, err := DeriveEndpoint(m.cfg.Endpoint)
	if err != nil {
		state := StateError
		if stderrors.Is(err, errors.ErrInvalidEndpoint) {
			state = StateInvalidURI
		}
		track.setError(err.Error())
		track.setState(state)
		m.logger.Error("cannot derive endpoint", "subscription", def.Name, "error", err)
		return err
	}

	taskCtx, cancel := context.WithCancel(m.runCtx)
	t := &task{cancel: cancel, done: make(chan struct{}), track: track}

	m.mu.Lock()
	if _, active := m.tasks[def.Name]; active {
		m.mu.Unlock()
		cancel()
		m.logger.Warn("subscription already active, skipping", "subscription", def.Name)
		return nil
	}
	m.tasks[def.Name] = t
	active := len(m.tasks)
	m.mu.Unlock()

	m.metrics.setActive(active)
	track.markStarted(time.Now())

	ctrl := newController(def, variables, endpoint, m.cfg, m.cache, m.metrics, track,
		m.logger.With("subscription", def.Name))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(t.done)
		defer m.reap(def.Name, t)
		defer func() {
			if r := recover(); r != nil {
				track.setError(fmt.Sprintf("panic: %v", r))
				track.setState(StateFailed)
				m.recordServiceError("task_panic")
				m.logger.Error("subscription task panicked", "subscription", def.Name, "panic", r)
			}
		}()
		ctrl.run(taskCtx)
	}()

	m.logger.Info("subscription task started", "subscription", def.Name)
	return nil
}

// reap removes the handle when its loop exits, so a terminal subscription
// can be restarted without an explicit stop.
func (m *Manager) reap(name string, t *task) {
	m.mu.Lock()
	if current, ok := m.tasks[name]; ok && current == t {
		delete(m.tasks, name)
	}
	active := len(m.tasks)
	m.mu.Unlock()

	m.metrics.setActive(active)
	t.cancel()
}

// StopSubscription cancels the named task and waits for its loop to end.
// Stopping an inactive subscription logs and returns nil.
func (m *Manager) StopSubscription(name string) error {
	m.logger.Info("stopping subscription", "subscription", name)

	m.mu.Lock()
	t, ok := m.tasks[name]
	if ok {
		delete(m.tasks, name)
	}
	active := len(m.tasks)
	m.mu.Unlock()

	if !ok {
		m.logger.Warn("no active subscription to stop", "subscription", name)
		return nil
	}

	m.metrics.setActive(active)
	t.cancel()

	select {
	case <-t.done:
	case <-time.After(m.cfg.StopTimeout):
		return errors.WrapTransient(
			fmt.Errorf("task did not stop within %v", m.cfg.StopTimeout),
			componentName, "StopSubscription", fmt.Sprintf("await %q", name))
	}

	t.track.setState(StateStopped)
	m.logger.Info("subscription stopped", "subscription", name)
	return nil
}

// AutoStartAll launches every registry definition marked AutoStart.
// Failures are recorded per subscription and do not abort the sweep.
func (m *Manager) AutoStartAll(ctx context.Context) {
	if !m.cfg.AutoStart {
		m.logger.Info("auto-start disabled")
		return
	}

	m.logger.Info("starting auto-start sweep")
	started := 0
	for _, def := range m.registry.All() {
		if !def.AutoStart {
			continue
		}
		if err := m.StartSubscription(ctx, def.Name, nil); err != nil {
			m.logger.Error("failed to auto-start subscription",
				"subscription", def.Name, "error", err)
			continue
		}
		started++
	}
	m.logger.Info("auto-start completed", "started", started)
}

// Data returns the cached payload for the subscription. It never errors
// and never blocks on network activity.
func (m *Manager) Data(name string) (Payload, bool) {
	return m.cache.Get(name)
}

// DataByResource resolves a resource path to its subscription and returns
// the cached payload.
func (m *Manager) DataByResource(path string) (Payload, bool) {
	def, ok := m.registry.ByResource(path)
	if !ok {
		return Payload{}, false
	}
	return m.cache.Get(def.Name)
}

// Registry returns the catalog the manager serves.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// ListActive returns the sorted names of subscriptions with a live task.
func (m *Manager) ListActive() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	m.mu.Unlock()

	sort.Strings(names)
	return names
}

// SubscriptionStatus is the full diagnostic record for one subscription.
type SubscriptionStatus struct {
	Config  StatusConfig  `json:"config"`
	Runtime StatusRuntime `json:"runtime"`
	Data    StatusData    `json:"data"`
}

// StatusConfig describes the definition.
type StatusConfig struct {
	HasQuery    bool   `json:"has_query"`
	Resource    string `json:"resource,omitempty"`
	Description string `json:"description,omitempty"`
	AutoStart   bool   `json:"auto_start"`
}

// StatusRuntime describes the live task, if any.
type StatusRuntime struct {
	Active            bool            `json:"active"`
	ConnectionState   ConnectionState `json:"connection_state"`
	ReconnectAttempts int             `json:"reconnect_attempts"`
	LastError         string          `json:"last_error,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
}

// StatusData describes the cached payload, if any.
type StatusData struct {
	Available   bool       `json:"available"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	AgeSeconds  float64    `json:"age_seconds,omitempty"`
}

// Status reports every known subscription: catalog entries plus ad-hoc
// definitions started through StartDefinition.
func (m *Manager) Status() map[string]SubscriptionStatus {
	defs := m.registry.All()

	m.mu.Lock()
	for _, def := range m.adhoc {
		defs = append(defs, def)
	}
	activeSet := make(map[string]bool, len(m.tasks))
	for name := range m.tasks {
		activeSet[name] = true
	}
	trackers := make(map[string]*tracker, len(m.trackers))
	for name, track := range m.trackers {
		trackers[name] = track
	}
	m.mu.Unlock()

	now := time.Now()
	status := make(map[string]SubscriptionStatus, len(defs))
	for _, def := range defs {
		entry := SubscriptionStatus{
			Config: StatusConfig{
				HasQuery:    def.Query != "",
				Resource:    def.Resource,
				Description: def.Description,
				AutoStart:   def.AutoStart,
			},
			Runtime: StatusRuntime{
				ConnectionState: StateNotStarted,
			},
			Data: StatusData{},
		}

		if track := trackers[def.Name]; track != nil {
			state, attempts, lastError, startedAt := track.snapshot()
			entry.Runtime.ConnectionState = state
			entry.Runtime.ReconnectAttempts = attempts
			entry.Runtime.LastError = lastError
			if !startedAt.IsZero() {
				at := startedAt
				entry.Runtime.StartedAt = &at
			}
		}
		entry.Runtime.Active = activeSet[def.Name]

		if payload, ok := m.cache.Peek(def.Name); ok {
			updated := payload.LastUpdated
			entry.Data.Available = true
			entry.Data.LastUpdated = &updated
			entry.Data.AgeSeconds = payload.Age(now).Seconds()
		}

		status[def.Name] = entry
	}
	return status
}

// Diagnostics aggregates status, environment and summary counts with
// recommendations for the usual misconfigurations.
type Diagnostics struct {
	Timestamp       time.Time                     `json:"timestamp"`
	Environment     DiagnosticsEnvironment        `json:"environment"`
	Subscriptions   map[string]SubscriptionStatus `json:"subscriptions"`
	Summary         DiagnosticsSummary            `json:"summary"`
	Recommendations []string                      `json:"recommendations,omitempty"`
}

// DiagnosticsEnvironment reports the effective connection settings.
type DiagnosticsEnvironment struct {
	AutoStartEnabled     bool   `json:"auto_start_enabled"`
	MaxReconnectAttempts int    `json:"max_reconnect_attempts"`
	Endpoint             string `json:"endpoint,omitempty"`
	APIKeyConfigured     bool   `json:"api_key_configured"`
	WebSocketURL         string `json:"websocket_url,omitempty"`
}

// DiagnosticsSummary counts subscriptions by condition.
type DiagnosticsSummary struct {
	TotalConfigured  int               `json:"total_configured"`
	AutoStartCount   int               `json:"auto_start_count"`
	ActiveCount      int               `json:"active_count"`
	WithData         int               `json:"with_data"`
	InErrorState     int               `json:"in_error_state"`
	ConnectionIssues []ConnectionIssue `json:"connection_issues,omitempty"`
}

// ConnectionIssue pairs a subscription with its recorded failure.
type ConnectionIssue struct {
	Subscription string          `json:"subscription"`
	State        ConnectionState `json:"state"`
	Error        string          `json:"error"`
}

// Diagnostics builds the full troubleshooting document.
func (m *Manager) Diagnostics() Diagnostics {
	status := m.Status()

	diag := Diagnostics{
		Timestamp: time.Now(),
		Environment: DiagnosticsEnvironment{
			AutoStartEnabled:     m.cfg.AutoStart,
			MaxReconnectAttempts: m.cfg.MaxReconnectAttempts,
			Endpoint:             truncate(m.cfg.Endpoint, 50),
			APIKeyConfigured:     m.cfg.APIKey != "",
		},
		Subscriptions: status,
	}
	if ws, err := DeriveEndpoint(m.cfg.Endpoint); err == nil {
		diag.Environment.WebSocketURL = ws
	}

	summary := DiagnosticsSummary{
		TotalConfigured: m.registry.Len(),
	}
	for _, def := range m.registry.All() {
		if def.AutoStart {
			summary.AutoStartCount++
		}
	}

	erroring := map[ConnectionState]bool{
		StateError:              true,
		StateAuthFailed:         true,
		StateTimeout:            true,
		StateMaxRetriesExceeded: true,
	}
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := status[name]
		if entry.Runtime.Active {
			summary.ActiveCount++
		}
		if entry.Data.Available {
			summary.WithData++
		}
		if erroring[entry.Runtime.ConnectionState] {
			summary.InErrorState++
		}
		if entry.Runtime.LastError != "" {
			summary.ConnectionIssues = append(summary.ConnectionIssues, ConnectionIssue{
				Subscription: name,
				State:        entry.Runtime.ConnectionState,
				Error:        entry.Runtime.LastError,
			})
		}
	}
	diag.Summary = summary

	var recs []string
	if !diag.Environment.APIKeyConfigured {
		recs = append(recs, "CRITICAL: no API key configured; set the api.key setting or the GQLBRIDGE_API_KEY environment variable")
	}
	if diag.Environment.Endpoint == "" {
		recs = append(recs, "CRITICAL: no API endpoint configured; set the api.url setting or the GQLBRIDGE_API_URL environment variable")
	}
	if summary.InErrorState > 0 {
		recs = append(recs, "some subscriptions are in an error state; see connection_issues for details")
	}
	if summary.WithData == 0 && summary.TotalConfigured > 0 {
		recs = append(recs, "no subscription has received data yet; check WebSocket connectivity and authentication")
	}
	if summary.ActiveCount < summary.AutoStartCount {
		recs = append(recs, "not all auto-start subscriptions are active; check startup logs")
	}
	diag.Recommendations = recs

	return diag
}

// truncate shortens s for display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
