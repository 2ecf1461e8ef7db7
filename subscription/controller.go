package subscription

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/c360/gqlbridge/errors"
)

// tracker is the mutable runtime record for one subscription: connection
// state, attempt count and last error. Sessions and the controller write
// it; the manager reads snapshots for status output.
type tracker struct {
	name    string
	metrics *Metrics

	mu        sync.RWMutex
	state     ConnectionState
	lastError string
	attempts  int
	startedAt time.Time

	errorCount atomic.Int64
}

func newTracker(name string, metrics *Metrics) *tracker {
	return &tracker{
		name:    name,
		metrics: metrics,
		state:   StateNotStarted,
	}
}

func (t *tracker) setState(next ConnectionState) {
	t.mu.Lock()
	prev := t.state
	t.state = next
	t.mu.Unlock()

	if prev != next {
		t.metrics.stateChanged(t.name, prev, next)
	}
}

func (t *tracker) current() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *tracker) setError(msg string) {
	t.mu.Lock()
	t.lastError = msg
	t.mu.Unlock()
}

// trackError counts an error occurrence by type.
func (t *tracker) trackError(errorType string) {
	t.errorCount.Add(1)
	t.metrics.trackError(t.name, errorType)
}

// incrementAttempts bumps the attempt counter and returns the new value.
func (t *tracker) incrementAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	return t.attempts
}

func (t *tracker) resetAttempts() {
	t.mu.Lock()
	t.attempts = 0
	t.mu.Unlock()
}

func (t *tracker) markStarted(at time.Time) {
	t.mu.Lock()
	t.startedAt = at
	t.mu.Unlock()
}

// snapshot returns a consistent view of the runtime record.
func (t *tracker) snapshot() (state ConnectionState, attempts int, lastError string, startedAt time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.attempts, t.lastError, t.startedAt
}

// controller owns the reconnection loop for one subscription: it numbers
// attempts, runs sessions, classifies their failures and sleeps the
// backoff schedule between retryable ones.
type controller struct {
	def       Definition
	variables map[string]any
	endpoint  string
	cfg       Config
	cache     *Store
	metrics   *Metrics
	track     *tracker
	logger    *slog.Logger
}

func newController(
	def Definition,
	variables map[string]any,
	endpoint string,
	cfg Config,
	cache *Store,
	metrics *Metrics,
	track *tracker,
	logger *slog.Logger,
) *controller {
	return &controller{
		def:       def,
		variables: variables,
		endpoint:  endpoint,
		cfg:       cfg,
		cache:     cache,
		metrics:   metrics,
		track:     track,
		logger:    logger,
	}
}

// newBackoff builds the retry schedule: 5s growing by 1.5x per failure,
// capped at 5 minutes, with no jitter so delays stay predictable.
func (c *controller) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.Multiplier = c.cfg.BackoffMultiplier
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// run loops until the subscription ends terminally or ctx is cancelled.
func (c *controller) run(ctx context.Context) {
	bo := c.newBackoff()

	for {
		select {
		case <-ctx.Done():
			c.track.setState(StateStopped)
			return
		default:
		}

		attempt := c.track.incrementAttempts()
		c.metrics.reconnectAttempt(c.def.Name)

		if attempt > c.cfg.MaxReconnectAttempts {
			exceeded := errors.Wrap(
				fmt.Errorf("%w after %d attempts", errors.ErrMaxRetriesExceeded, c.cfg.MaxReconnectAttempts),
				"controller", "run", "give up reconnecting")
			c.track.setError(exceeded.Error())
			c.track.setState(StateMaxRetriesExceeded)
			c.logger.Error("max reconnection attempts exceeded", "max", c.cfg.MaxReconnectAttempts)
			return
		}
		c.logger.Info("connection attempt", "attempt", attempt, "max", c.cfg.MaxReconnectAttempts)

		sess := &session{
			def:       c.def,
			variables: c.variables,
			endpoint:  c.endpoint,
			cfg:       c.cfg,
			cache:     c.cache,
			metrics:   c.metrics,
			track:     c.track,
			logger:    c.logger,
			onAuthenticated: func() {
				c.track.resetAttempts()
				bo.Reset()
			},
		}

		err := sess.run(ctx)
		if err == nil {
			// Server completed the subscription; the session already set
			// the terminal state.
			return
		}
		if ctx.Err() != nil {
			c.track.setState(StateStopped)
			return
		}

		state, retry := decide(err)
		c.track.setError(err.Error())
		c.track.setState(state)
		if !retry {
			c.logger.Error("terminal failure", "state", state.String(), "error", err)
			return
		}
		c.logger.Warn("attempt failed", "state", state.String(), "error", err)

		delay := bo.NextBackOff()
		c.logger.Info("reconnecting", "delay", delay)
		c.track.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			c.track.setState(StateStopped)
			return
		case <-time.After(delay):
		}
	}
}

// decide maps an attempt failure to the state it leaves behind and
// whether another attempt should follow. Sentinels are checked before
// classes so specific failures keep their specific states.
func decide(err error) (ConnectionState, bool) {
	switch {
	case stderrors.Is(err, errors.ErrAuthRejected):
		return StateAuthFailed, false
	case stderrors.Is(err, errors.ErrInvalidEndpoint):
		return StateInvalidURI, false
	case stderrors.Is(err, errors.ErrMissingEndpoint):
		return StateError, false
	case stderrors.Is(err, errors.ErrConnectionTimeout):
		return StateTimeout, true
	case stderrors.Is(err, errors.ErrMalformedMessage):
		return StateError, true
	case stderrors.Is(err, errors.ErrConnectionLost):
		return StateDisconnected, true
	case errors.IsFatal(err):
		return StateError, false
	case errors.IsInvalid(err):
		return StateError, true
	default:
		return StateDisconnected, true
	}
}
