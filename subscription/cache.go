package subscription

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/gqlbridge/errors"
	"github.com/c360/gqlbridge/metric"
)

// Payload is one cached subscription result. Entries are replaced whole on
// every data frame; nothing merges into an existing entry.
type Payload struct {
	Data         json.RawMessage `json:"data"`
	LastUpdated  time.Time       `json:"last_updated"`
	Subscription string          `json:"subscription"`
}

// Age returns how long ago the payload was written.
func (p Payload) Age(now time.Time) time.Duration {
	return now.Sub(p.LastUpdated)
}

// CacheStats tracks store activity with atomic counters.
type CacheStats struct {
	hits   int64
	misses int64
	sets   int64
}

// Hit records a successful read.
func (s *CacheStats) Hit() { atomic.AddInt64(&s.hits, 1) }

// Miss records a read that found nothing.
func (s *CacheStats) Miss() { atomic.AddInt64(&s.misses, 1) }

// Set records a write.
func (s *CacheStats) Set() { atomic.AddInt64(&s.sets, 1) }

// Hits returns the total read hits.
func (s *CacheStats) Hits() int64 { return atomic.LoadInt64(&s.hits) }

// Misses returns the total read misses.
func (s *CacheStats) Misses() int64 { return atomic.LoadInt64(&s.misses) }

// Sets returns the total writes.
func (s *CacheStats) Sets() int64 { return atomic.LoadInt64(&s.sets) }

// Store holds the latest payload per subscription. Sessions write, readers
// poll; a read never blocks on network activity. Entries survive
// disconnects and reconnects and are removed only by Forget.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Payload
	stats   *CacheStats   // always initialized
	metrics *storeMetrics // optional, when a metrics registry is supplied
}

// NewStore creates an empty payload store. Pass a nil registry to skip
// Prometheus registration; stats tracking is always on.
func NewStore(registry *metric.MetricsRegistry) (*Store, error) {
	var m *storeMetrics
	if registry != nil {
		var err error
		m, err = newStoreMetrics(registry)
		if err != nil {
			return nil, errors.Wrap(err, "cache", "NewStore", "metrics registration")
		}
	}

	return &Store{
		entries: make(map[string]Payload),
		stats:   &CacheStats{},
		metrics: m,
	}, nil
}

// Put replaces the entry for the subscription with the given data.
func (s *Store) Put(subscription string, data json.RawMessage) {
	entry := Payload{
		Data:         data,
		LastUpdated:  time.Now(),
		Subscription: subscription,
	}

	s.mu.Lock()
	s.entries[subscription] = entry
	size := len(s.entries)
	s.mu.Unlock()

	s.stats.Set()
	if s.metrics != nil {
		s.metrics.sets.Inc()
		s.metrics.size.Set(float64(size))
	}
}

// Get returns the cached payload for the subscription, if any.
func (s *Store) Get(subscription string) (Payload, bool) {
	s.mu.RLock()
	entry, ok := s.entries[subscription]
	s.mu.RUnlock()

	if ok {
		s.stats.Hit()
		if s.metrics != nil {
			s.metrics.hits.Inc()
		}
	} else {
		s.stats.Miss()
		if s.metrics != nil {
			s.metrics.misses.Inc()
		}
	}

	return entry, ok
}

// Peek returns the cached payload without touching hit/miss accounting.
// Status and diagnostics reads use this so stats reflect reader traffic.
func (s *Store) Peek(subscription string) (Payload, bool) {
	s.mu.RLock()
	entry, ok := s.entries[subscription]
	s.mu.RUnlock()
	return entry, ok
}

// Forget removes the entry for the subscription. Stopping a subscription
// does not call this; the last payload stays readable.
func (s *Store) Forget(subscription string) bool {
	s.mu.Lock()
	_, ok := s.entries[subscription]
	if ok {
		delete(s.entries, subscription)
	}
	size := len(s.entries)
	s.mu.Unlock()

	if ok && s.metrics != nil {
		s.metrics.size.Set(float64(size))
	}
	return ok
}

// Names returns the subscriptions with cached data, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns the store's activity counters.
func (s *Store) Stats() *CacheStats {
	return s.stats
}

// storeMetrics exposes store activity through Prometheus.
type storeMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	sets   prometheus.Counter
	size   prometheus.Gauge
}

func newStoreMetrics(registry *metric.MetricsRegistry) (*storeMetrics, error) {
	const component = "payload_cache"

	m := &storeMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Total number of cache misses",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "sets_total",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Total number of cache writes",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Current number of cached payloads",
		}),
	}

	if err := registry.RegisterCounter(component, "hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "sets", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(component, "size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}
