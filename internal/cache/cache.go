package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"evalprof/internal/logs"
	"evalprof/internal/metrics"
	"evalprof/internal/store"
)

// Cache adds TTL semantics on top of a persistent Store.
//
// Expiration is lazy: a stale entry is deleted by the read that finds it,
// or by ClearExpired. No operation returns an error; failures are logged
// and reported as false or a miss.
type Cache struct {
	store   store.Store
	logger  *logs.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a Cache over st and sweeps entries that expired while the
// process was down.
func New(
	ctx context.Context,
	st store.Store,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
	opts ...Option,
) *Cache {
	c := &Cache{
		store:   st,
		logger:  logger.With("cache"),
		metrics: metricsRegistry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.ClearExpired(ctx)
	return c
}

// Set stores value under key. ttl <= 0 stores an entry that never expires.
//
// A failed write returns false and triggers an opportunistic sweep, since
// the usual cause is a full store.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	c.metrics.Inc(metrics.CacheSetsTotal)

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warnf("cannot encode value for %s: %v", key, err)
		c.metrics.Inc(metrics.CacheWriteFailuresTotal)
		return false
	}

	raw, err := json.Marshal(newEntry(data, c.now(), ttl))
	if err != nil {
		c.logger.Warnf("cannot encode entry for %s: %v", key, err)
		c.metrics.Inc(metrics.CacheWriteFailuresTotal)
		return false
	}

	if err := c.store.Set(ctx, key, string(raw)); err != nil {
		c.logger.Warnf("write failed for %s: %v", key, err)
		c.metrics.Inc(metrics.CacheWriteFailuresTotal)
		c.ClearExpired(ctx)
		return false
	}
	return true
}

// Get returns the raw JSON value stored under key.
//
// Behavior:
// - absent, malformed, expired or null entries are a miss
// - malformed and expired entries are deleted
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	c.metrics.Inc(metrics.CacheGetsTotal)

	e, ok := c.load(ctx, key)
	if !ok || e.isNull() {
		c.metrics.Inc(metrics.CacheMissesTotal)
		return nil, false
	}

	c.metrics.Inc(metrics.CacheHitsTotal)
	return e.Data, true
}

// GetInto decodes the value stored under key into dst.
// A value that does not fit dst is a miss; the entry is kept.
func (c *Cache) GetInto(ctx context.Context, key string, dst any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warnf("cannot decode %s: %v", key, err)
		return false
	}
	return true
}

// Has reports whether Get would hit.
func (c *Cache) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Remove deletes key regardless of its TTL state.
func (c *Cache) Remove(ctx context.Context, key string) bool {
	if err := c.store.Remove(ctx, key); err != nil {
		c.logger.Warnf("remove failed for %s: %v", key, err)
		return false
	}
	return true
}

// ClearExpired deletes every malformed or expired entry in the namespace
// and returns how many were removed.
func (c *Cache) ClearExpired(ctx context.Context) int {
	keys, err := c.store.Keys(ctx, Namespace)
	if err != nil {
		c.logger.Warnf("cannot list keys: %v", err)
		return 0
	}

	now := c.now()
	removed := 0
	for _, key := range keys {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}

		e, err := decodeEntry(raw)
		switch {
		case err != nil:
			c.metrics.Inc(metrics.CacheCorruptTotal)
		case e.IsExpired(now):
			c.metrics.Inc(metrics.CacheExpiredTotal)
		default:
			continue
		}

		if c.store.Remove(ctx, key) == nil {
			removed++
		}
	}

	if removed > 0 {
		c.logger.Infof("%d expired entries removed", removed)
	}
	return removed
}

// ClearAll deletes every entry of every known dataset.
func (c *Cache) ClearAll(ctx context.Context) bool {
	ok := true
	for _, d := range Datasets {
		if !c.removePrefix(ctx, d.Prefix) {
			ok = false
		}
	}
	if ok {
		c.logger.Info("cache cleared")
	}
	return ok
}

// InvalidateProfessor drops everything that may embed the professor:
// the profile, every search result and the popular ranking.
func (c *Cache) InvalidateProfessor(ctx context.Context, slug string) bool {
	c.metrics.Inc(metrics.CacheInvalidationsTotal)

	ok := c.Remove(ctx, ProfileKey(slug))
	ok = c.removePrefix(ctx, SearchResults.Prefix) && ok
	ok = c.Remove(ctx, PopularKey()) && ok
	return ok
}

// InvalidateAfterEvaluation is called once a new evaluation was published.
func (c *Cache) InvalidateAfterEvaluation(ctx context.Context, slug string) bool {
	c.logger.Debugf("invalidating after evaluation of %s", slug)
	return c.InvalidateProfessor(ctx, slug)
}

// Loader fetches a value from the data-access layer on a cache miss.
type Loader func(ctx context.Context) (any, error)

// Remember returns the cached value under key, or calls load and caches its
// result for ttl. A failed write does not fail the call.
func (c *Cache) Remember(ctx context.Context, key string, ttl time.Duration, load Loader) (json.RawMessage, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, nil
	}

	if load == nil {
		return nil, errors.New("cache: nil loader")
	}
	value, err := load(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, key, json.RawMessage(data), ttl)
	return data, nil
}

// load reads and decodes an entry, deleting it when malformed or expired.
func (c *Cache) load(ctx context.Context, key string) (Entry, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warnf("read failed for %s: %v", key, err)
		}
		return Entry{}, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.logger.Warnf("malformed entry %s removed: %v", key, err)
		c.metrics.Inc(metrics.CacheCorruptTotal)
		_ = c.store.Remove(ctx, key)
		return Entry{}, false
	}

	if e.IsExpired(c.now()) {
		c.metrics.Inc(metrics.CacheExpiredTotal)
		_ = c.store.Remove(ctx, key)
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) removePrefix(ctx context.Context, prefix string) bool {
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		c.logger.Warnf("cannot list %s: %v", prefix, err)
		return false
	}

	ok := true
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !c.Remove(ctx, key) {
			ok = false
		}
	}
	return ok
}
