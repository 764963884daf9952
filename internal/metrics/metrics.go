package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Cache
	CacheSetsTotal          MetricKey = "cache_sets_total"
	CacheGetsTotal          MetricKey = "cache_gets_total"
	CacheHitsTotal          MetricKey = "cache_hits_total"
	CacheMissesTotal        MetricKey = "cache_misses_total"
	CacheExpiredTotal       MetricKey = "cache_expired_total"
	CacheCorruptTotal       MetricKey = "cache_corrupt_total"
	CacheWriteFailuresTotal MetricKey = "cache_write_failures_total"
	CacheInvalidationsTotal MetricKey = "cache_invalidations_total"

	// Storage backends
	StorageErrorsTotal MetricKey = "storage_errors_total"
	StorageQuotaTotal  MetricKey = "storage_quota_exceeded_total"

	// Rate limiter
	RateLimitChecksTotal  MetricKey = "ratelimit_checks_total"
	RateLimitAllowedTotal MetricKey = "ratelimit_allowed_total"
	RateLimitDeniedTotal  MetricKey = "ratelimit_denied_total"
	RateLimitBlocksTotal  MetricKey = "ratelimit_blocks_total"
	RateLimitKeys         MetricKey = "ratelimit_keys"

	// Device identity
	DeviceFingerprintsTotal MetricKey = "device_fingerprints_total"
	DeviceIDsCreatedTotal   MetricKey = "device_ids_created_total"
	DeviceIDsReusedTotal    MetricKey = "device_ids_reused_total"
	DeviceIDPersistFailures MetricKey = "device_id_persist_failures_total"

	// Sessions
	SessionsIssuedTotal   MetricKey = "sessions_issued_total"
	SessionsRejectedTotal MetricKey = "sessions_rejected_total"

	// Sweeper
	SweepRunsTotal        MetricKey = "sweep_runs_total"
	SweepKeysRemovedTotal MetricKey = "sweep_keys_removed_total"
)

// Keys lists every predefined metric, in declaration order.
var Keys = []MetricKey{
	CacheSetsTotal, CacheGetsTotal, CacheHitsTotal, CacheMissesTotal,
	CacheExpiredTotal, CacheCorruptTotal, CacheWriteFailuresTotal, CacheInvalidationsTotal,
	StorageErrorsTotal, StorageQuotaTotal,
	RateLimitChecksTotal, RateLimitAllowedTotal, RateLimitDeniedTotal, RateLimitBlocksTotal, RateLimitKeys,
	DeviceFingerprintsTotal, DeviceIDsCreatedTotal, DeviceIDsReusedTotal, DeviceIDPersistFailures,
	SessionsIssuedTotal, SessionsRejectedTotal,
	SweepRunsTotal, SweepKeysRemovedTotal,
}

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta. A nil registry discards the update.
func (r *Registry) Add(key MetricKey, delta int64) {
	if r == nil {
		return
	}

	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}
