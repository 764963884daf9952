package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"evalprof/internal/metrics"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("store: key not found")
	// ErrQuotaExceeded is returned by Set when the backend has no room left.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// Store is the persistent key-value capability the cache and device
// identity are built on. Every method reports failure through its error
// return; implementations never panic on backend trouble.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Memory is a concurrency-safe in-memory Store.
//
// A positive quota caps the summed size of all keys and values in bytes,
// the way browser storage refuses writes once it is full.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]string
	used    int
	quota   int
	metrics *metrics.Registry
}

// NewMemory initializes an empty Memory store. quota <= 0 means unlimited.
func NewMemory(quota int, metricsRegistry *metrics.Registry) *Memory {
	return &Memory{
		data:    make(map[string]string),
		quota:   quota,
		metrics: metricsRegistry,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set inserts or overwrites key. The write is rejected with ErrQuotaExceeded
// when the store would grow past its quota.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		next -= len(key) + len(old)
	}

	if m.quota > 0 && next > m.quota {
		m.metrics.Inc(metrics.StorageQuotaTotal)
		return ErrQuotaExceeded
	}

	m.data[key] = value
	m.used = next
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.data[key]; ok {
		delete(m.data, key)
		m.used -= len(key) + len(old)
	}
	return nil
}

// Keys returns the matching keys in lexical order.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Used reports the number of bytes currently held.
func (m *Memory) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Quota reports the configured byte cap; 0 means unlimited.
func (m *Memory) Quota() int {
	if m.quota < 0 {
		return 0
	}
	return m.quota
}
