package ttl

import (
	"context"
	"time"

	"evalprof/internal/logs"
	"evalprof/internal/metrics"
)

// Sweeper removes whatever has outlived its TTL and reports how many
// items were dropped. The cache and the rate limiter both satisfy it
// through SweepFunc.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func(ctx context.Context) int

func (f SweepFunc) Sweep(ctx context.Context) int { return f(ctx) }

// Cleaner periodically runs a Sweeper
type Cleaner struct {
	name     string
	sweeper  Sweeper
	interval time.Duration
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewCleaner creates a new instance of Cleaner.
// name only tags log lines.
func NewCleaner(
	name string,
	sweeper Sweeper,
	interval time.Duration,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Cleaner {
	return &Cleaner{
		name:     name,
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With("ttl"),
		metrics:  metricsRegistry,
	}
}

// Start runs the cleanup loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
// A non-positive interval disables the loop.
func (c *Cleaner) Start(ctx context.Context) {
	if c.interval <= 0 {
		c.logger.Debugf("%s cleaner disabled", c.name)
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunOnce(ctx)
		case <-ctx.Done():
			c.logger.Debugf("%s cleaner stopped", c.name)
			return
		}
	}
}

// RunOnce performs a single cleanup cycle
func (c *Cleaner) RunOnce(ctx context.Context) int {
	c.metrics.Inc(metrics.SweepRunsTotal)

	removed := c.sweeper.Sweep(ctx)
	if removed > 0 {
		c.metrics.Add(metrics.SweepKeysRemovedTotal, int64(removed))
		c.logger.Infof("%s cleaner removed %d keys", c.name, removed)
	}
	return removed
}
