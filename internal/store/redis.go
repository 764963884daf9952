package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"evalprof/internal/metrics"
)

const scanBatch = 100

// Redis is a Store backed by a Redis server. Every key is written under
// keyPrefix so several deployments can share one database.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	metrics   *metrics.Registry
}

// NewRedis wraps client and verifies the connection, retrying the
// initial PING according to policy.
func NewRedis(
	ctx context.Context,
	client redis.UniversalClient,
	keyPrefix string,
	policy RetryPolicy,
	metricsRegistry *metrics.Registry,
) (*Redis, error) {
	if client == nil {
		return nil, errors.New("store: nil redis client")
	}

	err := Retry(ctx, policy, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("store: redis unavailable: %w", err)
	}

	return &Redis{
		client:    client,
		keyPrefix: keyPrefix,
		metrics:   metricsRegistry,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", r.fail("get", err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, 0).Err(); err != nil {
		return r.fail("set", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return r.fail("remove", err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	out := make([]string, 0)

	iter := r.client.Scan(ctx, 0, escapeGlob(r.keyPrefix+prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, r.fail("scan", err)
	}
	return out, nil
}

// fail maps a Redis error onto the Store error contract.
// An OOM reply means maxmemory was hit with a noeviction policy.
func (r *Redis) fail(op string, err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		r.metrics.Inc(metrics.StorageQuotaTotal)
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	r.metrics.Inc(metrics.StorageErrorsTotal)
	return fmt.Errorf("store: redis %s: %w", op, err)
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
