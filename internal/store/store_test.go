package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"evalprof/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name  string
	setup func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			setup: func(t *testing.T) Store {
				return NewMemory(0, metrics.NewRegistry())
			},
		},
		{
			name: "miniredis",
			setup: func(t *testing.T) Store {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })

				st, err := NewRedis(context.Background(), client, "test:", DefaultRetryPolicy(), metrics.NewRegistry())
				require.NoError(t, err)
				return st
			},
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("set and get", func(t *testing.T) {
				st := b.setup(t)
				require.NoError(t, st.Set(ctx, "ipn_escuelas", `{"data":1}`))

				v, err := st.Get(ctx, "ipn_escuelas")
				require.NoError(t, err)
				assert.Equal(t, `{"data":1}`, v)
			})

			t.Run("missing key", func(t *testing.T) {
				st := b.setup(t)
				_, err := st.Get(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("overwrite", func(t *testing.T) {
				st := b.setup(t)
				require.NoError(t, st.Set(ctx, "k", "old"))
				require.NoError(t, st.Set(ctx, "k", "new"))

				v, err := st.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, "new", v)
			})

			t.Run("remove is idempotent", func(t *testing.T) {
				st := b.setup(t)
				require.NoError(t, st.Set(ctx, "k", "v"))
				require.NoError(t, st.Remove(ctx, "k"))
				require.NoError(t, st.Remove(ctx, "k"))

				_, err := st.Get(ctx, "k")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("keys by prefix", func(t *testing.T) {
				st := b.setup(t)
				for _, k := range []string{"ipn_search_a", "ipn_search_b", "ipn_profesor_x", "other"} {
					require.NoError(t, st.Set(ctx, k, "v"))
				}

				keys, err := st.Keys(ctx, "ipn_search_")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"ipn_search_a", "ipn_search_b"}, keys)

				keys, err = st.Keys(ctx, "ipn_")
				require.NoError(t, err)
				assert.Len(t, keys, 3)
			})

			t.Run("glob characters in prefix are literal", func(t *testing.T) {
				st := b.setup(t)
				require.NoError(t, st.Set(ctx, "ipn_search_c*", "v"))
				require.NoError(t, st.Set(ctx, "ipn_search_cx", "v"))

				keys, err := st.Keys(ctx, "ipn_search_c*")
				require.NoError(t, err)
				assert.Equal(t, []string{"ipn_search_c*"}, keys)
			})
		})
	}
}

func TestMemoryQuota(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	st := NewMemory(10, reg)
	assert.Equal(t, 10, st.Quota())
	assert.Zero(t, NewMemory(-1, reg).Quota())

	require.NoError(t, st.Set(ctx, "a", "1234"))
	assert.Equal(t, 5, st.Used())

	err := st.Set(ctx, "b", "123456")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, int64(1), reg.Value(metrics.StorageQuotaTotal))

	// overwriting frees the old value first
	require.NoError(t, st.Set(ctx, "a", "123456789"))
	assert.Equal(t, 10, st.Used())

	require.NoError(t, st.Remove(ctx, "a"))
	assert.Equal(t, 0, st.Used())
	require.NoError(t, st.Set(ctx, "b", "123456"))
}

func TestMemoryConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(0, metrics.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = st.Set(ctx, fmt.Sprintf("key-%d", i), "value")
		}(i)
	}
	wg.Wait()

	keys, err := st.Keys(ctx, "key-")
	require.NoError(t, err)
	assert.Len(t, keys, 50)
}

func TestRedisPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	st, err := NewRedis(ctx, client, "evalprof:", DefaultRetryPolicy(), metrics.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "ipn_device_id", "device_abc"))
	assert.True(t, mr.Exists("evalprof:ipn_device_id"))

	mr.Set("unrelated", "x")
	keys, err := st.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ipn_device_id"}, keys)
}

func TestRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	reg := metrics.NewRegistry()
	st, err := NewRedis(ctx, client, "", DefaultRetryPolicy(), reg)
	require.NoError(t, err)

	mr.Close()

	_, err = st.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), reg.Value(metrics.StorageErrorsTotal))

	policy := RetryPolicy{MaxRetries: 1, BaseBackoff: 0, MaxBackoff: 0}
	_, err = NewRedis(ctx, client, "", policy, reg)
	assert.Error(t, err)
}
