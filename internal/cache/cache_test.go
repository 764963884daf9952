package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"evalprof/internal/logs"
	"evalprof/internal/metrics"
	"evalprof/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ---------------- helpers ---------------- */

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type fixture struct {
	ctx    context.Context
	store  *store.Memory
	cache  *Cache
	clock  *fakeClock
	reg    *metrics.Registry
	logger *logs.Logger
}

func newFixture(t *testing.T, quota int) *fixture {
	t.Helper()

	f := &fixture{
		ctx:    context.Background(),
		clock:  newClock(),
		reg:    metrics.NewRegistry(),
		logger: logs.NewLogger(100, logs.DEBUG),
	}
	f.store = store.NewMemory(quota, f.reg)
	f.cache = New(f.ctx, f.store, f.logger, f.reg, WithClock(f.clock.Now))
	return f
}

// failingStore fails every operation with err.
type failingStore struct {
	err error
}

func (s failingStore) Get(context.Context, string) (string, error)   { return "", s.err }
func (s failingStore) Set(context.Context, string, string) error     { return s.err }
func (s failingStore) Remove(context.Context, string) error          { return s.err }
func (s failingStore) Keys(context.Context, string) ([]string, error) { return nil, s.err }

/* ---------------- Set / Get ---------------- */

func TestCache_SetGet(t *testing.T) {
	f := newFixture(t, 0)

	t.Run("round trip", func(t *testing.T) {
		schools := []string{"ESCOM", "ESIME Zacatenco"}
		require.True(t, f.cache.Set(f.ctx, SchoolsKey(), schools, Schools.TTL))

		var got []string
		require.True(t, f.cache.GetInto(f.ctx, SchoolsKey(), &got))
		assert.Equal(t, schools, got)
	})

	t.Run("raw value", func(t *testing.T) {
		require.True(t, f.cache.Set(f.ctx, "ipn_search_calculo", map[string]int{"total": 3}, time.Minute))

		data, ok := f.cache.Get(f.ctx, "ipn_search_calculo")
		require.True(t, ok)
		assert.JSONEq(t, `{"total":3}`, string(data))
	})

	t.Run("missing key", func(t *testing.T) {
		data, ok := f.cache.Get(f.ctx, "ipn_missing")
		assert.False(t, ok)
		assert.Nil(t, data)
		assert.False(t, f.cache.Has(f.ctx, "ipn_missing"))
	})

	t.Run("null value is a miss", func(t *testing.T) {
		require.True(t, f.cache.Set(f.ctx, "ipn_null", nil, 0))
		assert.False(t, f.cache.Has(f.ctx, "ipn_null"))
	})

	t.Run("envelope layout", func(t *testing.T) {
		require.True(t, f.cache.Set(f.ctx, ProfileKey("juan-perez"), "x", 10*time.Minute))

		raw, err := f.store.Get(f.ctx, ProfileKey("juan-perez"))
		require.NoError(t, err)
		assert.JSONEq(t,
			fmt.Sprintf(`{"data":"x","timestamp":%d,"expiration":600000}`, f.clock.Now().UnixMilli()),
			raw)

		require.True(t, f.cache.Set(f.ctx, "ipn_forever", "y", 0))
		raw, err = f.store.Get(f.ctx, "ipn_forever")
		require.NoError(t, err)
		assert.Contains(t, raw, `"expiration":null`)
	})
}

func TestCache_Expiration(t *testing.T) {
	t.Run("expired read deletes the entry", func(t *testing.T) {
		f := newFixture(t, 0)
		require.True(t, f.cache.Set(f.ctx, "ipn_k", "v", 100*time.Millisecond))

		f.clock.Advance(150 * time.Millisecond)

		_, ok := f.cache.Get(f.ctx, "ipn_k")
		assert.False(t, ok)
		assert.False(t, f.cache.Has(f.ctx, "ipn_k"))

		_, err := f.store.Get(f.ctx, "ipn_k")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, int64(1), f.reg.Value(metrics.CacheExpiredTotal))
	})

	t.Run("boundary is exclusive", func(t *testing.T) {
		f := newFixture(t, 0)
		require.True(t, f.cache.Set(f.ctx, "ipn_k", "v", 100*time.Millisecond))

		f.clock.Advance(100 * time.Millisecond)
		assert.True(t, f.cache.Has(f.ctx, "ipn_k"))

		f.clock.Advance(time.Millisecond)
		assert.False(t, f.cache.Has(f.ctx, "ipn_k"))
	})

	t.Run("no ttl never expires", func(t *testing.T) {
		f := newFixture(t, 0)
		require.True(t, f.cache.Set(f.ctx, "ipn_k", "v", 0))

		f.clock.Advance(10 * 365 * 24 * time.Hour)
		assert.True(t, f.cache.Has(f.ctx, "ipn_k"))
	})

	t.Run("wall clock", func(t *testing.T) {
		ctx := context.Background()
		reg := metrics.NewRegistry()
		c := New(ctx, store.NewMemory(0, reg), logs.NewLogger(10, logs.DEBUG), reg)

		require.True(t, c.Set(ctx, "ipn_k", "v", 100*time.Millisecond))
		assert.True(t, c.Has(ctx, "ipn_k"))

		time.Sleep(150 * time.Millisecond)
		_, ok := c.Get(ctx, "ipn_k")
		assert.False(t, ok)
		assert.False(t, c.Has(ctx, "ipn_k"))
	})
}

func TestCache_Remove(t *testing.T) {
	f := newFixture(t, 0)

	require.True(t, f.cache.Set(f.ctx, "ipn_a", 1, time.Hour))
	require.True(t, f.cache.Set(f.ctx, "ipn_b", 2, 0))

	assert.True(t, f.cache.Remove(f.ctx, "ipn_a"))
	assert.True(t, f.cache.Remove(f.ctx, "ipn_b"))
	assert.True(t, f.cache.Remove(f.ctx, "ipn_never_set"))

	assert.False(t, f.cache.Has(f.ctx, "ipn_a"))
	assert.False(t, f.cache.Has(f.ctx, "ipn_b"))
}

func TestCache_MalformedEntry(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.store.Set(f.ctx, "ipn_broken", "{not json"))

	_, ok := f.cache.Get(f.ctx, "ipn_broken")
	assert.False(t, ok)

	_, err := f.store.Get(f.ctx, "ipn_broken")
	assert.ErrorIs(t, err, store.ErrNotFound, "malformed entry should be deleted")
	assert.Equal(t, int64(1), f.reg.Value(metrics.CacheCorruptTotal))
}

func TestCache_GetIntoTypeMismatch(t *testing.T) {
	f := newFixture(t, 0)
	require.True(t, f.cache.Set(f.ctx, "ipn_k", "not a number", 0))

	var n int
	assert.False(t, f.cache.GetInto(f.ctx, "ipn_k", &n))
	assert.True(t, f.cache.Has(f.ctx, "ipn_k"), "entry is kept")
}

/* ---------------- Sweeps ---------------- */

func TestCache_ClearExpired(t *testing.T) {
	f := newFixture(t, 0)

	for i := 0; i < 3; i++ {
		require.True(t, f.cache.Set(f.ctx, fmt.Sprintf("ipn_old_%d", i), i, time.Minute))
	}
	f.clock.Advance(2 * time.Minute)
	for i := 0; i < 5; i++ {
		require.True(t, f.cache.Set(f.ctx, fmt.Sprintf("ipn_new_%d", i), i, time.Hour))
	}

	assert.Equal(t, 3, f.cache.ClearExpired(f.ctx))

	for i := 0; i < 5; i++ {
		var got int
		require.True(t, f.cache.GetInto(f.ctx, fmt.Sprintf("ipn_new_%d", i), &got))
		assert.Equal(t, i, got)
	}
	keys, err := f.store.Keys(f.ctx, Namespace)
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}

func TestCache_ClearExpiredRemovesMalformedAndIgnoresForeignKeys(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.store.Set(f.ctx, "ipn_garbage", "]]"))
	require.NoError(t, f.store.Set(f.ctx, "session_token", "not an envelope"))
	require.True(t, f.cache.Set(f.ctx, "ipn_ok", true, 0))

	assert.Equal(t, 1, f.cache.ClearExpired(f.ctx))

	_, err := f.store.Get(f.ctx, "session_token")
	assert.NoError(t, err, "keys outside the namespace are untouched")
	assert.True(t, f.cache.Has(f.ctx, "ipn_ok"))
}

func TestCache_NewSweepsOnStartup(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	st := store.NewMemory(0, reg)
	clock := newClock()

	first := New(ctx, st, logs.NewLogger(10, logs.DEBUG), reg, WithClock(clock.Now))
	require.True(t, first.Set(ctx, "ipn_k", "v", time.Second))

	clock.Advance(time.Minute)
	New(ctx, st, logs.NewLogger(10, logs.DEBUG), reg, WithClock(clock.Now))

	keys, err := st.Keys(ctx, Namespace)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCache_ClearAll(t *testing.T) {
	f := newFixture(t, 0)

	require.True(t, f.cache.Set(f.ctx, SchoolsKey(), []int{1}, Schools.TTL))
	require.True(t, f.cache.Set(f.ctx, MajorsKey("7"), []int{2}, Majors.TTL))
	require.True(t, f.cache.Set(f.ctx, SearchKey("Calculo"), []int{}, SearchResults.TTL))
	require.True(t, f.cache.Set(f.ctx, ProfileKey("ana"), "p", ProfessorProfile.TTL))
	require.NoError(t, f.store.Set(f.ctx, "unrelated", "x"))

	assert.True(t, f.cache.ClearAll(f.ctx))

	keys, err := f.store.Keys(f.ctx, Namespace)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = f.store.Get(f.ctx, "unrelated")
	assert.NoError(t, err)
}

func TestCache_DatasetsLiveUnderNamespace(t *testing.T) {
	f := newFixture(t, 0)

	for _, d := range Datasets {
		assert.True(t, strings.HasPrefix(d.Prefix, Namespace), d.Name)
	}

	keys := []string{SchoolsKey(), MajorsKey("7"), PopularKey(), SearchKey("Redes"), ProfileKey("ana")}
	for _, k := range keys {
		require.True(t, f.cache.Set(f.ctx, k, 1, time.Minute))
	}

	stats, ok := f.cache.Stats(f.ctx)
	require.True(t, ok)
	assert.Equal(t, len(keys), stats.TotalItems)
	assert.Zero(t, stats.ByDataset[OtherDataset].Count)

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, len(keys), f.cache.ClearExpired(f.ctx))
}

func TestCache_QuotaExceeded(t *testing.T) {
	f := newFixture(t, 200)

	require.True(t, f.cache.Set(f.ctx, "ipn_stale", strings.Repeat("a", 40), time.Second))
	f.clock.Advance(time.Minute)

	big := strings.Repeat("b", 120)
	assert.False(t, f.cache.Set(f.ctx, "ipn_big", big, 0))
	assert.Equal(t, int64(1), f.reg.Value(metrics.CacheWriteFailuresTotal))

	_, err := f.store.Get(f.ctx, "ipn_stale")
	assert.ErrorIs(t, err, store.ErrNotFound, "failed write should sweep expired entries")

	assert.True(t, f.cache.Set(f.ctx, "ipn_big", big, 0), "space freed by the sweep")

	warned := false
	for _, e := range f.logger.GetLast(100) {
		if e.Level == logs.WARN && strings.Contains(e.Message, "write failed for ipn_big") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestCache_UnencodableValue(t *testing.T) {
	f := newFixture(t, 0)
	assert.False(t, f.cache.Set(f.ctx, "ipn_chan", make(chan int), 0))
}

func TestCache_StoreFailuresNeverPropagate(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	c := New(ctx, failingStore{err: errors.New("storage disabled")}, logs.NewLogger(10, logs.DEBUG), reg)

	assert.False(t, c.Set(ctx, "ipn_k", 1, 0))
	assert.False(t, c.Has(ctx, "ipn_k"))
	assert.False(t, c.Remove(ctx, "ipn_k"))
	assert.Equal(t, 0, c.ClearExpired(ctx))
	assert.False(t, c.ClearAll(ctx))

	_, ok := c.Stats(ctx)
	assert.False(t, ok)
}

/* ---------------- Invalidation ---------------- */

func TestCache_InvalidateAfterEvaluation(t *testing.T) {
	f := newFixture(t, 0)

	require.True(t, f.cache.Set(f.ctx, ProfileKey("ana-lopez"), "ana", 0))
	require.True(t, f.cache.Set(f.ctx, ProfileKey("luis-diaz"), "luis", 0))
	require.True(t, f.cache.Set(f.ctx, SearchKey("ana"), []string{"ana"}, 0))
	require.True(t, f.cache.Set(f.ctx, SearchKey("algebra"), []string{"ana"}, 0))
	require.True(t, f.cache.Set(f.ctx, PopularKey(), []string{"ana"}, 0))
	require.True(t, f.cache.Set(f.ctx, SchoolsKey(), []string{"ESCOM"}, 0))

	assert.True(t, f.cache.InvalidateAfterEvaluation(f.ctx, "ana-lopez"))

	assert.False(t, f.cache.Has(f.ctx, ProfileKey("ana-lopez")))
	assert.False(t, f.cache.Has(f.ctx, SearchKey("ana")))
	assert.False(t, f.cache.Has(f.ctx, SearchKey("algebra")))
	assert.False(t, f.cache.Has(f.ctx, PopularKey()))

	assert.True(t, f.cache.Has(f.ctx, ProfileKey("luis-diaz")))
	assert.True(t, f.cache.Has(f.ctx, SchoolsKey()))
	assert.Equal(t, int64(1), f.reg.Value(metrics.CacheInvalidationsTotal))
}

/* ---------------- Remember ---------------- */

func TestCache_Remember(t *testing.T) {
	f := newFixture(t, 0)
	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return []string{"ESCOM"}, nil
	}

	data, err := f.cache.Remember(f.ctx, SchoolsKey(), Schools.TTL, load)
	require.NoError(t, err)
	assert.JSONEq(t, `["ESCOM"]`, string(data))

	data, err = f.cache.Remember(f.ctx, SchoolsKey(), Schools.TTL, load)
	require.NoError(t, err)
	assert.JSONEq(t, `["ESCOM"]`, string(data))
	assert.Equal(t, 1, calls)

	f.clock.Advance(Schools.TTL + time.Second)
	_, err = f.cache.Remember(f.ctx, SchoolsKey(), Schools.TTL, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	_, err = f.cache.Remember(f.ctx, "ipn_fail", time.Minute, func(context.Context) (any, error) {
		return nil, errors.New("backend unavailable")
	})
	assert.EqualError(t, err, "backend unavailable")
	assert.False(t, f.cache.Has(f.ctx, "ipn_fail"))
}

/* ---------------- Stats ---------------- */

func TestCache_Stats(t *testing.T) {
	f := newFixture(t, 0)

	require.True(t, f.cache.Set(f.ctx, SchoolsKey(), []string{"ESCOM"}, 0))
	require.True(t, f.cache.Set(f.ctx, SearchKey("a"), 1, 0))
	require.True(t, f.cache.Set(f.ctx, SearchKey("b"), 2, 0))
	require.True(t, f.cache.Set(f.ctx, PopularKey(), 3, 0))
	require.True(t, f.cache.Set(f.ctx, ProfileKey("x"), 4, 0))
	require.True(t, f.cache.Set(f.ctx, "ipn_todos_profesores", 5, 0))

	stats, ok := f.cache.Stats(f.ctx)
	require.True(t, ok)

	assert.Equal(t, 6, stats.TotalItems)
	assert.Equal(t, f.store.Used()-totalKeyBytes(t, f), stats.TotalBytes)
	assert.Equal(t, 1, stats.ByDataset["ESCUELAS"].Count)
	assert.Equal(t, 2, stats.ByDataset["SEARCH_RESULTS"].Count)
	assert.Equal(t, 1, stats.ByDataset["PROFESORES_POPULARES"].Count)
	assert.Equal(t, 1, stats.ByDataset["PROFESOR_PROFILE"].Count)
	assert.Equal(t, 1, stats.ByDataset[OtherDataset].Count)
}

func totalKeyBytes(t *testing.T, f *fixture) int {
	t.Helper()
	keys, err := f.store.Keys(f.ctx, "")
	require.NoError(t, err)
	n := 0
	for _, k := range keys {
		n += len(k)
	}
	return n
}
