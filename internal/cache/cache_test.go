package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer(t *testing.T, ttl time.Duration) (*Layer, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend(0, time.Hour)
	t.Cleanup(func() { _ = backend.Close() })
	return New(backend, ttl), backend
}

func countingFetcher(calls *int32, body string) Fetcher {
	return func(context.Context) (*Entry, error) {
		atomic.AddInt32(calls, 1)
		return &Entry{Status: 200, ContentType: "application/json", Body: []byte(body)}, nil
	}
}

func TestKey_NormalizesQueryOrder(t *testing.T) {
	a := NewKey("tok", "get", "meta/window/143", "language=en_US&b=2", nil)
	b := NewKey("tok", "GET", "meta/window/143", "b=2&language=en_US", nil)
	assert.Equal(t, a.String(), b.String())
}

func TestKey_IncludesTokenWithoutLeakingIt(t *testing.T) {
	a := NewKey("token-alice", "GET", "meta/tab/1", "", nil)
	b := NewKey("token-bob", "GET", "meta/tab/1", "", nil)

	assert.NotEqual(t, a.String(), b.String())
	assert.NotContains(t, a.String(), "token-alice")
	assert.True(t, strings.HasPrefix(a.String(), "erp:"))
}

func TestKey_BodyDistinguishesEntries(t *testing.T) {
	a := NewKey("tok", "GET", "p", "", []byte(`{"a":1}`))
	b := NewKey("tok", "GET", "p", "", []byte(`{"a":2}`))
	c := NewKey("tok", "GET", "p", "", nil)
	assert.NotEqual(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
}

func TestIsMutationPath(t *testing.T) {
	assert.True(t, IsMutationPath("datasource/createRecord"))
	assert.True(t, IsMutationPath("meta/UpdateTab"))
	assert.True(t, IsMutationPath("process/DELETE/1"))
	assert.False(t, IsMutationPath("meta/window/143"))
}

func TestIsMutationPath_PercentEncoded(t *testing.T) {
	assert.True(t, IsMutationPath("meta/%63reate"))
	assert.True(t, IsMutationPath("meta/record/%55PDATE"))
	assert.True(t, IsMutationPath("meta/%64elete%2F1"))
	assert.False(t, IsMutationPath("meta/%zzwindow"), "invalid escapes are matched as-is")
	assert.False(t, Cacheable("GET", "meta/record/%63reate"))
}

func TestCacheable(t *testing.T) {
	assert.True(t, Cacheable("GET", "meta/window/143"))
	assert.True(t, Cacheable("get", "meta/window/143"))
	assert.False(t, Cacheable("GET", "meta/record/create"))
	for _, m := range []string{"POST", "PUT", "PATCH", "DELETE", "HEAD"} {
		assert.False(t, Cacheable(m, "meta/window/143"), m)
	}
}

func TestLayer_SecondCallHitsCache(t *testing.T) {
	layer, _ := newTestLayer(t, time.Minute)
	key := NewKey("tok", "GET", "meta/window/143", "language=en_US", nil)
	var calls int32

	first, hit, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{"id":143}`))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, first.StoredAt.IsZero())

	second, hit, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{"id":999}`))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `{"id":143}`, string(second.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLayer_DifferentTokensNeverShare(t *testing.T) {
	layer, _ := newTestLayer(t, time.Minute)
	var calls int32

	_, _, err := layer.GetOrFetch(context.Background(), NewKey("alice", "GET", "p", "q=1", nil), countingFetcher(&calls, `{"u":"alice"}`))
	require.NoError(t, err)
	entry, hit, err := layer.GetOrFetch(context.Background(), NewKey("bob", "GET", "p", "q=1", nil), countingFetcher(&calls, `{"u":"bob"}`))
	require.NoError(t, err)

	assert.False(t, hit)
	assert.Equal(t, `{"u":"bob"}`, string(entry.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLayer_FetchErrorIsNotCachedAndKeepsPriorValue(t *testing.T) {
	layer, backend := newTestLayer(t, time.Minute)
	key := NewKey("tok", "GET", "p", "", nil)
	boom := errors.New("legacy down")

	_, _, err := layer.GetOrFetch(context.Background(), key, func(context.Context) (*Entry, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, backend.Len())

	var calls int32
	_, _, err = layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{"v":1}`))
	require.NoError(t, err)

	// an unrelated failure for another key does not evict this one
	_, _, _ = layer.GetOrFetch(context.Background(), NewKey("tok", "GET", "other", "", nil), func(context.Context) (*Entry, error) {
		return nil, boom
	})
	entry, hit, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{"v":2}`))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `{"v":1}`, string(entry.Body))
}

func TestLayer_NoStoreEntriesAreReturnedButNotKept(t *testing.T) {
	layer, backend := newTestLayer(t, time.Minute)
	key := NewKey("tok", "GET", "report.pdf", "", nil)

	entry, hit, err := layer.GetOrFetch(context.Background(), key, func(context.Context) (*Entry, error) {
		return &Entry{Status: 200, NoStore: true}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, entry)
	assert.Equal(t, 0, backend.Len())
}

func TestLayer_ZeroTTLDisablesCaching(t *testing.T) {
	layer, backend := newTestLayer(t, 0)
	key := NewKey("tok", "GET", "p", "", nil)
	var calls int32

	for i := 0; i < 3; i++ {
		_, hit, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{}`))
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, int32(3), calls)
	assert.Equal(t, 0, backend.Len())
	assert.False(t, layer.Enabled())
}

func TestLayer_ExpiredEntryIsRefetched(t *testing.T) {
	layer, backend := newTestLayer(t, time.Minute)
	now := time.Now()
	backend.now = func() time.Time { return now }
	key := NewKey("tok", "GET", "p", "", nil)
	var calls int32

	_, _, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{}`))
	require.NoError(t, err)

	backend.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, hit, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{}`))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), calls)
}

func TestMemoryBackend_EvictsOldestWhenFull(t *testing.T) {
	backend := NewMemoryBackend(2, time.Hour)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "a", &Entry{Status: 1}, time.Minute))
	require.NoError(t, backend.Set(ctx, "b", &Entry{Status: 2}, time.Minute))
	require.NoError(t, backend.Set(ctx, "c", &Entry{Status: 3}, time.Minute))

	_, ok, _ := backend.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = backend.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, backend.Len())
}

func TestLayer_ConcurrentColdFetches(t *testing.T) {
	layer, backend := newTestLayer(t, time.Minute)
	key := NewKey("tok", "GET", "p", "", nil)
	var calls int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, _, err := layer.GetOrFetch(context.Background(), key, func(context.Context) (*Entry, error) {
				atomic.AddInt32(&calls, 1)
				return &Entry{Status: 200, Body: []byte(fmt.Sprintf(`{"n":%d}`, i))}, nil
			})
			assert.NoError(t, err)
			assert.NotNil(t, entry)
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	assert.Equal(t, 1, backend.Len())
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set; skipping redis integration test")
	}

	backend, err := NewRedisBackend(RedisConfig{Address: addr})
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	key := NewKey(fmt.Sprintf("test-%d", time.Now().UnixNano()), "GET", "meta/window/1", "", nil).String()

	_, ok, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, key, &Entry{Status: 200, ContentType: "application/json", Body: []byte(`{"a":1}`)}, time.Minute))
	entry, ok, err := backend.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(entry.Body))
	assert.Equal(t, "application/json", entry.ContentType)
}

func TestLayer_UnreachableRedisDegradesToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	backend := NewRedisBackendFromClient(client)
	defer backend.Close()

	layer := New(backend, time.Minute)
	key := NewKey("tok", "GET", "meta/window/1", "", nil)
	var calls int32

	for i := 0; i < 2; i++ {
		entry, hit, err := layer.GetOrFetch(context.Background(), key, countingFetcher(&calls, `{"id":1}`))
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, `{"id":1}`, string(entry.Body))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, -1, layer.Len())
}

func TestNewRedisBackend_RequiresAddress(t *testing.T) {
	backend, err := NewRedisBackend(RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyRedisAddress)
	assert.Nil(t, backend)
}
