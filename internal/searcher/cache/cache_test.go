package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func result(query string, ids ...int32) *executor.SearchResult {
	r := &executor.SearchResult{Query: query, DocIDs: ids, Paths: []string{}}
	for range ids {
		r.Paths = append(r.Paths, "b/"+query)
	}
	return r
}

func TestKeyNormalization(t *testing.T) {
	c := New(newMemStore(), "idx-1", time.Minute, metrics.New())
	assert.Equal(t, c.Key(parser.Parse("foo bar")), c.Key(parser.Parse("  foo \t bar ")))
	assert.NotEqual(t, c.Key(parser.Parse("foo bar")), c.Key(parser.Parse("foo baz")))
	assert.Regexp(t, `^bsbi:q:[0-9a-f]{32}$`, c.Key(parser.Parse("foo")))

	other := New(newMemStore(), "idx-2", time.Minute, metrics.New())
	assert.NotEqual(t, c.Key(parser.Parse("foo")), other.Key(parser.Parse("foo")))
}

func TestGetOrCompute(t *testing.T) {
	store := newMemStore()
	m := metrics.New()
	c := New(store, "idx", 30*time.Second, m)
	ctx := context.Background()

	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return result("foo", 1, 2), nil
	}

	got, hit, err := c.GetOrCompute(ctx, parser.Parse("foo"), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int32{1, 2}, got.DocIDs)

	got, hit, err = c.GetOrCompute(ctx, parser.Parse(" foo "), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []int32{1, 2}, got.DocIDs)
	assert.Equal(t, " foo ", got.Query)
	assert.Equal(t, 1, calls)

	assert.Equal(t, 30*time.Second, store.ttls[c.Key(parser.Parse("foo"))])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeStoreFailure(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := New(store, "idx", time.Minute, metrics.New())

	got, hit, err := c.GetOrCompute(context.Background(), parser.Parse("foo"), func() (*executor.SearchResult, error) {
		return result("foo", 3), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int32{3}, got.DocIDs)
}

func TestGetOrComputeError(t *testing.T) {
	store := newMemStore()
	c := New(store, "idx", time.Minute, metrics.New())
	boom := errors.New("corrupt")

	_, _, err := c.GetOrCompute(context.Background(), parser.Parse("foo"), func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	c := New(newMemStore(), "idx", time.Minute, metrics.New())
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result("foo", 1), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _, err := c.GetOrCompute(context.Background(), parser.Parse("foo"), compute)
			assert.NoError(t, err)
			assert.Equal(t, []int32{1}, got.DocIDs)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, "idx", time.Minute, metrics.New())
	c.Set(context.Background(), parser.Parse("foo"), result("foo", 1))
	c.Set(context.Background(), parser.Parse("bar"), result("bar", 2))
	store.data["unrelated"] = []byte("x")

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Len(t, store.data, 1)
	_, ok := c.Get(context.Background(), parser.Parse("foo"))
	assert.False(t, ok)
}

func TestBreakerSkipsFailingStore(t *testing.T) {
	store := &countingStore{memStore: newMemStore(), err: errors.New("timeout")}
	c := New(store, "idx", time.Minute, metrics.New()).
		WithBreaker(resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}))

	for i := 0; i < 5; i++ {
		got, hit, err := c.GetOrCompute(context.Background(), parser.Parse("foo"), func() (*executor.SearchResult, error) {
			return result("foo", 1), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, []int32{1}, got.DocIDs)
	}
	// One Get and one Set per query until two failures open the breaker.
	assert.Equal(t, 2, store.calls)
}

type countingStore struct {
	*memStore
	err   error
	calls int
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.calls++
	return nil, false, s.err
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.calls++
	return s.err
}
