package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

func buildIndex(t *testing.T, kind codec.Kind) string {
	t.Helper()
	root, out := t.TempDir(), t.TempDir()
	for path, content := range map[string]string{
		"0/a": "foo",
		"0/b": "foo bar",
		"1/c": "bar foo",
		"1/d": "bar",
	} {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	c, err := codec.New(kind)
	require.NoError(t, err)
	_, err = indexer.NewEngine(config.IndexerConfig{MergeWorkers: 1}, c, metrics.New()).Build(context.Background(), root, out)
	require.NoError(t, err)
	return out
}

func TestRunAnswersQueries(t *testing.T) {
	for _, kind := range []codec.Kind{codec.KindBasic, codec.KindVB, codec.KindGamma} {
		t.Run(kind.String(), func(t *testing.T) {
			dir := buildIndex(t, kind)
			stdin := strings.NewReader("foo bar\nbar\nunknown\nfoo unknown\n")
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), []string{kind.String(), dir}, stdin, &stdout, &stderr)
			require.Equal(t, apperrors.ExitOK, code, stderr.String())
			assert.Equal(t, "0/b\n1/c\n0/b\n1/c\n1/d\nno results found\nno results found\n", stdout.String())
		})
	}
}

func TestRunInvalidIndexDir(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"Basic", filepath.Join(t.TempDir(), "missing")}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, apperrors.ExitBadDir, code)
	assert.Empty(t, stdout.String())
}

func TestRunUnknownCodec(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"Snappy", t.TempDir()}, strings.NewReader("foo\n"), &stdout, &stderr)
	assert.Equal(t, apperrors.ExitUsage, code)
	assert.Empty(t, stdout.String())
}

func TestRunCorruptIndex(t *testing.T) {
	dir := buildIndex(t, codec.KindBasic)
	require.NoError(t, os.Truncate(filepath.Join(dir, "corpus.index"), 6))
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"Basic", dir}, strings.NewReader("bar\n"), &stdout, &stderr)
	assert.Equal(t, apperrors.ExitCorruption, code)
}

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.data {
		if strings.HasPrefix(key, strings.TrimSuffix(pattern, "*")) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func useStore(t *testing.T, store *fakeStore) {
	t.Helper()
	prev := dialRedis
	dialRedis = func(config.RedisConfig) (cacheStore, error) { return store, nil }
	t.Cleanup(func() { dialRedis = prev })
	t.Setenv("BSBI_REDIS_ENABLED", "true")
}

func TestRunFlushCacheDropsStaleResults(t *testing.T) {
	dir := buildIndex(t, codec.KindVB)
	store := &fakeStore{data: map[string][]byte{
		"bsbi:q:stale": []byte(`{"doc_ids":[9],"paths":["gone"]}`),
		"other:key":    []byte("kept"),
	}}
	useStore(t, store)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-flush-cache", "VB", dir}, strings.NewReader("foo bar\nfoo bar\n"), &stdout, &stderr)
	require.Equal(t, apperrors.ExitOK, code, stderr.String())
	assert.Equal(t, "0/b\n1/c\n0/b\n1/c\n", stdout.String())

	assert.NotContains(t, store.data, "bsbi:q:stale")
	assert.Contains(t, store.data, "other:key")
	assert.Len(t, store.data, 2, "one cached result plus the unrelated key")
	assert.True(t, store.closed)
}

func TestRunKeepsCacheWithoutFlush(t *testing.T) {
	dir := buildIndex(t, codec.KindBasic)
	store := &fakeStore{data: map[string][]byte{"bsbi:q:stale": []byte("{}")}}
	useStore(t, store)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"Basic", dir}, strings.NewReader("bar\n"), &stdout, &stderr)
	require.Equal(t, apperrors.ExitOK, code, stderr.String())
	assert.Contains(t, store.data, "bsbi:q:stale")
}
