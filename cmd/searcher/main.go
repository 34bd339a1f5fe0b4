// Command searcher answers conjunctive queries against a BSBI index, one
// query per line of standard input.
//
//	searcher [-config file] [-flush-cache] <Basic|VB|Gamma> <index_dir>
//
// With -flush-cache and the Redis cache enabled, results cached for any index
// are dropped before the first query.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
)

const usage = "usage: searcher [-config file] [-flush-cache] <Basic|VB|Gamma> <index_dir>"

// cacheStore is a result store the session closes when it ends.
type cacheStore interface {
	cache.Store
	Close() error
}

var dialRedis = func(cfg config.RedisConfig) (cacheStore, error) {
	client, err := pkgredis.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("searcher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	flushCache := fs.Bool("flush-cache", false, "drop cached query results before reading queries")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return apperrors.ExitUsage
	}
	if fs.NArg() != 0 && fs.NArg() != 2 {
		fs.Usage()
		return apperrors.ExitUsage
	}
	if fs.NArg() == 2 {
		if _, err := codec.ParseKind(fs.Arg(0)); err != nil {
			fmt.Fprintln(stderr, `index method must be "Basic", "VB", or "Gamma"`)
			return apperrors.ExitUsage
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return apperrors.ExitUsage
	}
	if fs.NArg() == 2 {
		cfg.Search.Codec = fs.Arg(0)
		cfg.Search.IndexDir = fs.Arg(1)
	}
	if cfg.Search.IndexDir == "" {
		fs.Usage()
		return apperrors.ExitUsage
	}

	logger.Setup(cfg.Logging, stderr)
	c, err := codec.ForName(cfg.Search.Codec)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return apperrors.ExitCode(err)
	}

	exec, err := executor.Open(cfg.Search.IndexDir, c)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return apperrors.ExitCode(err)
	}
	defer exec.Close()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown, err := m.StartServer(fmt.Sprintf(":%d", cfg.Metrics.Port))
		if err != nil {
			slog.Warn("metrics exporter disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					slog.Warn("metrics server shutdown", "error", err)
				}
			}()
		}
	}

	queryCache, closeCache := setupCache(ctx, cfg.Redis, exec.Fingerprint(), m, *flushCache)
	defer closeCache()

	ctx = logger.WithRunID(ctx, exec.Fingerprint())
	if err := handler.New(exec, queryCache, m).Run(ctx, stdin, stdout); err != nil {
		slog.Error("query session failed", "error", err)
		fmt.Fprintln(stderr, err)
		return apperrors.ExitCode(err)
	}
	return apperrors.ExitOK
}

// setupCache connects the optional Redis result cache. An unreachable Redis
// leaves the session uncached.
func setupCache(ctx context.Context, cfg config.RedisConfig, fingerprint string, m *metrics.Metrics, flush bool) (handler.ResultCache, func()) {
	if !cfg.Enabled {
		if flush {
			slog.Warn("flush-cache ignored, redis cache is disabled")
		}
		return nil, func() {}
	}
	store, err := dialRedis(cfg)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
		return nil, func() {}
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing redis client", "error", err)
		}
	}

	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerReset,
	})
	qc := cache.New(store, fingerprint, cfg.CacheTTL, m).WithBreaker(breaker)
	if flush {
		if err := qc.Invalidate(ctx); err != nil {
			slog.Warn("flushing query cache failed", "error", err)
		}
	}
	slog.Info("query cache enabled",
		"addr", cfg.Addr,
		"ttl", cfg.CacheTTL,
		"index", fingerprint,
	)
	return qc, closeStore
}
