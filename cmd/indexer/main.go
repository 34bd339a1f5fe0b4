// Command indexer builds a BSBI index from a directory of blocks.
//
//	indexer [-config file] <Basic|VB|Gamma> <data_dir> <output_dir>
//
// It prints the number of indexed files on stdout; logs go to stderr.
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

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/report"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
)

const usage = "usage: indexer [-config file] <Basic|VB|Gamma> <data_dir> <output_dir>"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return apperrors.ExitUsage
	}
	if fs.NArg() != 0 && fs.NArg() != 3 {
		fs.Usage()
		return apperrors.ExitUsage
	}
	if fs.NArg() == 3 {
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
	if fs.NArg() == 3 {
		cfg.Indexer.Codec = fs.Arg(0)
		cfg.Indexer.DataDir = fs.Arg(1)
		cfg.Indexer.OutputDir = fs.Arg(2)
	}
	if cfg.Indexer.DataDir == "" || cfg.Indexer.OutputDir == "" {
		fs.Usage()
		return apperrors.ExitUsage
	}

	logger.Setup(cfg.Logging, stderr)
	c, err := codec.ForName(cfg.Indexer.Codec)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return apperrors.ExitCode(err)
	}

	m := metrics.New()
	reporters, closeReporters := setupReporters(ctx, cfg)
	defer closeReporters()

	slog.Info("starting index build",
		"codec", c.Kind().String(),
		"data_dir", cfg.Indexer.DataDir,
		"output_dir", cfg.Indexer.OutputDir,
		"merge_workers", cfg.Indexer.MergeWorkers,
		"dedup_postings", cfg.Indexer.DedupPostings,
	)
	res, err := indexer.NewEngine(cfg.Indexer, c, m, reporters...).Build(ctx, cfg.Indexer.DataDir, cfg.Indexer.OutputDir)
	writeMetrics(m, cfg.Metrics.TextfilePath)
	if err != nil {
		slog.Error("index build failed", "error", err)
		fmt.Fprintln(stderr, err)
		return apperrors.ExitCode(err)
	}

	fmt.Fprintln(stdout, res.Files)
	return apperrors.ExitOK
}

// setupReporters connects the optional build notification targets. A target
// that cannot be reached is skipped with a warning.
func setupReporters(ctx context.Context, cfg *config.Config) ([]indexer.Reporter, func()) {
	var (
		reporters []indexer.Reporter
		closers   []func() error
	)
	policy := report.Policy(cfg.Report)

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		closers = append(closers, producer.Close)
		reporters = append(reporters, report.NewEventReporter(producer, policy))
		slog.Info("build events enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	if cfg.Postgres.Enabled {
		client, err := postgres.New(ctx, cfg.Postgres)
		switch {
		case err != nil:
			slog.Warn("postgres unavailable, build catalog disabled", "error", err)
		default:
			closers = append(closers, client.Close)
			if err := client.EnsureSchema(ctx); err != nil {
				slog.Warn("build catalog schema setup failed, catalog disabled", "error", err)
				break
			}
			reporters = append(reporters, report.NewCatalogReporter(client, policy))
			slog.Info("build catalog enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		}
	}

	return reporters, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				slog.Warn("closing reporter", "error", err)
			}
		}
	}
}

func writeMetrics(m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		slog.Warn("writing metrics textfile failed", "path", path, "error", err)
	}
}
