// Package report delivers the summary of a finished index build to the
// optional external systems: an index.complete event on Kafka and a row in
// the Postgres build catalog. Both are retried with backoff; a failure is
// returned to the engine, which logs it without failing the build.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
)

// EventType is the type field of every published build event.
const EventType = "index.complete"

// IndexCompleteEvent is the JSON payload published after a build.
type IndexCompleteEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	Codec       string    `json:"codec"`
	OutputDir   string    `json:"output_dir"`
	Blocks      int       `json:"blocks"`
	Files       int       `json:"files"`
	Terms       int       `json:"terms"`
	IndexBytes  int64     `json:"index_bytes"`
	DurationMs  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Catalog is satisfied by *postgres.Client.
type Catalog interface {
	RecordBuild(ctx context.Context, rec postgres.BuildRecord) error
}

// Policy converts the report settings into a retry policy.
func Policy(cfg config.ReportConfig) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.InitialDelay,
		AttemptTimeout: cfg.AttemptTimeout,
	}
}

type EventReporter struct {
	pub    Publisher
	policy resilience.RetryPolicy
	logger *slog.Logger
}

func NewEventReporter(pub Publisher, policy resilience.RetryPolicy) *EventReporter {
	return &EventReporter{
		pub:    pub,
		policy: policy,
		logger: slog.Default().With("component", "build-events"),
	}
}

// Report publishes an index.complete event keyed by the output directory,
// so events for one index land on one partition in order.
func (r *EventReporter) Report(ctx context.Context, res *indexer.BuildResult) error {
	event := kafka.Event{
		Key:  res.OutputDir,
		Type: EventType,
		Value: IndexCompleteEvent{
			Type:        EventType,
			RunID:       res.RunID,
			Codec:       res.Codec,
			OutputDir:   res.OutputDir,
			Blocks:      res.Blocks,
			Files:       res.Files,
			Terms:       res.Terms,
			IndexBytes:  res.IndexBytes,
			DurationMs:  res.Duration.Milliseconds(),
			CompletedAt: res.StartedAt.Add(res.Duration).UTC(),
		},
	}
	err := resilience.Retry(ctx, "publish "+EventType, r.policy, func(ctx context.Context) error {
		return r.pub.Publish(ctx, event)
	})
	if err != nil {
		return err
	}
	r.logger.Info("build event published", "run_id", res.RunID)
	return nil
}

type CatalogReporter struct {
	catalog Catalog
	policy  resilience.RetryPolicy
	logger  *slog.Logger
}

func NewCatalogReporter(catalog Catalog, policy resilience.RetryPolicy) *CatalogReporter {
	return &CatalogReporter{
		catalog: catalog,
		policy:  policy,
		logger:  slog.Default().With("component", "build-catalog"),
	}
}

// Report records the build in the catalog.
func (r *CatalogReporter) Report(ctx context.Context, res *indexer.BuildResult) error {
	rec := postgres.BuildRecord{
		RunID:      res.RunID,
		Codec:      res.Codec,
		DataDir:    res.DataDir,
		OutputDir:  res.OutputDir,
		Blocks:     res.Blocks,
		Files:      res.Files,
		Terms:      res.Terms,
		Merges:     res.Merges,
		IndexBytes: res.IndexBytes,
		StartedAt:  res.StartedAt,
		Duration:   res.Duration,
	}
	err := resilience.Retry(ctx, "record build", r.policy, func(ctx context.Context) error {
		err := r.catalog.RecordBuild(ctx, rec)
		if err != nil && !postgres.Transient(err) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		return err
	}
	r.logger.Info("build recorded", "run_id", res.RunID)
	return nil
}
