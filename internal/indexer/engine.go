// Package indexer builds a BSBI inverted index from a directory of blocks.
// Each block is scanned into an in-memory accumulator and flushed as a sorted
// block file; the block files are then merged pairwise into the final index,
// and the term, document and posting dictionaries are written beside it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/tracing"
)

// Reporter is notified after a build has committed its artifacts.
type Reporter interface {
	Report(ctx context.Context, res *BuildResult) error
}

// BuildResult summarises a completed build.
type BuildResult struct {
	RunID      string        `json:"run_id"`
	Codec      string        `json:"codec"`
	DataDir    string        `json:"data_dir"`
	OutputDir  string        `json:"output_dir"`
	Blocks     int           `json:"blocks"`
	Files      int           `json:"files"`
	Tokens     int64         `json:"tokens"`
	Terms      int           `json:"terms"`
	Merges     int           `json:"merges"`
	IndexBytes int64         `json:"index_bytes"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Engine runs index builds, one at a time.
type Engine struct {
	cfg       config.IndexerConfig
	codec     codec.Codec
	metrics   *metrics.Metrics
	reporters []Reporter
}

func NewEngine(cfg config.IndexerConfig, c codec.Codec, m *metrics.Metrics, reporters ...Reporter) *Engine {
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		cfg:       cfg,
		codec:     c,
		metrics:   m,
		reporters: reporters,
	}
}

// Build indexes every block under root and writes corpus.index, term.dict,
// doc.dict and posting.dict into out. Work happens in a staging directory
// inside out; the artifacts replace any previous ones only after all four
// have been written.
func (e *Engine) Build(ctx context.Context, root, out string) (*BuildResult, error) {
	start := time.Now()
	runID := strconv.FormatInt(start.UnixNano(), 36)
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx).With("component", "indexer")
	ctx, span := tracing.StartSpan(ctx, "index.build", runID)
	defer func() {
		span.End()
		span.Log(log)
	}()

	res, err := e.build(ctx, log, runID, root, out)
	if err != nil {
		e.metrics.BuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	res.StartedAt = start
	res.Duration = time.Since(start)

	e.metrics.BuildsTotal.WithLabelValues("ok").Inc()
	e.metrics.BuildDuration.Set(res.Duration.Seconds())
	e.metrics.TermsIndexed.Set(float64(res.Terms))
	e.metrics.IndexBytes.Set(float64(res.IndexBytes))
	log.Info("index build complete",
		"codec", res.Codec,
		"blocks", res.Blocks,
		"files", res.Files,
		"terms", res.Terms,
		"merges", res.Merges,
		"index_bytes", res.IndexBytes,
		"duration", res.Duration,
	)

	for _, r := range e.reporters {
		if err := r.Report(ctx, res); err != nil {
			log.Error("build reporter failed", "reporter", fmt.Sprintf("%T", r), "error", err)
		}
	}
	return res, nil
}

func (e *Engine) build(ctx context.Context, log *slog.Logger, runID, root, out string) (*BuildResult, error) {
	if err := checkDataDir(root); err != nil {
		return nil, err
	}
	if err := prepareOutputDir(out); err != nil {
		return nil, err
	}
	names, err := listBlocks(root, log)
	if err != nil {
		return nil, err
	}
	staging, err := os.MkdirTemp(out, ".build-"+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	res := &BuildResult{
		RunID:     runID,
		Codec:     e.codec.Kind().String(),
		DataDir:   root,
		OutputDir: out,
	}
	session := index.NewSession(e.cfg.DedupPostings)

	blockFiles := make([]string, 0, len(names))
	for i, name := range names {
		blockCtx, span := tracing.StartChildSpan(ctx, "block")
		stats, err := e.buildBlock(blockCtx, log, session, root, name, filepath.Join(staging, fmt.Sprintf("block-%06d.bsbi", i)))
		span.End()
		if err != nil {
			return nil, err
		}
		span.SetAttr("block", name)
		span.SetAttr("docs", stats.files)
		blockFiles = append(blockFiles, stats.path)
		res.Files += stats.files
		res.Tokens += stats.tokens
	}
	res.Blocks = len(blockFiles)

	m := merger.New(e.codec, staging, e.cfg.MergeWorkers, e.metrics).
		WithLogger(logger.FromContext(ctx).With("component", "merger"))
	mergeCtx, mergeSpan := tracing.StartChildSpan(ctx, "merge")
	merged, err := m.MergeAll(mergeCtx, blockFiles, filepath.Join(staging, index.IndexFile), session.Directory)
	mergeSpan.End()
	if err != nil {
		return nil, err
	}
	res.Merges = merged.Merges
	res.Terms = session.Terms.Len()

	_, dictSpan := tracing.StartChildSpan(ctx, "dictionaries")
	defer dictSpan.End()
	if err := index.WriteDictionary(filepath.Join(staging, index.TermDictFile), session.Terms); err != nil {
		return nil, err
	}
	if err := index.WriteDictionary(filepath.Join(staging, index.DocDictFile), session.Docs); err != nil {
		return nil, err
	}
	if err := index.WritePostingDirectory(filepath.Join(staging, index.PostingDictFile), session.Directory); err != nil {
		return nil, err
	}

	info, err := os.Stat(merged.Path)
	if err != nil {
		return nil, fmt.Errorf("stat final index: %w", err)
	}
	res.IndexBytes = info.Size()

	if err := commit(staging, out); err != nil {
		return nil, err
	}
	return res, nil
}

// rename is swapped in tests to fail individual moves.
var rename = os.Rename

// commit moves the staged artifacts into out, the index file last. Any
// previous artifacts are first moved aside into staging; if an install
// fails, the new files are removed and the previous ones put back, so out
// never ends up holding a mix of two builds.
func commit(staging, out string) error {
	backup := filepath.Join(staging, "previous")
	if err := os.Mkdir(backup, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	names := []string{index.TermDictFile, index.DocDictFile, index.PostingDictFile, index.IndexFile}

	var saved, installed []string
	rollback := func(cause error) error {
		for _, name := range installed {
			_ = os.Remove(filepath.Join(out, name))
		}
		for _, name := range saved {
			if err := rename(filepath.Join(backup, name), filepath.Join(out, name)); err != nil {
				return fmt.Errorf("%w (restoring previous %s: %v)", cause, name, err)
			}
		}
		return cause
	}

	for _, name := range names {
		err := rename(filepath.Join(out, name), filepath.Join(backup, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return rollback(fmt.Errorf("moving aside previous %s: %w", name, err))
		}
		saved = append(saved, name)
	}
	for _, name := range names {
		if err := rename(filepath.Join(staging, name), filepath.Join(out, name)); err != nil {
			return rollback(fmt.Errorf("installing %s: %w", name, err))
		}
		installed = append(installed, name)
	}
	return nil
}

func checkDataDir(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return apperrors.Newf(apperrors.ErrInvalidDirectory, apperrors.ExitBadDir, "invalid data directory: %s", root)
	}
	return nil
}

// prepareOutputDir creates out if it is missing. An existing non-directory
// is rejected.
func prepareOutputDir(out string) error {
	info, err := os.Stat(out)
	switch {
	case err == nil && !info.IsDir():
		return apperrors.Newf(apperrors.ErrInvalidDirectory, apperrors.ExitBadDir, "invalid output directory: %s", out)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return apperrors.Newf(apperrors.ErrInvalidDirectory, apperrors.ExitBadDir, "invalid output directory: %s: %v", out, err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidDirectory, apperrors.ExitBadDir, "creating output directory %s: %v", out, err)
	}
	return nil
}
