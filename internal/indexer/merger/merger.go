// Package merger combines sorted block index files into the final corpus
// index by repeated pairwise merging. Block files are consumed from a FIFO
// queue; the merge that leaves a single file also records the offset and
// document frequency of every term it writes.
package merger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/tracing"
)

// Merger runs the pairwise merge of one build.
type Merger struct {
	codec   codec.Codec
	dir     string
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
	seq     atomic.Int64
}

// Result summarises a MergeAll call.
type Result struct {
	Path   string
	Merges int
	Terms  int
}

// New returns a Merger that writes intermediate files into dir. Up to
// workers independent pairs are merged concurrently.
func New(c codec.Codec, dir string, workers int, m *metrics.Metrics) *Merger {
	if workers < 1 {
		workers = 1
	}
	return &Merger{
		codec:   c,
		dir:     dir,
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "merger"),
	}
}

// WithLogger replaces the merger's logger, typically with one carrying the
// build's run id.
func (m *Merger) WithLogger(l *slog.Logger) *Merger {
	m.logger = l
	return m
}

// MergeAll merges blocks, taken in queue order, into a single file at
// finalPath and fills directory from the records of that file. The input
// files are removed as they are consumed.
//
// Pairs are always taken from the front of the queue and their outputs
// appended in pair order, so running several pairs at once pairs files
// exactly as a one-at-a-time FIFO merge would. The final merge runs alone.
func (m *Merger) MergeAll(ctx context.Context, blocks []string, finalPath string, directory index.PostingDirectory) (*Result, error) {
	res := &Result{Path: finalPath}
	queue := slices.Clone(blocks)

	switch len(queue) {
	case 0:
		w, err := segment.Create(finalPath, m.codec)
		if err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return res, nil
	case 1:
		// No merge runs, so the directory comes from a scan of the only block.
		if err := m.scan(queue[0], directory); err != nil {
			return nil, err
		}
		if err := os.Rename(queue[0], finalPath); err != nil {
			return nil, fmt.Errorf("renaming %s to final index: %w", queue[0], err)
		}
		res.Terms = len(directory)
		return res, nil
	}

	for len(queue) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("merge interrupted: %w", err)
		}
		pairs := min(len(queue)/2, m.workers)
		final := len(queue) == 2
		outputs := make([]string, pairs)

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < pairs; i++ {
			a, b := queue[2*i], queue[2*i+1]
			out := m.nextPath()
			outputs[i] = out
			g.Go(func() error {
				if final {
					return m.MergePair(gctx, a, b, out, directory)
				}
				return m.MergePair(gctx, a, b, out, nil)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		queue = append(slices.Clone(queue[2*pairs:]), outputs...)
		res.Merges += pairs
	}

	if err := os.Rename(queue[0], finalPath); err != nil {
		return nil, fmt.Errorf("renaming %s to final index: %w", queue[0], err)
	}
	res.Terms = len(directory)
	return res, nil
}

// MergePair merges the sorted files a and b into out and removes a and b.
// When directory is non-nil every record written to out is entered in it.
func (m *Merger) MergePair(ctx context.Context, a, b, out string, directory index.PostingDirectory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, span := tracing.StartChildSpan(ctx, "merge.pair")
	defer span.End()

	ra, err := segment.Open(a, m.codec)
	if err != nil {
		return err
	}
	defer ra.Close()
	rb, err := segment.Open(b, m.codec)
	if err != nil {
		return err
	}
	defer rb.Close()

	w, err := segment.Create(out, m.codec)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			w.Abort()
		}
	}()

	emit := func(p codec.PostingList) error {
		offset, err := w.Write(p)
		if err != nil {
			return err
		}
		if directory != nil {
			directory.Put(p.TermID, offset, p.DocFreq())
		}
		return nil
	}
	if err := mergeStreams(newCursor(ra), newCursor(rb), emit); err != nil {
		return fmt.Errorf("merging %s and %s: %w", filepath.Base(a), filepath.Base(b), err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	committed = true

	ra.Close()
	rb.Close()
	for _, path := range []string{a, b} {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing merged input: %w", err)
		}
	}

	kind := "intermediate"
	if directory != nil {
		kind = "final"
	}
	span.SetAttr("output", filepath.Base(out))
	span.SetAttr("records", w.Records())
	m.metrics.MergesTotal.WithLabelValues(kind).Inc()
	m.metrics.MergeDuration.Observe(time.Since(start).Seconds())
	m.logger.Info("blocks merged",
		"left", filepath.Base(a),
		"right", filepath.Base(b),
		"output", filepath.Base(out),
		"records", w.Records(),
		"bytes", w.Offset(),
		"kind", kind,
	)
	return nil
}

// scan enters every record of path in directory.
func (m *Merger) scan(path string, directory index.PostingDirectory) error {
	r, err := segment.Open(path, m.codec)
	if err != nil {
		return err
	}
	defer r.Close()
	last := int32(-1)
	for !r.Done() {
		offset := r.Pos()
		p, err := r.Next()
		if err != nil {
			return err
		}
		if p.TermID <= last {
			return fmt.Errorf("%w: %s: term %d follows term %d", apperrors.ErrCorruptIndex, r.Path(), p.TermID, last)
		}
		last = p.TermID
		directory.Put(p.TermID, offset, p.DocFreq())
	}
	return nil
}

func (m *Merger) nextPath() string {
	return filepath.Join(m.dir, fmt.Sprintf("merge-%06d.bsbi", m.seq.Add(1)))
}
