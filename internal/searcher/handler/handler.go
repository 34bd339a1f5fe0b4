// Package handler runs an interactive query session: one query per input
// line, answered with one matching document path per output line or the
// line "no results found".
package handler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

// NoResults is printed for a query with an empty result.
const NoResults = "no results found"

// maxQueryLine bounds a single query line. A longer line is answered with
// NoResults without being parsed, and the session continues.
const maxQueryLine = 1 << 20

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan) (*executor.SearchResult, error)
}

// ResultCache is satisfied by *cache.QueryCache.
type ResultCache interface {
	GetOrCompute(ctx context.Context, plan *parser.QueryPlan, compute func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error)
}

type Handler struct {
	executor SearchExecutor
	cache    ResultCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New returns a Handler. queryCache may be nil.
func New(exec SearchExecutor, queryCache ResultCache, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		executor: exec,
		cache:    queryCache,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Run answers every line of in until end of input. Output is flushed after
// each query so an interactive caller sees answers as they are produced. An
// error from the index aborts the session.
func (h *Handler) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	br := bufio.NewReaderSize(in, 64*1024)
	w := bufio.NewWriter(out)
	queries := 0
	for {
		line, tooLong, err := readQuery(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading queries: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res := &executor.SearchResult{}
		if tooLong {
			h.metrics.QueriesTotal.WithLabelValues("oversized").Inc()
			logger.FromContext(ctx).Warn("query line too long", "limit", maxQueryLine)
		} else if res, err = h.Search(ctx, line); err != nil {
			return err
		}
		if err := writeResult(w, res); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
		queries++
	}
	h.logger.Info("query session finished", "queries", queries)
	return nil
}

// readQuery returns the next line of br without its line ending. A line
// longer than maxQueryLine is consumed but not kept, and reported through
// tooLong. It returns io.EOF only when no bytes remain.
func readQuery(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	read := 0
	for {
		chunk, err := br.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			buf = append(buf, chunk...)
			// Room for the content plus "\r\n".
			if len(buf) > maxQueryLine+2 {
				tooLong, buf = true, nil
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if read == 0 {
				return "", false, io.EOF
			}
		case err != nil:
			return "", false, err
		}
		if tooLong {
			return "", true, nil
		}
		buf = bytes.TrimSuffix(buf, []byte("\n"))
		buf = bytes.TrimSuffix(buf, []byte("\r"))
		if len(buf) > maxQueryLine {
			return "", true, nil
		}
		return string(buf), false, nil
	}
}

// Search answers a single query line.
func (h *Handler) Search(ctx context.Context, query string) (*executor.SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	plan := parser.Parse(query)

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	cacheStatus := "none"
	switch {
	case plan.Empty():
		result, err = h.executor.Execute(ctx, plan)
	case h.cache != nil:
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	default:
		result, err = h.executor.Execute(ctx, plan)
	}
	if err != nil {
		h.metrics.QueriesTotal.WithLabelValues("error").Inc()
		log.Error("search execution failed", "query", query, "error", err)
		return nil, err
	}

	latency := time.Since(start)
	resultType := "hit"
	switch {
	case result.MissingTerm != "":
		resultType = "unknown_term"
	case result.Empty():
		resultType = "empty"
	}
	h.metrics.QueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.QueryLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.QueryResultsCount.Observe(float64(len(result.DocIDs)))

	log.Debug("search completed",
		"query", query,
		"terms", len(plan.Terms),
		"results", len(result.DocIDs),
		"result_type", resultType,
		"cache", cacheStatus,
		"latency", latency,
	)
	return result, nil
}

func writeResult(w io.Writer, res *executor.SearchResult) error {
	if res.Empty() {
		_, err := fmt.Fprintln(w, NoResults)
		return err
	}
	for _, path := range res.Paths {
		if _, err := fmt.Fprintln(w, path); err != nil {
			return err
		}
	}
	return nil
}
