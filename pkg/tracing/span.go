// Package tracing times the phases of a run. Spans nest through the context
// and the finished tree is written to slog once the run ends.
package tracing

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is one timed phase. Children may be started concurrently.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	attrs    map[string]any
	children []*Span
}

// StartSpan starts a root span named name for trace traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, spanKey, s), s
}

// StartChildSpan starts a span under the one carried by ctx. Without a
// parent the span is a detached root.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey).(*Span)
	return s
}

// End fixes the span's duration. Only the first call counts.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Duration == 0 {
		s.Duration = time.Since(s.Start)
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[key] = value
	s.mu.Unlock()
}

// Children returns the child spans ordered by start time.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	out := slices.Clone(s.children)
	s.mu.Unlock()
	slices.SortStableFunc(out, func(a, b *Span) int { return a.Start.Compare(b.Start) })
	return out
}

// Log writes the span and its descendants at debug level, parents first.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		attrs = append(attrs, k, s.attrs[k])
	}
	s.mu.Unlock()

	logger.Debug("span", attrs...)
	for _, child := range s.Children() {
		child.log(logger, depth+1)
	}
}
