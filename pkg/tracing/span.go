// Package tracing records span trees for join pipelines. A root span is
// opened per join, every pipeline stage becomes a child, and sampled trees
// are written to slog when the root finishes.
package tracing

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// StartSpan creates a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID, time.Now())
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child of the span in ctx. Without a parent the
// child is a detached root.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := newSpan(name, "", time.Now())
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.adopt(child)
	}
	return context.WithValue(ctx, spanKey, child), child
}

// RecordChild attaches an already finished child covering elapsed and ending
// now. It is safe to call from several goroutines.
func (s *Span) RecordChild(name string, elapsed time.Duration) *Span {
	end := time.Now()
	child := newSpan(name, s.TraceID, end.Add(-elapsed))
	child.EndTime = end
	child.Duration = elapsed
	s.adopt(child)
	return child
}

func newSpan(name, traceID string, start time.Time) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: start,
		Attrs:     make(map[string]any),
	}
}

func (s *Span) adopt(child *Span) {
	s.mu.Lock()
	s.Children = append(s.Children, child)
	s.mu.Unlock()
}

// End records the span's end time and duration.
func (s *Span) End() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the span tree to logger, one record per span.
func (s *Span) Log(logger *slog.Logger) {
	s.logRecursive(logger, 0)
}

func (s *Span) logRecursive(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := s.Children
	s.mu.Unlock()
	logger.Info("span", attrs...)

	for _, child := range children {
		child.logRecursive(logger, depth+1)
	}
}

// Sampler decides which finished traces are logged.
type Sampler struct {
	enabled bool
	rate    float64
}

// NewSampler builds a Sampler from the tracing config. A zero sample rate on
// an enabled tracer logs every trace.
func NewSampler(cfg config.TracingConfig) Sampler {
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return Sampler{enabled: cfg.Enabled, rate: rate}
}

// Sampled reports whether the trace with traceID is logged. The decision is
// a function of the ID so every span of one trace agrees.
func (s Sampler) Sampled(traceID string) bool {
	if !s.enabled {
		return false
	}
	if s.rate >= 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(traceID))
	return float64(h.Sum32()%10000) < s.rate*10000
}
