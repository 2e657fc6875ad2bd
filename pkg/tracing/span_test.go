package tracing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "join", "trace-1")
	_, load := StartChildSpan(ctx, "load")
	load.End()

	var wg sync.WaitGroup
	for _, stage := range []string{"tokenize", "verify"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root.RecordChild(stage, 5*time.Millisecond)
		}()
	}
	wg.Wait()
	root.SetAttr("matches", 4)
	root.End()

	require.Len(t, root.Children, 3)
	assert.Equal(t, "load", root.Children[0].Name)
	for _, child := range root.Children {
		assert.Equal(t, "trace-1", child.TraceID)
	}
	assert.Same(t, root, SpanFromContext(ctx))
	assert.Nil(t, SpanFromContext(context.Background()))

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "matches=4")
	assert.Contains(t, lines[1], "depth=1")
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
}

func TestSampler(t *testing.T) {
	assert.False(t, NewSampler(config.TracingConfig{}).Sampled("x"))
	assert.True(t, NewSampler(config.TracingConfig{Enabled: true}).Sampled("x"))

	s := NewSampler(config.TracingConfig{Enabled: true, SampleRate: 0.5})
	assert.Equal(t, s.Sampled("join-7"), s.Sampled("join-7"))

	sampled := 0
	for i := 0; i < 2000; i++ {
		if s.Sampled(fmt.Sprintf("join-%d", i)) {
			sampled++
		}
	}
	assert.InDelta(t, 1000, sampled, 250)
}
