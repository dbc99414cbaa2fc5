package otelemit

import (
	"context"
	crand "crypto/rand"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// replayIDGenerator hands the SDK the captured identifiers instead of random
// ones. One identity is staged immediately before each span start; import
// runs are single-threaded, so a single staging slot is enough. Unstaged
// calls (none happen during an import) fall back to random ids.
type replayIDGenerator struct {
	traceID trace.TraceID
	spanID  trace.SpanID
	staged  bool
}

var _ sdktrace.IDGenerator = (*replayIDGenerator)(nil)

func (g *replayIDGenerator) stage(traceID trace.TraceID, spanID trace.SpanID) {
	g.traceID, g.spanID, g.staged = traceID, spanID, true
}

func (g *replayIDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if g.staged {
		g.staged = false
		return g.traceID, g.spanID
	}
	return randomTraceID(), randomSpanID()
}

func (g *replayIDGenerator) NewSpanID(ctx context.Context, traceID trace.TraceID) trace.SpanID {
	if g.staged {
		g.staged = false
		return g.spanID
	}
	return randomSpanID()
}

func randomTraceID() trace.TraceID {
	var id trace.TraceID
	_, _ = crand.Read(id[:])
	return id
}

func randomSpanID() trace.SpanID {
	var id trace.SpanID
	_, _ = crand.Read(id[:])
	return id
}
