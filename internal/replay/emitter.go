package replay

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Identity is the trace/span identity replayed onto an emitted scope.
type Identity struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
}

// Scope is an open emission handle bound to one span's identity. It is alive
// between Begin and End and never outlives one traversal step.
type Scope interface {
	// SetAttribute attaches one key/value pair to the open scope.
	SetAttribute(key string, value any) error

	// End closes the scope with an explicit end timestamp. End is idempotent
	// so error unwinding may close a scope that was already closed.
	End(endUnixNano int64) error
}

// Emitter is the capability the importer requires from its environment:
// open a scope carrying an explicit identity, optionally parented to another
// currently-open scope. Transport, batching and flush semantics belong to the
// implementation, never to the traversal.
type Emitter interface {
	Begin(ctx context.Context, id Identity, parent Scope, name string, startUnixNano int64) (Scope, error)
}

// Throttled caps scope emission at spansPerSecond. A zero or negative rate
// returns e unchanged.
func Throttled(e Emitter, spansPerSecond float64) Emitter {
	if spansPerSecond <= 0 {
		return e
	}
	burst := int(spansPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &throttled{inner: e, limiter: rate.NewLimiter(rate.Limit(spansPerSecond), burst)}
}

type throttled struct {
	inner   Emitter
	limiter *rate.Limiter
}

func (t *throttled) Begin(ctx context.Context, id Identity, parent Scope, name string, startUnixNano int64) (Scope, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.Begin(ctx, id, parent, name, startUnixNano)
}
