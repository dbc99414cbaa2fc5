package model

import "go.opentelemetry.io/otel/trace"

// Attribute is one key/value pair captured on a span. Keys are not required
// to be unique within a span; emission preserves the captured order.
type Attribute struct {
	Key   string
	Value any
}

// Record is one captured span as read from an NDJSON capture file. Records
// are immutable once loaded; reconstruction builds transient structures over
// them without modifying them.
type Record struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID

	// ParentSpanID is the declared parent. The zero value is the all-zero
	// sentinel meaning "no parent".
	ParentSpanID trace.SpanID

	// ThreadID is an opaque grouping key used by call-stack inference.
	// Records without one share the empty pseudo-thread.
	ThreadID string

	Name  string
	Start int64 // unix nanoseconds
	End   int64 // unix nanoseconds, End >= Start
	Attrs []Attribute
}

// HasParent reports whether the record declares a non-sentinel parent.
func (r *Record) HasParent() bool {
	return r.ParentSpanID.IsValid()
}

// Duration returns the captured duration in nanoseconds.
func (r *Record) Duration() int64 {
	return r.End - r.Start
}
