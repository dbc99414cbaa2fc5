package client

// TraceResponse is the subset of Tempo's trace-by-id response the verifier
// needs
type TraceResponse struct {
	Batches []Batch `json:"batches"`
}

// Batch holds the spans exported by one resource
type Batch struct {
	ScopeSpans []ScopeSpans `json:"scopeSpans"`
}

// ScopeSpans holds the spans of one instrumentation scope
type ScopeSpans struct {
	Spans []Span `json:"spans"`
}

// Span carries just the identity needed to count arrivals
type Span struct {
	SpanID string `json:"spanId"`
}

// SpanCount returns the number of spans across all batches
func (t *TraceResponse) SpanCount() int {
	count := 0
	for _, b := range t.Batches {
		for _, ss := range b.ScopeSpans {
			count += len(ss.Spans)
		}
	}
	return count
}
