package model

import (
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestHasParent(t *testing.T) {
	var r Record
	if r.HasParent() {
		t.Error("zero parent id is the sentinel and must not count as a parent")
	}

	r.ParentSpanID = trace.SpanID{7: 1}
	if !r.HasParent() {
		t.Error("non-zero parent id must count as a parent")
	}
}

func TestDuration(t *testing.T) {
	r := Record{Start: 100, End: 350}
	if d := r.Duration(); d != 250 {
		t.Errorf("expected duration 250, got %d", d)
	}
}
