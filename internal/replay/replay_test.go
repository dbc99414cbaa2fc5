package replay

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/growdu/pg-ferret/internal/model"
)

// noShift keeps captured timestamps unchanged so tests can assert on them.
type noShift struct{}

func (noShift) Shift(r *model.Record) (int64, int64) { return r.Start, r.End }

type call struct {
	op     string // "begin" or "end"
	spanID string
	parent string
	start  int64
	end    int64
}

type fakeScope struct {
	em     *fakeEmitter
	spanID string
	ended  bool
}

func (s *fakeScope) SetAttribute(key string, value any) error {
	if key == s.em.failAttrOn {
		return errors.New("attribute refused")
	}
	s.em.attrs[s.spanID] = append(s.em.attrs[s.spanID], model.Attribute{Key: key, Value: value})
	return nil
}

func (s *fakeScope) End(endUnixNano int64) error {
	if s.spanID == s.em.failEndOn {
		s.em.failEndOn = ""
		return errors.New("end refused")
	}
	if s.ended {
		s.em.doubleEnds++
		return nil
	}
	s.ended = true
	s.em.open--
	s.em.calls = append(s.em.calls, call{op: "end", spanID: s.spanID, end: endUnixNano})
	return nil
}

// fakeEmitter records the begin/end call sequence and can be told to fail at
// specific points.
type fakeEmitter struct {
	calls      []call
	scopes     []*fakeScope
	attrs      map[string][]model.Attribute
	parents    map[string]string
	open       int
	begins     int
	doubleEnds int

	failBeginOn string
	failAttrOn  string
	failEndOn   string
	onBegin     func(beginCount int)
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{
		attrs:   make(map[string][]model.Attribute),
		parents: make(map[string]string),
	}
}

func (f *fakeEmitter) Begin(ctx context.Context, id Identity, parent Scope, name string, startUnixNano int64) (Scope, error) {
	f.begins++
	if f.onBegin != nil {
		f.onBegin(f.begins)
	}
	spanID := id.SpanID.String()
	if spanID == f.failBeginOn {
		return nil, errors.New("begin refused")
	}
	parentID := ""
	if parent != nil {
		parentID = parent.(*fakeScope).spanID
	}
	f.parents[spanID] = parentID
	f.calls = append(f.calls, call{op: "begin", spanID: spanID, parent: parentID, start: startUnixNano})
	f.open++
	sc := &fakeScope{em: f, spanID: spanID}
	f.scopes = append(f.scopes, sc)
	return sc, nil
}

func (f *fakeEmitter) sequence() []string {
	seq := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		seq = append(seq, c.op+" "+c.spanID)
	}
	return seq
}

func tid(n byte) trace.TraceID {
	var id trace.TraceID
	id[0] = 0xfe
	id[15] = n
	return id
}

func sid(n byte) trace.SpanID {
	var id trace.SpanID
	id[7] = n
	return id
}

// rec builds a record on thread "t1"; parent 0 means no parent.
func rec(id, parent byte, start, end int64) model.Record {
	r := model.Record{
		TraceID:  tid(1),
		SpanID:   sid(id),
		ThreadID: "t1",
		Name:     fmt.Sprintf("span-%d", id),
		Start:    start,
		End:      end,
	}
	if parent != 0 {
		r.ParentSpanID = sid(parent)
	}
	return r
}
