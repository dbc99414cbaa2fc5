package replay

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/growdu/pg-ferret/internal/metrics"
	"github.com/growdu/pg-ferret/internal/model"
)

// Forest is the explicit parent-link reconstruction over one record set.
// Nodes are addressed by their index into Records, so traversal needs no
// pointers and no recursion.
type Forest struct {
	Records []model.Record

	// Roots holds indices of records with no usable parent, in input order.
	Roots []int

	// Children[i] holds the child indices of record i, in input order.
	Children [][]int
}

// BuildForest links records into a forest by their declared parent ids in a
// single pass. A record whose non-sentinel parent does not resolve is
// promoted to a root: an absent parent can fragment one logical trace into
// several roots, which is data loss in the capture, not an error here. m may
// be nil.
func BuildForest(records []model.Record, m *metrics.Metrics) Forest {
	f := Forest{
		Records:  records,
		Children: make([][]int, len(records)),
	}

	index := make(map[trace.SpanID]int, len(records))
	for i := range records {
		index[records[i].SpanID] = i
	}

	for i := range records {
		r := &records[i]
		if !r.HasParent() {
			f.Roots = append(f.Roots, i)
			continue
		}
		parent, ok := index[r.ParentSpanID]
		if !ok || parent == i {
			// Missing parent, or a record naming itself as parent. Either way
			// the link is unusable.
			slog.Warn("promoting orphan span to root",
				"span_id", r.SpanID.String(),
				"parent_span_id", r.ParentSpanID.String())
			if m != nil {
				m.OrphansPromoted.Inc()
			}
			f.Roots = append(f.Roots, i)
			continue
		}
		f.Children[parent] = append(f.Children[parent], i)
	}
	return f
}
