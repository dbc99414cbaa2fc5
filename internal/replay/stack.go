package replay

import (
	"context"
	"fmt"
	"sort"

	"github.com/growdu/pg-ferret/internal/model"
)

// openSpan is one entry in a per-thread reconstruction stack.
type openSpan struct {
	origEnd int64
	end     int64 // shifted end
	scope   Scope
}

// EmitByThread reconstructs call nesting purely from interval timing, for
// captures whose parent links are absent or untrusted. Records are grouped by
// thread id (threads processed in first-seen order) and sorted by start time;
// equal start times keep their original input order. Within a thread a LIFO
// stack of still-open spans supplies the parent: before each record is
// emitted, every stack entry whose captured end precedes the record's start
// is closed, then the record begins under whatever remains on top.
//
// This assumes spans on one thread are well nested. Spans that genuinely
// overlap without containment will be mis-nested; the pop/attach logic is
// total for every timestamp ordering, so that is a structural limitation of
// the input, not a failure.
func EmitByThread(ctx context.Context, records []model.Record, em Emitter, tp TimePolicy) (int, error) {
	byThread := make(map[string][]int)
	var threads []string
	for i := range records {
		t := records[i].ThreadID
		if _, ok := byThread[t]; !ok {
			threads = append(threads, t)
		}
		byThread[t] = append(byThread[t], i)
	}

	emitted := 0
	for _, t := range threads {
		idxs := byThread[t]
		sort.SliceStable(idxs, func(a, b int) bool {
			return records[idxs[a]].Start < records[idxs[b]].Start
		})

		var stack []openSpan
		closeAll := func() {
			for i := len(stack) - 1; i >= 0; i-- {
				_ = stack[i].scope.End(stack[i].end)
			}
			stack = nil
		}

		for _, i := range idxs {
			if err := ctx.Err(); err != nil {
				closeAll()
				return emitted, err
			}
			r := &records[i]

			// Entries that finished before this record starts are complete.
			for len(stack) > 0 && stack[len(stack)-1].origEnd <= r.Start {
				done := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if err := done.scope.End(done.end); err != nil {
					closeAll()
					return emitted, fmt.Errorf("end scope: %w", err)
				}
			}

			var parent Scope
			if len(stack) > 0 {
				parent = stack[len(stack)-1].scope
			}

			start, end := tp.Shift(r)
			sc, err := em.Begin(ctx, Identity{TraceID: r.TraceID, SpanID: r.SpanID}, parent, r.Name, start)
			if err != nil {
				closeAll()
				return emitted, fmt.Errorf("begin scope for span %s: %w", r.SpanID, err)
			}
			emitted++
			stack = append(stack, openSpan{origEnd: r.End, end: end, scope: sc})

			for _, a := range r.Attrs {
				if err := sc.SetAttribute(a.Key, a.Value); err != nil {
					closeAll()
					return emitted, fmt.Errorf("set attribute %q on span %s: %w", a.Key, r.SpanID, err)
				}
			}
		}

		// Whatever is still open at end of thread closes innermost first.
		for len(stack) > 0 {
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if err := done.scope.End(done.end); err != nil {
				closeAll()
				return emitted, fmt.Errorf("end scope: %w", err)
			}
		}
	}
	return emitted, nil
}
