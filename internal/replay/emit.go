package replay

import (
	"context"
	"fmt"
)

// frame is one entry in the explicit traversal stack: a node index, a cursor
// into its children and the scope kept open while the subtree is emitted.
type frame struct {
	node  int
	child int
	scope Scope
	end   int64 // shifted end, applied when the frame is popped
}

// EmitForest walks the forest depth-first in pre-order, emitting one scope
// per record. A child's begin/end calls are strictly nested within its
// parent's. The traversal uses an explicit work stack over the node arena so
// arbitrarily deep capture trees cannot exhaust the call stack.
//
// Every opened scope is closed on every exit path: on an adapter fault, a bad
// attribute or cancellation, all open scopes are closed innermost first with
// their shifted end times before the error is returned. The returned count is
// the number of scopes opened.
func EmitForest(ctx context.Context, f Forest, em Emitter, tp TimePolicy) (int, error) {
	emitted := 0
	var stack []frame

	unwind := func() {
		for i := len(stack) - 1; i >= 0; i-- {
			_ = stack[i].scope.End(stack[i].end)
		}
		stack = nil
	}

	// open begins a scope for node, pushes its frame and applies its
	// attributes. A pushed frame is the caller's signal that the scope needs
	// closing even when the attribute loop fails.
	open := func(node int, parent Scope) error {
		r := &f.Records[node]
		start, end := tp.Shift(r)
		sc, err := em.Begin(ctx, Identity{TraceID: r.TraceID, SpanID: r.SpanID}, parent, r.Name, start)
		if err != nil {
			return fmt.Errorf("begin scope for span %s: %w", r.SpanID, err)
		}
		emitted++
		stack = append(stack, frame{node: node, scope: sc, end: end})
		for _, a := range r.Attrs {
			if err := sc.SetAttribute(a.Key, a.Value); err != nil {
				return fmt.Errorf("set attribute %q on span %s: %w", a.Key, r.SpanID, err)
			}
		}
		return nil
	}

	for _, root := range f.Roots {
		if err := ctx.Err(); err != nil {
			unwind()
			return emitted, err
		}
		if err := open(root, nil); err != nil {
			unwind()
			return emitted, err
		}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				unwind()
				return emitted, err
			}
			top := &stack[len(stack)-1]
			if top.child < len(f.Children[top.node]) {
				next := f.Children[top.node][top.child]
				top.child++
				if err := open(next, top.scope); err != nil {
					unwind()
					return emitted, err
				}
				continue
			}
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if err := done.scope.End(done.end); err != nil {
				unwind()
				return emitted, fmt.Errorf("end scope for span %s: %w", f.Records[done.node].SpanID, err)
			}
		}
	}
	return emitted, nil
}
