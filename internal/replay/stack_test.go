package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growdu/pg-ferret/internal/model"
)

func TestEmitByThreadNesting(t *testing.T) {
	// One thread: span 2 starts while 1 is open; by t=60 span 2 has ended
	// (50 <= 60) so span 3 parents under the still-open span 1.
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 0, 10, 50),
		rec(3, 0, 60, 90),
	}
	em := newFakeEmitter()

	emitted, err := EmitByThread(context.Background(), records, em, noShift{})

	require.NoError(t, err)
	assert.Equal(t, 3, emitted)
	assert.Equal(t, "", em.parents[sid(1).String()])
	assert.Equal(t, sid(1).String(), em.parents[sid(2).String()])
	assert.Equal(t, sid(1).String(), em.parents[sid(3).String()])
	assert.Zero(t, em.open)
	// Span 2 closes before span 3 begins.
	assert.Equal(t, []string{
		"begin " + sid(1).String(),
		"begin " + sid(2).String(),
		"end " + sid(2).String(),
		"begin " + sid(3).String(),
		"end " + sid(3).String(),
		"end " + sid(1).String(),
	}, em.sequence())
}

func TestEmitByThreadContainmentMeansParent(t *testing.T) {
	// Interval containment on one thread resolves to parenthood regardless
	// of input order.
	records := []model.Record{
		rec(2, 0, 20, 40),
		rec(1, 0, 0, 100),
	}
	em := newFakeEmitter()

	_, err := EmitByThread(context.Background(), records, em, noShift{})

	require.NoError(t, err)
	assert.Equal(t, sid(1).String(), em.parents[sid(2).String()])
}

func TestEmitByThreadEqualStartKeepsInputOrder(t *testing.T) {
	// Equal start times tie-break on input order: the earlier record begins
	// first and the later one nests under it.
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 0, 0, 50),
	}
	em := newFakeEmitter()

	_, err := EmitByThread(context.Background(), records, em, noShift{})

	require.NoError(t, err)
	assert.Equal(t, "begin "+sid(1).String(), em.sequence()[0])
	assert.Equal(t, sid(1).String(), em.parents[sid(2).String()])
}

func TestEmitByThreadSeparateThreads(t *testing.T) {
	a := rec(1, 0, 0, 100)
	b := rec(2, 0, 10, 50)
	b.ThreadID = "t2"

	em := newFakeEmitter()
	_, err := EmitByThread(context.Background(), []model.Record{a, b}, em, noShift{})

	require.NoError(t, err)
	// Different threads never nest under each other.
	assert.Equal(t, "", em.parents[sid(1).String()])
	assert.Equal(t, "", em.parents[sid(2).String()])
}

func TestEmitByThreadOverlapIsTotal(t *testing.T) {
	// Overlapping spans without containment mis-nest by design; the walk
	// must still terminate, emit every record once and close everything.
	records := []model.Record{
		rec(1, 0, 0, 50),
		rec(2, 0, 10, 100),
		rec(3, 0, 60, 90),
	}
	em := newFakeEmitter()

	emitted, err := EmitByThread(context.Background(), records, em, noShift{})

	require.NoError(t, err)
	assert.Equal(t, 3, emitted)
	assert.Zero(t, em.open)
	assert.Zero(t, em.doubleEnds)
}

func TestEmitByThreadEmptyInput(t *testing.T) {
	em := newFakeEmitter()

	emitted, err := EmitByThread(context.Background(), nil, em, noShift{})

	require.NoError(t, err)
	assert.Zero(t, emitted)
	assert.Empty(t, em.calls)
}

func TestEmitByThreadClosesAllOnBeginError(t *testing.T) {
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 0, 10, 50),
	}
	em := newFakeEmitter()
	em.failBeginOn = sid(2).String()

	emitted, err := EmitByThread(context.Background(), records, em, noShift{})

	require.Error(t, err)
	assert.Equal(t, 1, emitted)
	assert.Zero(t, em.open, "open scopes must close before the error propagates")
}

func TestEmitByThreadCancellation(t *testing.T) {
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 0, 10, 50),
	}
	em := newFakeEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	em.onBegin = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	emitted, err := EmitByThread(ctx, records, em, noShift{})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, emitted)
	assert.Zero(t, em.open)
}

func TestEmitByThreadShapeIdempotent(t *testing.T) {
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 0, 10, 50),
		rec(3, 0, 60, 90),
	}

	first := newFakeEmitter()
	_, err := EmitByThread(context.Background(), records, first, noShift{})
	require.NoError(t, err)

	second := newFakeEmitter()
	_, err = EmitByThread(context.Background(), records, second, noShift{})
	require.NoError(t, err)

	assert.Equal(t, first.parents, second.parents)
}
