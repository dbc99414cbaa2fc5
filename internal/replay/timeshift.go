package replay

import (
	"time"

	"github.com/growdu/pg-ferret/internal/model"
)

// TimePolicy maps captured timestamps into replay time. The two named
// policies were historically tied one-per reconstruction strategy by the
// capture scripts; here either policy combines with either strategy and the
// pairing is just a configuration default.
type TimePolicy interface {
	Shift(r *model.Record) (startUnixNano, endUnixNano int64)
}

// GlobalOffset shifts every record by one shared constant, preserving the
// exact relative spacing between all spans in the run.
type GlobalOffset struct {
	offset int64
}

// NewGlobalOffset computes the offset from one "now" captured at run start
// and the earliest captured start time. An empty record set yields a zero
// offset.
func NewGlobalOffset(nowUnixNano int64, records []model.Record) GlobalOffset {
	if len(records) == 0 {
		return GlobalOffset{}
	}
	min := records[0].Start
	for i := range records[1:] {
		if records[i+1].Start < min {
			min = records[i+1].Start
		}
	}
	return GlobalOffset{offset: nowUnixNano - min}
}

func (g GlobalOffset) Shift(r *model.Record) (int64, int64) {
	return r.Start + g.offset, r.End + g.offset
}

// PerSpanRebase preserves each record's own duration but rebases its start to
// the moment of emission. Relative spacing between spans is not preserved.
type PerSpanRebase struct {
	now func() int64
}

// NewPerSpanRebase builds the policy around a nanosecond clock. A nil clock
// uses the wall clock; tests inject a fixed one.
func NewPerSpanRebase(now func() int64) PerSpanRebase {
	if now == nil {
		now = func() int64 { return time.Now().UnixNano() }
	}
	return PerSpanRebase{now: now}
}

func (p PerSpanRebase) Shift(r *model.Record) (int64, int64) {
	start := p.now()
	return start, start + r.Duration()
}
