package filterengine

import (
	"bytes"

	"github.com/n3slami/diva-go/internal/bitutil"
	"github.com/n3slami/diva-go/internal/interval"
)

// PointQuery reports whether key may have been inserted (spec.md §4.4,
// ported from PointQuery). Boundary keys themselves are always reported
// present, matching the reference's next_key==key short-circuit.
func (e *Engine) PointQuery(key []byte) bool {
	e.ensureSupremum(len(key))

	i := e.boundaries.Seek(key)
	nextKeyB, _, ok := e.boundaries.PeekAt(i)
	if ok && bytes.Equal(nextKeyB, key) {
		return true
	}
	prevKeyB, prevVal, _ := e.boundaries.PeekAt(e.boundaries.StepPrev(i))

	if prevVal.Partial && isPrefixOf(prevKeyB, key, prevVal.InvalidBits) {
		return true
	}

	prevKey := bitutil.InfiniteBytes{Data: prevKeyB}
	nextKey := bitutil.InfiniteBytes{Data: nextKeyB}
	k := bitutil.InfiniteBytes{Data: key}

	d := interval.Compute(prevKey, nextKey)
	extraction := interval.ExtractPartial(k, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(k.Bit(d.Shared)))
	prevImplicit := interval.ExtractPartial(prevKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	queryKey := extraction - (prevImplicit << e.infixSize)
	return prevVal.Store.PointQuery(queryKey)
}

// RangeQuery reports whether some key in [l, r] may have been inserted
// (spec.md §4.4, ported from RangeQuery). It short-circuits to true when
// some boundary key lies in [l, r], or when l's interval starts at a partial
// boundary that is a prefix of l.
func (e *Engine) RangeQuery(l, r []byte) bool {
	e.ensureSupremum(len(l))
	e.ensureSupremum(len(r))

	i := e.boundaries.Seek(l)
	nextKeyB, _, ok := e.boundaries.PeekAt(i)
	if ok && bytes.Compare(nextKeyB, r) <= 0 {
		return true
	}
	prevKeyB, prevVal, _ := e.boundaries.PeekAt(e.boundaries.StepPrev(i))

	if prevVal.Partial && isPrefixOf(prevKeyB, l, prevVal.InvalidBits) {
		return true
	}

	prevKey := bitutil.InfiniteBytes{Data: prevKeyB}
	nextKey := bitutil.InfiniteBytes{Data: nextKeyB}
	lKey := bitutil.InfiniteBytes{Data: l}
	rKey := bitutil.InfiniteBytes{Data: r}

	d := interval.Compute(prevKey, nextKey)
	lExtraction := interval.ExtractPartial(lKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(lKey.Bit(d.Shared)))
	rExtraction := interval.ExtractPartial(rKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(rKey.Bit(d.Shared)))
	prevImplicit := interval.ExtractPartial(prevKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	lVal := (lExtraction | 1) - (prevImplicit << e.infixSize)
	rVal := (rExtraction | 1) - (prevImplicit << e.infixSize)
	return prevVal.Store.RangeQuery(lVal, rVal)
}
