package filterengine

import (
	"github.com/n3slami/diva-go/internal/bitutil"
	"github.com/n3slami/diva-go/internal/infixstore"
	"github.com/n3slami/diva-go/internal/interval"
)

// BulkLoad ports BulkLoad/BulkLoadFixedLength (spec.md §4.4.5): keys must
// already be sorted ascending. Every infixstore.TargetSize-th key (starting
// with the first) becomes a new boundary owning a freshly loaded store over
// the keys following it up to the next boundary; the tail (fewer than
// TargetSize keys) becomes the final interval, sized to fit. A root sentinel and an all-0xFF supremum sentinel (sized to the
// longest key seen) bracket the whole run, matching the variable-length
// constructor's "zero sentinel only, upper sentinel added at bulk-load
// finish" behavior (spec.md §9 Open Questions).
func (e *Engine) BulkLoad(keys [][]byte) {
	if len(keys) == 0 {
		return
	}

	b := newBulkLoader(e)
	for _, k := range keys {
		b.feed(k)
	}
	b.finish()
}

// BulkLoadStream is the incremental counterpart to BulkLoad, for callers
// that cannot materialize the whole sorted key set at once (spec.md §4.4.5
// "streaming bulk load"). Feed every key in ascending order, then call
// Finish exactly once.
type BulkLoadStream struct {
	b *bulkLoader
}

// NewBulkLoadStream starts a streaming bulk load on e. e should be freshly
// constructed (New/NewFixedWidth); mixing streaming bulk load with prior
// Insert/Delete calls is not supported, mirroring the reference.
func (e *Engine) NewBulkLoadStream() *BulkLoadStream {
	return &BulkLoadStream{b: newBulkLoader(e)}
}

// Feed adds the next key, in ascending order, to the stream.
func (s *BulkLoadStream) Feed(key []byte) { s.b.feed(key) }

// Finish closes out the stream, installing the final interval and growing
// the existing supremum sentinel to cover the longest key fed.
func (s *BulkLoadStream) Finish() { s.b.finish() }

// bulkLoader holds the sliding window of up-to-TargetSize pending keys
// shared by BulkLoad and BulkLoadStream, porting the reference's
// bulk_load_left_key_/bulk_load_key_list_/bulk_load_streaming_ind_ state.
type bulkLoader struct {
	e       *Engine
	leftKey []byte
	pending [][]byte
	maxLen  int
	started bool
}

func newBulkLoader(e *Engine) *bulkLoader {
	return &bulkLoader{e: e}
}

func (b *bulkLoader) feed(key []byte) {
	keyCopy := append([]byte(nil), key...)
	if len(keyCopy) > b.maxLen {
		b.maxLen = len(keyCopy)
	}

	if !b.started {
		b.leftKey = keyCopy
		b.started = true
		return
	}
	if len(b.pending) < infixstore.TargetSize-1 {
		b.pending = append(b.pending, keyCopy)
		return
	}

	b.flush(keyCopy)
}

// flush installs the interval [leftKey, rightKey) built from the TargetSize-1
// pending keys, then slides the window forward.
func (b *bulkLoader) flush(rightKeyB []byte) {
	e := b.e
	leftKey := bitutil.InfiniteBytes{Data: b.leftKey}
	rightKey := bitutil.InfiniteBytes{Data: rightKeyB}

	d := interval.Compute(leftKey, rightKey)
	prevImplicit := interval.ExtractPartial(leftKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	nextImplicit := interval.ExtractPartial(rightKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 1) >> e.infixSize
	totalImplicit := uint32(nextImplicit - prevImplicit + 1)

	list := make([]uint64, 0, len(b.pending))
	for _, kb := range b.pending {
		k := bitutil.InfiniteBytes{Data: kb}
		extraction := interval.ExtractPartial(k, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(k.Bit(d.Shared)))
		list = append(list, (extraction|1)-(prevImplicit<<e.infixSize))
	}

	store := infixstore.New(e.scale, infixstore.ShrinkGrowSep, e.infixSize)
	store.LoadList(e.scale, list, totalImplicit)
	e.boundaries.Put(b.leftKey, &BoundaryValue{Store: store})

	b.leftKey = rightKeyB
	b.pending = b.pending[:0]
}

// finish installs the final (tail) interval, whatever remains pending, and
// grows the engine's supremum sentinel (already installed by newEngine) to
// cover the longest key fed, per ensureSupremum (spec.md §9 Open Questions:
// the variable-length constructor only gets its upper sentinel at bulk-load
// finish time).
func (b *bulkLoader) finish() {
	e := b.e
	if !b.started {
		return
	}

	rightKeyB := b.leftKey
	addLastKey := false
	if len(b.pending) > 0 {
		rightKeyB = b.pending[len(b.pending)-1]
		addLastKey = true
		b.pending = b.pending[:len(b.pending)-1]
	}

	leftKey := bitutil.InfiniteBytes{Data: b.leftKey}
	rightKey := bitutil.InfiniteBytes{Data: rightKeyB}
	d := interval.Compute(leftKey, rightKey)
	prevImplicit := interval.ExtractPartial(leftKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	nextImplicit := interval.ExtractPartial(rightKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 1) >> e.infixSize
	totalImplicit := uint32(nextImplicit - prevImplicit + 1)

	list := make([]uint64, 0, len(b.pending))
	for _, kb := range b.pending {
		k := bitutil.InfiniteBytes{Data: kb}
		extraction := interval.ExtractPartial(k, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(k.Bit(d.Shared)))
		list = append(list, (extraction|1)-(prevImplicit<<e.infixSize))
	}

	store := allocateStoreWithList(e.scale, e.infixSize, list, totalImplicit)
	e.boundaries.Put(b.leftKey, store)

	if addLastKey {
		emptyStore := infixstore.New(e.scale, infixstore.ShrinkGrowSep, e.infixSize)
		e.boundaries.Put(rightKeyB, &BoundaryValue{Store: emptyStore})
	}

	e.ensureSupremum(b.maxLen)
}

