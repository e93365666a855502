package filterengine

import (
	"encoding/binary"

	"github.com/n3slami/diva-go/internal/boundary"
)

// boundaryMap is the seek/peek/step/put/del/iterate surface spec.md §4.5
// requires of the boundary-key index, abstracted over the two concrete
// representations (byte-slice-keyed, fixed-8-byte-keyed) so Insert/Delete/
// PointQuery/RangeQuery/BulkLoad are written once and shared by both.
type boundaryMap interface {
	Len() int
	Seek(key []byte) int
	PeekAt(i int) (key []byte, val *BoundaryValue, ok bool)
	StepNext(i int) int
	StepPrev(i int) int
	Put(key []byte, val *BoundaryValue)
	Del(key []byte) bool
	IterAll(fn func(key []byte, val *BoundaryValue) bool)
}

// byteMap adapts boundary.Index to boundaryMap directly; used by the
// variable-width engine.
type byteMap[V any] struct {
	ix *boundary.Index[V]
}

func newByteMap[V any]() *byteMap[V] { return &byteMap[V]{ix: boundary.New[V]()} }

func (m *byteMap[V]) Len() int { return m.ix.Len() }
func (m *byteMap[V]) Seek(key []byte) int { return m.ix.Seek(key) }
func (m *byteMap[V]) StepNext(i int) int  { return m.ix.StepNext(i) }
func (m *byteMap[V]) StepPrev(i int) int  { return m.ix.StepPrev(i) }
func (m *byteMap[V]) Del(key []byte) bool { return m.ix.Del(key) }

func (m *byteMap[V]) PeekAt(i int) ([]byte, V, bool) {
	e, ok := m.ix.PeekRef(i)
	if !ok {
		var zero V
		return nil, zero, false
	}
	return e.Key, e.Value, true
}

func (m *byteMap[V]) Put(key []byte, val V) { m.ix.Put(key, val) }

func (m *byteMap[V]) IterAll(fn func(key []byte, val V) bool) {
	m.ix.IterAll(func(key []byte, value *V) bool { return fn(key, *value) })
}

// fixedMap adapts boundary.FixedIndex (uint64-keyed) to boundaryMap: callers
// still pass []byte, converted to/from the big-endian uint64 key the fixed-
// width engine always uses (its keys are exactly 8 bytes, per spec.md §4.5's
// "int-optimized" variant).
type fixedMap[V any] struct {
	ix *boundary.FixedIndex[V]
}

func newFixedMap[V any]() *fixedMap[V] { return &fixedMap[V]{ix: boundary.NewFixed[V]()} }

func toFixedKey(key []byte) uint64 {
	var buf [8]byte
	copy(buf[:], key)
	return binary.BigEndian.Uint64(buf[:])
}

func fromFixedKey(key uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, key)
	return buf
}

func (m *fixedMap[V]) Len() int { return m.ix.Len() }
func (m *fixedMap[V]) Seek(key []byte) int { return m.ix.Seek(toFixedKey(key)) }
func (m *fixedMap[V]) StepNext(i int) int  { return m.ix.StepNext(i) }
func (m *fixedMap[V]) StepPrev(i int) int  { return m.ix.StepPrev(i) }
func (m *fixedMap[V]) Del(key []byte) bool { return m.ix.Del(toFixedKey(key)) }

func (m *fixedMap[V]) PeekAt(i int) ([]byte, V, bool) {
	e, ok := m.ix.PeekRef(i)
	if !ok {
		var zero V
		return nil, zero, false
	}
	return fromFixedKey(e.Key), e.Value, true
}

func (m *fixedMap[V]) Put(key []byte, val V) { m.ix.Put(toFixedKey(key), val) }

func (m *fixedMap[V]) IterAll(fn func(key []byte, val V) bool) {
	m.ix.IterAll(func(key uint64, value *V) bool { return fn(fromFixedKey(key), *value) })
}
