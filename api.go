// Package diva implements DIVA, a memory-resident probabilistic range
// filter over ordered byte strings: an ordered trie of boundary keys, each
// owning a compact "Infix Store" holding the partial keys that fell in its
// interval (spec.md §1–§2).
package diva

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/n3slami/diva-go/internal/filterengine"
	"github.com/n3slami/diva-go/internal/wireformat"
)

// Filter is one DIVA filter instance (spec.md §6.1 Engine API).
type Filter struct {
	e *filterengine.Engine
}

// New builds an empty variable-width filter, already covering the full key
// space via its implicit root boundary. Callers that want an
// initially-populated filter should build it with NewVariableWidthBulk or
// NewFixedWidthBulk instead, or start a NewBulkLoadStream on it.
func New(infixSize uint, rngSeed uint64, loadFactor float64) *Filter {
	return &Filter{e: filterengine.New(infixSize, rngSeed, loadFactor)}
}

// NewFixedWidth builds an empty filter specialized for fixed 8-byte
// (big-endian uint64) keys.
func NewFixedWidth(infixSize uint, rngSeed uint64, loadFactor float64) *Filter {
	return &Filter{e: filterengine.NewFixedWidth(infixSize, rngSeed, loadFactor)}
}

// NewVariableWidthBulk builds a filter over a pre-sorted slice of
// variable-width byte-string keys in one bulk-load pass (spec.md §6.1
// new_variable_width).
func NewVariableWidthBulk(infixSize uint, keys [][]byte, rngSeed uint64, loadFactor float64) (*Filter, error) {
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 }) {
		return nil, fmt.Errorf("diva: NewVariableWidthBulk: keys are not sorted ascending")
	}
	f := New(infixSize, rngSeed, loadFactor)
	f.e.BulkLoad(keys)
	return f, nil
}

// NewFixedWidthBulk builds a fixed-width filter from a pre-sorted slice of
// u64 keys, internally big-endian-encoding each one before delegating to
// BulkLoad (spec.md §6.1 "integer-key overloads ... byte-swap to big-endian").
func NewFixedWidthBulk(infixSize uint, keys []uint64, rngSeed uint64, loadFactor float64) (*Filter, error) {
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }) {
		return nil, fmt.Errorf("diva: NewFixedWidthBulk: keys are not sorted ascending")
	}
	f := NewFixedWidth(infixSize, rngSeed, loadFactor)
	encoded := make([][]byte, len(keys))
	for i, k := range keys {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, k)
		encoded[i] = buf
	}
	f.e.BulkLoad(encoded)
	return f, nil
}

// Insert adds key to the filter (spec.md §4.4).
func (f *Filter) Insert(key []byte) { f.e.Insert(key) }

// InsertUint64 is the fixed-width convenience form of Insert.
func (f *Filter) InsertUint64(key uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	f.e.Insert(buf[:])
}

// Delete removes one occurrence of key (spec.md §4.4.3).
func (f *Filter) Delete(key []byte) { f.e.Delete(key) }

// DeleteUint64 is the fixed-width convenience form of Delete.
func (f *Filter) DeleteUint64(key uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	f.e.Delete(buf[:])
}

// PointQuery reports whether key may have been inserted (spec.md §4.4).
func (f *Filter) PointQuery(key []byte) bool { return f.e.PointQuery(key) }

// PointQueryUint64 is the fixed-width convenience form of PointQuery.
func (f *Filter) PointQueryUint64(key uint64) bool {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	return f.e.PointQuery(buf[:])
}

// RangeQuery reports whether some key in [l, r] may have been inserted
// (spec.md §4.4).
func (f *Filter) RangeQuery(l, r []byte) bool { return f.e.RangeQuery(l, r) }

// RangeQueryUint64 is the fixed-width convenience form of RangeQuery.
func (f *Filter) RangeQueryUint64(l, r uint64) bool {
	var lb, rb [8]byte
	binary.BigEndian.PutUint64(lb[:], l)
	binary.BigEndian.PutUint64(rb[:], r)
	return f.e.RangeQuery(lb[:], rb[:])
}

// ShrinkInfixSize reduces every interval's explicit-part width to newSize
// bits, trading false-positive rate for memory (spec.md §4.4.6). newSize
// must not exceed the filter's current infix size.
func (f *Filter) ShrinkInfixSize(newSize uint) { f.e.ShrinkInfixSize(newSize) }

// InfixSize reports the filter's current explicit-part width.
func (f *Filter) InfixSize() uint { return f.e.InfixSize() }

// SetDebugAsserts toggles the engine's debugAsserts-gated invariant checks
// (spec.md §7); leave off in production.
func (f *Filter) SetDebugAsserts(on bool) { f.e.SetDebugAsserts(on) }

// Serialize encodes the filter to the wire format of spec.md §6.3.
func (f *Filter) Serialize() ([]byte, error) { return wireformat.Serialize(f.e) }

// Deserialize parses a previous Serialize output; the metadata header must
// match this build's compile-time constants exactly (spec.md §6.1).
func Deserialize(data []byte) (*Filter, error) {
	e, err := wireformat.Deserialize(data)
	if err != nil {
		return nil, err
	}
	return &Filter{e: e}, nil
}

// BulkLoadStream is a streaming bulk-load session on a freshly constructed
// Filter (spec.md §4.4.5 / §6.1 bulk_load_streaming_*); feed keys in
// ascending order, then call Finish exactly once.
type BulkLoadStream struct {
	s *filterengine.BulkLoadStream
}

// NewBulkLoadStream starts a streaming bulk load on f. f should be freshly
// constructed via New/NewFixedWidth; mixing streaming bulk load with prior
// Insert/Delete calls is not supported.
func (f *Filter) NewBulkLoadStream() *BulkLoadStream {
	return &BulkLoadStream{s: f.e.NewBulkLoadStream()}
}

// Feed adds the next key, in ascending order, to the stream.
func (b *BulkLoadStream) Feed(key []byte) { b.s.Feed(key) }

// Finish closes out the stream.
func (b *BulkLoadStream) Finish() { b.s.Finish() }
