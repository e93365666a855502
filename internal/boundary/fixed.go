package boundary

import "sort"

// Entry64 pairs a fixed-width (8-byte, big-endian-ordered) boundary key
// with its owned value.
type Entry64[V any] struct {
	Key   uint64
	Value V
}

// FixedIndex is the "int-optimized" instantiation of the boundary-key
// index (spec.md §4.5): same seek/peek/step/put/del surface as Index, but
// keyed directly on uint64 instead of byte slices, avoiding per-comparison
// allocation for the fixed-8-byte-key engine variant.
type FixedIndex[V any] struct {
	entries []Entry64[V]
}

// NewFixed returns an empty fixed-width index.
func NewFixed[V any]() *FixedIndex[V] {
	return &FixedIndex[V]{}
}

// Len reports the number of boundary keys held.
func (ix *FixedIndex[V]) Len() int { return len(ix.entries) }

func (ix *FixedIndex[V]) search(key uint64) (int, bool) {
	i := sort.Search(len(ix.entries), func(i int) bool {
		return ix.entries[i].Key >= key
	})
	found := i < len(ix.entries) && ix.entries[i].Key == key
	return i, found
}

// Seek positions a cursor at the least boundary key >= key.
func (ix *FixedIndex[V]) Seek(key uint64) int {
	i, _ := ix.search(key)
	return i
}

// PeekRef returns the entry at cursor i without copying its value.
func (ix *FixedIndex[V]) PeekRef(i int) (*Entry64[V], bool) {
	if i < 0 || i >= len(ix.entries) {
		return nil, false
	}
	return &ix.entries[i], true
}

// StepNext returns the next cursor position (may equal Len()).
func (ix *FixedIndex[V]) StepNext(i int) int {
	if i >= len(ix.entries) {
		return len(ix.entries)
	}
	return i + 1
}

// StepPrev returns the previous cursor position (may be -1).
func (ix *FixedIndex[V]) StepPrev(i int) int {
	return i - 1
}

// Put upserts key -> value, preserving sort order.
func (ix *FixedIndex[V]) Put(key uint64, value V) {
	i, found := ix.search(key)
	if found {
		ix.entries[i].Value = value
		return
	}
	ix.entries = append(ix.entries, Entry64[V]{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = Entry64[V]{Key: key, Value: value}
}

// Del removes key, reporting whether it was present.
func (ix *FixedIndex[V]) Del(key uint64) bool {
	i, found := ix.search(key)
	if !found {
		return false
	}
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
	return true
}

// IterAll calls fn for every entry in ascending key order, stopping early
// if fn returns false.
func (ix *FixedIndex[V]) IterAll(fn func(key uint64, value *V) bool) {
	for i := range ix.entries {
		if !fn(ix.entries[i].Key, &ix.entries[i].Value) {
			return
		}
	}
}

// At returns the entry at absolute position i.
func (ix *FixedIndex[V]) At(i int) *Entry64[V] {
	return &ix.entries[i]
}
