// Package boundary implements the thin ordered-index facade spec.md §4.5
// describes between the filter engine and its boundary keys: seek to the
// least key >= a probe, peek/step the resulting cursor, upsert, delete,
// iterate in order.
//
// Neither the teacher nor any other repo in the retrieval pack imports an
// ordered/trie map library, so this is built the way
// compactindexsized.SearchSortedEntries looks up a sorted []Entry: a plain
// sorted slice walked with sort.Search. See DESIGN.md for why no external
// ordered-map dependency was introduced.
package boundary

import (
	"bytes"
	"sort"
)

// Entry pairs a boundary key with its owned value. V is left generic at the
// call site via the Store's element type parameter.
type Entry[V any] struct {
	Key   []byte
	Value V
}

// Index is an ordered, in-memory map keyed by byte strings, compared
// lexicographically (spec.md §3 "Infinite byte string" ordering).
type Index[V any] struct {
	entries []Entry[V]
}

// New returns an empty index.
func New[V any]() *Index[V] {
	return &Index[V]{}
}

// Len reports the number of boundary keys held.
func (ix *Index[V]) Len() int { return len(ix.entries) }

func (ix *Index[V]) search(key []byte) (int, bool) {
	i := sort.Search(len(ix.entries), func(i int) bool {
		return bytes.Compare(ix.entries[i].Key, key) >= 0
	})
	found := i < len(ix.entries) && bytes.Equal(ix.entries[i].Key, key)
	return i, found
}

// Seek positions a cursor at the least boundary key >= key, returning its
// index (== Len() if none). Cursors in this package are plain slice
// indices; callers hold them across a single logical operation only.
func (ix *Index[V]) Seek(key []byte) int {
	i, _ := ix.search(key)
	return i
}

// PeekRef returns the entry at cursor i without copying its value, or false
// if i is out of range.
func (ix *Index[V]) PeekRef(i int) (*Entry[V], bool) {
	if i < 0 || i >= len(ix.entries) {
		return nil, false
	}
	return &ix.entries[i], true
}

// StepNext returns the next cursor position (may equal Len()).
func (ix *Index[V]) StepNext(i int) int {
	if i >= len(ix.entries) {
		return len(ix.entries)
	}
	return i + 1
}

// StepPrev returns the previous cursor position (may be -1).
func (ix *Index[V]) StepPrev(i int) int {
	return i - 1
}

// Put upserts key -> value, preserving sort order.
func (ix *Index[V]) Put(key []byte, value V) {
	i, found := ix.search(key)
	if found {
		ix.entries[i].Value = value
		return
	}
	ix.entries = append(ix.entries, Entry[V]{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = Entry[V]{Key: append([]byte(nil), key...), Value: value}
}

// Del removes key, reporting whether it was present.
func (ix *Index[V]) Del(key []byte) bool {
	i, found := ix.search(key)
	if !found {
		return false
	}
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
	return true
}

// IterAll calls fn for every entry in ascending key order, stopping early
// if fn returns false. Used by shrink-infix-size and serialization.
func (ix *Index[V]) IterAll(fn func(key []byte, value *V) bool) {
	for i := range ix.entries {
		if !fn(ix.entries[i].Key, &ix.entries[i].Value) {
			return
		}
	}
}

// At returns the entry at absolute position i, for callers (serialize,
// bulk-load) that already iterate by index.
func (ix *Index[V]) At(i int) *Entry[V] {
	return &ix.entries[i]
}
