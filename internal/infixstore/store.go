// Package infixstore implements the per-interval compact partial-key set
// described in spec.md §3 "Infix Store layout" and §4.3: an
// occupied/runend quotient-filter-style encoding over a fixed-width
// "implicit" quotient and a variable-width "explicit" remainder carrying a
// unary length tail bit.
//
// Design Notes rendering (spec.md §9 "Pointer graph → arena"): rather than
// one raw []uint64 slab sliced by hand (as the C++ source does via
// store.ptr), each Store keeps its occupieds/runends/slots as separate
// owned slices. Serialize/Deserialize write and read them as three separate
// word runs (after the status word and scaled size), not as one flat
// buffer. The split matches how the reference's own InfixStore struct is a
// thin view over one buffer that we're free to represent with named
// fields instead of manual offsets.
package infixstore

import (
	"fmt"

	"github.com/n3slami/diva-go/internal/bitutil"
)

// Store is one interval's partial-key set.
type Store struct {
	Occupieds []uint64 // TargetSize-bit bitmap
	Runends   []uint64 // ScaledSize-bit bitmap
	Slots     []uint64 // ScaledSize entries, InfixSize bits each, LSB-packed

	// popcount cache: occupiedLow/runendLow cache popcount of the low
	// TargetSize/2 bits of occupieds/runends respectively (§3 "Infix Store
	// layout"). Recomputed directly rather than incrementally maintained
	// with the reference's delta tricks.
	occupiedLow uint32
	runendLow   uint32

	ElemCount   uint32
	SizeGrade   uint8
	InvalidBits uint8
	Partial     bool
	InfixSize   uint
	ScaledSize  uint32
}

// New allocates an empty store for the given size grade and infix width.
func New(scale *ScaleTable, grade uint8, infixSize uint) *Store {
	scaled := scale.ScaledSize(grade)
	return &Store{
		Occupieds:  make([]uint64, bitutil.WordsForBits(TargetSize)),
		Runends:    make([]uint64, bitutil.WordsForBits(int(scaled))),
		Slots:      make([]uint64, bitutil.WordsForBits(int(scaled)*int(infixSize))),
		SizeGrade:  grade,
		InfixSize:  infixSize,
		ScaledSize: scaled,
	}
}

// halfT is TargetSize/2, the popcount-cache split point used throughout.
const halfT = TargetSize / 2

func (s *Store) occupied(implicitPos int) bool {
	return bitutil.GetBit(s.Occupieds, implicitPos)
}

func (s *Store) setOccupied(implicitPos int) {
	bitutil.SetBit(s.Occupieds, implicitPos)
}

func (s *Store) clearOccupied(implicitPos int) {
	bitutil.ClearBit(s.Occupieds, implicitPos)
}

func (s *Store) runend(pos int) bool {
	if pos < 0 || pos >= int(s.ScaledSize) {
		return false
	}
	return bitutil.GetBit(s.Runends, pos)
}

func (s *Store) setRunend(pos int) {
	bitutil.SetBit(s.Runends, pos)
}

func (s *Store) clearRunend(pos int) {
	bitutil.ClearBit(s.Runends, pos)
}

// RefreshCache recomputes the low-half popcount caches. Call after any
// mutation that moves bits around in bulk (shifts, resize, bulk load); this
// implementation recomputes rather than tracks incremental deltas through
// shifts.
func (s *Store) RefreshCache() {
	s.checkCache()
}

// Slot reads the raw explicit-part value at slot index i (0 means empty).
func (s *Store) Slot(i int) uint64 {
	return bitutil.GetBitsLSB(s.Slots, i*int(s.InfixSize), s.InfixSize)
}

// SetSlot writes the raw explicit-part value at slot index i.
func (s *Store) SetSlot(i int, v uint64) {
	bitutil.SetBitsLSB(s.Slots, i*int(s.InfixSize), s.InfixSize, v)
}

// RankOccupieds returns the number of occupied implicit positions in
// [0, pos] (§4.3.1).
func (s *Store) RankOccupieds(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos >= halfT {
		// low half from cache's sibling computation is not directly
		// usable (cache covers a fixed split point, not an arbitrary
		// pos), so fall back to a direct scan; TargetSize is small
		// (1024 bits / 16 words) so this is cheap regardless.
	}
	count := 0
	full := pos / 64
	for w := 0; w < full; w++ {
		count += popcount(s.Occupieds[w])
	}
	count += bitutil.Rank64(s.Occupieds[full], uint(pos%64+1))
	return count
}

// SelectRunends returns the slot index of the (r+1)-th set runend bit, or
// int(s.ScaledSize) if there are fewer than r+1 (§4.3.1).
func (s *Store) SelectRunends(r int) int {
	if r < 0 {
		return -1
	}
	remaining := r
	for w := 0; w < len(s.Runends); w++ {
		pc := popcount(s.Runends[w])
		if remaining < pc {
			return w*64 + bitutil.Select64(s.Runends[w], remaining)
		}
		remaining -= pc
	}
	return int(s.ScaledSize)
}

// PreviousRunend returns the largest runend position <= pos, or -1.
func (s *Store) PreviousRunend(pos int) int {
	for p := pos; p >= 0; p-- {
		if s.runend(p) {
			return p
		}
	}
	return -1
}

// NextRunend returns the smallest runend position > pos, or
// int(s.ScaledSize) if none.
func (s *Store) NextRunend(pos int) int {
	for p := pos + 1; p < int(s.ScaledSize); p++ {
		if s.runend(p) {
			return p
		}
	}
	return int(s.ScaledSize)
}

// NextOccupied returns the smallest occupied implicit position > pos, or
// TargetSize if none.
func (s *Store) NextOccupied(pos int) int {
	for p := pos + 1; p < TargetSize; p++ {
		if s.occupied(p) {
			return p
		}
	}
	return TargetSize
}

// PreviousOccupied returns the largest occupied implicit position < pos, or
// -1 if none.
func (s *Store) PreviousOccupied(pos int) int {
	for p := pos - 1; p >= 0; p-- {
		if s.occupied(p) {
			return p
		}
	}
	return -1
}

func popcount(w uint64) int {
	return bitutil.Rank64(w, 64)
}

// checkCache recomputes occupiedLow/runendLow from scratch; used by
// operations that mutate many bits in one pass (resize, bulk load) where
// incremental tracking isn't worth the bookkeeping.
func (s *Store) checkCache() {
	s.occupiedLow = 0
	for p := 0; p < halfT; p++ {
		if s.occupied(p) {
			s.occupiedLow++
		}
	}
	s.runendLow = 0
	for p := 0; p < halfT && p < int(s.ScaledSize); p++ {
		if s.runend(p) {
			s.runendLow++
		}
	}
}

// Validate checks the invariants of spec.md §3 / P8: popcount(occupieds) ==
// popcount(runends) == elem_count, and the popcount cache matches.
func (s *Store) Validate() error {
	occ := 0
	for _, w := range s.Occupieds {
		occ += popcount(w)
	}
	run := 0
	for p := 0; p < int(s.ScaledSize); p++ {
		if s.runend(p) {
			run++
		}
	}
	if occ != run {
		return fmt.Errorf("infixstore: popcount(occupieds)=%d != popcount(runends)=%d", occ, run)
	}
	if occ != int(s.ElemCount) {
		return fmt.Errorf("infixstore: popcount=%d != elem_count=%d", occ, s.ElemCount)
	}
	cacheOcc, cacheRun := 0, 0
	for p := 0; p < halfT; p++ {
		if s.occupied(p) {
			cacheOcc++
		}
	}
	for p := 0; p < halfT && p < int(s.ScaledSize); p++ {
		if s.runend(p) {
			cacheRun++
		}
	}
	if cacheOcc != int(s.occupiedLow) || cacheRun != int(s.runendLow) {
		return fmt.Errorf("infixstore: popcount cache mismatch (occ %d/%d, run %d/%d)",
			cacheOcc, s.occupiedLow, cacheRun, s.runendLow)
	}
	return nil
}
