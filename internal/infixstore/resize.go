package infixstore

import (
	"github.com/valyala/bytebufferpool"

	"github.com/n3slami/diva-go/internal/bitutil"
)

// Resize grows or shrinks the store by one size grade, preserving every
// partial key, per spec.md §4.3.7 (ResizeInfixStore). Rather than porting
// the reference's in-place pointer-arena reallocation, this builds a fresh
// Store at the new grade and repopulates it via LoadList: idiomatic given
// Store already holds separately-owned slices (see store.go's package doc).
func (s *Store) Resize(scale *ScaleTable, expand bool, totalImplicit uint32) {
	list := s.GetInfixList()
	newGrade := s.SizeGrade
	if expand {
		newGrade++
	} else {
		newGrade--
	}
	fresh := New(scale, newGrade, s.InfixSize)
	fresh.LoadList(scale, list, totalImplicit)
	*s = *fresh
}

// ShrinkInfixSize reduces every slot's explicit-part width to newInfixSize
// bits in place, preserving the unary-length tail-bit convention (spec.md
// §4.3.8). Occupieds/runends/element count are untouched; only Slots is
// rebuilt.
func (s *Store) ShrinkInfixSize(newInfixSize uint) {
	wordCount := bitutil.WordsForBits(int(s.ScaledSize) * int(newInfixSize))

	buf := shrinkScratch.Get()
	defer shrinkScratch.Put(buf)
	buf.Reset()
	newSlots := growBuf(buf, wordCount*8)

	shift := s.InfixSize - newInfixSize
	for i := 0; i < int(s.ScaledSize); i++ {
		oldSlot := s.Slot(i)
		if oldSlot == 0 {
			continue
		}
		newSlot := oldSlot >> shift
		if s.InfixSize > newInfixSize+uint(bitutil.LowbitPos(oldSlot)) {
			newSlot |= 1
		}
		bitutil.SetBitsLSB(newSlots, i*int(newInfixSize), newInfixSize, newSlot)
	}

	s.Slots = make([]uint64, wordCount)
	copy(s.Slots, newSlots)
	s.InfixSize = newInfixSize
}

// shrinkScratch pools the byte-backed scratch ShrinkInfixSize rebuilds
// Slots into before copying the result into a freshly owned slice,
// mirroring listScratch's use of the same zero-copy-scratch idiom.
var shrinkScratch bytebufferpool.Pool
