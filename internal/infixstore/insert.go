package infixstore

import (
	"k8s.io/klog/v2"

	"github.com/n3slami/diva-go/internal/bitutil"
)

func (s *Store) safeSlot(i int) uint64 {
	if i < 0 || i >= int(s.ScaledSize) {
		return 0
	}
	return s.Slot(i)
}

// findEmptySlotAfter returns the first empty slot at or after runendPos+1,
// jumping run-to-run via NextRunend. Ported from the reference
// FindEmptySlotAfter (§4.3.2).
func (s *Store) findEmptySlotAfter(runendPos int) int {
	cur := runendPos
	for cur < int(s.ScaledSize) && s.safeSlot(cur+1) != 0 {
		cur = s.NextRunend(cur)
	}
	return cur + 1
}

// findEmptySlotBefore returns the nearest empty slot at or before
// runendPos, searching run-to-run via PreviousRunend. The reference
// carries a commented-out binary-search alternative and documents that the
// linear variant executes unconditionally (spec.md §9 Open Questions); this
// port only implements the linear path.
func (s *Store) findEmptySlotBefore(runendPos int) int {
	cur := runendPos
	prev := runendPos
	for {
		prev = cur
		cur = s.PreviousRunend(cur)
		if !(cur >= 0 && s.safeSlot(cur+1) != 0) {
			break
		}
	}
	prev--
	for cur < prev && s.safeSlot(prev) != 0 {
		prev--
	}
	return prev
}

// shiftSlotsRight moves slots [l, r) right by amt, landing in [l+amt, r+amt),
// and zeroes [l, l+amt). r is exclusive, matching the reference
// ShiftSlotsRight(l, r, shamt)'s "for i := r-1 downto l" range.
func (s *Store) shiftSlotsRight(l, r, amt int) {
	for i := r - 1; i >= l; i-- {
		s.SetSlot(i+amt, s.Slot(i))
	}
	for i := l; i < l+amt; i++ {
		s.SetSlot(i, 0)
	}
}

// shiftSlotsLeft moves slots [l, r) left by amt, landing in [l-amt, r-amt),
// and zeroes [r-amt, r). r is exclusive, matching ShiftSlotsLeft.
func (s *Store) shiftSlotsLeft(l, r, amt int) {
	for i := l; i < r; i++ {
		s.SetSlot(i-amt, s.Slot(i))
	}
	for i := r - amt; i < r; i++ {
		if i >= 0 {
			s.SetSlot(i, 0)
		}
	}
}

// shiftRunendsRight/Left mirror ShiftRunendsRight/Left, which shift the
// runend bitmap over [l, r) (r exclusive) by delegating to the inclusive
// bitutil primitive with r-1.
func (s *Store) shiftRunendsRight(l, r, amt int) {
	bitutil.ShiftBitmapRight(s.Runends, l, r-1, amt)
}

func (s *Store) shiftRunendsLeft(l, r, amt int) {
	bitutil.ShiftBitmapLeft(s.Runends, l, r-1, amt)
}

// lowbit returns v's lowest set bit (0 if v==0).
func lowbit(v uint64) uint64 {
	return v & (-v)
}

// withoutLowbit strips the unary-length tail bit from a slot value.
func withoutLowbit(v uint64) uint64 {
	return v - lowbit(v)
}

// InsertRaw inserts a 64-bit partial key ([implicit | explicit], explicit's
// low bit the unary-length tail marker) into the store, per spec.md §4.3.2.
// Grows the store one size grade first if elem_count has reached the
// previous grade's threshold.
func (s *Store) InsertRaw(scale *ScaleTable, key uint64, totalImplicit uint32) {
	threshold := scale.ExceptionScaledSize()
	if s.SizeGrade > 0 {
		threshold = scale.ScaledSize(s.SizeGrade - 1)
	}
	if s.ElemCount >= threshold {
		klog.V(3).Infof("infixstore: growing store from grade %d at elem_count %d", s.SizeGrade, s.ElemCount)
		s.Resize(scale, true, totalImplicit)
	}

	implicitPart := key >> s.InfixSize
	explicitPart := key & bitutil.MaskLow(s.InfixSize)

	mappedPos := scale.MappedPos(implicitPart, s.SizeGrade, totalImplicit)
	keyRank := s.RankOccupieds(int(implicitPart))
	isOccupied := s.occupied(int(implicitPart))

	switch {
	case !isOccupied && s.safeSlot(mappedPos) == 0:
		s.SetSlot(mappedPos, explicitPart)
		s.setRunend(mappedPos)

	case isOccupied:
		runendPos := s.SelectRunends(keyRank)
		nextEmpty := s.findEmptySlotAfter(mappedPos)
		prevEmpty := s.findEmptySlotBefore(mappedPos)

		l := s.PreviousRunend(runendPos)
		if prevEmpty > l {
			l = prevEmpty
		}
		r := l + 1
		for r <= runendPos && withoutLowbit(s.Slot(r)) < explicitPart {
			r++
		}

		if nextEmpty < int(s.ScaledSize) {
			s.shiftSlotsRight(r, nextEmpty, 1)
			s.shiftRunendsRight(runendPos, nextEmpty, 1)
			s.SetSlot(r, explicitPart)
		} else {
			s.shiftSlotsLeft(prevEmpty+1, r, 1)
			s.shiftRunendsLeft(prevEmpty+1, minInt(runendPos, r), 1)
			s.SetSlot(r-1, explicitPart)
		}

	default:
		runendPos := -1
		if keyRank > 0 {
			runendPos = s.SelectRunends(keyRank - 1)
		}
		nextEmpty := s.findEmptySlotAfter(mappedPos)
		if nextEmpty < int(s.ScaledSize) {
			shiftStart := mappedPos
			if runendPos+1 > shiftStart {
				shiftStart = runendPos + 1
			}
			s.shiftSlotsRight(shiftStart, nextEmpty, 1)
			s.shiftRunendsRight(shiftStart, nextEmpty, 1)
			s.SetSlot(shiftStart, explicitPart)
			s.setRunend(shiftStart)
		} else {
			prevEmpty := s.findEmptySlotBefore(mappedPos)
			targetPos := runendPos
			if prevEmpty > targetPos {
				targetPos = prevEmpty
			}
			s.shiftSlotsLeft(prevEmpty+1, targetPos+1, 1)
			s.shiftRunendsLeft(prevEmpty+1, targetPos+1, 1)
			s.SetSlot(targetPos, explicitPart)
			s.setRunend(targetPos)
		}
	}

	s.setOccupied(int(implicitPart))
	s.ElemCount++
	s.RefreshCache()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
