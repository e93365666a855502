package infixstore

import (
	"k8s.io/klog/v2"

	"github.com/n3slami/diva-go/internal/bitutil"
)

// DeleteRaw removes one occurrence of a 64-bit partial key from the store,
// per spec.md §4.3.3. Shrinks the store one grade first if elem_count has
// dropped to the shrink threshold for the current grade.
//
// match_pos is located with a reverse linear scan of the run rather than
// porting the reference's binary search verbatim: that search compares
// against the raw (implicit<<infix_size | explicit) key rather than the
// infix-width explicit part alone, so for any implicit_part > 0 its
// narrowing condition is true at every step and it degenerates to walking
// l up to runend_pos — i.e. it always executes the same backward scan this
// does. See DESIGN.md.
func (s *Store) DeleteRaw(scale *ScaleTable, key uint64, totalImplicit uint32) {
	if s.SizeGrade > 0 {
		threshold := scale.ExceptionScaledSize()
		if s.SizeGrade > 1 {
			threshold = scale.ScaledSize(s.SizeGrade - 2)
		}
		if s.ElemCount <= threshold {
			klog.V(3).Infof("infixstore: shrinking store from grade %d at elem_count %d", s.SizeGrade, s.ElemCount)
			s.Resize(scale, false, totalImplicit)
		}
	}

	implicitPart := key >> s.InfixSize
	explicitPart := key & bitutil.MaskLow(s.InfixSize)

	keyRank := s.RankOccupieds(int(implicitPart))
	runendPos := s.SelectRunends(keyRank)
	prevSelect := -1
	if keyRank > 0 {
		prevSelect = s.SelectRunends(keyRank - 1)
	}
	runstartPos := prevSelect
	if eb := s.findEmptySlotBefore(runendPos); eb > runstartPos {
		runstartPos = eb
	}
	runstartPos++
	runDestroyed := runstartPos == runendPos

	matchPos := runendPos
	for matchPos >= runstartPos {
		v := s.Slot(matchPos)
		mask := (lowbit(v) << 1) - 1
		if (v | mask) == (explicitPart | mask) {
			break
		}
		matchPos--
	}

	foundEmptyRight := false
	curOccupied := int(implicitPart)
	curRunend := runendPos
	prevRunend := curRunend
	shiftStart, shiftEnd := -1, -1
	for curRunend < int(s.ScaledSize) {
		prevRunend = curRunend
		if prevRunend+1 < int(s.ScaledSize) && s.safeSlot(prevRunend+1) == 0 {
			foundEmptyRight = true
			break
		}
		curRunend = s.NextRunend(curRunend)
		curOccupied = s.NextOccupied(curOccupied)
		mappedPos := scale.MappedPos(uint64(curOccupied), s.SizeGrade, totalImplicit)
		if shiftEnd == -1 && mappedPos >= prevRunend+1 {
			shiftEnd = prevRunend
		}
	}
	if shiftEnd == -1 {
		shiftEnd = prevRunend
	}

	if !foundEmptyRight {
		curOccupied = int(implicitPart)
		curRunend = s.PreviousRunend(runendPos)
		prevRunend = runendPos
		for curRunend >= 0 {
			if s.safeSlot(curRunend+1) == 0 {
				runstart := s.findEmptySlotBefore(prevRunend) + 1
				mappedPos := scale.MappedPos(uint64(curOccupied), s.SizeGrade, totalImplicit)
				if mappedPos > runstart {
					shiftStart = runstart
				}
				break
			}
			mappedPos := scale.MappedPos(uint64(curOccupied), s.SizeGrade, totalImplicit)
			if mappedPos > curRunend+1 {
				shiftStart = curRunend + 1
			}
			prevRunend = curRunend
			curRunend = s.PreviousRunend(curRunend)
			curOccupied = s.PreviousOccupied(curOccupied)
		}
		if curRunend < 0 {
			mappedPos := scale.MappedPos(uint64(curOccupied), s.SizeGrade, totalImplicit)
			firstEmptyBefore := s.findEmptySlotBefore(runendPos)
			if firstEmptyBefore < mappedPos {
				shiftStart = firstEmptyBefore
			}
		}
	}

	if shiftStart == -1 {
		// Shift the run left over the deleted slot.
		s.shiftSlotsLeft(matchPos+1, shiftEnd+1, 1)
		s.shiftRunendsLeft(matchPos+1, shiftEnd+1, 1)
		if matchPos == shiftEnd {
			s.SetSlot(matchPos, 0)
			s.clearRunend(matchPos)
		}
		if !runDestroyed {
			s.setRunend(runendPos - 1)
		}
	} else {
		// Shift the run right over the deleted slot.
		s.shiftSlotsRight(shiftStart, matchPos, 1)
		s.shiftRunendsRight(shiftStart, matchPos, 1)
		if matchPos == shiftStart {
			s.SetSlot(matchPos, 0)
			if runDestroyed {
				s.clearRunend(runendPos)
			}
		}
		if !runDestroyed {
			s.setRunend(runendPos)
		}
	}

	if runDestroyed {
		s.clearOccupied(int(implicitPart))
	}
	s.ElemCount--
	s.RefreshCache()
}
