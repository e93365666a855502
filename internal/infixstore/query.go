package infixstore

import "github.com/n3slami/diva-go/internal/bitutil"

// PointQuery reports whether key may be a member, per spec.md §4.3.5.
func (s *Store) PointQuery(key uint64) bool {
	implicitPart := key >> s.InfixSize
	explicitPart := key & bitutil.MaskLow(s.InfixSize)
	if !s.occupied(int(implicitPart)) {
		return false
	}

	rank := s.RankOccupieds(int(implicitPart))
	pos := s.SelectRunends(rank)
	slotValue := s.Slot(pos)
	for {
		mask := (lowbit(slotValue) << 1) - 1
		if (explicitPart|mask) == (slotValue|mask) {
			return true
		}
		if pos == 0 {
			break
		}
		pos--
		slotValue = s.Slot(pos)
		if !(slotValue != 0 && !s.runend(pos)) {
			break
		}
	}
	return false
}

// LongestMatchingInfixSize returns the bit width of the longest explicit
// prefix of key's remainder that matches a stored partial key in key's run,
// or 0 if none matches (spec.md §4.3.4).
//
// Ported as a reverse linear scan rather than the reference's binary
// search, for the same reason as DeleteRaw's match scan: the reference
// compares against the raw key rather than the infix-width explicit part,
// so the search degenerates to walking down from runend_pos. See
// DESIGN.md.
func (s *Store) LongestMatchingInfixSize(key uint64) uint {
	implicitPart := key >> s.InfixSize
	explicitPart := key & bitutil.MaskLow(s.InfixSize)
	if !s.occupied(int(implicitPart)) {
		return 0
	}

	keyRank := s.RankOccupieds(int(implicitPart))
	runendPos := s.SelectRunends(keyRank)
	runstartPos := -1
	if keyRank > 0 {
		runstartPos = s.SelectRunends(keyRank - 1)
	}
	if eb := s.findEmptySlotBefore(runendPos); eb > runstartPos {
		runstartPos = eb
	}
	runstartPos++

	for pos := runendPos; pos >= runstartPos; pos-- {
		value := s.Slot(pos)
		mask := (lowbit(value) << 1) - 1
		if (value|mask) == (explicitPart|mask) {
			return s.InfixSize - uint(bitutil.LowbitPos(value))
		}
	}
	return 0
}

// RangeQuery reports whether the store may hold a key in [lKey, rKey],
// where both bounds are already restricted to this interval's implicit/
// explicit split, per spec.md §4.3.6. Case A (l and r land in different
// implicit slots) short-circuits on any occupied implicit strictly between
// them; case B (same implicit slot) checks a single run for overlap.
func (s *Store) RangeQuery(lKey, rKey uint64) bool {
	lImplicit := lKey >> s.InfixSize
	lExplicit := lKey & bitutil.MaskLow(s.InfixSize)
	rImplicit := rKey >> s.InfixSize
	rExplicit := rKey & bitutil.MaskLow(s.InfixSize)

	if lImplicit < rImplicit {
		if uint64(s.NextOccupied(int(lImplicit))) < rImplicit {
			return true
		}

		if s.occupied(int(rImplicit)) {
			rRank := s.RankOccupieds(int(rImplicit))
			runendPos := s.SelectRunends(rRank)
			runstartPos := -1
			if rRank > 0 {
				runstartPos = s.SelectRunends(rRank - 1)
			}
			if eb := s.findEmptySlotBefore(runendPos); eb > runstartPos {
				runstartPos = eb
			}
			runstartPos++
			slotValue := s.Slot(runstartPos)
			if withoutLowbit(slotValue) <= rExplicit {
				return true
			}
		}

		if s.occupied(int(lImplicit)) {
			lRank := s.RankOccupieds(int(lImplicit))
			pos := s.SelectRunends(lRank)
			slotValue := s.Slot(pos)
			for {
				if lExplicit <= (slotValue | (slotValue - 1)) {
					return true
				}
				if pos == 0 {
					break
				}
				pos--
				slotValue = s.Slot(pos)
				if !(slotValue != 0 && !s.runend(pos)) {
					break
				}
			}
		}
		return false
	}

	// lImplicit == rImplicit
	if !s.occupied(int(lImplicit)) {
		return false
	}
	rank := s.RankOccupieds(int(lImplicit))
	pos := s.SelectRunends(rank)
	slotValue := s.Slot(pos)
	for {
		if lExplicit <= (slotValue|(slotValue-1)) && withoutLowbit(slotValue) <= rExplicit {
			return true
		}
		if pos == 0 {
			break
		}
		pos--
		slotValue = s.Slot(pos)
		if !(slotValue != 0 && !s.runend(pos)) {
			break
		}
	}
	return false
}
