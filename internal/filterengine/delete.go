package filterengine

import (
	"bytes"

	"k8s.io/klog/v2"

	"github.com/n3slami/diva-go/internal/bitutil"
	"github.com/n3slami/diva-go/internal/interval"
)

// Delete removes one occurrence of key, per spec.md §4.4.3. If key is
// itself a non-partial boundary, or if a partial boundary's longest
// matching infix no longer covers enough of the boundary's own bits to
// distinguish it, the two neighboring intervals merge (deleteMerge); the
// merge-trigger condition is kept byte-identical to the reference per
// spec.md §9 Open Questions.
func (e *Engine) Delete(key []byte) {
	e.ensureSupremum(len(key))

	i := e.boundaries.Seek(key)
	nextKeyB, nextVal, ok := e.boundaries.PeekAt(i)
	var prevKeyB []byte
	var prevVal *BoundaryValue
	var prevIdx int
	if ok && bytes.Equal(nextKeyB, key) {
		if !nextVal.Partial {
			e.deleteMerge(i)
			e.checkInvariants()
			return
		}
		prevKeyB, prevVal, prevIdx = nextKeyB, nextVal, i
		nextKeyB, _, _ = e.boundaries.PeekAt(e.boundaries.StepNext(i))
	} else {
		prevIdx = e.boundaries.StepPrev(i)
		prevKeyB, prevVal, _ = e.boundaries.PeekAt(prevIdx)
	}

	prevKey := bitutil.InfiniteBytes{Data: prevKeyB}
	nextKey := bitutil.InfiniteBytes{Data: nextKeyB}
	k := bitutil.InfiniteBytes{Data: key}

	d := interval.Compute(prevKey, nextKey)
	extraction := interval.ExtractPartial(k, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(k.Bit(d.Shared)))
	nextImplicit := interval.ExtractPartial(nextKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 1) >> e.infixSize
	prevImplicit := interval.ExtractPartial(prevKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	totalImplicit := uint32(nextImplicit - prevImplicit + 1)
	deletee := (extraction | 1) - (prevImplicit << e.infixSize)

	if prevVal.Partial {
		longestMatch := int(prevVal.Store.LongestMatchingInfixSize(deletee))
		if longestMatch == 0 || 8*len(prevKeyB)-int(prevVal.InvalidBits) > d.Shared+d.Ignore+int(d.Implicit)+longestMatch-1 {
			e.deleteMerge(prevIdx)
			e.checkInvariants()
			return
		}
	}

	prevVal.Store.DeleteRaw(e.scale, deletee, totalImplicit)
	e.checkInvariants()
}

// deleteMerge ports DeleteMerge: the boundary at cursor i (the "middle"
// key) is removed, and its interval merges into the interval owned by the
// preceding ("left") boundary key (spec.md §4.4.3, §4.4.4).
func (e *Engine) deleteMerge(i int) {
	middleKeyB, storeR, _ := e.boundaries.PeekAt(i)
	klog.V(3).Infof("filterengine: merging boundary %x into its predecessor", middleKeyB)
	e.Metrics.Merge()
	rightKeyB, _, _ := e.boundaries.PeekAt(e.boundaries.StepNext(i))
	leftKeyB, storeL, _ := e.boundaries.PeekAt(e.boundaries.StepPrev(i))

	leftKey := bitutil.InfiniteBytes{Data: leftKeyB}
	rightKey := bitutil.InfiniteBytes{Data: rightKeyB}
	middleKey := bitutil.InfiniteBytes{Data: middleKeyB}

	d := interval.Compute(leftKey, rightKey)

	leftList := storeL.Store.GetInfixList()
	rightList := storeR.Store.GetInfixList()

	updateInfixListDelete(d.Shared, d.Ignore, d.Implicit, leftKey, middleKey, leftList, e.infixSize)
	updateInfixListDelete(d.Shared, d.Ignore, d.Implicit, middleKey, rightKey, rightList, e.infixSize)

	list := append(leftList, rightList...)
	implicit := interval.ExtractPartial(leftKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	for idx := range list {
		list[idx] -= implicit << e.infixSize
	}

	leftExtraction := interval.ExtractPartial(leftKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0)
	rightExtraction := interval.ExtractPartial(rightKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 1)
	totalImplicit := uint32((rightExtraction>>e.infixSize)-(leftExtraction>>e.infixSize)) + 1

	merged := allocateStoreWithList(e.scale, e.infixSize, list, totalImplicit)
	merged.Partial = storeL.Partial
	merged.InvalidBits = storeL.InvalidBits

	e.boundaries.Del(middleKeyB)
	e.boundaries.Put(leftKeyB, merged)
}

// updateInfixListDelete ports UpdateInfixListDelete: rebases every entry of
// list, which was extracted against the (leftKeyArg, rightKeyArg) pair's own
// (narrower) interval descriptor, into the wider merged descriptor
// (mergedShared, mergedIgnore, mergedImplicit), reconstructing each entry's
// lost high bits from leftKeyArg's own bit pattern — the bits the old,
// narrower interval had elided as "shared" or "ignored" that the merged
// interval must now represent explicitly (spec.md §4.4.4). Kept
// byte-identical to the reference formula (spec.md §9 Open Questions).
func updateInfixListDelete(mergedShared, mergedIgnore int, mergedImplicit uint, leftKeyArg, rightKeyArg bitutil.InfiniteBytes, list []uint64, infixSize uint) {
	old := interval.Compute(leftKeyArg, rightKeyArg)
	oldShared, oldIgnore, oldImplicitSize := old.Shared, old.Ignore, int(old.Implicit)

	oldLeftImplicit := interval.ExtractPartial(leftKeyArg, oldShared, oldIgnore, uint(oldImplicitSize), infixSize, 0) >> infixSize
	oldInfixSize := oldImplicitSize + int(infixSize)
	newInfixSize := int(mergedImplicit) + int(infixSize)

	rebase := func(v uint64) (uint64, uint64) {
		v += oldLeftImplicit << infixSize
		oldDiffBit := v >> uint(oldInfixSize-1)
		v &= bitmask64(uint(oldInfixSize - 1))
		if newInfixSize > oldInfixSize {
			v <<= uint(newInfixSize - oldInfixSize)
		} else {
			v = (v >> uint(oldInfixSize-newInfixSize)) | (v & 1)
		}
		return v, oldDiffBit
	}

	if oldShared == mergedShared {
		for i, v0 := range list {
			v, oldDiffBit := rebase(v0)

			recoveredBitCnt := 1
			recoveredInfix := oldDiffBit << uint(newInfixSize-recoveredBitCnt)
			recoveryBits := minInt(oldIgnore-mergedIgnore, newInfixSize-recoveredBitCnt)
			recoveredBitCnt += recoveryBits
			recoveredInfix |= (((uint64(1) << uint(recoveryBits)) - (1 ^ oldDiffBit)) & bitmask64(uint(recoveryBits))) << uint(newInfixSize-recoveredBitCnt)

			if recoveredBitCnt < newInfixSize {
				recoveredInfix |= v >> uint(recoveredBitCnt-1)
				if bitutil.LowbitPos(v) < recoveredBitCnt-1 {
					recoveredInfix |= 1
				}
			} else {
				recoveredInfix |= 1
			}
			list[i] = recoveredInfix
		}
		return
	}

	for i, v0 := range list {
		v, oldDiffBit := rebase(v0)

		recoveredBitCnt := 1
		recoveredInfix := uint64(leftKeyArg.Bit(mergedShared)) << uint(newInfixSize-recoveredBitCnt)

		recoveryBits := minInt(oldShared-mergedShared-mergedIgnore-1, newInfixSize-recoveredBitCnt)
		recoveredBitCnt += recoveryBits
		recoveredInfix |= leftKeyArg.BitsAt(mergedShared+mergedIgnore+1, uint(recoveryBits)) << uint(newInfixSize-recoveredBitCnt)

		if recoveredBitCnt < newInfixSize {
			recoveredInfix |= oldDiffBit << uint(newInfixSize-recoveredBitCnt-1)
			recoveryBits = minInt(oldIgnore+1, newInfixSize-recoveredBitCnt)
			recoveredBitCnt += recoveryBits
			if recoveryBits > 1 {
				recoveredInfix |= (((uint64(1) << uint(recoveryBits-1)) - (1 ^ oldDiffBit)) & bitmask64(uint(recoveryBits-1))) << uint(newInfixSize-recoveredBitCnt)
			}
		}

		if recoveredBitCnt < newInfixSize {
			recoveredInfix |= v >> uint(recoveredBitCnt-1)
			if bitutil.LowbitPos(v) < recoveredBitCnt-1 {
				recoveredInfix |= 1
			}
		} else {
			recoveredInfix |= 1
		}
		list[i] = recoveredInfix
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
