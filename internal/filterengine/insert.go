package filterengine

import (
	"bytes"
	"sort"

	"k8s.io/klog/v2"

	"github.com/n3slami/diva-go/internal/bitutil"
	"github.com/n3slami/diva-go/internal/interval"
)

// Insert adds key to the filter, per spec.md §4.4. With probability
// 1/infixstore.TargetSize it takes the "split" path (insertSplit), which may
// promote key itself to a new boundary; otherwise it takes the "simple"
// path (insertSimple), which just records key's partial key in its owning
// interval's store.
func (e *Engine) Insert(key []byte) {
	e.ensureSupremum(len(key))
	k := bitutil.InfiniteBytes{Data: key}
	if e.coinFlip() {
		e.insertSplit(k)
	} else {
		e.insertSimple(k)
	}
	e.checkInvariants()
}

// straddle locates the (prevKey, prevVal, nextKey) triple bracketing key:
// prevVal's store is the interval key currently belongs to (spec.md §4.1).
func (e *Engine) straddle(key []byte) (prevKey []byte, prevVal *BoundaryValue, nextKey []byte) {
	i := e.boundaries.Seek(key)
	peekKey, peekVal, ok := e.boundaries.PeekAt(i)
	if ok && bytes.Equal(peekKey, key) {
		prevKey, prevVal = peekKey, peekVal
		nextKey, _, _ = e.boundaries.PeekAt(e.boundaries.StepNext(i))
		return
	}
	nextKey = peekKey
	prevKey, prevVal, _ = e.boundaries.PeekAt(e.boundaries.StepPrev(i))
	return
}

// insertSimple ports InsertSimple (spec.md §4.4.1 "simple" path): locate
// key's interval and append its partial key to that interval's store.
func (e *Engine) insertSimple(key bitutil.InfiniteBytes) {
	prevKeyB, prevVal, nextKeyB := e.straddle(key.Data)
	prevKey := bitutil.InfiniteBytes{Data: prevKeyB}
	nextKey := bitutil.InfiniteBytes{Data: nextKeyB}

	d := interval.Compute(prevKey, nextKey)
	extraction := interval.ExtractPartial(key, d.Shared, d.Ignore, d.Implicit, e.infixSize, uint64(key.Bit(d.Shared)))
	nextImplicit := interval.ExtractPartial(nextKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 1) >> e.infixSize
	prevImplicit := interval.ExtractPartial(prevKey, d.Shared, d.Ignore, d.Implicit, e.infixSize, 0) >> e.infixSize
	totalImplicit := uint32(nextImplicit - prevImplicit + 1)
	insertee := (extraction | 1) - (prevImplicit << e.infixSize)
	prevVal.Store.InsertRaw(e.scale, insertee, totalImplicit)
}

// insertSplit ports InsertSplit (spec.md §4.4.1 "split" path, §4.4.2 list
// expansion): key becomes a new boundary key, and the interval it fell in
// is divided into a left half (owned by the existing lower boundary) and a
// right half (owned by key, or by a shortened "partial" prefix of key when
// key shares a long common run with an existing partial key).
func (e *Engine) insertSplit(key bitutil.InfiniteBytes) {
	klog.V(3).Infof("filterengine: splitting interval at new boundary %x", key.Data)
	e.Metrics.Split()
	prevKeyB, prevVal, nextKeyB := e.straddle(key.Data)
	prevKey := bitutil.InfiniteBytes{Data: prevKeyB}
	nextKey := bitutil.InfiniteBytes{Data: nextKeyB}

	if prevVal.Partial && isPrefixOf(prevKeyB, key.Data, prevVal.InvalidBits) {
		e.insertSimple(key)
		return
	}

	d := interval.Compute(prevKey, nextKey)
	shared, ignore, implicitSize := d.Shared, d.Ignore, d.Implicit
	extraction := interval.ExtractPartial(key, shared, ignore, implicitSize, e.infixSize, uint64(key.Bit(shared)))
	prevExtraction := interval.ExtractPartial(prevKey, shared, ignore, implicitSize, e.infixSize, 0)
	nextExtraction := interval.ExtractPartial(nextKey, shared, ignore, implicitSize, e.infixSize, 1)
	separator := (extraction | 1) - (prevExtraction & (bitmask64(implicitSize) << e.infixSize))

	list := prevVal.Store.GetInfixList()

	// Binary search over list's ascending (implicit<<infixSize|explicit)
	// values; unlike infixstore's own degenerate searches, separator and
	// list entries live in the same full-value space here, so this one
	// genuinely narrows.
	sepL, sepR := -1, len(list)
	for sepR-sepL > 1 {
		sepMid := (sepL + sepR) / 2
		val := withoutLowbit(list[sepMid])
		if val <= separator-1 {
			sepL = sepMid
		} else {
			sepR = sepMid
		}
	}
	splitPos := sepR
	zeroPos := -1
	for i := sepL; i >= 0 && (list[i]>>e.infixSize) == (separator>>e.infixSize); i-- {
		mask := (lowbit(list[i]) << 1) - 1
		if (list[i] | mask) == (separator | mask) {
			splitPos = i
			zeroPos = shared + ignore + int(implicitSize) + int(e.infixSize) - bitutil.LowbitPos(list[i]) - 1
		}
	}

	copiedKey := append([]byte(nil), key.Data...)
	if zeroPos != -1 && len(copiedKey) > (zeroPos-1)/8 {
		copiedKey[(zeroPos-1)/8] &^= byte(bitmask64(uint(7 - (zeroPos-1)%8)))
		copiedKey = copiedKey[:(zeroPos-1)/8+1]
	}
	editedKey := bitutil.InfiniteBytes{Data: copiedKey}
	if zeroPos != -1 {
		extraction = interval.ExtractPartial(editedKey, shared, ignore, implicitSize, e.infixSize, uint64(editedKey.Bit(shared)))
	}

	sharedWordByte := (shared / 64) * 8

	dLT := interval.Compute(sliceFrom(prevKey, sharedWordByte), sliceFrom(editedKey, sharedWordByte))
	sharedLT := dLT.Shared + sharedWordByte*8
	shamtLT := sharedLT + dLT.Ignore + int(dLT.Implicit) - shared - ignore - int(implicitSize)
	prevExtractionLT := interval.ExtractPartial(prevKey, sharedLT, dLT.Ignore, dLT.Implicit, e.infixSize, 0)
	extractionLT := interval.ExtractPartial(editedKey, sharedLT, dLT.Ignore, dLT.Implicit, e.infixSize, 1)
	leftStart := prevKey.BitsAt(shared+ignore+int(implicitSize), uint(shamtLT)) << e.infixSize
	leftEnd := ((extraction>>e.infixSize)-(prevExtraction>>e.infixSize))<<(e.infixSize+uint(shamtLT)) |
		editedKey.BitsAt(shared+ignore+int(implicitSize), uint(shamtLT))<<e.infixSize
	totalImplicitLT := uint32((extractionLT>>e.infixSize)-(prevExtractionLT>>e.infixSize)) + 1

	dGT := interval.Compute(sliceFrom(editedKey, sharedWordByte), sliceFrom(nextKey, sharedWordByte))
	sharedGT := dGT.Shared + sharedWordByte*8
	shamtGT := sharedGT + dGT.Ignore + int(dGT.Implicit) - shared - ignore - int(implicitSize)
	extractionGT := interval.ExtractPartial(editedKey, sharedGT, dGT.Ignore, dGT.Implicit, e.infixSize, 0)
	nextExtractionGT := interval.ExtractPartial(nextKey, sharedGT, dGT.Ignore, dGT.Implicit, e.infixSize, 1)
	rightStart := ((extraction>>e.infixSize)-(prevExtraction>>e.infixSize))<<(e.infixSize+uint(shamtGT)) |
		editedKey.BitsAt(shared+ignore+int(implicitSize), uint(shamtGT))<<e.infixSize
	rightEnd := ((nextExtraction>>e.infixSize)-(prevExtraction>>e.infixSize))<<(e.infixSize+uint(shamtGT)) |
		nextKey.BitsAt(shared+ignore+int(implicitSize), uint(shamtGT))<<e.infixSize
	totalImplicitGT := uint32((nextExtractionGT>>e.infixSize)-(extractionGT>>e.infixSize)) + 1

	if zeroPos != -1 && zeroPos <= maxInt(sharedLT, sharedGT) {
		e.insertSimple(key)
		return
	}

	leftList := expandAndUpdateList(list[:splitPos], implicitSize, e.infixSize, shamtLT, leftStart, leftEnd)
	rightList := expandAndUpdateList(list[splitPos:], implicitSize, e.infixSize, shamtGT, rightStart, rightEnd)

	storeLT := allocateStoreWithList(e.scale, e.infixSize, leftList, totalImplicitLT)
	storeLT.Partial = prevVal.Partial
	storeLT.InvalidBits = prevVal.InvalidBits

	rightOffset := 0
	if zeroPos != -1 {
		rightOffset = 1
	}
	storeGT := allocateStoreWithList(e.scale, e.infixSize, rightList[rightOffset:], totalImplicitGT)

	e.boundaries.Put(prevKeyB, storeLT)

	if zeroPos != -1 {
		keyExtractionGT := interval.ExtractPartial(key, sharedGT, dGT.Ignore, dGT.Implicit, e.infixSize, 0)
		storeGT.Store.InsertRaw(e.scale, (keyExtractionGT&bitutil.MaskLow(e.infixSize))|1, totalImplicitGT)
		storeGT.InvalidBits = uint8(7 - (zeroPos-1)%8)
		storeGT.Partial = true
		e.boundaries.Put(editedKey.Data, storeGT)
	} else {
		e.boundaries.Put(key.Data, storeGT)
	}
}

// expandAndUpdateList ports GetExpandedInfixListLength + UpdateInfixList:
// each entry is rebased from the pre-split interval's bit layout to the new
// (shrunk-by-shamt) layout; entries whose unary tail bit, after the shift,
// lands in the implicit part rather than in the explicit part (i.e. the
// reference's "expanded" case), fan out into every implicit position they
// could plausibly have meant, clamped to [lowerLim, upperLim].
func expandAndUpdateList(list []uint64, implicitSize, infixSize uint, shamt int, lowerLim, upperLim uint64) []uint64 {
	expanded := false
	for _, v := range list {
		if bitutil.LowbitPos(v)+shamt >= int(infixSize) {
			expanded = true
			break
		}
	}

	var res []uint64
	if !expanded {
		res = make([]uint64, 0, len(list))
		for _, v := range list {
			res = append(res, (v<<uint(shamt))-lowerLim)
		}
		sortInfixValues(res)
		return res
	}

	lowerImplicitLim := lowerLim >> infixSize
	upperImplicitLim := upperLim >> infixSize
	for _, v := range list {
		val := v << uint(shamt)
		implicitPart := val >> infixSize
		explicitPart := val & bitutil.MaskLow(infixSize)
		if explicitPart == 0 {
			start := implicitPart - lowbit(implicitPart)
			end := implicitPart | (implicitPart - 1)
			lo := maxU64(start, lowerImplicitLim)
			hi := minU64(end, upperImplicitLim)
			for j := lo; j <= hi; j++ {
				res = append(res, ((j-lowerImplicitLim)<<infixSize)|(uint64(1)<<(infixSize-1)))
			}
		} else {
			res = append(res, val-lowerLim)
		}
	}
	sortInfixValues(res)
	return res
}

// sortInfixValues sorts by (withoutLowbit ascending, lowbit descending),
// matching the reference's comp lambda in UpdateInfixList.
func sortInfixValues(list []uint64) {
	sort.Slice(list, func(i, j int) bool {
		ai, bi := withoutLowbit(list[i]), withoutLowbit(list[j])
		if ai != bi {
			return ai < bi
		}
		return lowbit(list[i]) > lowbit(list[j])
	})
}

func sliceFrom(s bitutil.InfiniteBytes, byteOff int) bitutil.InfiniteBytes {
	if byteOff >= len(s.Data) {
		return bitutil.InfiniteBytes{}
	}
	return bitutil.InfiniteBytes{Data: s.Data[byteOff:]}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
