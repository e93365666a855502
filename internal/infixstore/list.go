package infixstore

import (
	"unsafe"

	"github.com/valyala/bytebufferpool"

	"github.com/n3slami/diva-go/internal/bitutil"
)

// listScratch pools the byte buffers GetInfixList uses to stage its result
// before copying it into a caller-owned slice, the same zero-copy-scratch
// pattern bucketteer/read.go uses around its own per-bucket hash reads.
var listScratch bytebufferpool.Pool

// GetInfixList returns every partial key held by the store, in ascending
// (implicit, explicit) order, per spec.md §4.3.9.
func (s *Store) GetInfixList() []uint64 {
	if s.ElemCount == 0 {
		return nil
	}

	buf := listScratch.Get()
	defer listScratch.Put(buf)
	buf.Reset()
	scratch := growBuf(buf, int(s.ElemCount)*8)

	n := 0
	implicitPart := 0
	if !s.occupied(0) {
		implicitPart = s.NextOccupied(0)
	}
	for i := 0; i < int(s.ScaledSize); i++ {
		explicitPart := s.Slot(i)
		if explicitPart != 0 {
			scratch[n] = (uint64(implicitPart) << s.InfixSize) | explicitPart
			n++
		}
		if s.runend(i) {
			implicitPart = s.NextOccupied(implicitPart)
		}
	}

	res := make([]uint64, n)
	copy(res, scratch[:n])
	return res
}

// growBuf ensures buf's backing array holds at least n bytes, then views it
// as a []uint64 (n is always a multiple of 8 here).
func growBuf(buf *bytebufferpool.ByteBuffer, n int) []uint64 {
	if n == 0 {
		return nil
	}
	if grow := n - len(buf.B); grow > 0 {
		buf.B = append(buf.B, make([]byte, grow)...)
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&buf.B[0])), n/8)
}

// LoadList bulk-loads a sorted partial-key list into a freshly allocated,
// zeroed store (per spec.md §4.3.10 / load_list_to_store): each run starts
// at the later of its mapped position and the previous run's end, and runs
// that would overflow the last slot are slid left. s must have ElemCount == 0 and all-zero bitmaps/slots;
// callers get this for free from New and from Resize's replacement store.
func (s *Store) LoadList(scale *ScaleTable, list []uint64, totalImplicit uint32) {
	s.ElemCount = uint32(len(list))
	if len(list) == 0 {
		return
	}
	n := len(list)
	l := make([]int, n+1)
	r := make([]int, n+1)
	ind := 0
	oldImplicit := list[0] >> s.InfixSize
	l[0] = scale.MappedPos(oldImplicit, s.SizeGrade, totalImplicit)
	r[0] = l[0]
	for i := 0; i < n; i++ {
		implicitPart := list[i] >> s.InfixSize
		if implicitPart != oldImplicit {
			ind++
			mp := scale.MappedPos(implicitPart, s.SizeGrade, totalImplicit)
			l[ind] = r[ind-1]
			if mp > l[ind] {
				l[ind] = mp
			}
			r[ind] = l[ind]
		}
		r[ind]++
		oldImplicit = implicitPart
	}

	ind++
	l[ind] = int(s.ScaledSize)
	r[ind] = int(s.ScaledSize)
	for i := ind - 1; i >= 0; i-- {
		diff := l[i+1] - r[i]
		if diff > 0 {
			diff = 0
		}
		l[i] += diff
		r[i] += diff
	}

	writeHead := 0
	for i := 0; i < ind; i++ {
		for j := l[i]; j < r[i]; j++ {
			implicitPart := list[writeHead] >> s.InfixSize
			s.setOccupied(int(implicitPart))
			explicitPart := list[writeHead] & bitutil.MaskLow(s.InfixSize)
			writeHead++
			s.SetSlot(j, explicitPart)
		}
		s.setRunend(r[i] - 1)
	}
	s.RefreshCache()
}
