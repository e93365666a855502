// Package interval computes the (shared, ignore, implicit) descriptor that
// relates two adjacent boundary keys, per spec.md §3 "Interval descriptor"
// and §4.2. The algorithm is reproduced bit-for-bit from the reference
// implementation's GetSharedIgnoreImplicitLengths (see
// _examples/original_source/include/diva.hpp), including its reliance on
// InfiniteBytes.WordAt's zero-padding past the end of a string (spec.md §9
// Open Questions).
package interval

import (
	"math/bits"

	"github.com/n3slami/diva-go/internal/bitutil"
)

// BaseImplicitSize is log2(T) for T = infix_store_target_size = 1024.
const BaseImplicitSize = 10

// Descriptor is the (S, I, L) triple for a pair of adjacent boundary keys.
type Descriptor struct {
	Shared   int // S
	Ignore   int // I
	Implicit uint // L, the implicit-part bit width for this interval (10 or 11)
}

func bitmask64(nbits uint) uint64 {
	if nbits == 0 {
		return 0
	}
	if nbits >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<nbits - 1
}

// Compute returns the (S, I, L) descriptor for adjacent boundary keys p < n.
func Compute(p, n bitutil.InfiniteBytes) Descriptor {
	var share uint32
	ind := 0
	for {
		r1 := p.WordAt(ind * 8)
		r2 := n.WordAt(ind * 8)
		delta := uint32(bits.LeadingZeros64(r1 ^ r2))
		share += delta
		ind++
		if delta != 64 {
			break
		}
	}
	ind--

	var ignore uint32
	for {
		r1 := p.WordAt(ind * 8)
		r2 := n.WordAt(ind * 8)
		var offset uint32
		if uint32(ind) > share/64 {
			offset = 0
		} else {
			offset = share%64 + 1
		}
		masked := (^r1 | r2) & bitmask64(uint(64-offset))
		delta := uint32(bits.LeadingZeros64(masked))
		ignore += delta - offset
		ind++
		if delta != 64 {
			break
		}
	}

	implicitSize := uint(BaseImplicitSize)
	a := p.BitsAt(int(share+ignore)+1, BaseImplicitSize-1)
	b := (uint64(1) << (BaseImplicitSize - 1)) | n.BitsAt(int(share+ignore)+1, BaseImplicitSize-1)
	if 2*(b-a+1) < (uint64(1) << BaseImplicitSize) {
		implicitSize++
	}

	return Descriptor{Shared: int(share), Ignore: int(ignore), Implicit: implicitSize}
}

// ExtractPartial builds a 64-bit partial key: msbBit (0 or 1) as the top
// bit, followed by the (l-1+infixSize) bits of k starting at bit
// s+i+1, per spec.md §4.2.
func ExtractPartial(k bitutil.InfiniteBytes, s, i int, l uint, infixSize uint, msbBit uint64) uint64 {
	width := l - 1 + infixSize
	rest := k.BitsAt(s+i+1, width)
	return (msbBit << width) | rest
}

// TotalImplicit returns implicit(N) - implicit(P) + 1 for a descriptor,
// given the 9-bit implicit projections already folded into Descriptor via
// Compute; callers that need the raw total_implicit for a store pass it
// through explicitly since it depends on the actual P/N implicit values,
// not just (S, I, L). This helper exists for the common case where callers
// already have implicitP and implicitN in hand.
func TotalImplicit(implicitP, implicitN uint64) uint64 {
	return implicitN - implicitP + 1
}
