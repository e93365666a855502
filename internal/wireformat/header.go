// Package wireformat implements the serialize/deserialize wire format of
// spec.md §6.3: a fixed metadata header (modeled on
// compactindexsized.Header's Bytes()/Load() pair) followed by one entry per
// boundary key, terminated by a 0xFFFFFFFF sentinel key length.
package wireformat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/n3slami/diva-go/internal/infixstore"
)

// Header is the fixed-size metadata block spec.md §6.3 places at the start
// of every serialized filter: the compile-time constants (so a mismatched
// build refuses to load a blob it cannot interpret correctly) plus the
// construction-time parameters needed to rebuild the engine's ScaleTable.
type Header struct {
	FixedWidth         bool
	TargetSize         uint32
	BaseImplicitSize   uint32
	ScaleShift         uint32
	ScaleImplicitShift uint32
	SizeScalarCount    uint32
	ShrinkGrowSep      uint32
	LoadFactor         float32
	LoadFactorAlt      float32
	InfixSize          uint32
	RngSeed            uint32
	SizeGradeBitCount  uint32
	ElemCountBitCount  uint32
}

// sizeGradeBitCount, elemCountBitCount, and invalidBitsCount are the bit
// widths the packed per-store status word uses (spec.md §6.3): size_grade,
// elem_count, and invalid_bits respectively; the partial-key flag takes the
// remaining top bit.
const (
	sizeGradeBitCount = 8
	elemCountBitCount = 20
	invalidBitsCount  = 3
)

// NewHeader builds a Header reflecting the engine's construction-time
// parameters and the package's compile-time constants.
func NewHeader(fixedWidth bool, infixSize uint, rngSeed uint64, loadFactor, loadFactorAlt float64) Header {
	return Header{
		FixedWidth:         fixedWidth,
		TargetSize:         infixstore.TargetSize,
		BaseImplicitSize:   infixstore.BaseImplicitSize,
		ScaleShift:         infixstore.ScaleShift,
		ScaleImplicitShift: infixstore.ScaleImplicitShift,
		SizeScalarCount:    infixstore.SizeScalarCount,
		ShrinkGrowSep:      infixstore.ShrinkGrowSep,
		LoadFactor:         float32(loadFactor),
		LoadFactorAlt:      float32(loadFactorAlt),
		InfixSize:          uint32(infixSize),
		RngSeed:            uint32(rngSeed),
		SizeGradeBitCount:  sizeGradeBitCount,
		ElemCountBitCount:  elemCountBitCount,
	}
}

// Bytes serializes the header, panicking only on an encoder error (the
// fixed-width fields here never fail to encode).
func (h Header) Bytes() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	version := byte(0)
	if h.FixedWidth {
		version = 1
	}
	must(buf.WriteByte(version))
	must(enc.WriteUint32(h.TargetSize, binary.LittleEndian))
	must(enc.WriteUint32(h.BaseImplicitSize, binary.LittleEndian))
	must(enc.WriteUint32(h.ScaleShift, binary.LittleEndian))
	must(enc.WriteUint32(h.ScaleImplicitShift, binary.LittleEndian))
	must(enc.WriteUint32(h.SizeScalarCount, binary.LittleEndian))
	must(enc.WriteUint32(h.ShrinkGrowSep, binary.LittleEndian))
	must(enc.WriteFloat32(h.LoadFactor, binary.LittleEndian))
	must(enc.WriteFloat32(h.LoadFactorAlt, binary.LittleEndian))
	must(enc.WriteUint32(h.InfixSize, binary.LittleEndian))
	must(enc.WriteUint32(h.RngSeed, binary.LittleEndian))
	must(enc.WriteUint32(h.SizeGradeBitCount, binary.LittleEndian))
	must(enc.WriteUint32(h.ElemCountBitCount, binary.LittleEndian))
	return buf.Bytes()
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("wireformat: encoding a fixed-width field failed: %v", err))
	}
}

// LoadHeader parses and validates a Header from the front of a decoder,
// matching DeserializeMetadata's compile-time-constant assertions: a
// mismatch means this blob was written by an incompatible build.
func LoadHeader(dec *bin.Decoder) (Header, error) {
	var h Header
	version, err := dec.ReadByte()
	if err != nil {
		return h, fmt.Errorf("wireformat: reading version: %w", err)
	}
	h.FixedWidth = version == 1

	readU32 := func(name string, want uint32, isParam bool) (uint32, error) {
		got, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return 0, fmt.Errorf("wireformat: reading %s: %w", name, err)
		}
		if !isParam && got != want {
			return 0, fmt.Errorf("wireformat: mismatched %s: got %d, want %d", name, got, want)
		}
		return got, nil
	}

	if h.TargetSize, err = readU32("target_size", infixstore.TargetSize, false); err != nil {
		return h, err
	}
	if h.BaseImplicitSize, err = readU32("base_implicit_size", infixstore.BaseImplicitSize, false); err != nil {
		return h, err
	}
	if h.ScaleShift, err = readU32("scale_shift", infixstore.ScaleShift, false); err != nil {
		return h, err
	}
	if h.ScaleImplicitShift, err = readU32("scale_implicit_shift", infixstore.ScaleImplicitShift, false); err != nil {
		return h, err
	}
	if h.SizeScalarCount, err = readU32("size_scalar_count", infixstore.SizeScalarCount, false); err != nil {
		return h, err
	}
	if h.ShrinkGrowSep, err = readU32("shrink_grow_sep", infixstore.ShrinkGrowSep, false); err != nil {
		return h, err
	}
	loadFactor, err := dec.ReadFloat32(binary.LittleEndian)
	if err != nil {
		return h, fmt.Errorf("wireformat: reading load_factor: %w", err)
	}
	h.LoadFactor = loadFactor
	loadFactorAlt, err := dec.ReadFloat32(binary.LittleEndian)
	if err != nil {
		return h, fmt.Errorf("wireformat: reading load_factor_alt: %w", err)
	}
	h.LoadFactorAlt = loadFactorAlt
	if h.InfixSize, err = readU32("infix_size", 0, true); err != nil {
		return h, err
	}
	if h.RngSeed, err = readU32("rng_seed", 0, true); err != nil {
		return h, err
	}
	if h.SizeGradeBitCount, err = readU32("size_grade_bit_count", sizeGradeBitCount, false); err != nil {
		return h, err
	}
	if h.ElemCountBitCount, err = readU32("elem_count_bit_count", elemCountBitCount, false); err != nil {
		return h, err
	}
	return h, nil
}
