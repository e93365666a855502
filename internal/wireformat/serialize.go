package wireformat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/n3slami/diva-go/internal/bitutil"
	"github.com/n3slami/diva-go/internal/filterengine"
	"github.com/n3slami/diva-go/internal/infixstore"
)

// endMarker terminates the boundary-key stream (spec.md §6.3): no real key
// length can ever equal it, since keys are bounded well below 4 billion
// bytes in any realistic deployment.
const endMarker uint32 = 0xFFFFFFFF

// Serialize writes the header followed by one block per boundary key
// (ascending order): a u32 key length, the key padded out to a multiple of
// 8 bytes, a packed u32 status word, a u32 scaled size, then the store's
// occupieds, runends and slots words. The stream
// ends with a u32 endMarker in place of a key length.
func Serialize(e *filterengine.Engine) ([]byte, error) {
	buf := new(bytes.Buffer)
	h := NewHeader(e.FixedWidth(), e.InfixSize(), e.RngSeed(), e.LoadFactor(), e.LoadFactorAlt())
	buf.Write(h.Bytes())

	enc := bin.NewBorshEncoder(buf)
	var encErr error
	check := func(err error) {
		if err != nil && encErr == nil {
			encErr = err
		}
	}

	e.IterateBoundaries(func(key []byte, val *filterengine.BoundaryValue) bool {
		check(enc.WriteUint32(uint32(len(key)), binary.LittleEndian))
		if _, err := buf.Write(padTo8(key)); err != nil {
			check(err)
		}
		check(writeStore(enc, val))
		return encErr == nil
	})
	if encErr != nil {
		return nil, fmt.Errorf("wireformat: serializing: %w", encErr)
	}
	if err := enc.WriteUint32(endMarker, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("wireformat: writing end marker: %w", err)
	}
	return buf.Bytes(), nil
}

func padTo8(key []byte) []byte {
	pad := (8 - len(key)%8) % 8
	if pad == 0 {
		return key
	}
	out := make([]byte, len(key)+pad)
	copy(out, key)
	return out
}

// packStatus packs ElemCount (low elemCountBitCount bits), SizeGrade (next
// sizeGradeBitCount bits), InvalidBits (next invalidBitsCount bits), and the
// Partial flag (top bit), matching the reference's InfixStore::status
// bit-field layout (spec.md §6.3).
func packStatus(val *filterengine.BoundaryValue) uint32 {
	s := val.Store
	status := uint32(s.ElemCount) & (uint32(1)<<elemCountBitCount - 1)
	status |= uint32(s.SizeGrade) << elemCountBitCount
	status |= uint32(val.InvalidBits) << (elemCountBitCount + sizeGradeBitCount)
	if val.Partial {
		status |= 1 << (elemCountBitCount + sizeGradeBitCount + invalidBitsCount)
	}
	return status
}

func unpackStatus(status uint32) (elemCount uint32, sizeGrade uint8, invalidBits uint8, partial bool) {
	elemCount = status & (uint32(1)<<elemCountBitCount - 1)
	sizeGrade = uint8((status >> elemCountBitCount) & (uint32(1)<<sizeGradeBitCount - 1))
	invalidBits = uint8((status >> (elemCountBitCount + sizeGradeBitCount)) & (uint32(1)<<invalidBitsCount - 1))
	partial = status&(1<<(elemCountBitCount+sizeGradeBitCount+invalidBitsCount)) != 0
	return
}

func writeStore(enc *bin.Encoder, val *filterengine.BoundaryValue) error {
	s := val.Store
	if err := enc.WriteUint32(packStatus(val), binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint32(s.ScaledSize, binary.LittleEndian); err != nil {
		return err
	}
	for _, w := range s.Occupieds {
		if err := enc.WriteUint64(w, binary.LittleEndian); err != nil {
			return err
		}
	}
	for _, w := range s.Runends {
		if err := enc.WriteUint64(w, binary.LittleEndian); err != nil {
			return err
		}
	}
	for _, w := range s.Slots {
		if err := enc.WriteUint64(w, binary.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func readStore(dec *bin.Decoder, infixSize uint) (*filterengine.BoundaryValue, error) {
	status, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	elemCount, sizeGrade, invalidBits, partial := unpackStatus(status)

	scaledSize, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("reading scaled_size: %w", err)
	}

	s := &infixstore.Store{
		Occupieds:   make([]uint64, bitutil.WordsForBits(infixstore.TargetSize)),
		Runends:     make([]uint64, bitutil.WordsForBits(int(scaledSize))),
		Slots:       make([]uint64, bitutil.WordsForBits(int(scaledSize)*int(infixSize))),
		ElemCount:   elemCount,
		SizeGrade:   sizeGrade,
		InvalidBits: invalidBits,
		InfixSize:   infixSize,
		ScaledSize:  scaledSize,
	}
	for i := range s.Occupieds {
		w, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("reading occupieds word %d: %w", i, err)
		}
		s.Occupieds[i] = w
	}
	for i := range s.Runends {
		w, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("reading runends word %d: %w", i, err)
		}
		s.Runends[i] = w
	}
	for i := range s.Slots {
		w, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("reading slots word %d: %w", i, err)
		}
		s.Slots[i] = w
	}
	s.RefreshCache()

	return &filterengine.BoundaryValue{Store: s, Partial: partial, InvalidBits: invalidBits}, nil
}

// Deserialize rebuilds an engine from a Serialize blob, reconstructing each
// boundary key's store verbatim rather than replaying Insert (so elem
// counts and size grades match exactly what was serialized).
func Deserialize(data []byte) (*filterengine.Engine, error) {
	dec := bin.NewBorshDecoder(data)
	h, err := LoadHeader(dec)
	if err != nil {
		return nil, err
	}

	e := filterengine.NewBlank(uint(h.InfixSize), uint64(h.RngSeed), float64(h.LoadFactor), float64(h.LoadFactorAlt), h.FixedWidth)

	for {
		keyLen, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("wireformat: reading key length: %w", err)
		}
		if keyLen == endMarker {
			break
		}
		padded := int(keyLen)
		if rem := padded % 8; rem != 0 {
			padded += 8 - rem
		}
		keyBuf := make([]byte, padded)
		if _, err := dec.Read(keyBuf); err != nil {
			return nil, fmt.Errorf("wireformat: reading key bytes: %w", err)
		}
		key := append([]byte(nil), keyBuf[:keyLen]...)

		val, err := readStore(dec, uint(h.InfixSize))
		if err != nil {
			return nil, fmt.Errorf("wireformat: reading store for key %x: %w", key, err)
		}
		e.PutBoundary(key, val)
	}
	return e, nil
}
