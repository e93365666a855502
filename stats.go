package diva

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/n3slami/diva-go/internal/filterengine"
)

// Stats summarizes a filter's memory footprint and population, the values
// backing size() in spec.md §6.1 plus a breakdown useful for tuning
// infix_size/load_factor (spec.md §6.2).
type Stats struct {
	Boundaries uint64 // number of boundary keys (intervals)
	Elements   uint64 // total partial keys held across every store
	Bytes      uint64 // total memory footprint, in bytes
}

// String renders Stats with human-readable byte counts, matching the
// reference CLI tools' habit of reporting sizes as "12 MB" rather than raw
// byte counts.
func (s Stats) String() string {
	return fmt.Sprintf("%d boundaries, %d elements, %s", s.Boundaries, s.Elements, humanize.Bytes(s.Bytes))
}

// Size reports the filter's total memory footprint in bytes (spec.md §6.1
// size()).
func (f *Filter) Size() uint64 { return f.Stats().Bytes }

// Stats computes a full Stats snapshot by walking every boundary's store.
func (f *Filter) Stats() Stats {
	var st Stats
	f.e.IterateBoundaries(func(key []byte, val *filterengine.BoundaryValue) bool {
		st.Boundaries++
		st.Elements += uint64(val.Store.ElemCount)
		st.Bytes += uint64(len(key))
		st.Bytes += 8 * uint64(len(val.Store.Occupieds)+len(val.Store.Runends)+len(val.Store.Slots))
		return true
	})
	return st
}
