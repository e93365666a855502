// Package filterengine implements the ordered trie of boundary keys and the
// Insert/Delete/PointQuery/RangeQuery/BulkLoad operations that sit on top of
// each interval's infixstore.Store, per spec.md §4.4 and §4.5.
//
// Design Notes rendering (spec.md §9 "Virtual dispatch over the boundary
// map"): a single boundaryMap interface is implemented by two concrete
// adapters, one wrapping boundary.Index (variable-width, byte-slice keys)
// and one wrapping boundary.FixedIndex (fixed 8-byte keys), so the engine
// algorithm itself is written once and shared by both constructors.
package filterengine

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/n3slami/diva-go/internal/infixstore"
	"github.com/n3slami/diva-go/internal/metrics"
)

// BoundaryValue is the payload the engine associates with each boundary key:
// the interval's partial-key store, plus the "partial boundary key" flag and
// invalid-bit count spec.md §4.4.2 uses when a split truncates a key to its
// shortest distinguishing prefix.
type BoundaryValue struct {
	Store       *infixstore.Store
	Partial     bool
	InvalidBits uint8
}

// Engine is one DIVA filter instance: an ordered map from boundary keys to
// BoundaryValue, a shared infixstore.ScaleTable, and the construction-time
// parameters (infix width, RNG seed) that govern every interval's store.
type Engine struct {
	boundaries boundaryMap
	scale      *infixstore.ScaleTable
	infixSize  uint

	rngSeed uint64
	rngCtr  uint64

	loadFactor    float64
	loadFactorAlt float64

	fixedWidth   bool
	debugAsserts bool

	// Metrics is nil by default; SetMetrics opts an engine into reporting
	// split and merge events. The engine does not update the collector's
	// store-resize counters or population gauges.
	Metrics *metrics.Collector

	// supremumLen is the length of the all-0xFF sentinel boundary key that
	// bounds the key universe from above. The reference only ever installs
	// such a sentinel as part of BulkLoad(Stream); for an engine built
	// purely through incremental Insert calls (spec.md §9 Open Questions:
	// "new does not insert a sentinel"), ensureSupremum grows it lazily so
	// every Insert/Delete/Query has a next-boundary to straddle against.
	supremumLen int
}

// rootKeyLen is the width (in bytes) of the all-zero sentinel boundary key
// every engine starts with (spec.md §4.1's implicit -infinity boundary).
const rootKeyLen = 8

// New builds an empty variable-width engine, matching the reference
// constructor Diva(infix_size, rng_seed, load_factor) before BulkLoad runs.
func New(infixSize uint, rngSeed uint64, loadFactor float64) *Engine {
	return newEngine(infixSize, rngSeed, loadFactor, loadFactor, false)
}

// NewFixedWidth builds an empty engine specialized for fixed 8-byte (e.g.
// uint64) keys, using boundary.FixedIndex instead of boundary.Index.
func NewFixedWidth(infixSize uint, rngSeed uint64, loadFactor float64) *Engine {
	return newEngine(infixSize, rngSeed, loadFactor, loadFactor, true)
}

// NewVariableWidth is an explicit alias for New, named to mirror the
// reference's new_variable_width / new_fixed_width pairing (spec.md §6.1).
func NewVariableWidth(infixSize uint, rngSeed uint64, loadFactor float64) *Engine {
	return New(infixSize, rngSeed, loadFactor)
}

func newEngine(infixSize uint, rngSeed uint64, loadFactor, loadFactorAlt float64, fixedWidth bool) *Engine {
	e := &Engine{
		scale:         infixstore.NewScaleTable(loadFactor, loadFactorAlt),
		infixSize:     infixSize,
		rngSeed:       rngSeed,
		loadFactor:    loadFactor,
		loadFactorAlt: loadFactorAlt,
		fixedWidth:    fixedWidth,
	}
	if fixedWidth {
		e.boundaries = newFixedMap[*BoundaryValue]()
	} else {
		e.boundaries = newByteMap[*BoundaryValue]()
	}
	rootKey := make([]byte, rootKeyLen)
	e.addRootBoundary(rootKey)
	e.supremumLen = rootKeyLen
	e.addSupremumBoundary(bytes.Repeat([]byte{0xFF}, rootKeyLen))
	return e
}

func (e *Engine) addSupremumBoundary(key []byte) {
	store := infixstore.New(e.scale, infixstore.ShrinkGrowSep, e.infixSize)
	e.boundaries.Put(key, &BoundaryValue{Store: store})
}

// ensureSupremum grows the supremum sentinel so it strictly exceeds any key
// of length keyLen, carrying over whatever store the previous sentinel had
// accumulated (it owns the still-open last interval).
func (e *Engine) ensureSupremum(keyLen int) {
	need := keyLen + 1
	if need <= e.supremumLen {
		return
	}
	oldSup := bytes.Repeat([]byte{0xFF}, e.supremumLen)
	i := e.boundaries.Seek(oldSup)
	_, val, ok := e.boundaries.PeekAt(i)
	newSup := bytes.Repeat([]byte{0xFF}, need)
	if ok {
		e.boundaries.Del(oldSup)
		e.boundaries.Put(newSup, val)
	} else {
		e.addSupremumBoundary(newSup)
	}
	e.supremumLen = need
}

// addRootBoundary installs the store.ScaledSize at the shrink/grow-neutral
// grade used by AddTreeKey in the reference, for the initial sentinel
// boundary key.
func (e *Engine) addRootBoundary(key []byte) {
	store := infixstore.New(e.scale, infixstore.ShrinkGrowSep, e.infixSize)
	e.boundaries.Put(key, &BoundaryValue{Store: store})
}

// coinFlip deterministically replaces the reference's stateful
// std::mt19937_64 coin toss with a seeded xxhash stream: hashing (seed,
// counter) gives the same "one in infix_store_target_size" odds without
// carrying mutable PRNG state across Insert calls, and reproduces bit-for-
// bit given the same seed and call sequence (spec.md §6.2 "deterministic
// construction").
func (e *Engine) coinFlip() bool {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(e.rngSeed >> (8 * i))
		buf[8+i] = byte(e.rngCtr >> (8 * i))
	}
	e.rngCtr++
	return xxhash.Sum64(buf[:])%infixstore.TargetSize == 0
}

func (e *Engine) assertf(cond bool, format string, args ...any) {
	if !e.debugAsserts || cond {
		return
	}
	panic(fmt.Sprintf("filterengine: invariant violated: "+format, args...))
}

// SetDebugAsserts toggles the debugAsserts-gated invariant checks (spec.md
// §7); release builds leave this off.
func (e *Engine) SetDebugAsserts(on bool) { e.debugAsserts = on }

// SetMetrics opts the engine into reporting split and merge events through
// c. Pass nil to disable.
func (e *Engine) SetMetrics(c *metrics.Collector) { e.Metrics = c }

// InfixSize reports the engine's configured explicit-part width.
func (e *Engine) InfixSize() uint { return e.infixSize }

// FixedWidth reports whether this engine is the fixed-8-byte-key variant.
func (e *Engine) FixedWidth() bool { return e.fixedWidth }

// Scale exposes the shared scale table, used by wireformat for header
// round-trip checks.
func (e *Engine) Scale() *infixstore.ScaleTable { return e.scale }

// RngSeed, LoadFactor, and LoadFactorAlt expose construction parameters for
// wireformat's header round-trip (spec.md §6.3).
func (e *Engine) RngSeed() uint64        { return e.rngSeed }
func (e *Engine) LoadFactor() float64    { return e.loadFactor }
func (e *Engine) LoadFactorAlt() float64 { return e.loadFactorAlt }

// IterateBoundaries walks every boundary key in ascending order, for
// wireformat.Serialize (spec.md §6.3) and diagnostics.
func (e *Engine) IterateBoundaries(fn func(key []byte, val *BoundaryValue) bool) {
	e.boundaries.IterAll(fn)
}

// PutBoundary installs a (key, value) pair directly, bypassing Insert's
// coin-flip dispatch; used by wireformat.Deserialize to reconstruct an
// engine's boundary map entry by entry.
func (e *Engine) PutBoundary(key []byte, val *BoundaryValue) {
	e.boundaries.Put(key, val)
	if len(key) >= e.supremumLen {
		e.supremumLen = len(key) + 1
	}
}

// NewBlank builds an engine with no boundary keys at all (not even the
// root/supremum sentinels newEngine installs), for wireformat.Deserialize to
// repopulate from a serialized stream verbatim.
func NewBlank(infixSize uint, rngSeed uint64, loadFactor, loadFactorAlt float64, fixedWidth bool) *Engine {
	e := &Engine{
		scale:         infixstore.NewScaleTable(loadFactor, loadFactorAlt),
		infixSize:     infixSize,
		rngSeed:       rngSeed,
		loadFactor:    loadFactor,
		loadFactorAlt: loadFactorAlt,
		fixedWidth:    fixedWidth,
	}
	if fixedWidth {
		e.boundaries = newFixedMap[*BoundaryValue]()
	} else {
		e.boundaries = newByteMap[*BoundaryValue]()
	}
	return e
}

func lowbit(v uint64) uint64      { return v & (-v) }
func withoutLowbit(v uint64) uint64 { return v - lowbit(v) }

func bitmask64(n uint) uint64 {
	if n == 0 {
		return 0
	}
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<n - 1
}

// isPrefixOf mirrors InfiniteByteString::IsPrefixOf: prefix's bytes (besides
// the last) must equal other's, and the last byte must match up to
// bitsToIgnore low bits (spec.md §4.4.2 partial boundary keys).
func isPrefixOf(prefix, other []byte, bitsToIgnore uint8) bool {
	if len(prefix) == 0 || len(prefix) > len(other) {
		return len(prefix) == 0
	}
	n := len(prefix)
	for i := 0; i < n-1; i++ {
		if prefix[i] != other[i] {
			return false
		}
	}
	mask := byte(bitmask64(uint(bitsToIgnore)))
	return (prefix[n-1] | mask) == (other[n-1] | mask)
}
