package filterengine

import "bytes"

// checkInvariants walks every interval and checks P8 (spec.md §8): each
// store's own popcount/cache invariants (infixstore.Store.Validate), plus
// the boundary-key ordering the engine itself is responsible for. Gated by
// debugAsserts; callers pay nothing for this in release builds.
func (e *Engine) checkInvariants() {
	if !e.debugAsserts {
		return
	}

	var prevKey []byte
	first := true
	e.boundaries.IterAll(func(key []byte, val *BoundaryValue) bool {
		if !first {
			e.assertf(bytes.Compare(prevKey, key) < 0, "boundary keys out of order: %x then %x", prevKey, key)
		}
		first = false
		prevKey = append(prevKey[:0:0], key...)

		err := val.Store.Validate()
		e.assertf(err == nil, "interval at %x: %v", key, err)
		return true
	})
}
