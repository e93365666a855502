package filterengine

import (
	"k8s.io/klog/v2"

	"github.com/n3slami/diva-go/internal/infixstore"
)

// ShrinkInfixSize ports the reference's engine-wide ShrinkInfixSize
// (spec.md §4.4.6): every interval's store gets its explicit-part width
// reduced to newSize, and the engine's own infixSize field follows. This
// is a one-way, monotone operation — newSize must not exceed the current
// infix size.
func (e *Engine) ShrinkInfixSize(newSize uint) {
	e.assertf(newSize <= e.infixSize, "ShrinkInfixSize: new size %d exceeds current %d", newSize, e.infixSize)
	klog.V(2).Infof("filterengine: shrinking infix size %d -> %d across %d boundaries", e.infixSize, newSize, e.boundaries.Len())
	e.boundaries.IterAll(func(_ []byte, val *BoundaryValue) bool {
		val.Store.ShrinkInfixSize(newSize)
		return true
	})
	e.infixSize = newSize
}

// growGrade and shrinkGrade expose infixstore.Store.Resize's two
// directions as named operations, mirroring the reference's separate
// "resize up" / "resize down" call sites (spec.md §4.3.6, §4.3.3) for
// callers (such as shrink_test.go) that want to force a regrade
// outside the usual insert/delete auto-resize path.
func growGrade(store *infixstore.Store, scale *infixstore.ScaleTable, totalImplicit uint32) {
	store.Resize(scale, true, totalImplicit)
}

func shrinkGrade(store *infixstore.Store, scale *infixstore.ScaleTable, totalImplicit uint32) {
	store.Resize(scale, false, totalImplicit)
}

// resize dispatches to growGrade or shrinkGrade based on grow.
func resize(store *infixstore.Store, scale *infixstore.ScaleTable, grow bool, totalImplicit uint32) {
	if grow {
		growGrade(store, scale, totalImplicit)
	} else {
		shrinkGrade(store, scale, totalImplicit)
	}
}
