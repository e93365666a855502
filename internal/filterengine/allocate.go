package filterengine

import "github.com/n3slami/diva-go/internal/infixstore"

// allocateStoreWithList ports AllocateInfixStoreWithList: pick the smallest
// size grade that fits list, then bulk-load it (spec.md §4.3.10).
func allocateStoreWithList(scale *infixstore.ScaleTable, infixSize uint, list []uint64, totalImplicit uint32) *BoundaryValue {
	grade := scale.GradeForCapacity(uint32(len(list)))
	store := infixstore.New(scale, grade, infixSize)
	store.LoadList(scale, list, totalImplicit)
	return &BoundaryValue{Store: store}
}
