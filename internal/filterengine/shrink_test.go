package filterengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n3slami/diva-go/internal/infixstore"
)

// TestGrowShrinkGradeRoundTrip exercises growGrade/shrinkGrade/resize
// directly: forcing a store up then back down a size grade must preserve
// every partial key it held.
func TestGrowShrinkGradeRoundTrip(t *testing.T) {
	scale := infixstore.NewScaleTable(0.95, 0.95)
	const infixSize = 8
	const totalImplicit = 64

	store := infixstore.New(scale, 1, infixSize)
	list := []uint64{0x0102, 0x0305, 0x0709, 0x0b0d, 0x1113}
	store.LoadList(scale, list, totalImplicit)
	require.Equal(t, uint32(len(list)), store.ElemCount)

	before := store.GetInfixList()

	grownGrade := store.SizeGrade
	growGrade(store, scale, totalImplicit)
	require.Greater(t, store.SizeGrade, grownGrade)
	require.ElementsMatch(t, before, store.GetInfixList())

	resize(store, scale, false, totalImplicit)
	require.Equal(t, grownGrade, store.SizeGrade)
	require.ElementsMatch(t, before, store.GetInfixList())

	resize(store, scale, true, totalImplicit)
	shrinkGrade(store, scale, totalImplicit)
	require.Equal(t, grownGrade, store.SizeGrade)
	require.ElementsMatch(t, before, store.GetInfixList())
}
