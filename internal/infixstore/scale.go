package infixstore

// Scale-factor tables, ported from the reference SetupScaleFactors: a
// precomputed table of slot-count multipliers per size grade (§3 "Infix
// Store layout", §6.2). Built once per engine (load_factor is a
// construction-time parameter), not per store.
type ScaleTable struct {
	sizeScalars       [SizeScalarCount]uint64
	scaledSizes       [SizeScalarCount]uint32
	exceptionScaled   uint32
	implicitScalars   [TargetSize/2 + 1]uint64
}

const (
	// TargetSize is T, the nominal partial-keys-per-interval design target.
	TargetSize = 1024
	// BaseImplicitSize is log2(T).
	BaseImplicitSize = 10
	// ScaleShift is the fixed-point shift for size_scalar.
	ScaleShift = 15
	// ScaleImplicitShift is the fixed-point shift for implicit_scalar.
	ScaleImplicitShift = 15
	// SizeScalarCount is the number of precomputed grades.
	SizeScalarCount = 500
	// ShrinkGrowSep is the neutral grade index (scalar == 1.0).
	ShrinkGrowSep = 55
)

// NewScaleTable builds the size/implicit scalar tables for a given
// load_factor (default 0.95 per §6.2). loadFactorAlt is the factor used for
// shrink grades; the reference uses the same load_factor for both, so we do
// too unless a caller supplies a distinct one.
func NewScaleTable(loadFactor, loadFactorAlt float64) *ScaleTable {
	t := &ScaleTable{}
	pw := 1.0
	for i := ShrinkGrowSep; i >= 0; i-- {
		t.sizeScalars[i] = uint64(pw * float64(uint64(1)<<ScaleShift))
		t.scaledSizes[i] = uint32(uint64(TargetSize) * t.sizeScalars[i] >> ScaleShift)
		pw *= loadFactorAlt
	}
	t.exceptionScaled = uint32(float64(t.scaledSizes[0]) * loadFactorAlt)
	pw = 1.0 / loadFactor
	for i := ShrinkGrowSep + 1; i < SizeScalarCount; i++ {
		t.sizeScalars[i] = uint64(pw * float64(uint64(1)<<ScaleShift))
		t.scaledSizes[i] = uint32(uint64(TargetSize) * t.sizeScalars[i] >> ScaleShift)
		pw /= loadFactor
	}
	for i := 0; i < TargetSize/2; i++ {
		ratio := float64(TargetSize) / (float64(i) + float64(TargetSize)/2)
		t.implicitScalars[i] = uint64(ratio * float64(uint64(1)<<ScaleImplicitShift))
	}
	t.implicitScalars[TargetSize/2] = uint64(1) << ScaleImplicitShift
	return t
}

// ScaledSize returns the slot count for a given size grade.
func (t *ScaleTable) ScaledSize(grade uint8) uint32 {
	return t.scaledSizes[grade]
}

// ExceptionScaledSize is the threshold scaled size used in place of
// scaledSizes[grade-1] when grade==0.
func (t *ScaleTable) ExceptionScaledSize() uint32 {
	return t.exceptionScaled
}

// implicitScalar returns implicit_scalars_[total_implicit - T/2], clamped
// defensively to the table's bounds (the reference table has T/2+1 entries;
// total_implicit's documented range [T/2, T+1] can graze the top entry by
// one, which the reference also does not special-case).
func (t *ScaleTable) implicitScalar(totalImplicit uint32) uint64 {
	idx := int(totalImplicit) - TargetSize/2
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.implicitScalars) {
		idx = len(t.implicitScalars) - 1
	}
	return t.implicitScalars[idx]
}

// MappedPos computes map(implicit) = min(scaledSize-1, (implicit *
// sizeScalar * implicitScalar) >> (ScaleShift+ScaleImplicitShift)).
func (t *ScaleTable) MappedPos(implicitPart uint64, grade uint8, totalImplicit uint32) int {
	scalar := t.implicitScalar(totalImplicit)
	res := (implicitPart * t.sizeScalars[grade] * scalar) >> (ScaleShift + ScaleImplicitShift)
	scaled := uint64(t.scaledSizes[grade])
	if res > scaled-1 {
		res = scaled - 1
	}
	return int(res)
}

// GradeForCapacity returns the smallest size grade whose scaled size is >=
// n, mirroring the reference's std::lower_bound over scaled_sizes_ used by
// allocate_store_with_list (§4.4.1 step 6).
func (t *ScaleTable) GradeForCapacity(n uint32) uint8 {
	for g := 0; g < SizeScalarCount; g++ {
		if t.scaledSizes[g] >= n {
			return uint8(g)
		}
	}
	return SizeScalarCount - 1
}
