package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyBoxIsMergeIdentity(t *testing.T) {
	b := NewBox(XYZ(-1, -2, -3), XYZ(4, 5, 6))

	assert.Equal(t, b, EmptyBox().Extend(b))
	assert.Equal(t, b, b.Extend(EmptyBox()))
	assert.Equal(t, float32(0), EmptyBox().Area())
}

func TestBoxExtendAndArea(t *testing.T) {
	a := NewBox(XYZ(0, 0, 0), XYZ(1, 1, 1))
	b := NewBox(XYZ(2, 0, 0), XYZ(3, 1, 1))

	merged := a.Extend(b)
	assert.Equal(t, XYZ(0, 0, 0), merged.Min)
	assert.Equal(t, XYZ(3, 1, 1), merged.Max)

	// 3x1x1 box: 2*(3+3+1)
	assert.InDelta(t, 14.0, float64(merged.Area()), 1e-6)
	assert.Equal(t, XYZ(1.5, 0.5, 0.5), merged.Center())
}

func TestBoxOverlaps(t *testing.T) {
	a := NewBox(XYZ(0, 0, 0), XYZ(2, 2, 2))

	assert.True(t, a.Overlaps(NewBox(XYZ(1, 1, 1), XYZ(3, 3, 3))))
	assert.True(t, a.Overlaps(NewBox(XYZ(2, 0, 0), XYZ(3, 1, 1))), "touching faces count as overlap")
	assert.False(t, a.Overlaps(NewBox(XYZ(3, 3, 3), XYZ(4, 4, 4))))
}

func TestMaxDim(t *testing.T) {
	assert.Equal(t, 0, XYZ(3, 1, 2).MaxDim())
	assert.Equal(t, 1, XYZ(1, 3, 2).MaxDim())
	assert.Equal(t, 2, XYZ(1, 2, 3).MaxDim())
	assert.Equal(t, 0, XYZ(1, 1, 1).MaxDim(), "ties resolve to the lowest axis")
}

func TestBoxIsFinite(t *testing.T) {
	assert.True(t, NewBox(XYZ(0, 0, 0), XYZ(1, 1, 1)).IsFinite())

	nan := float32(math.NaN())
	assert.False(t, NewBox(XYZ(nan, 0, 0), XYZ(1, 1, 1)).IsFinite())

	inf := float32(math.Inf(1))
	assert.False(t, NewBox(XYZ(0, 0, 0), XYZ(inf, 1, 1)).IsFinite())
}
