package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/embree/bvh"
	"github.com/jamestiotio/embree/types"
)

func TestGenerateIsReproducible(t *testing.T) {
	a := Generate(200, 8, 42)
	b := Generate(200, 8, 42)
	assert.Equal(t, a, b)

	c := Generate(200, 8, 43)
	assert.NotEqual(t, a, c)
}

func TestForestOneRefPerGeometry(t *testing.T) {
	items := Generate(100, 5, 1)
	forest := BuildForest(items, 8)

	refs := forest.Refs()
	require.Len(t, refs, 5)

	seen := map[uint32]bool{}
	for _, ref := range refs {
		assert.False(t, seen[ref.GeomID], "geometry %d appears twice", ref.GeomID)
		seen[ref.GeomID] = true
		assert.False(t, ref.IsLeaf(), "multi-item geometries produce composite refs")
	}
}

func TestForestSingleItemGeometryIsLeaf(t *testing.T) {
	items := []Item{
		{Bounds: types.NewBox(types.XYZ(0, 0, 0), types.XYZ(1, 1, 1)), GeomID: 3, PrimID: 77},
	}
	forest := BuildForest(items, 8)

	refs := forest.Refs()
	require.Len(t, refs, 1)
	assert.True(t, refs[0].IsLeaf())
	assert.Equal(t, uint32(77), refs[0].PrimID)
}

func TestOpenerContract(t *testing.T) {
	items := Generate(300, 4, 7)
	forest := BuildForest(items, 8)
	opener := forest.Opener()

	var walk func(ref bvh.PrimRef)
	walk = func(ref bvh.PrimRef) {
		if ref.IsLeaf() {
			return
		}
		var out [bvh.MaxOpenedChildNodes]bvh.PrimRef
		n := opener.Open(ref, &out)
		require.GreaterOrEqual(t, n, 1)
		require.LessOrEqual(t, n, bvh.MaxOpenedChildNodes)
		require.EqualValues(t, ref.Children, n)

		// Children bounds combine to exactly the composite's bounds.
		union := types.EmptyBox()
		for j := 0; j < n; j++ {
			union = union.Extend(out[j].Bounds)
			assert.Equal(t, ref.GeomID, out[j].GeomID)
		}
		assert.Equal(t, ref.Bounds, union)

		// Deterministic: a second call yields the same expansion.
		var out2 [bvh.MaxOpenedChildNodes]bvh.PrimRef
		n2 := opener.Open(ref, &out2)
		require.Equal(t, n, n2)
		assert.Equal(t, out, out2)

		for j := 0; j < n; j++ {
			walk(out[j])
		}
	}
	for _, ref := range forest.Refs() {
		walk(ref)
	}
}

func TestForestFanoutClamped(t *testing.T) {
	items := Generate(64, 1, 2)
	forest := BuildForest(items, 100)

	for _, n := range forest.nodes {
		assert.LessOrEqual(t, len(n.children), bvh.MaxOpenedChildNodes)
	}
}

func TestForestCoversAllItems(t *testing.T) {
	items := Generate(500, 9, 11)
	forest := BuildForest(items, 8)
	opener := forest.Opener()

	got := map[uint32]int{}
	var walk func(ref bvh.PrimRef)
	walk = func(ref bvh.PrimRef) {
		if ref.IsLeaf() {
			got[ref.PrimID]++
			return
		}
		var out [bvh.MaxOpenedChildNodes]bvh.PrimRef
		n := opener.Open(ref, &out)
		for j := 0; j < n; j++ {
			walk(out[j])
		}
	}
	for _, ref := range forest.Refs() {
		walk(ref)
	}

	require.Len(t, got, len(items))
	for _, item := range items {
		assert.Equal(t, 1, got[item.PrimID], "item %d", item.PrimID)
	}
}
