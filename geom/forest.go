// Package geom supplies the builder with primitive references: it groups
// raw primitives into per-geometry cluster trees whose interior nodes become
// openable composite references. The builder never sees anything below the
// reference level.
package geom

import (
	"sort"

	"github.com/jamestiotio/embree/bvh"
	"github.com/jamestiotio/embree/types"
)

// Item is one indivisible primitive handed in by the caller.
type Item struct {
	Bounds types.Box
	GeomID uint32
	PrimID uint32
}

type node struct {
	bounds   types.Box
	geomID   uint32
	children []int32
	item     int32 // index into items for leaves, -1 otherwise
}

// Forest holds one cluster tree per geometry. Interior nodes carry at most
// the configured fanout of children, capped by what a single opener call may
// produce.
type Forest struct {
	items []Item
	nodes []node
	tops  []int32
}

// BuildForest groups items by geometry identifier and builds a cluster tree
// per geometry by recursive longest-axis median splitting. fanout is clamped
// to [2, bvh.MaxOpenedChildNodes].
func BuildForest(items []Item, fanout int) *Forest {
	if fanout < 2 {
		fanout = 2
	}
	if fanout > bvh.MaxOpenedChildNodes {
		fanout = bvh.MaxOpenedChildNodes
	}

	f := &Forest{items: items}

	var order []uint32
	byGeom := make(map[uint32][]int32)
	for i, item := range items {
		if _, ok := byGeom[item.GeomID]; !ok {
			order = append(order, item.GeomID)
		}
		byGeom[item.GeomID] = append(byGeom[item.GeomID], int32(i))
	}

	for _, geomID := range order {
		f.tops = append(f.tops, f.build(byGeom[geomID], fanout))
	}
	return f
}

func (f *Forest) build(idx []int32, fanout int) int32 {
	if len(idx) == 1 {
		item := f.items[idx[0]]
		f.nodes = append(f.nodes, node{
			bounds: item.Bounds,
			geomID: item.GeomID,
			item:   idx[0],
		})
		return int32(len(f.nodes) - 1)
	}

	groups := f.splitGroups(idx, fanout)
	n := node{
		bounds: types.EmptyBox(),
		geomID: f.items[idx[0]].GeomID,
		item:   -1,
	}
	for _, g := range groups {
		child := f.build(g, fanout)
		n.children = append(n.children, child)
		n.bounds = n.bounds.Extend(f.nodes[child].bounds)
	}
	f.nodes = append(f.nodes, n)
	return int32(len(f.nodes) - 1)
}

// splitGroups divides idx into at most fanout groups by repeatedly halving
// the largest group at the median of its longest bounding-box axis.
func (f *Forest) splitGroups(idx []int32, fanout int) [][]int32 {
	groups := [][]int32{idx}
	for len(groups) < fanout {
		gi := -1
		for i, g := range groups {
			if len(g) > 1 && (gi < 0 || len(g) > len(groups[gi])) {
				gi = i
			}
		}
		if gi < 0 {
			break
		}

		g := groups[gi]
		bounds := types.EmptyBox()
		for _, i := range g {
			bounds = bounds.Extend(f.items[i].Bounds)
		}
		dim := bounds.Size().MaxDim()
		sort.Slice(g, func(a, b int) bool {
			return f.items[g[a]].Bounds.Center()[dim] < f.items[g[b]].Bounds.Center()[dim]
		})

		mid := len(g) / 2
		groups[gi] = g[:mid]
		groups = append(groups, g[mid:])
	}
	return groups
}

func (f *Forest) refOf(id int32) bvh.PrimRef {
	n := f.nodes[id]
	if n.item >= 0 {
		return bvh.PrimRef{
			Bounds: n.bounds,
			GeomID: n.geomID,
			PrimID: f.items[n.item].PrimID,
		}
	}
	return bvh.PrimRef{
		Bounds:   n.bounds,
		GeomID:   n.geomID,
		PrimID:   uint32(id),
		Children: uint8(len(n.children)),
	}
}

// Refs returns the top-level primitive references, one per geometry:
// composite where the geometry holds more than one item.
func (f *Forest) Refs() []bvh.PrimRef {
	refs := make([]bvh.PrimRef, len(f.tops))
	for i, id := range f.tops {
		refs[i] = f.refOf(id)
	}
	return refs
}

// Opener returns the node-opening capability over this forest. It is pure
// and deterministic: opening a composite yields references to its children.
func (f *Forest) Opener() bvh.NodeOpener {
	return bvh.NodeOpenerFunc(func(ref bvh.PrimRef, out *[bvh.MaxOpenedChildNodes]bvh.PrimRef) int {
		n := f.nodes[ref.PrimID]
		for j, child := range n.children {
			out[j] = f.refOf(child)
		}
		return len(n.children)
	})
}
