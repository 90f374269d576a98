package bvh

import (
	"github.com/jamestiotio/embree/types"
)

// MaxOpenedChildNodes is the hard cap on children produced by a single
// opener call. Composite references carrying more children than this cannot
// be opened in one step; the producer must pre-split them.
const MaxOpenedChildNodes = 8

// PrimRef is one slot of the shared primitive reference array: either an
// indivisible primitive (leaf) or a composite grouping of Children finer
// primitives that an opener can expand in place.
type PrimRef struct {
	Bounds types.Box

	// GeomID identifies the geometry this reference came from.
	GeomID uint32

	// PrimID is an opaque handle resolved by the producer: the primitive
	// index for leaves, the composite node id otherwise.
	PrimID uint32

	// Children is 0 for a leaf, otherwise the number of finer references
	// opening this slot produces (at most MaxOpenedChildNodes).
	Children uint8

	// TimeSegs is the number of motion time segments this reference was
	// duplicated over; zero counts as one.
	TimeSegs uint8
}

// IsLeaf reports whether the reference cannot be opened further.
func (r PrimRef) IsLeaf() bool {
	return r.Children == 0
}

// Center returns the bounding box centroid used for binning.
func (r PrimRef) Center() types.Vec3 {
	return r.Bounds.Center()
}

// Weight is the contribution of this reference to its side of a split.
// Always at least 1.
func (r PrimRef) Weight() int {
	if r.TimeSegs == 0 {
		return 1
	}
	return int(r.TimeSegs)
}

// Less defines the natural ordering used to canonicalize a range before the
// median fallback. It is a total order over all identifying fields so that
// sorting yields the same layout no matter how a parallel partition shuffled
// the range.
func (r PrimRef) Less(o PrimRef) bool {
	if r.GeomID != o.GeomID {
		return r.GeomID < o.GeomID
	}
	if r.PrimID != o.PrimID {
		return r.PrimID < o.PrimID
	}
	for k := 0; k < 3; k++ {
		if r.Bounds.Min[k] != o.Bounds.Min[k] {
			return r.Bounds.Min[k] < o.Bounds.Min[k]
		}
	}
	return false
}

// NodeOpener expands one composite reference into its children. Open writes
// 1 to MaxOpenedChildNodes child references into out and returns the count.
// Implementations must be pure and deterministic for a given input.
type NodeOpener interface {
	Open(ref PrimRef, out *[MaxOpenedChildNodes]PrimRef) int
}

// NodeOpenerFunc adapts a plain function to the NodeOpener interface.
type NodeOpenerFunc func(ref PrimRef, out *[MaxOpenedChildNodes]PrimRef) int

func (f NodeOpenerFunc) Open(ref PrimRef, out *[MaxOpenedChildNodes]PrimRef) int {
	return f(ref, out)
}
