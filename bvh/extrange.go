package bvh

import (
	"github.com/jamestiotio/embree/types"
)

// ExtRange describes the active primitives [Begin, End) of the shared array
// together with a reserved extension window [End, ExtEnd) that receives
// references created by opening. It also carries the running geometry and
// centroid bounds of the active primitives.
//
// Invariant: Begin <= End <= ExtEnd. A recursive call's range, including its
// window, never overlaps a sibling's.
type ExtRange struct {
	Begin, End, ExtEnd int

	// Geom bounds all active primitive boxes; Cent bounds their centroids.
	Geom, Cent types.Box
}

// NewExtRange creates a range with empty running bounds.
func NewExtRange(begin, end, extEnd int) ExtRange {
	return ExtRange{
		Begin:  begin,
		End:    end,
		ExtEnd: extEnd,
		Geom:   types.EmptyBox(),
		Cent:   types.EmptyBox(),
	}
}

// Size returns the number of active primitives.
func (r ExtRange) Size() int {
	return r.End - r.Begin
}

// ExtSize returns the unconsumed extension window capacity.
func (r ExtRange) ExtSize() int {
	return r.ExtEnd - r.End
}

// HasExt reports whether the range still carries an extension window.
func (r ExtRange) HasExt() bool {
	return r.ExtEnd > r.End
}

// DisableExt drops the extension window, disabling opening for this range.
func (r *ExtRange) DisableExt() {
	r.ExtEnd = r.End
}

// Extend grows the running bounds to include a primitive with box b.
func (r *ExtRange) Extend(b types.Box) {
	r.Geom = r.Geom.Extend(b)
	r.Cent = r.Cent.ExtendPoint(b.Center())
}

// MoveRight shifts the whole range n slots towards the array end. Used after
// relocating a right child's data past its sibling's extension window.
func (r *ExtRange) MoveRight(n int) {
	r.Begin += n
	r.End += n
	r.ExtEnd += n
}

// rangeInfo accumulates count, weight and bounds for one side of a split.
type rangeInfo struct {
	count  int
	weight int
	geom   types.Box
	cent   types.Box
}

func newRangeInfo() rangeInfo {
	return rangeInfo{geom: types.EmptyBox(), cent: types.EmptyBox()}
}

func (in *rangeInfo) add(ref PrimRef) {
	in.count++
	in.weight += ref.Weight()
	in.geom = in.geom.Extend(ref.Bounds)
	in.cent = in.cent.ExtendPoint(ref.Center())
}

func (in *rangeInfo) merge(o rangeInfo) {
	in.count += o.count
	in.weight += o.weight
	in.geom = in.geom.Extend(o.geom)
	in.cent = in.cent.Extend(o.cent)
}
