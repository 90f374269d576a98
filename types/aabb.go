package types

import "math"

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// EmptyBox returns the identity element for Extend: a box that contains
// nothing and vanishes when merged with any real box.
func EmptyBox() Box {
	return Box{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// NewBox creates a box from its corner points.
func NewBox(min, max Vec3) Box {
	return Box{Min: min, Max: max}
}

// Extend grows the box to contain b2.
func (b Box) Extend(b2 Box) Box {
	return Box{
		Min: MinVec3(b.Min, b2.Min),
		Max: MaxVec3(b.Max, b2.Max),
	}
}

// ExtendPoint grows the box to contain p.
func (b Box) ExtendPoint(p Vec3) Box {
	return Box{
		Min: MinVec3(b.Min, p),
		Max: MaxVec3(b.Max, p),
	}
}

// Size returns the per-axis extents. Negative for an empty box.
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the box midpoint.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Area returns the surface area of the box, 0 for an empty box.
func (b Box) Area() float32 {
	s := b.Size()
	if s[0] < 0 || s[1] < 0 || s[2] < 0 {
		return 0
	}
	return 2 * (s[0]*s[1] + s[1]*s[2] + s[0]*s[2])
}

// Overlaps reports whether the two boxes share any volume (touching counts).
func (b Box) Overlaps(b2 Box) bool {
	return b.Min[0] <= b2.Max[0] && b.Max[0] >= b2.Min[0] &&
		b.Min[1] <= b2.Max[1] && b.Max[1] >= b2.Min[1] &&
		b.Min[2] <= b2.Max[2] && b.Max[2] >= b2.Min[2]
}

// IsFinite reports whether both corners hold finite values.
func (b Box) IsFinite() bool {
	return b.Min.IsFinite() && b.Max.IsFinite()
}
