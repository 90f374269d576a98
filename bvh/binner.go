package bvh

import (
	"math"

	"github.com/jamestiotio/embree/types"
)

// maxBins caps the per-axis bin count so histograms stay fixed-size values
// that can be merged without allocation.
const maxBins = 32

// BinMapping maps primitive centroids to per-axis bin indices over a given
// centroid bounding box.
type BinMapping struct {
	ofs   types.Vec3
	scale types.Vec3
	bins  int
}

// NewBinMapping builds a mapping that discretizes cent into bins buckets per
// axis. Axes with no centroid extent map everything to bucket 0.
func NewBinMapping(cent types.Box, bins int) BinMapping {
	m := BinMapping{ofs: cent.Min, bins: bins}
	diag := cent.Size()
	for k := 0; k < 3; k++ {
		if diag[k] > 0 {
			// Slightly under-scale so the upper corner stays inside
			// the last bin.
			m.scale[k] = 0.99 * float32(bins) / diag[k]
		}
	}
	return m
}

// Bins returns the per-axis bucket count.
func (m BinMapping) Bins() int {
	return m.bins
}

// BinIndex returns the bucket of p along each axis.
func (m BinMapping) BinIndex(p types.Vec3) [3]int {
	var out [3]int
	for k := 0; k < 3; k++ {
		i := int((p[k] - m.ofs[k]) * m.scale[k])
		if i < 0 {
			i = 0
		}
		if i > m.bins-1 {
			i = m.bins - 1
		}
		out[k] = i
	}
	return out
}

// Histogram holds per-axis, per-bin primitive counts and bounds.
type Histogram struct {
	counts [3][maxBins]int
	bounds [3][maxBins]types.Box
}

// NewHistogram returns an empty histogram (the identity for Merge).
func NewHistogram() Histogram {
	var h Histogram
	for dim := 0; dim < 3; dim++ {
		for i := 0; i < maxBins; i++ {
			h.bounds[dim][i] = types.EmptyBox()
		}
	}
	return h
}

// Split describes a candidate partition: the axis and bin boundary to split
// at, and the mapping needed to classify primitives. An invalid split means
// no discriminating split was found; callers fall back to a median split.
type Split struct {
	SAH     float32
	Dim     int
	Pos     int
	Mapping BinMapping
}

// InvalidSplit returns the "no split found" value.
func InvalidSplit() Split {
	return Split{SAH: float32(math.Inf(1)), Dim: -1}
}

// Valid reports whether the split discriminates.
func (s Split) Valid() bool {
	return s.Dim >= 0
}

// Left reports which side of the split a primitive falls on.
func (s Split) Left(ref PrimRef) bool {
	return s.Mapping.BinIndex(ref.Center())[s.Dim] < s.Pos
}

// Binner is the split-selection capability: it accumulates per-bin counts
// and bounds over sub-ranges, merges partial histograms (for parallel use)
// and evaluates the best candidate split.
type Binner interface {
	Bin(prims []PrimRef, begin, end int, m BinMapping) Histogram
	Merge(a, b Histogram) Histogram
	Best(h Histogram, m BinMapping, logBlockSize uint) Split
}

// NewObjectBinner returns the standard binned-SAH object binner.
func NewObjectBinner() Binner {
	return objectBinner{}
}

type objectBinner struct{}

func (objectBinner) Bin(prims []PrimRef, begin, end int, m BinMapping) Histogram {
	h := NewHistogram()
	for i := begin; i < end; i++ {
		b := m.BinIndex(prims[i].Center())
		for dim := 0; dim < 3; dim++ {
			h.counts[dim][b[dim]]++
			h.bounds[dim][b[dim]] = h.bounds[dim][b[dim]].Extend(prims[i].Bounds)
		}
	}
	return h
}

func (objectBinner) Merge(a, b Histogram) Histogram {
	for dim := 0; dim < 3; dim++ {
		for i := 0; i < maxBins; i++ {
			a.counts[dim][i] += b.counts[dim][i]
			a.bounds[dim][i] = a.bounds[dim][i].Extend(b.bounds[dim][i])
		}
	}
	return a
}

// Best sweeps every axis for the bin boundary with the lowest SAH cost:
// blocks(leftCount)*leftArea + blocks(rightCount)*rightArea, where counts are
// rounded up to blocks of 1<<logBlockSize. Boundaries producing an empty
// side are skipped, so a range whose centroids all share one bin yields an
// invalid split.
func (objectBinner) Best(h Histogram, m BinMapping, logBlockSize uint) Split {
	blocks := func(n int) float32 {
		return float32((n + (1 << logBlockSize) - 1) >> logBlockSize)
	}

	best := InvalidSplit()
	for dim := 0; dim < 3; dim++ {
		var rAreas [maxBins]float32
		var rCounts [maxBins]int

		box := types.EmptyBox()
		count := 0
		for i := m.bins - 1; i > 0; i-- {
			count += h.counts[dim][i]
			box = box.Extend(h.bounds[dim][i])
			rAreas[i] = box.Area()
			rCounts[i] = count
		}

		box = types.EmptyBox()
		count = 0
		for i := 1; i < m.bins; i++ {
			count += h.counts[dim][i-1]
			box = box.Extend(h.bounds[dim][i-1])
			if count == 0 || rCounts[i] == 0 {
				continue
			}
			sah := blocks(count)*box.Area() + blocks(rCounts[i])*rAreas[i]
			if sah < best.SAH {
				best = Split{SAH: sah, Dim: dim, Pos: i, Mapping: m}
			}
		}
	}
	return best
}
