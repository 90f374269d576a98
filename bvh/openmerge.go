package bvh

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/jamestiotio/embree/parallel"
	"github.com/jamestiotio/embree/types"
)

// disjointCheckSize is the range size at or below which Find tests all
// primitive pairs for mutual disjointness before opening.
const disjointCheckSize = 4

// OpenMergeSAH selects and applies object splits over a shared primitive
// reference array, opening composite references in place when the range
// carries an extension window. It owns no memory: the array is provided by
// the build driver and partitioned strictly within the ranges handed in.
type OpenMergeSAH struct {
	prims  []PrimRef
	opener NodeOpener
	binner Binner
	cfg    Config

	// opened counts the references created by opening over the whole build.
	opened atomic.Int64
}

// NewOpenMergeSAH creates the heuristic over prims. The opener expands
// composite references; the binner selects object splits.
func NewOpenMergeSAH(prims []PrimRef, opener NodeOpener, binner Binner, cfg Config) (*OpenMergeSAH, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if opener == nil {
		return nil, fmt.Errorf("%w: nil node opener", ErrBadConfig)
	}
	if binner == nil {
		return nil, fmt.Errorf("%w: nil binner", ErrBadConfig)
	}
	return &OpenMergeSAH{prims: prims, opener: opener, binner: binner, cfg: cfg}, nil
}

// Opened returns the total number of references created by opening so far.
func (h *OpenMergeSAH) Opened() int {
	return int(h.opened.Load())
}

// Find decides how to split set. It may first open composite references in
// place, growing set.End into the extension window and updating the running
// bounds, then delegates to binned SAH split selection. An invalid split
// means no discriminating split exists and the caller should use the median
// fallback via Split.
//
// The only error condition is an opening that would overflow the reserved
// extension window (ErrExtensionOverflow).
func (h *OpenMergeSAH) Find(set *ExtRange) (Split, error) {
	if set.Size() <= 1 {
		return InvalidSplit(), nil
	}

	// Opening a handful of mutually disjoint primitives cannot tighten any
	// bounds; grouping them as-is is already optimal.
	if set.HasExt() && set.Size() <= disjointCheckSize {
		disjoint := true
	pairs:
		for j := set.Begin; j < set.End-1; j++ {
			for i := j + 1; i < set.End; i++ {
				if h.prims[j].Bounds.Overlaps(h.prims[i].Bounds) {
					disjoint = false
					break pairs
				}
			}
		}
		if disjoint {
			set.DisableExt()
		}
	}

	estNewSlots := 0
	if set.HasExt() {
		opens, commonGeomID := h.getProperties(*set)
		estNewSlots = opens
		if commonGeomID && h.cfg.StopOnCommonGeomID {
			// A fully homogeneous cluster gains nothing from opening.
			set.DisableExt()
		}
	}

	if set.HasExt() {
		switch h.cfg.OpenStrategy {
		case OpenUntilFull:
			extra, err := h.openUntilFull(set)
			if err != nil {
				return InvalidSplit(), err
			}
			set.End += extra

		case OpenByExtentLoop:
			if err := h.openByExtentLoop(set, estNewSlots); err != nil {
				return InvalidSplit(), err
			}

		default:
			// Only open when the estimate fits the remaining window;
			// partially opening a range is worse than not opening it.
			if estNewSlots <= set.ExtSize() {
				extra, err := h.openByExtent(set)
				if err != nil {
					return InvalidSplit(), err
				}
				set.End += extra
			}
		}

		// A single leftover slot cannot be split between two children.
		if set.ExtSize() <= 1 {
			set.DisableExt()
		}
	}

	return h.objectFind(*set), nil
}

// getProperties scans set and returns a coarse estimate of the extension
// slots opening would consume, plus whether every primitive carries the same
// geometry identifier. The estimate assumes each qualifying composite
// contributes Children-1 slots and does not recurse into grandchildren.
func (h *OpenMergeSAH) getProperties(set ExtRange) (estimatedNewSlots int, commonGeomID bool) {
	diag := set.Geom.Size()
	dim := diag.MaxDim()
	invMaxExtend := 1.0 / diag[dim]
	geomID := h.prims[set.Begin].GeomID

	type props struct {
		opens  int
		common bool
	}
	out := parallel.Reduce(set.Begin, set.End, h.cfg.FindBlockSize, h.cfg.ParallelThreshold,
		props{0, true},
		func(begin, end int) props {
			p := props{0, true}
			for i := begin; i < end; i++ {
				ref := h.prims[i]
				p.common = p.common && ref.GeomID == geomID
				if !ref.IsLeaf() && ref.Bounds.Size()[dim]*invMaxExtend > h.cfg.ExtendThreshold {
					p.opens += int(ref.Children) - 1
				}
			}
			return p
		},
		func(a, b props) props {
			return props{a.opens + b.opens, a.common && b.common}
		})
	return out.opens, out.common
}

// commitOpen overwrites slot i with child 0 and appends children 1..n-1 at
// h.prims[at:], merging all child bounds into set. Callers must have
// verified the n-1 appended slots fit the extension window.
func (h *OpenMergeSAH) commitOpen(set *ExtRange, i, at int, tmp *[MaxOpenedChildNodes]PrimRef, n int) {
	for j := 0; j < n; j++ {
		set.Extend(tmp[j].Bounds)
	}
	h.prims[i] = tmp[0]
	for j := 1; j < n; j++ {
		h.prims[at+j-1] = tmp[j]
	}
	h.opened.Add(int64(n - 1))
}

// openByExtent opens, in one pass, every composite whose extent along the
// dominant axis exceeds the configured fraction of the range's extent.
// Returns the number of references appended to the extension window; set.End
// is not advanced here.
func (h *OpenMergeSAH) openByExtent(set *ExtRange) (int, error) {
	diag := set.Geom.Size()
	dim := diag.MaxDim()
	invMaxExtend := 1.0 / diag[dim]
	extStart := set.End
	extSize := set.ExtSize()

	qualifies := func(ref PrimRef) bool {
		return !ref.IsLeaf() && ref.Bounds.Size()[dim]*invMaxExtend > h.cfg.ExtendThreshold
	}

	if set.Size() < h.cfg.ParallelThreshold {
		extra := 0
		for i := set.Begin; i < set.End; i++ {
			if !qualifies(h.prims[i]) {
				continue
			}
			var tmp [MaxOpenedChildNodes]PrimRef
			n := h.opener.Open(h.prims[i], &tmp)
			if extra+n-1 > extSize {
				return extra, fmt.Errorf("%w: need %d slots, %d reserved", ErrExtensionOverflow, extra+n-1, extSize)
			}
			h.commitOpen(set, i, extStart+extra, &tmp, n)
			extra += n - 1
		}
		return extra, nil
	}

	// Parallel pass: one atomic counter hands out disjoint extension-slot
	// offsets; every other write stays within the claiming goroutine's
	// block or claimed slots.
	var claimed atomic.Int64
	info, err := parallel.ReduceErr(set.Begin, set.End, h.cfg.OpenBlockSize, 1,
		newRangeInfo(),
		func(begin, end int) (rangeInfo, error) {
			local := ExtRange{Geom: types.EmptyBox(), Cent: types.EmptyBox()}
			for i := begin; i < end; i++ {
				if !qualifies(h.prims[i]) {
					continue
				}
				var tmp [MaxOpenedChildNodes]PrimRef
				n := h.opener.Open(h.prims[i], &tmp)
				id := int(claimed.Add(int64(n-1))) - (n - 1)
				if id+n-1 > extSize {
					return rangeInfo{}, fmt.Errorf("%w: need %d slots, %d reserved", ErrExtensionOverflow, id+n-1, extSize)
				}
				h.commitOpen(&local, i, extStart+id, &tmp, n)
			}
			return rangeInfo{geom: local.Geom, cent: local.Cent}, nil
		},
		func(a, b rangeInfo) rangeInfo {
			a.merge(b)
			return a
		})
	if err != nil {
		return 0, err
	}
	set.Geom = set.Geom.Extend(info.geom)
	set.Cent = set.Cent.Extend(info.cent)
	return int(claimed.Load()), nil
}

// openUntilFull iteratively opens any composite whose extent exceeds the
// smallest positive per-axis extent found in the range, re-scanning newly
// appended children, until the window is exhausted, nothing qualifies, or a
// pass makes no progress. An expansion that would not fit simply stops the
// process; it is not an error for this strategy.
func (h *OpenMergeSAH) openUntilFull(set *ExtRange) (int, error) {
	smallest := types.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	for i := set.Begin; i < set.End; i++ {
		smallest = types.MinVec3(smallest, h.prims[i].Bounds.Size())
	}
	var mask [3]bool
	for k := 0; k < 3; k++ {
		mask[k] = smallest[k] > 0
	}

	qualifies := func(ref PrimRef) bool {
		if ref.IsLeaf() {
			return false
		}
		sz := ref.Bounds.Size()
		for k := 0; k < 3; k++ {
			if mask[k] && sz[k] > smallest[k] {
				return true
			}
		}
		return false
	}

	extStart := set.End
	extSize := set.ExtSize()
	extra := 0
	for {
		currentEnd := set.End + extra
		full := false
		for i := set.Begin; i < currentEnd; i++ {
			if !qualifies(h.prims[i]) {
				continue
			}
			var tmp [MaxOpenedChildNodes]PrimRef
			n := h.opener.Open(h.prims[i], &tmp)
			if extra+n-1 > extSize {
				full = true
				break
			}
			h.commitOpen(set, i, extStart+extra, &tmp, n)
			extra += n - 1
		}
		if full || set.End+extra == currentEnd {
			break
		}
	}
	return extra, nil
}

// openByExtentLoop runs repeated threshold-opening passes. Each pass applies
// the same coarse Children-1 estimate to the children it just created to
// predict the next pass's slot demand, and the loop stops once that estimate
// is zero or would not fit the remaining window.
func (h *OpenMergeSAH) openByExtentLoop(set *ExtRange, estNewSlots int) error {
	diag := set.Geom.Size()
	dim := diag.MaxDim()
	invMaxExtend := 1.0 / diag[dim]

	next := estNewSlots
	for next <= set.ExtSize() {
		next = 0
		extra := 0
		extStart := set.End
		extSize := set.ExtSize()

		for i := set.Begin; i < set.End; i++ {
			ref := h.prims[i]
			if ref.IsLeaf() || ref.Bounds.Size()[dim]*invMaxExtend <= h.cfg.ExtendThreshold {
				continue
			}
			var tmp [MaxOpenedChildNodes]PrimRef
			n := h.opener.Open(ref, &tmp)
			if extra+n-1 > extSize {
				return fmt.Errorf("%w: need %d slots, %d reserved", ErrExtensionOverflow, extra+n-1, extSize)
			}
			h.commitOpen(set, i, extStart+extra, &tmp, n)
			extra += n - 1

			for j := 0; j < n; j++ {
				if !tmp[j].IsLeaf() && tmp[j].Bounds.Size()[dim]*invMaxExtend > h.cfg.ExtendThreshold {
					next += int(tmp[j].Children) - 1
				}
			}
		}
		set.End += extra
		if next == 0 {
			break
		}
	}
	return nil
}

// objectFind runs binned SAH split selection over the active range.
func (h *OpenMergeSAH) objectFind(set ExtRange) Split {
	mapping := NewBinMapping(set.Cent, h.cfg.Bins)
	hist := parallel.Reduce(set.Begin, set.End, h.cfg.FindBlockSize, h.cfg.ParallelThreshold,
		NewHistogram(),
		func(begin, end int) Histogram {
			return h.binner.Bin(h.prims, begin, end, mapping)
		},
		h.binner.Merge)
	return h.binner.Best(hist, mapping, h.cfg.LogBlockSize)
}

// Split partitions set in place into two child ranges. An invalid split
// falls back to a deterministic median split. If set carries an extension
// window the children receive proportional windows and the right child's
// data is relocated so its window stays contiguous.
func (h *OpenMergeSAH) Split(split Split, set ExtRange) (lset, rset ExtRange) {
	if !split.Valid() {
		h.deterministicOrder(set)
		return h.splitFallback(set)
	}

	var lweight, rweight int
	if set.Size() < h.cfg.ParallelThreshold {
		lset, rset, lweight, rweight = h.sequentialSplit(split, set)
	} else {
		lset, rset, lweight, rweight = h.parallelSplit(split, set)
	}

	if set.HasExt() {
		h.setExtendedRanges(set, &lset, &rset, lweight, rweight)
		h.moveExtendedRange(set, lset, &rset)
	}
	return lset, rset
}

// sequentialSplit partitions [set.Begin, set.End) in place, accumulating
// each side's bounds and weights in the same pass.
func (h *OpenMergeSAH) sequentialSplit(split Split, set ExtRange) (lset, rset ExtRange, lweight, rweight int) {
	left := newRangeInfo()
	right := newRangeInfo()

	l, r := set.Begin, set.End
	for l < r {
		if split.Left(h.prims[l]) {
			left.add(h.prims[l])
			l++
			continue
		}
		r--
		if split.Left(h.prims[r]) {
			h.prims[l], h.prims[r] = h.prims[r], h.prims[l]
			left.add(h.prims[l])
			l++
		}
		right.add(h.prims[r])
	}
	center := l

	lset = ExtRange{Begin: set.Begin, End: center, ExtEnd: center, Geom: left.geom, Cent: left.cent}
	rset = ExtRange{Begin: center, End: set.End, ExtEnd: set.End, Geom: right.geom, Cent: right.cent}
	return lset, rset, left.weight, right.weight
}

// parallelSplit partitions block-granularly: each block is partitioned in
// place concurrently while accumulating its side infos, then a sequential
// cleanup swaps the misplaced elements across block boundaries.
func (h *OpenMergeSAH) parallelSplit(split Split, set ExtRange) (lset, rset ExtRange, lweight, rweight int) {
	type sides struct {
		left, right rangeInfo
	}
	acc := parallel.Reduce(set.Begin, set.End, h.cfg.PartitionBlockSize, 1,
		sides{newRangeInfo(), newRangeInfo()},
		func(begin, end int) sides {
			s := sides{newRangeInfo(), newRangeInfo()}
			l, r := begin, end
			for l < r {
				if split.Left(h.prims[l]) {
					s.left.add(h.prims[l])
					l++
					continue
				}
				r--
				if split.Left(h.prims[r]) {
					h.prims[l], h.prims[r] = h.prims[r], h.prims[l]
					s.left.add(h.prims[l])
					l++
				}
				s.right.add(h.prims[r])
			}
			return s
		},
		func(a, b sides) sides {
			a.left.merge(b.left)
			a.right.merge(b.right)
			return a
		})

	center := set.Begin + acc.left.count

	// Blocks are individually partitioned; swap the left-classified
	// stragglers from the right region with the right-classified ones
	// from the left region.
	l, r := set.Begin, center
	for {
		for l < center && split.Left(h.prims[l]) {
			l++
		}
		for r < set.End && !split.Left(h.prims[r]) {
			r++
		}
		if l >= center {
			break
		}
		h.prims[l], h.prims[r] = h.prims[r], h.prims[l]
		l++
		r++
	}

	lset = ExtRange{Begin: set.Begin, End: center, ExtEnd: center, Geom: acc.left.geom, Cent: acc.left.cent}
	rset = ExtRange{Begin: center, End: set.End, ExtEnd: set.End, Geom: acc.right.geom, Cent: acc.right.cent}
	return lset, rset, acc.left.weight, acc.right.weight
}

// deterministicOrder canonicalizes the range layout. Parallel partitioning
// does not preserve input order, so the fallback sorts by the primitives'
// natural ordering first to keep builds reproducible.
func (h *OpenMergeSAH) deterministicOrder(set ExtRange) {
	prims := h.prims[set.Begin:set.End]
	sort.Slice(prims, func(i, j int) bool {
		return prims[i].Less(prims[j])
	})
}

// splitFallback splits at the midpoint index regardless of bounds quality.
// Both children are strictly smaller than the input, guaranteeing progress
// when SAH finds no discriminating split.
func (h *OpenMergeSAH) splitFallback(set ExtRange) (lset, rset ExtRange) {
	center := (set.Begin + set.End) / 2

	left := newRangeInfo()
	for i := set.Begin; i < center; i++ {
		left.add(h.prims[i])
	}
	right := newRangeInfo()
	for i := center; i < set.End; i++ {
		right.add(h.prims[i])
	}

	lset = ExtRange{Begin: set.Begin, End: center, ExtEnd: center, Geom: left.geom, Cent: left.cent}
	rset = ExtRange{Begin: center, End: set.End, ExtEnd: set.End, Geom: right.geom, Cent: right.cent}

	if set.HasExt() {
		h.setExtendedRanges(set, &lset, &rset, left.weight, right.weight)
		h.moveExtendedRange(set, lset, &rset)
	}
	return lset, rset
}

// setExtendedRanges hands the parent's extension window to the children in
// proportion to the weight that landed on each side: the left child gets
// floor(E * lweight/(lweight+rweight)) slots, the right child the rest.
func (h *OpenMergeSAH) setExtendedRanges(set ExtRange, lset, rset *ExtRange, lweight, rweight int) {
	extSize := set.ExtSize()
	leftFactor := float64(lweight) / float64(lweight+rweight)
	leftExtSize := int(math.Floor(leftFactor * float64(extSize)))
	if leftExtSize > extSize {
		leftExtSize = extSize
	}
	lset.ExtEnd = lset.End + leftExtSize
	rset.ExtEnd = rset.End + (extSize - leftExtSize)
}

// moveExtendedRange makes the right child's extension window physically
// contiguous with its data by shifting the smaller of (left child's window,
// right child's data) forward. Afterwards the right child's window ends
// exactly at the parent's.
func (h *OpenMergeSAH) moveExtendedRange(set ExtRange, lset ExtRange, rset *ExtRange) {
	leftExtSize := lset.ExtSize()
	rightSize := rset.Size()
	if leftExtSize == 0 {
		return
	}

	if leftExtSize < rightSize {
		// Move only the beginning of the right range past its end.
		parallel.For(rset.Begin, rset.Begin+leftExtSize, h.cfg.MoveBlockSize, func(begin, end int) {
			for i := begin; i < end; i++ {
				h.prims[i+rightSize] = h.prims[i]
			}
		})
	} else {
		// Source and destination cannot overlap; move the whole range.
		parallel.For(rset.Begin, rset.End, h.cfg.MoveBlockSize, func(begin, end int) {
			for i := begin; i < end; i++ {
				h.prims[i+leftExtSize] = h.prims[i]
			}
		})
	}
	rset.MoveRight(leftExtSize)
}
