package bvh

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamestiotio/embree/log"
	"github.com/jamestiotio/embree/parallel"
	"github.com/jamestiotio/embree/types"
)

// Node is one node of the built tree. Internal nodes point at their two
// children; leaves reference a range of the primitive arena.
type Node struct {
	Bounds types.Box

	// Left and Right index the tree's node list; both are -1 for leaves.
	Left, Right int32

	// Start and Count locate a leaf's primitives in the arena.
	Start, Count int32
}

// IsLeaf reports whether the node holds primitives instead of children.
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Stats summarizes a finished build.
type Stats struct {
	Prims     int
	Opened    int
	Nodes     int
	Leaves    int
	MaxDepth  int
	BuildTime time.Duration
}

// Tree is the built hierarchy plus the primitive arena its leaves index
// into. Slots of the arena that belonged to unconsumed extension windows
// hold stale data and are referenced by no leaf.
type Tree struct {
	Nodes []Node
	Prims []PrimRef
	Root  int32
	Stats Stats
}

// SAHCost returns the expected-traversal-cost proxy of the tree: the area-
// weighted sum of node visits and primitive tests, normalized by the root
// area.
func (t *Tree) SAHCost() float32 {
	if len(t.Nodes) == 0 {
		return 0
	}
	rootArea := t.Nodes[t.Root].Bounds.Area()
	if rootArea <= 0 {
		return 0
	}
	var cost float32
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			cost += n.Bounds.Area() * float32(n.Count)
		} else {
			cost += n.Bounds.Area()
		}
	}
	return cost / rootArea
}

// LeafFunc is invoked for every created leaf with the node being emitted and
// the primitives it covers. The slice aliases the shared arena and must not
// be retained.
type LeafFunc func(node *Node, prims []PrimRef)

type builder struct {
	heur   *OpenMergeSAH
	cfg    Config
	leafCb LeafFunc
	logger log.Logger

	mu       sync.Mutex
	nodes    []Node
	leaves   int
	maxDepth int
}

// Build constructs a BVH over refs using the open-merge heuristic. The
// input is copied into an owned arena extended by cfg.ExtFactor times the
// input size; opening consumes that extra capacity. leafCb may be nil.
func Build(refs []PrimRef, opener NodeOpener, cfg Config, leafCb LeafFunc) (*Tree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, ErrNoPrimitives
	}
	err := parallel.ForErr(0, len(refs), cfg.FindBlockSize, func(begin, end int) error {
		for i := begin; i < end; i++ {
			if !refs[i].Bounds.IsFinite() {
				return fmt.Errorf("%w: reference %d", ErrInvalidBounds, i)
			}
			if int(refs[i].Children) > MaxOpenedChildNodes {
				return fmt.Errorf("%w: reference %d declares %d children, cap is %d",
					ErrBadPrimRef, i, refs[i].Children, MaxOpenedChildNodes)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	extCap := int(float64(cfg.ExtFactor) * float64(len(refs)))
	arena := make([]PrimRef, len(refs)+extCap)
	copy(arena, refs)

	heur, err := NewOpenMergeSAH(arena, opener, NewObjectBinner(), cfg)
	if err != nil {
		return nil, err
	}

	b := &builder{
		heur:   heur,
		cfg:    cfg,
		leafCb: leafCb,
		logger: log.New("bvh"),
		nodes:  make([]Node, 0, 2*len(refs)),
	}

	root := NewExtRange(0, len(refs), len(refs)+extCap)
	info := parallel.Reduce(0, len(refs), cfg.FindBlockSize, cfg.ParallelThreshold,
		newRangeInfo(),
		func(begin, end int) rangeInfo {
			in := newRangeInfo()
			for i := begin; i < end; i++ {
				in.add(arena[i])
			}
			return in
		},
		func(a, bb rangeInfo) rangeInfo {
			a.merge(bb)
			return a
		})
	root.Geom, root.Cent = info.geom, info.cent

	start := time.Now()
	rootIdx, err := b.partition(root, 0)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	stats := Stats{
		Prims:     len(refs),
		Opened:    heur.Opened(),
		Nodes:     len(b.nodes),
		Leaves:    b.leaves,
		MaxDepth:  b.maxDepth,
		BuildTime: elapsed,
	}
	b.logger.Debugf(
		"BVH build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d, opened: %d\n",
		elapsed.Nanoseconds()/1e6,
		stats.MaxDepth, stats.Nodes, stats.Leaves, stats.Opened,
	)

	return &Tree{Nodes: b.nodes, Prims: arena, Root: rootIdx, Stats: stats}, nil
}

// partition recursively splits set and returns the created node index.
func (b *builder) partition(set ExtRange, depth int) (int32, error) {
	b.noteDepth(depth)

	if set.Size() <= b.cfg.MaxLeafSize {
		return b.createLeaf(set), nil
	}

	split, err := b.heur.Find(&set)
	if err != nil {
		return -1, err
	}
	lset, rset := b.heur.Split(split, set)

	nodeIdx := b.appendNode(Node{Bounds: set.Geom, Left: -1, Right: -1})

	// Sibling ranges and their windows never overlap, so child builds can
	// proceed concurrently once Split has returned.
	var leftIdx, rightIdx int32
	if lset.Size() >= b.cfg.ParallelThreshold && rset.Size() >= b.cfg.ParallelThreshold {
		var g errgroup.Group
		g.Go(func() error {
			var err error
			leftIdx, err = b.partition(lset, depth+1)
			return err
		})
		g.Go(func() error {
			var err error
			rightIdx, err = b.partition(rset, depth+1)
			return err
		})
		if err := g.Wait(); err != nil {
			return -1, err
		}
	} else {
		if leftIdx, err = b.partition(lset, depth+1); err != nil {
			return -1, err
		}
		if rightIdx, err = b.partition(rset, depth+1); err != nil {
			return -1, err
		}
	}

	b.setChildren(nodeIdx, leftIdx, rightIdx)
	return nodeIdx, nil
}

func (b *builder) createLeaf(set ExtRange) int32 {
	node := Node{
		Bounds: set.Geom,
		Left:   -1,
		Right:  -1,
		Start:  int32(set.Begin),
		Count:  int32(set.Size()),
	}
	if b.leafCb != nil {
		b.leafCb(&node, b.heur.prims[set.Begin:set.End])
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = append(b.nodes, node)
	b.leaves++
	return int32(len(b.nodes) - 1)
}

func (b *builder) appendNode(n Node) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = append(b.nodes, n)
	return int32(len(b.nodes) - 1)
}

func (b *builder) setChildren(idx, left, right int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[idx].Left = left
	b.nodes[idx].Right = right
}

func (b *builder) noteDepth(depth int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if depth > b.maxDepth {
		b.maxDepth = depth
	}
}
