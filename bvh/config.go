package bvh

import "fmt"

// OpenStrategy selects how composite references are opened during Find.
type OpenStrategy int

const (
	// OpenByExtent opens qualifying references in a single pass, in
	// parallel for large ranges. This is the default.
	OpenByExtent OpenStrategy = iota

	// OpenUntilFull keeps opening, re-scanning newly created children,
	// until the extension window is exhausted or no candidate remains.
	OpenUntilFull

	// OpenByExtentLoop runs repeated single passes, estimating the next
	// pass's slot demand from the children just created.
	OpenByExtentLoop
)

func (s OpenStrategy) String() string {
	switch s {
	case OpenByExtent:
		return "extent"
	case OpenUntilFull:
		return "until-full"
	case OpenByExtentLoop:
		return "extent-loop"
	default:
		return fmt.Sprintf("OpenStrategy(%d)", int(s))
	}
}

// ParseOpenStrategy maps a CLI flag value to an OpenStrategy.
func ParseOpenStrategy(name string) (OpenStrategy, error) {
	switch name {
	case "extent":
		return OpenByExtent, nil
	case "until-full":
		return OpenUntilFull, nil
	case "extent-loop":
		return OpenByExtentLoop, nil
	}
	return 0, fmt.Errorf("%w: unknown open strategy %q", ErrBadConfig, name)
}

// Config carries the heuristic and builder tunables.
type Config struct {
	// ParallelThreshold is the range size below which every operation runs
	// sequentially.
	ParallelThreshold int

	// Block sizes controlling fork-join task grain.
	FindBlockSize      int
	PartitionBlockSize int
	MoveBlockSize      int
	OpenBlockSize      int

	// ExtendThreshold is the fraction of the range's dominant-axis extent a
	// composite reference must exceed to qualify for opening.
	ExtendThreshold float32

	// Bins is the number of SAH bins per axis.
	Bins int

	// LogBlockSize rounds SAH counts up to blocks of 1<<LogBlockSize
	// primitives when costing a split.
	LogBlockSize uint

	// MaxLeafSize is the range size at or below which the builder emits a
	// leaf instead of splitting.
	MaxLeafSize int

	// ExtFactor scales the extension window reserved at build entry, as a
	// fraction of the input primitive count. Zero disables opening.
	ExtFactor float32

	// OpenStrategy selects the opening variant.
	OpenStrategy OpenStrategy

	// StopOnCommonGeomID disables opening for ranges whose primitives all
	// share one geometry identifier.
	StopOnCommonGeomID bool
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		ParallelThreshold:  1024,
		FindBlockSize:      512,
		PartitionBlockSize: 128,
		MoveBlockSize:      64,
		OpenBlockSize:      128,
		ExtendThreshold:    0.1,
		Bins:               16,
		LogBlockSize:       0,
		MaxLeafSize:        4,
		ExtFactor:          1.0,
		OpenStrategy:       OpenByExtent,
		StopOnCommonGeomID: true,
	}
}

func (c Config) validate() error {
	if c.ParallelThreshold < 1 {
		return fmt.Errorf("%w: ParallelThreshold must be >= 1, got %d", ErrBadConfig, c.ParallelThreshold)
	}
	for _, bs := range []struct {
		name string
		val  int
	}{
		{"FindBlockSize", c.FindBlockSize},
		{"PartitionBlockSize", c.PartitionBlockSize},
		{"MoveBlockSize", c.MoveBlockSize},
		{"OpenBlockSize", c.OpenBlockSize},
	} {
		if bs.val < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", ErrBadConfig, bs.name, bs.val)
		}
	}
	if c.ExtendThreshold <= 0 || c.ExtendThreshold >= 1 {
		return fmt.Errorf("%w: ExtendThreshold must lie in (0, 1), got %g", ErrBadConfig, c.ExtendThreshold)
	}
	if c.Bins < 2 || c.Bins > maxBins {
		return fmt.Errorf("%w: Bins must lie in [2, %d], got %d", ErrBadConfig, maxBins, c.Bins)
	}
	if c.MaxLeafSize < 1 {
		return fmt.Errorf("%w: MaxLeafSize must be >= 1, got %d", ErrBadConfig, c.MaxLeafSize)
	}
	if c.ExtFactor < 0 {
		return fmt.Errorf("%w: ExtFactor must be >= 0, got %g", ErrBadConfig, c.ExtFactor)
	}
	switch c.OpenStrategy {
	case OpenByExtent, OpenUntilFull, OpenByExtentLoop:
	default:
		return fmt.Errorf("%w: unknown open strategy %d", ErrBadConfig, int(c.OpenStrategy))
	}
	return nil
}
