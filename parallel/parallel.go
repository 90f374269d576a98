// Package parallel provides blocking fork-join helpers over index ranges.
// Every call returns only after all spawned work has completed, so callers
// may safely recurse into sub-ranges once a call comes back.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// For runs body over [begin, end) split into blocks of at most blockSize
// indices. Blocks execute concurrently; body must not touch indices outside
// the block it was handed.
func For(begin, end, blockSize int, body func(begin, end int)) {
	if end <= begin {
		return
	}
	if blockSize < 1 {
		blockSize = 1
	}
	if end-begin <= blockSize {
		body(begin, end)
		return
	}

	var wg sync.WaitGroup
	for b := begin; b < end; b += blockSize {
		e := b + blockSize
		if e > end {
			e = end
		}
		wg.Add(1)
		go func(b, e int) {
			defer wg.Done()
			body(b, e)
		}(b, e)
	}
	wg.Wait()
}

// ForErr is For with error propagation. The first error returned by any
// block is reported; remaining blocks still run to completion.
func ForErr(begin, end, blockSize int, body func(begin, end int) error) error {
	if end <= begin {
		return nil
	}
	if blockSize < 1 {
		blockSize = 1
	}
	if end-begin <= blockSize {
		return body(begin, end)
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0) * 2)
	for b := begin; b < end; b += blockSize {
		b, e := b, b+blockSize
		if e > end {
			e = end
		}
		g.Go(func() error {
			return body(b, e)
		})
	}
	return g.Wait()
}

// Reduce maps body over [begin, end) in blocks of blockSize and folds the
// partial results with merge. Ranges smaller than threshold run as a single
// sequential body call. Partial results are merged in block order, so merge
// does not have to be commutative.
func Reduce[T any](begin, end, blockSize, threshold int, identity T, body func(begin, end int) T, merge func(a, b T) T) T {
	if end <= begin {
		return identity
	}
	if end-begin < threshold {
		return merge(identity, body(begin, end))
	}
	if blockSize < 1 {
		blockSize = 1
	}

	numBlocks := (end - begin + blockSize - 1) / blockSize
	partial := make([]T, numBlocks)

	var wg sync.WaitGroup
	for i := 0; i < numBlocks; i++ {
		b := begin + i*blockSize
		e := b + blockSize
		if e > end {
			e = end
		}
		wg.Add(1)
		go func(i, b, e int) {
			defer wg.Done()
			partial[i] = body(b, e)
		}(i, b, e)
	}
	wg.Wait()

	acc := identity
	for _, p := range partial {
		acc = merge(acc, p)
	}
	return acc
}

// ReduceErr is Reduce for bodies that can fail. On error the merged value is
// meaningless and must be discarded by the caller.
func ReduceErr[T any](begin, end, blockSize, threshold int, identity T, body func(begin, end int) (T, error), merge func(a, b T) T) (T, error) {
	if end <= begin {
		return identity, nil
	}
	if end-begin < threshold {
		v, err := body(begin, end)
		if err != nil {
			return identity, err
		}
		return merge(identity, v), nil
	}
	if blockSize < 1 {
		blockSize = 1
	}

	numBlocks := (end - begin + blockSize - 1) / blockSize
	partial := make([]T, numBlocks)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0) * 2)
	for i := 0; i < numBlocks; i++ {
		i, b := i, begin+i*blockSize
		e := b + blockSize
		if e > end {
			e = end
		}
		g.Go(func() error {
			var err error
			partial[i], err = body(b, e)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return identity, err
	}

	acc := identity
	for _, p := range partial {
		acc = merge(acc, p)
	}
	return acc, nil
}
