package bvh

import "errors"

var (
	// ErrExtensionOverflow signals that opening a composite reference would
	// write past the reserved extension window. This is a contract breach
	// between the producer's child-count estimates and the reserved
	// capacity; the expansion is refused, never clipped.
	ErrExtensionOverflow = errors.New("bvh: node opening exceeds reserved extension window")

	// ErrInvalidBounds signals non-finite primitive bounds at build entry.
	ErrInvalidBounds = errors.New("bvh: primitive carries non-finite bounds")

	// ErrNoPrimitives signals an empty input reference array.
	ErrNoPrimitives = errors.New("bvh: no primitives to partition")

	// ErrBadPrimRef signals a malformed input reference, such as a
	// composite declaring more children than an opener may produce.
	ErrBadPrimRef = errors.New("bvh: malformed primitive reference")

	// ErrBadConfig signals an invalid builder configuration.
	ErrBadConfig = errors.New("bvh: invalid configuration")
)
