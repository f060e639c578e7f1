package slab

import "errors"

var (
	// ErrFull indicates that every cell in the arena is live.
	ErrFull = errors.New("slab: arena full")

	// ErrStaleRef indicates a Ref whose generation no longer matches its
	// cell: the cell was freed, and possibly reused, since the Ref was made.
	ErrStaleRef = errors.New("slab: stale cell reference")

	// ErrBadRef indicates a Ref whose index is outside the arena.
	ErrBadRef = errors.New("slab: cell index out of range")

	// ErrBadCapacity indicates a non-positive arena capacity.
	ErrBadCapacity = errors.New("slab: capacity must be >= 1")
)
