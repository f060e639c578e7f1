package wheel

import "errors"

var (
	// ErrOutOfRange indicates a timeout longer than the wheel's configured
	// span. Raised by Start; no state is mutated.
	ErrOutOfRange = errors.New("wheel: timeout exceeds wheel span")

	// ErrCapacityExhausted indicates that a CopyWheel's slab has no free
	// cell. Raised by Start; no state is mutated.
	ErrCapacityExhausted = errors.New("wheel: no free timer cell")

	// ErrStaleHandle indicates a handle that no longer names a live timer:
	// the timer already fired, was already stopped, or the handle belongs to
	// a different wheel variant. Stopping through a stale handle is a safe
	// no-op, never a corruption.
	ErrStaleHandle = errors.New("wheel: stale timer handle")

	// ErrBadConfig indicates an invalid construction configuration.
	ErrBadConfig = errors.New("wheel: bad configuration")
)
