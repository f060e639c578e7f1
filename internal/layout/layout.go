// Package layout houses the level/slot addressing math for hierarchical
// timer wheels. The goal is to keep the arithmetic focused and allocation-free
// so the storage packages can orchestrate entries without reimplementing the
// geometry: every placement and cascade decision reduces to shifts and masks
// over absolute tick counts.
//
// A wheel has L levels of F slots each, where F is a power of two. Level k
// has a slot width of F^k base ticks, so level k alone spans F^(k+1) ticks
// and the whole wheel represents timeouts up to F^L ticks (inclusive).
// Cursors are not stored anywhere: the level-k cursor for tick T is simply
// (T >> k*log2(F)) & (F-1), which is what makes cascade scheduling a pure
// function of the tick counter.
package layout

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrBadFanout indicates a slots-per-level value that is not a power of
	// two >= 2. Power-of-two fan-out is required so modulo reduces to a mask.
	ErrBadFanout = errors.New("layout: slots per level must be a power of two >= 2")

	// ErrBadLevels indicates a non-positive level count.
	ErrBadLevels = errors.New("layout: level count must be >= 1")

	// ErrSpanTooWide indicates that F^L does not fit in a uint64 tick count.
	ErrSpanTooWide = errors.New("layout: total span overflows 64-bit ticks")

	// ErrBeyondSpan indicates a deadline farther out than the wheel's total
	// span. Raised by Locate; callers surface it as their out-of-range error.
	ErrBeyondSpan = errors.New("layout: deadline beyond wheel span")
)

// Layout captures the slot geometry of one wheel configuration. It is
// immutable after New and safe to share between wheel instances.
type Layout struct {
	fanout uint64
	mask   uint64
	shift  uint
	levels int

	// spans[k] = F^(k+1): the largest delta (inclusive) that level k can
	// hold. spans[levels-1] is the wheel's total span.
	spans []uint64
}

// New builds the geometry for a wheel with the given fan-out (slots per
// level) and level count.
func New(fanout, levels int) (*Layout, error) {
	if fanout < 2 || bits.OnesCount(uint(fanout)) != 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrBadFanout, fanout)
	}
	if levels < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrBadLevels, levels)
	}

	shift := uint(bits.TrailingZeros(uint(fanout)))
	// F^L = 2^(L*shift) must be representable, with headroom for the tick
	// counter itself to keep advancing past a full span.
	if uint(levels)*shift >= 64 {
		return nil, fmt.Errorf("%w (fanout %d, levels %d)", ErrSpanTooWide, fanout, levels)
	}

	l := &Layout{
		fanout: uint64(fanout),
		mask:   uint64(fanout) - 1,
		shift:  shift,
		levels: levels,
		spans:  make([]uint64, levels),
	}
	for k := 0; k < levels; k++ {
		l.spans[k] = uint64(1) << (uint(k+1) * shift)
	}
	return l, nil
}

// Fanout returns the number of slots per level.
func (l *Layout) Fanout() int { return int(l.fanout) }

// Levels returns the number of levels.
func (l *Layout) Levels() int { return l.levels }

// Span returns the total span in base ticks: the largest timeout, inclusive,
// that the wheel can represent.
func (l *Layout) Span() uint64 { return l.spans[l.levels-1] }

// SlotWidth returns the width of one slot at the given level, in base ticks.
func (l *Layout) SlotWidth(level int) uint64 {
	return uint64(1) << (uint(level) * l.shift)
}

// SlotIndex returns the derived cursor position of the given level at the
// given absolute tick.
func (l *Layout) SlotIndex(tick uint64, level int) int {
	return int((tick >> (uint(level) * l.shift)) & l.mask)
}

// Wraps reports whether the levels below the given level complete a full
// rotation at the given tick, i.e. whether that level's slot must cascade.
// Level 0 trivially "wraps" every tick.
func (l *Layout) Wraps(tick uint64, level int) bool {
	return tick&(l.SlotWidth(level)-1) == 0
}

// Locate maps an absolute deadline to its (level, slot) placement relative
// to the current tick. Level k is the finest level whose span still covers
// the remaining delta; within it the slot index depends only on the deadline
// itself, which is what keeps cascaded entries converging onto the same
// level-0 slot that finally expires them.
//
// A delta of zero places the deadline in the level-0 slot for the current
// tick. That only arises during cascading, where the caller expires that
// slot in the same step.
func (l *Layout) Locate(now, deadline uint64) (level, slot int, err error) {
	var delta uint64
	if deadline > now {
		delta = deadline - now
	}
	for k := 0; k < l.levels; k++ {
		if delta <= l.spans[k] {
			return k, l.SlotIndex(deadline, k), nil
		}
	}
	return 0, 0, fmt.Errorf("%w (delta %d, span %d)", ErrBeyondSpan, delta, l.Span())
}
