package wheel

import (
	"time"

	"github.com/joshuapare/wheelkit/internal/layout"
	"github.com/joshuapare/wheelkit/internal/slab"
)

// noIdx terminates index-linked slot lists.
const noIdx = ^uint32(0)

// centry is one slab-resident timer entry. Slot membership is a doubly
// linked list of cell indices rather than pointers: cells never move, and
// index links cannot dangle into freed heap memory. Because a list head
// lives in the slot table, not in a sentinel cell, each entry records its
// (level, slot) coordinates so unlinking the head can patch the table.
type centry[P any] struct {
	deadline uint64
	payload  P
	prev     uint32
	next     uint32
	level    int32
	slot     int32
}

// copyHandle is the CopyWheel handle: a generation-checked slab reference,
// tagged with the issuing wheel so handles cannot cross wheels.
type copyHandle struct {
	w   any
	ref slab.Ref
}

func (copyHandle) sealed() {}

// CopyWheel is the copying storage variant: entries live in a slab of
// Config.MaxTimers cells preallocated at construction, so the wheel
// performs no dynamic allocation after New. In exchange, Start fails with
// ErrCapacityExhausted while MaxTimers timers are already outstanding, and
// cancellations through stale handles are detected via the slab's
// generation counters.
type CopyWheel[P any] struct {
	geo   *layout.Layout
	base  time.Duration
	tick  uint64
	arena *slab.Arena[centry[P]]

	// heads[level][slot] is the index of that slot's first entry, or noIdx.
	heads [][]uint32

	stats Stats
}

var _ Wheel[int] = (*CopyWheel[int])(nil)

// NewCopy creates a copying wheel with a slab of Config.MaxTimers cells.
// Pass nil to use the default configuration.
func NewCopy[P any](config *Config) (*CopyWheel[P], error) {
	cfg := config.withDefaults()
	geo, err := cfg.geometry()
	if err != nil {
		return nil, err
	}
	arena, err := slab.New[centry[P]](cfg.MaxTimers)
	if err != nil {
		return nil, err
	}

	w := &CopyWheel[P]{
		geo:   geo,
		base:  cfg.BaseTick,
		arena: arena,
		heads: make([][]uint32, geo.Levels()),
	}
	for l := range w.heads {
		w.heads[l] = make([]uint32, geo.Fanout())
		for s := range w.heads[l] {
			w.heads[l][s] = noIdx
		}
	}
	return w, nil
}

// Start registers a timer. See Wheel.Start for the contract.
func (w *CopyWheel[P]) Start(timeout time.Duration, payload P) (Handle, error) {
	deadline := w.tick + ticksFor(w.base, timeout)
	level, slot, err := w.geo.Locate(w.tick, deadline)
	if err != nil {
		return nil, ErrOutOfRange
	}

	ref, e, err := w.arena.Alloc()
	if err != nil {
		return nil, ErrCapacityExhausted
	}
	e.deadline = deadline
	e.payload = payload
	w.push(level, slot, ref.Index, e)
	w.stats.Starts++
	return copyHandle{w: w, ref: ref}, nil
}

// Stop cancels a pending timer. See Wheel.Stop for the contract.
func (w *CopyWheel[P]) Stop(h Handle) error {
	ch, ok := h.(copyHandle)
	if !ok || ch.w != any(w) {
		w.stats.StaleStops++
		return ErrStaleHandle
	}
	e, ok := w.arena.Get(ch.ref)
	if !ok {
		w.stats.StaleStops++
		return ErrStaleHandle
	}
	w.unlink(ch.ref.Index, e)
	// Cannot fail: Get just validated the generation.
	_ = w.arena.Free(ch.ref)
	w.stats.Stops++
	return nil
}

// Advance moves time forward. See Wheel.Advance for the contract.
func (w *CopyWheel[P]) Advance(elapsed uint64) []Expired[P] {
	var out []Expired[P]
	for ; elapsed > 0; elapsed-- {
		w.tick++
		w.stats.Ticks++

		for lvl := 1; lvl < w.geo.Levels() && w.geo.Wraps(w.tick, lvl); lvl++ {
			w.cascade(lvl)
		}

		out = w.expire(out)
	}
	return out
}

// Len returns the number of pending timers.
func (w *CopyWheel[P]) Len() int { return w.arena.Len() }

// Now returns the current absolute tick.
func (w *CopyWheel[P]) Now() uint64 { return w.tick }

// BaseTick returns the duration of one base tick.
func (w *CopyWheel[P]) BaseTick() time.Duration { return w.base }

// MaxTimeout returns the largest timeout Start accepts.
func (w *CopyWheel[P]) MaxTimeout() time.Duration {
	return ticksToMaxDuration(w.geo.Span(), w.base)
}

// Cap returns the slab capacity: the configured bound on concurrently
// outstanding timers.
func (w *CopyWheel[P]) Cap() int { return w.arena.Cap() }

// Stats returns a copy of the wheel's counters.
func (w *CopyWheel[P]) Stats() Stats { return w.stats }

// SlabStats exposes the underlying arena counters, useful when tuning
// MaxTimers for a workload.
func (w *CopyWheel[P]) SlabStats() slab.Stats { return w.arena.Stats() }

// cascade redistributes the just-reached slot of the given level into finer
// levels.
func (w *CopyWheel[P]) cascade(level int) {
	slot := w.geo.SlotIndex(w.tick, level)
	for idx := w.heads[level][slot]; idx != noIdx; {
		e := w.arena.At(idx)
		next := e.next
		w.unlink(idx, e)

		lvl, s, err := w.geo.Locate(w.tick, e.deadline)
		if err != nil {
			// Cascading only shrinks an entry's delta; reaching here means
			// the engine's placement math is broken.
			panic("wheel: cascade produced out-of-range placement")
		}
		w.push(lvl, s, idx, e)
		w.stats.Cascaded++
		idx = next
	}
}

// expire drains the level-0 slot for the current tick and releases the
// cells back to the slab, bumping their generations so outstanding handles
// go stale.
func (w *CopyWheel[P]) expire(out []Expired[P]) []Expired[P] {
	slot := w.geo.SlotIndex(w.tick, 0)
	for idx := w.heads[0][slot]; idx != noIdx; {
		e := w.arena.At(idx)
		next := e.next
		ref := w.arena.RefAt(idx)

		out = append(out, Expired[P]{
			Handle:   copyHandle{w: w, ref: ref},
			Payload:  e.payload,
			Deadline: e.deadline,
		})

		w.unlink(idx, e)
		_ = w.arena.Free(ref)
		w.stats.Expired++
		idx = next
	}
	return out
}

// push prepends the cell at idx to the slot list at (level, slot).
func (w *CopyWheel[P]) push(level, slot int, idx uint32, e *centry[P]) {
	head := w.heads[level][slot]
	e.prev = noIdx
	e.next = head
	e.level = int32(level)
	e.slot = int32(slot)
	if head != noIdx {
		w.arena.At(head).prev = idx
	}
	w.heads[level][slot] = idx
}

// unlink detaches the cell at idx from its slot list in O(1).
func (w *CopyWheel[P]) unlink(idx uint32, e *centry[P]) {
	if e.prev != noIdx {
		w.arena.At(e.prev).next = e.next
	} else {
		w.heads[e.level][e.slot] = e.next
	}
	if e.next != noIdx {
		w.arena.At(e.next).prev = e.prev
	}
	e.prev = noIdx
	e.next = noIdx
}
