package wheel

import (
	"time"

	"github.com/joshuapare/wheelkit/internal/layout"
)

// nodeState tracks where a node is in its lifecycle. Start leaves a node
// pending; exactly one of Stop or expiry retires it, and the state flip is
// what makes a retained handle detectably stale.
type nodeState uint8

const (
	statePending nodeState = iota
	stateFired
	stateStopped
)

// node is one heap-allocated timer entry. Slot membership is an intrusive
// doubly linked ring through prev/next, closed by a per-slot sentinel, so
// detaching never needs to know which slot the node is in.
type node[P any] struct {
	deadline uint64
	payload  P
	prev     *node[P]
	next     *node[P]
	state    nodeState
}

// allocHandle is the AllocWheel handle: a direct reference to the owned
// node, tagged with the issuing wheel so handles cannot cross wheels.
type allocHandle[P any] struct {
	w *AllocWheel[P]
	n *node[P]
}

func (allocHandle[P]) sealed() {}

// AllocWheel is the allocating storage variant: each Start heap-allocates
// one node, and Stop or expiry releases it. There is no capacity limit
// beyond available memory and no slab bookkeeping.
type AllocWheel[P any] struct {
	geo  *layout.Layout
	base time.Duration
	tick uint64

	// slots[level][slot] is the sentinel of that slot's node ring.
	slots [][]node[P]

	live  int
	stats Stats
}

var _ Wheel[int] = (*AllocWheel[int])(nil)

// NewAlloc creates an allocating wheel. Pass nil to use the default
// configuration; Config.MaxTimers is ignored by this variant.
func NewAlloc[P any](config *Config) (*AllocWheel[P], error) {
	cfg := config.withDefaults()
	geo, err := cfg.geometry()
	if err != nil {
		return nil, err
	}

	w := &AllocWheel[P]{
		geo:   geo,
		base:  cfg.BaseTick,
		slots: make([][]node[P], geo.Levels()),
	}
	for l := range w.slots {
		w.slots[l] = make([]node[P], geo.Fanout())
		for s := range w.slots[l] {
			sent := &w.slots[l][s]
			sent.prev = sent
			sent.next = sent
		}
	}
	return w, nil
}

// Start registers a timer. See Wheel.Start for the contract.
func (w *AllocWheel[P]) Start(timeout time.Duration, payload P) (Handle, error) {
	deadline := w.tick + ticksFor(w.base, timeout)
	level, slot, err := w.geo.Locate(w.tick, deadline)
	if err != nil {
		return nil, ErrOutOfRange
	}

	n := &node[P]{deadline: deadline, payload: payload}
	w.push(level, slot, n)
	w.live++
	w.stats.Starts++
	return allocHandle[P]{w: w, n: n}, nil
}

// Stop cancels a pending timer. See Wheel.Stop for the contract.
func (w *AllocWheel[P]) Stop(h Handle) error {
	ah, ok := h.(allocHandle[P])
	if !ok || ah.w != w || ah.n == nil || ah.n.state != statePending {
		w.stats.StaleStops++
		return ErrStaleHandle
	}
	n := ah.n
	unlink(n)
	n.state = stateStopped
	var zero P
	n.payload = zero
	w.live--
	w.stats.Stops++
	return nil
}

// Advance moves time forward. See Wheel.Advance for the contract.
func (w *AllocWheel[P]) Advance(elapsed uint64) []Expired[P] {
	var out []Expired[P]
	for ; elapsed > 0; elapsed-- {
		w.tick++
		w.stats.Ticks++

		// Cascade every level whose finer levels just completed a full
		// rotation, finest first. Entries strictly descend, so a cascaded
		// entry due this very tick lands in the level-0 slot expired below.
		for lvl := 1; lvl < w.geo.Levels() && w.geo.Wraps(w.tick, lvl); lvl++ {
			w.cascade(lvl)
		}

		out = w.expire(out)
	}
	return out
}

// Len returns the number of pending timers.
func (w *AllocWheel[P]) Len() int { return w.live }

// Now returns the current absolute tick.
func (w *AllocWheel[P]) Now() uint64 { return w.tick }

// BaseTick returns the duration of one base tick.
func (w *AllocWheel[P]) BaseTick() time.Duration { return w.base }

// MaxTimeout returns the largest timeout Start accepts.
func (w *AllocWheel[P]) MaxTimeout() time.Duration {
	return ticksToMaxDuration(w.geo.Span(), w.base)
}

// Stats returns a copy of the wheel's counters.
func (w *AllocWheel[P]) Stats() Stats { return w.stats }

// cascade redistributes the just-reached slot of the given level into finer
// levels.
func (w *AllocWheel[P]) cascade(level int) {
	sent := &w.slots[level][w.geo.SlotIndex(w.tick, level)]
	for n := sent.next; n != sent; {
		next := n.next
		unlink(n)

		lvl, slot, err := w.geo.Locate(w.tick, n.deadline)
		if err != nil {
			// Cascading only shrinks an entry's delta; reaching here means
			// the engine's placement math is broken.
			panic("wheel: cascade produced out-of-range placement")
		}
		w.push(lvl, slot, n)
		w.stats.Cascaded++
		n = next
	}
}

// expire drains the level-0 slot for the current tick. Level-0 slots are
// one tick wide, so everything in the slot is due exactly now.
func (w *AllocWheel[P]) expire(out []Expired[P]) []Expired[P] {
	sent := &w.slots[0][w.geo.SlotIndex(w.tick, 0)]
	for n := sent.next; n != sent; {
		next := n.next
		unlink(n)
		n.state = stateFired

		out = append(out, Expired[P]{
			Handle:   allocHandle[P]{w: w, n: n},
			Payload:  n.payload,
			Deadline: n.deadline,
		})
		var zero P
		n.payload = zero
		w.live--
		w.stats.Expired++
		n = next
	}
	return out
}

// push appends n to the slot ring at (level, slot).
func (w *AllocWheel[P]) push(level, slot int, n *node[P]) {
	sent := &w.slots[level][slot]
	n.prev = sent.prev
	n.next = sent
	sent.prev.next = n
	sent.prev = n
}

// unlink detaches n from its ring in O(1).
func unlink[P any](n *node[P]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}
