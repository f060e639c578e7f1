package slab

// noCell is the free-list terminator.
const noCell = ^uint32(0)

// Ref identifies one live cell: the cell's index plus the generation the
// cell had when the Ref was issued. A Ref is only honored while both match.
type Ref struct {
	Index      uint32
	Generation uint64
}

// cell wraps one stored value with its bookkeeping. The next field is only
// meaningful while the cell is on the free list.
type cell[T any] struct {
	gen  uint64
	next uint32
	live bool
	val  T
}

// Stats holds internal arena counters, in the spirit of allocator
// instrumentation: cheap to maintain, useful in tests and benchmarks.
type Stats struct {
	AllocCalls int // total successful Alloc calls
	FreeCalls  int // total successful Free calls
	FailedFull int // Alloc calls rejected because the arena was full
	StaleFrees int // Free calls rejected for a stale or bad Ref
	HighWater  int // maximum number of simultaneously live cells
}

// Arena is fixed-capacity storage for values of type T with generation
// checking. See the package documentation for the full contract.
type Arena[T any] struct {
	cells    []cell[T]
	freeHead uint32
	live     int
	stats    Stats
}

// New creates an arena with the given capacity. All storage is allocated
// here; Alloc and Free never touch the heap.
func New[T any](capacity int) (*Arena[T], error) {
	if capacity < 1 {
		return nil, ErrBadCapacity
	}
	a := &Arena[T]{
		cells:    make([]cell[T], capacity),
		freeHead: 0,
	}
	for i := range a.cells {
		a.cells[i].next = uint32(i + 1)
	}
	a.cells[capacity-1].next = noCell
	return a, nil
}

// Alloc claims a free cell and returns its Ref together with a pointer to
// the (zeroed) value. Returns ErrFull when no cell is free.
func (a *Arena[T]) Alloc() (Ref, *T, error) {
	if a.freeHead == noCell {
		a.stats.FailedFull++
		return Ref{}, nil, ErrFull
	}
	idx := a.freeHead
	c := &a.cells[idx]
	a.freeHead = c.next
	c.next = noCell
	c.live = true

	a.live++
	a.stats.AllocCalls++
	if a.live > a.stats.HighWater {
		a.stats.HighWater = a.live
	}
	return Ref{Index: idx, Generation: c.gen}, &c.val, nil
}

// Free releases the cell behind ref and bumps its generation so any
// outstanding Ref to it becomes stale. The stored value is zeroed so the
// arena does not pin caller payloads.
func (a *Arena[T]) Free(ref Ref) error {
	c, err := a.lookup(ref)
	if err != nil {
		a.stats.StaleFrees++
		return err
	}
	c.gen++
	c.live = false
	var zero T
	c.val = zero
	c.next = a.freeHead
	a.freeHead = ref.Index

	a.live--
	a.stats.FreeCalls++
	return nil
}

// Get returns the value behind ref, or false if ref is stale or out of
// range.
func (a *Arena[T]) Get(ref Ref) (*T, bool) {
	c, err := a.lookup(ref)
	if err != nil {
		return nil, false
	}
	return &c.val, true
}

// Live reports whether ref still names a live cell.
func (a *Arena[T]) Live(ref Ref) bool {
	_, err := a.lookup(ref)
	return err == nil
}

// At returns the value stored at idx without any liveness check. Intended
// for intrusive traversals where the caller already knows the cell is live
// (it reached the cell by following links it maintains itself).
func (a *Arena[T]) At(idx uint32) *T {
	return &a.cells[idx].val
}

// RefAt reconstructs the current Ref for the live cell at idx. Used when a
// traversal holds only an index and needs a checkable handle.
func (a *Arena[T]) RefAt(idx uint32) Ref {
	return Ref{Index: idx, Generation: a.cells[idx].gen}
}

// Len returns the number of live cells.
func (a *Arena[T]) Len() int { return a.live }

// Cap returns the arena capacity.
func (a *Arena[T]) Cap() int { return len(a.cells) }

// Stats returns a copy of the arena's counters.
func (a *Arena[T]) Stats() Stats { return a.stats }

func (a *Arena[T]) lookup(ref Ref) (*cell[T], error) {
	if int(ref.Index) >= len(a.cells) {
		return nil, ErrBadRef
	}
	c := &a.cells[ref.Index]
	if !c.live || c.gen != ref.Generation {
		return nil, ErrStaleRef
	}
	return c, nil
}
