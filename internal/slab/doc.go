// Package slab provides fixed-capacity, generation-checked cell storage for
// the copying timer wheel.
//
// # Overview
//
// An Arena preallocates every cell at construction and never allocates again:
// claiming and releasing a cell is a free-list push/pop, both O(1). Cells are
// addressed by index, so structures built on an Arena link by index rather
// than by pointer and survive without any per-entry heap traffic.
//
// # References and generations
//
// Arena hands out Ref values, an (index, generation) pair. Each cell carries
// a generation counter that is bumped every time the cell is released, so a
// Ref held after its cell was freed and reused no longer matches and is
// rejected with ErrStaleRef. This turns the use-after-free/double-free class
// of bug into an ordinary, testable error path.
//
// Generations never decrease. A generation would have to wrap through 2^64
// releases of a single cell before a stale Ref could collide, which is not a
// practical concern.
//
// # Free list
//
// Free cells are threaded through the cell array itself: each free cell holds
// the index of the next free cell, and Alloc pops from the head. Release
// order therefore dictates reuse order (LIFO), which keeps recently touched
// cells hot.
//
// # Thread safety
//
// Arena instances are not thread-safe. The owning wheel is itself a
// single-owner structure, so the arena inherits that contract.
package slab
