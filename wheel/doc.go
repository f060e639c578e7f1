// Package wheel implements hierarchical timer wheels: a data structure for
// managing large populations of timeouts with O(1) registration and
// cancellation.
//
// # Overview
//
// A wheel tracks time as an integer tick counter. It owns a small number of
// levels, each a ring of power-of-two many slots; level k's slots are F^k
// base ticks wide, so coarse levels hold far-out deadlines with little
// precision and fine levels recover that precision as deadlines approach.
// Advancing the wheel rotates level 0 one slot per base tick, expires the
// slot it reaches, and on wraparound redistributes ("cascades") the next
// coarser level's slot into finer levels.
//
// The design is optimized for workloads where most timers are cancelled
// before firing - connection timeouts, retransmission timers, lease
// expirations - not for workloads dominated by expiry.
//
// # Variants
//
// Two implementations share the Wheel interface and differ only in entry
// storage:
//
//   - AllocWheel: one heap allocation per timer; slots are intrusive doubly
//     linked lists of nodes. No capacity limit, simplest to reason about.
//   - CopyWheel: entries live in a fixed-capacity slab preallocated at
//     construction; slots link cells by index and handles carry a generation
//     counter so stale handles are detected rather than corrupting storage.
//     Zero dynamic allocation after construction, bounded concurrency.
//
// # Driving the wheel
//
// The wheel does not read clocks and does not run goroutines. The caller
// owns the loop: obtain elapsed time however suits the application, convert
// it to base ticks, and call Advance. Expired entries are returned in tick
// order; entries sharing a tick are returned in unspecified order relative
// to each other.
//
//	w, err := wheel.NewAlloc[string](nil)
//	if err != nil {
//	    return err
//	}
//	h, err := w.Start(150*time.Millisecond, "conn-42")
//	if err != nil {
//	    return err
//	}
//	// ... every BaseTick:
//	for _, e := range w.Advance(1) {
//	    onTimeout(e.Payload)
//	}
//	// ... or cancel before it fires:
//	_ = w.Stop(h) // wheel.ErrStaleHandle once fired or already stopped
//
// The driver subpackage packages one such loop (a ticker goroutine plus the
// external locking the contract requires) for callers that do not already
// have an event loop to hang the wheel on.
//
// # Timeout range and rounding
//
// Timeouts are rounded up to whole base ticks; zero and negative timeouts
// round to one tick and therefore fire on the next Advance. The largest
// representable timeout is BaseTick x F^L (Config.MaxTimeout); Start rejects
// longer timeouts with ErrOutOfRange before touching any state.
//
// # Thread safety
//
// Wheel instances are single-owner: no operation blocks, suspends, or takes
// a lock, which keeps the hot path free of synchronization cost on the
// event-loop threads the structure is built for. Callers that share a wheel
// across goroutines must impose external mutual exclusion, or own one wheel
// per shard.
package wheel
