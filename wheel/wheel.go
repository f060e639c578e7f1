package wheel

import "time"

// Handle is an opaque, stable reference to a registered timer, returned by
// Start and redeemed (at most once) by Stop. Handle values are comparable
// and remain valid as identifiers after the timer fires or is stopped, but
// redeeming one at that point reports ErrStaleHandle.
type Handle interface {
	// sealed restricts implementations to this package; handles from one
	// wheel variant carry no meaning in the other.
	sealed()
}

// Expired is one timer delivered by Advance.
type Expired[P any] struct {
	// Handle is the handle Start returned for this timer. It is stale by
	// construction - the timer has fired - and serves only to correlate the
	// expiry with the registration.
	Handle Handle

	// Payload is the caller-supplied value, ownership of which passes back
	// to the caller.
	Payload P

	// Deadline is the absolute tick at which the timer was due. Advance
	// delivers it at exactly this tick.
	Deadline uint64
}

// Stats holds per-wheel operation counters.
type Stats struct {
	Starts     int    // successful Start calls
	Stops      int    // successful Stop calls
	StaleStops int    // Stop calls rejected with ErrStaleHandle
	Expired    int    // entries delivered by Advance
	Cascaded   int    // entries relocated between levels by cascading
	Ticks      uint64 // base ticks processed by Advance
}

// Wheel is the contract shared by both storage variants. All operations are
// synchronous, non-blocking, and O(1) (amortized, for Advance, per expiring
// entry); none of them are safe for concurrent use without external mutual
// exclusion.
type Wheel[P any] interface {
	// Start registers a timer to fire no earlier than timeout from the
	// wheel's current tick. The timeout is rounded up to whole base ticks;
	// zero rounds to one tick. Fails with ErrOutOfRange when the timeout
	// exceeds MaxTimeout, or ErrCapacityExhausted when a CopyWheel's slab
	// is full; neither failure mutates any state.
	Start(timeout time.Duration, payload P) (Handle, error)

	// Stop cancels a pending timer in O(1). Returns ErrStaleHandle if the
	// timer already fired or was already stopped; that path never mutates
	// wheel state.
	Stop(h Handle) error

	// Advance moves time forward by elapsed base ticks, cascading levels as
	// they wrap, and returns every entry whose deadline was crossed, in
	// tick order. Entries sharing a tick are returned in unspecified order.
	// Advance(0) is a no-op returning nil. No entry is ever returned twice.
	Advance(elapsed uint64) []Expired[P]

	// Len returns the number of live (pending) timers.
	Len() int

	// Now returns the wheel's current absolute tick.
	Now() uint64

	// BaseTick returns the duration of one base tick.
	BaseTick() time.Duration

	// MaxTimeout returns the largest timeout Start accepts.
	MaxTimeout() time.Duration

	// Stats returns a copy of the wheel's operation counters.
	Stats() Stats
}
