package wheel

import (
	"fmt"
	"math"
	"time"

	"github.com/joshuapare/wheelkit/internal/layout"
)

// Defaults applied by the constructors when a Config field is zero.
const (
	// DefaultBaseTick is the default resolution of the wheel.
	DefaultBaseTick = 10 * time.Millisecond

	// DefaultSlotsPerLevel is the default fan-out. 64 slots over 3 levels
	// spans 64^3 ticks (~30 days at the default base tick).
	DefaultSlotsPerLevel = 64

	// DefaultNumLevels is the default level count.
	DefaultNumLevels = 3

	// DefaultMaxTimers is the default CopyWheel slab capacity.
	DefaultMaxTimers = 4096
)

// Config carries the construction parameters shared by both wheel variants.
// The zero value of any field selects its default. Configuration is fixed at
// construction; wheels do not resize.
type Config struct {
	// BaseTick is the smallest time unit the wheel resolves. Timeouts are
	// rounded up to whole base ticks, and Advance moves time forward in
	// base-tick steps.
	// Default: 10ms
	BaseTick time.Duration

	// SlotsPerLevel is the fan-out F: the number of slots in each level's
	// ring. Must be a power of two so slot arithmetic reduces to masking.
	// Default: 64
	SlotsPerLevel int

	// NumLevels determines the maximum representable timeout,
	// BaseTick x SlotsPerLevel^NumLevels.
	// Default: 3
	NumLevels int

	// MaxTimers bounds the number of concurrently outstanding timers in a
	// CopyWheel; the slab is preallocated to exactly this many entries.
	// Ignored by AllocWheel.
	// Default: 4096
	MaxTimers int
}

// withDefaults returns c with zero fields replaced by defaults. A nil
// receiver selects the all-default configuration.
func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.BaseTick == 0 {
		out.BaseTick = DefaultBaseTick
	}
	if out.SlotsPerLevel == 0 {
		out.SlotsPerLevel = DefaultSlotsPerLevel
	}
	if out.NumLevels == 0 {
		out.NumLevels = DefaultNumLevels
	}
	if out.MaxTimers == 0 {
		out.MaxTimers = DefaultMaxTimers
	}
	return out
}

// geometry validates the resolved config and builds the slot geometry.
func (c Config) geometry() (*layout.Layout, error) {
	if c.BaseTick < 0 {
		return nil, fmt.Errorf("%w: negative base tick %v", ErrBadConfig, c.BaseTick)
	}
	if c.MaxTimers < 0 {
		return nil, fmt.Errorf("%w: negative timer capacity %d", ErrBadConfig, c.MaxTimers)
	}
	geo, err := layout.New(c.SlotsPerLevel, c.NumLevels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	return geo, nil
}

// MaxTimeout returns the largest timeout the configuration can represent,
// saturating at the maximum Duration for very wide configurations.
func (c Config) MaxTimeout() time.Duration {
	r := c.withDefaults()
	geo, err := r.geometry()
	if err != nil {
		return 0
	}
	return ticksToMaxDuration(geo.Span(), r.BaseTick)
}

// ticksFor converts a timeout to whole base ticks, rounding up. Zero and
// negative timeouts become one tick so they fire on the next Advance.
func ticksFor(base, timeout time.Duration) uint64 {
	if timeout <= 0 {
		return 1
	}
	t := uint64(timeout) / uint64(base)
	if uint64(timeout)%uint64(base) != 0 {
		t++
	}
	return t
}

// ticksToMaxDuration converts a tick span to a Duration, saturating instead
// of overflowing.
func ticksToMaxDuration(span uint64, base time.Duration) time.Duration {
	if span > uint64(math.MaxInt64)/uint64(base) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(span) * base
}
