package wheel

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testConfig builds a small wheel that is easy to reason about: one
// nanosecond per tick, 4 slots over 3 levels, so the span is 64 ticks and a
// timeout of N nanoseconds lands exactly N ticks out.
func testConfig() *Config {
	return &Config{
		BaseTick:      time.Nanosecond,
		SlotsPerLevel: 4,
		NumLevels:     3,
		MaxTimers:     8192,
	}
}

// variants runs a subtest against each storage variant through the shared
// Wheel interface.
func variants(t *testing.T, fn func(t *testing.T, w Wheel[string])) {
	t.Helper()
	t.Run("alloc", func(t *testing.T) {
		w, err := NewAlloc[string](testConfig())
		require.NoError(t, err)
		fn(t, w)
	})
	t.Run("copy", func(t *testing.T) {
		w, err := NewCopy[string](testConfig())
		require.NoError(t, err)
		fn(t, w)
	})
}

func TestFiresAtExactTick(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		_, err := w.Start(5, "a")
		require.NoError(t, err)
		require.Equal(t, 1, w.Len())

		out := w.Advance(5)
		require.Len(t, out, 1)
		require.Equal(t, "a", out[0].Payload)
		require.Equal(t, uint64(5), out[0].Deadline)
		require.Equal(t, uint64(5), w.Now())
		require.Equal(t, 0, w.Len())
	})
}

func TestFiresUnderSingleTickAdvances(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		_, err := w.Start(5, "a")
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			require.Empty(t, w.Advance(1))
		}
		out := w.Advance(1)
		require.Len(t, out, 1)
		require.Equal(t, "a", out[0].Payload)
	})
}

func TestStopPreventsFiring(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		h, err := w.Start(40, "a")
		require.NoError(t, err)
		require.NoError(t, w.Stop(h))
		require.Equal(t, 0, w.Len())

		require.Empty(t, w.Advance(64))
	})
}

func TestStartBeyondSpan(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		h, err := w.Start(70, "a")
		require.ErrorIs(t, err, ErrOutOfRange)
		require.Nil(t, h)
		require.Equal(t, 0, w.Len())

		// The span bound is inclusive.
		_, err = w.Start(64, "b")
		require.NoError(t, err)

		out := w.Advance(64)
		require.Len(t, out, 1)
		require.Equal(t, "b", out[0].Payload)
		require.Equal(t, uint64(64), out[0].Deadline)
	})
}

func TestZeroAndNegativeTimeoutFireNextTick(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		_, err := w.Start(0, "zero")
		require.NoError(t, err)
		_, err = w.Start(-time.Second, "neg")
		require.NoError(t, err)

		out := w.Advance(1)
		require.Len(t, out, 2)
		for _, e := range out {
			require.Equal(t, uint64(1), e.Deadline)
		}
	})
}

func TestStopTwice(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		h, err := w.Start(10, "a")
		require.NoError(t, err)
		require.NoError(t, w.Stop(h))
		require.ErrorIs(t, w.Stop(h), ErrStaleHandle)
	})
}

func TestStopAfterFire(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		h, err := w.Start(3, "a")
		require.NoError(t, err)

		out := w.Advance(3)
		require.Len(t, out, 1)
		require.ErrorIs(t, w.Stop(h), ErrStaleHandle)
		require.ErrorIs(t, w.Stop(out[0].Handle), ErrStaleHandle)
	})
}

func TestStopForeignHandle(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		other, err := NewAlloc[string](testConfig())
		require.NoError(t, err)
		h, err := other.Start(10, "a")
		require.NoError(t, err)

		require.ErrorIs(t, w.Stop(h), ErrStaleHandle)
		require.Equal(t, 1, other.Len())
	})
}

func TestStopNilHandle(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		require.ErrorIs(t, w.Stop(nil), ErrStaleHandle)
	})
}

func TestAdvanceZeroIsNoop(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		_, err := w.Start(1, "a")
		require.NoError(t, err)
		require.Nil(t, w.Advance(0))
		require.Equal(t, uint64(0), w.Now())
		require.Equal(t, 1, w.Len())
	})
}

func TestAdvanceDeliversInTickOrder(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		deadlines := []uint64{17, 3, 64, 1, 40, 3, 22}
		for _, d := range deadlines {
			_, err := w.Start(time.Duration(d), fmt.Sprintf("t%d", d))
			require.NoError(t, err)
		}

		out := w.Advance(64)
		require.Len(t, out, len(deadlines))
		for i := 1; i < len(out); i++ {
			require.LessOrEqual(t, out[i-1].Deadline, out[i].Deadline)
		}
	})
}

func TestStartFromNonzeroTick(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		// Push the wheel well past its span so every cursor has wrapped at
		// least once, then check placement is still exact.
		require.Empty(t, w.Advance(150))

		_, err := w.Start(37, "a")
		require.NoError(t, err)

		require.Empty(t, w.Advance(36))
		out := w.Advance(1)
		require.Len(t, out, 1)
		require.Equal(t, uint64(187), out[0].Deadline)
	})
}

func TestMaxTimeout(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		require.Equal(t, 64*time.Nanosecond, w.MaxTimeout())

		_, err := w.Start(w.MaxTimeout(), "edge")
		require.NoError(t, err)
		_, err = w.Start(w.MaxTimeout()+1, "over")
		require.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestStats(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		h1, err := w.Start(2, "a")
		require.NoError(t, err)
		_, err = w.Start(20, "b")
		require.NoError(t, err)
		require.NoError(t, w.Stop(h1))
		require.ErrorIs(t, w.Stop(h1), ErrStaleHandle)

		out := w.Advance(20)
		require.Len(t, out, 1)

		st := w.Stats()
		require.Equal(t, 2, st.Starts)
		require.Equal(t, 1, st.Stops)
		require.Equal(t, 1, st.StaleStops)
		require.Equal(t, 1, st.Expired)
		require.Equal(t, uint64(20), st.Ticks)
	})
}

func TestTimeoutRounding(t *testing.T) {
	cfg := &Config{
		BaseTick:      10 * time.Millisecond,
		SlotsPerLevel: 4,
		NumLevels:     3,
	}
	variantsWith(t, cfg, func(t *testing.T, w Wheel[string]) {
		// 15ms rounds up to 2 ticks, 20ms is exactly 2.
		_, err := w.Start(15*time.Millisecond, "partial")
		require.NoError(t, err)
		_, err = w.Start(20*time.Millisecond, "exact")
		require.NoError(t, err)

		require.Empty(t, w.Advance(1))
		out := w.Advance(1)
		require.Len(t, out, 2)
	})
}

func variantsWith(t *testing.T, cfg *Config, fn func(t *testing.T, w Wheel[string])) {
	t.Helper()
	t.Run("alloc", func(t *testing.T) {
		w, err := NewAlloc[string](cfg)
		require.NoError(t, err)
		fn(t, w)
	})
	t.Run("copy", func(t *testing.T) {
		w, err := NewCopy[string](cfg)
		require.NoError(t, err)
		fn(t, w)
	})
}

func TestBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"fanout not power of two", Config{SlotsPerLevel: 48}},
		{"fanout too small", Config{SlotsPerLevel: 1}},
		{"negative levels", Config{NumLevels: -1}},
		{"negative base tick", Config{BaseTick: -time.Second}},
		{"span overflow", Config{SlotsPerLevel: 2, NumLevels: 64}},
		{"negative capacity", Config{MaxTimers: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAlloc[int](&tc.cfg)
			require.ErrorIs(t, err, ErrBadConfig)
			_, err = NewCopy[int](&tc.cfg)
			require.ErrorIs(t, err, ErrBadConfig)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	w, err := NewAlloc[int](nil)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseTick*64*64*64, w.MaxTimeout())
}

// TestVariantsAgree drives both variants through the same randomized
// sequence of starts, stops, and advances, and requires identical expiry
// behavior tick for tick.
func TestVariantsAgree(t *testing.T) {
	aw, err := NewAlloc[int](testConfig())
	require.NoError(t, err)
	cw, err := NewCopy[int](testConfig())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	var ah, ch []Handle // pending handles, index-aligned across variants

	for step := 0; step < 5000; step++ {
		switch op := rng.Intn(10); {
		case op < 5: // start
			timeout := time.Duration(rng.Intn(70)) // occasionally beyond span
			a, aerr := aw.Start(timeout, step)
			c, cerr := cw.Start(timeout, step)
			require.Equal(t, aerr == nil, cerr == nil, "step %d timeout %d", step, timeout)
			if aerr == nil {
				ah = append(ah, a)
				ch = append(ch, c)
			}
		case op < 7: // stop a random pending timer
			if len(ah) == 0 {
				continue
			}
			i := rng.Intn(len(ah))
			aerr := aw.Stop(ah[i])
			cerr := cw.Stop(ch[i])
			require.Equal(t, aerr, cerr, "step %d", step)
			ah = append(ah[:i], ah[i+1:]...)
			ch = append(ch[:i], ch[i+1:]...)
		default: // advance
			n := uint64(rng.Intn(8))
			aout := aw.Advance(n)
			cout := cw.Advance(n)
			require.Equal(t, expiries(aout), expiries(cout), "step %d", step)
		}
		require.Equal(t, aw.Len(), cw.Len(), "step %d", step)
		require.Equal(t, aw.Now(), cw.Now(), "step %d", step)
	}
}

// expiries reduces an Advance result to a comparable form: (deadline,
// payload) pairs sorted within each deadline, since intra-tick order is
// unspecified.
func expiries(out []Expired[int]) [][2]uint64 {
	pairs := make([][2]uint64, len(out))
	for i, e := range out {
		pairs[i] = [2]uint64{e.Deadline, uint64(e.Payload)}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// TestNoDoubleDelivery churns a single wheel with random operations and
// checks that every started timer is delivered at most once, at exactly its
// deadline, and never after a successful Stop.
func TestNoDoubleDelivery(t *testing.T) {
	variants(t, func(t *testing.T, w Wheel[string]) {
		rng := rand.New(rand.NewSource(7))
		type pending struct {
			h        Handle
			deadline uint64
		}
		live := map[string]pending{}
		fired := map[string]bool{}
		seq := 0

		for step := 0; step < 3000; step++ {
			switch op := rng.Intn(10); {
			case op < 5:
				timeout := time.Duration(1 + rng.Intn(64))
				id := fmt.Sprintf("p%d", seq)
				seq++
				h, err := w.Start(timeout, id)
				require.NoError(t, err)
				live[id] = pending{h: h, deadline: w.Now() + uint64(timeout)}
			case op < 7:
				for id, p := range live { // any one entry
					require.NoError(t, w.Stop(p.h))
					delete(live, id)
					break
				}
			default:
				for _, e := range w.Advance(uint64(rng.Intn(8))) {
					require.False(t, fired[e.Payload], "delivered twice: %s", e.Payload)
					fired[e.Payload] = true
					p, ok := live[e.Payload]
					require.True(t, ok, "delivered after stop: %s", e.Payload)
					require.Equal(t, p.deadline, e.Deadline)
					require.LessOrEqual(t, e.Deadline, w.Now())
					delete(live, e.Payload)
				}
			}
			require.Equal(t, len(live), w.Len())
		}
	})
}
