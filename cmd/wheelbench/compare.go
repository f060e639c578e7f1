package main

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/joshuapare/wheelkit/wheel"
	"github.com/spf13/cobra"
)

var (
	compareOps  int
	compareSeed int64
)

func init() {
	cmd := newCompareCmd()
	cmd.Flags().IntVar(&compareOps, "ops", 100_000, "Number of operations to run")
	cmd.Flags().Int64Var(&compareSeed, "seed", 1, "Workload RNG seed")
	rootCmd.AddCommand(cmd)
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Cross-check both variants on an identical workload",
		Long: `The compare command feeds the same randomized operation sequence to an
allocating wheel and a copying wheel and verifies that every Advance call
returns the same expiries from both. A divergence is reported with the
operation index at which the variants disagreed.

Example:
  wheelbench compare --ops 1000000 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare()
		},
	}
}

// CompareReport is the result of one cross-check.
type CompareReport struct {
	Ops      int
	Seed     int64
	Advances int
	Expired  int
	Match    bool
}

// expiryKey reduces one expiry to its comparable identity. Intra-tick
// ordering is unspecified, so batches are compared as sorted sets.
type expiryKey struct {
	deadline uint64
	payload  int
}

func sortedKeys(batch []wheel.Expired[int]) []expiryKey {
	keys := make([]expiryKey, len(batch))
	for i, e := range batch {
		keys[i] = expiryKey{deadline: e.Deadline, payload: e.Payload}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].deadline != keys[j].deadline {
			return keys[i].deadline < keys[j].deadline
		}
		return keys[i].payload < keys[j].payload
	})
	return keys
}

func runCompare() error {
	cfg := &wheel.Config{
		BaseTick:      time.Nanosecond,
		SlotsPerLevel: runSlots,
		NumLevels:     runLevels,
		MaxTimers:     compareOps,
	}
	aw, err := wheel.NewAlloc[int](cfg)
	if err != nil {
		return err
	}
	cw, err := wheel.NewCopy[int](cfg)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(compareSeed))
	maxTimeout := int64(aw.MaxTimeout())
	var ah, ch []wheel.Handle

	report := CompareReport{Ops: compareOps, Seed: compareSeed, Match: true}
	for i := 0; i < compareOps; i++ {
		switch op := rng.Intn(10); {
		case op < 5:
			timeout := time.Duration(1 + rng.Int63n(maxTimeout))
			a, aerr := aw.Start(timeout, i)
			c, cerr := cw.Start(timeout, i)
			if (aerr == nil) != (cerr == nil) {
				return fmt.Errorf("op %d: start diverged: alloc=%v copy=%v", i, aerr, cerr)
			}
			if aerr == nil {
				ah = append(ah, a)
				ch = append(ch, c)
			}
		case op < 7:
			if len(ah) == 0 {
				continue
			}
			j := rng.Intn(len(ah))
			aerr := aw.Stop(ah[j])
			cerr := cw.Stop(ch[j])
			if (aerr == nil) != (cerr == nil) {
				return fmt.Errorf("op %d: stop diverged: alloc=%v copy=%v", i, aerr, cerr)
			}
			ah[j], ah = ah[len(ah)-1], ah[:len(ah)-1]
			ch[j], ch = ch[len(ch)-1], ch[:len(ch)-1]
		default:
			n := uint64(rng.Intn(64))
			akeys := sortedKeys(aw.Advance(n))
			ckeys := sortedKeys(cw.Advance(n))
			report.Advances++
			if len(akeys) != len(ckeys) {
				return fmt.Errorf("op %d: expiry count diverged: alloc=%d copy=%d", i, len(akeys), len(ckeys))
			}
			for k := range akeys {
				if akeys[k] != ckeys[k] {
					return fmt.Errorf("op %d: expiry diverged: alloc=%v copy=%v", i, akeys[k], ckeys[k])
				}
			}
			report.Expired += len(akeys)
		}
		if aw.Len() != cw.Len() {
			return fmt.Errorf("op %d: pending count diverged: alloc=%d copy=%d", i, aw.Len(), cw.Len())
		}
	}

	if jsonOut {
		return printJSON(report)
	}
	fmt.Printf("ops:      %d (seed %d)\n", report.Ops, report.Seed)
	fmt.Printf("advances: %d\n", report.Advances)
	fmt.Printf("expired:  %d per variant\n", report.Expired)
	fmt.Println("variants agree")
	return nil
}
