package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/joshuapare/wheelkit/wheel"
	"github.com/spf13/cobra"
)

var (
	runVariant   string
	runOps       int
	runSlots     int
	runLevels    int
	runMaxTimers int
	runSeed      int64
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runVariant, "variant", "alloc", "Storage variant: alloc or copy")
	cmd.Flags().IntVar(&runOps, "ops", 1_000_000, "Number of operations to run")
	cmd.Flags().IntVar(&runSlots, "slots", 64, "Slots per level (power of two)")
	cmd.Flags().IntVar(&runLevels, "levels", 3, "Number of levels")
	cmd.Flags().IntVar(&runMaxTimers, "max-timers", 1<<16, "Slab capacity (copy variant)")
	cmd.Flags().Int64Var(&runSeed, "seed", 1, "Workload RNG seed")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload against one variant",
		Long: `The run command drives a randomized start/stop/advance workload on
virtual time and reports throughput together with the wheel's counters.

Example:
  wheelbench run --variant copy --ops 5000000
  wheelbench run --variant alloc --slots 256 --levels 2 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun()
		},
	}
}

// RunReport is the result of one workload run.
type RunReport struct {
	Variant   string
	Ops       int
	Duration  time.Duration
	OpsPerSec float64
	Pending   int
	Wheel     wheel.Stats
}

func buildWheel(variant string) (wheel.Wheel[int], error) {
	cfg := &wheel.Config{
		BaseTick:      time.Nanosecond,
		SlotsPerLevel: runSlots,
		NumLevels:     runLevels,
		MaxTimers:     runMaxTimers,
	}
	switch variant {
	case "alloc":
		return wheel.NewAlloc[int](cfg)
	case "copy":
		return wheel.NewCopy[int](cfg)
	default:
		return nil, fmt.Errorf("unknown variant %q (want alloc or copy)", variant)
	}
}

func runRun() error {
	w, err := buildWheel(runVariant)
	if err != nil {
		return err
	}
	printVerbose("running %d ops against %s wheel (span %v)\n", runOps, runVariant, w.MaxTimeout())

	rng := rand.New(rand.NewSource(runSeed))
	maxTimeout := int64(w.MaxTimeout())
	var handles []wheel.Handle

	begin := time.Now()
	for i := 0; i < runOps; i++ {
		switch op := rng.Intn(10); {
		case op < 5:
			h, err := w.Start(time.Duration(1+rng.Int63n(maxTimeout)), i)
			if err == wheel.ErrCapacityExhausted {
				continue
			}
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			handles = append(handles, h)
		case op < 7:
			if len(handles) == 0 {
				continue
			}
			j := rng.Intn(len(handles))
			// Stale handles are expected: the timer may have fired already.
			_ = w.Stop(handles[j])
			handles[j] = handles[len(handles)-1]
			handles = handles[:len(handles)-1]
		default:
			w.Advance(uint64(rng.Intn(64)))
		}
	}
	took := time.Since(begin)

	report := RunReport{
		Variant:   runVariant,
		Ops:       runOps,
		Duration:  took,
		OpsPerSec: float64(runOps) / took.Seconds(),
		Pending:   w.Len(),
		Wheel:     w.Stats(),
	}
	if jsonOut {
		return printJSON(report)
	}

	fmt.Printf("variant:    %s\n", report.Variant)
	fmt.Printf("ops:        %d in %v (%.0f ops/s)\n", report.Ops, report.Duration.Round(time.Millisecond), report.OpsPerSec)
	fmt.Printf("starts:     %d\n", report.Wheel.Starts)
	fmt.Printf("stops:      %d (%d stale)\n", report.Wheel.Stops, report.Wheel.StaleStops)
	fmt.Printf("expired:    %d\n", report.Wheel.Expired)
	fmt.Printf("cascaded:   %d\n", report.Wheel.Cascaded)
	fmt.Printf("ticks:      %d\n", report.Wheel.Ticks)
	fmt.Printf("pending:    %d\n", report.Pending)
	return nil
}
