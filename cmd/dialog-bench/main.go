// dialog-bench is a benchmark and smoke-test CLI for the fact engine and
// prolly tree. It exercises assert throughput, Current lookup cost, and a
// local two-replica sync round trip, the way cmd/garland-bench exercises
// its editing operations.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dialog-db/dialog/blob"
	"github.com/dialog-db/dialog/fact"
	"github.com/dialog-db/dialog/syncclient"
	"github.com/dialog-db/dialog/value"
	"github.com/spf13/cobra"
)

// BenchResult matches one benchmark's name, wall time, and operation
// count, printed in a fixed-width summary line.
type BenchResult struct {
	Name     string
	Duration time.Duration
	Ops      int
}

func (r BenchResult) String() string {
	if r.Ops > 0 {
		opsPerSec := float64(r.Ops) / r.Duration.Seconds()
		return fmt.Sprintf("%-40s %12v  (%d ops, %.2f ops/sec)", r.Name, r.Duration.Round(time.Millisecond), r.Ops, opsPerSec)
	}
	return fmt.Sprintf("%-40s %12v", r.Name, r.Duration.Round(time.Millisecond))
}

func main() {
	var factCount int

	root := &cobra.Command{
		Use:   "dialog-bench",
		Short: "Benchmark and smoke-test the dialog fact store",
	}

	assertCmd := &cobra.Command{
		Use:   "assert",
		Short: "Benchmark Assert/Select throughput over a memory blob store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssertBench(factCount)
		},
	}
	assertCmd.Flags().IntVar(&factCount, "facts", 5000, "number of facts to assert")
	root.AddCommand(assertCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Smoke-test a two-replica push/pull/merge round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncSmoke()
		},
	}
	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAssertBench(count int) error {
	fmt.Println("Dialog Fact Engine Benchmark")
	fmt.Println("=============================")
	fmt.Printf("Facts: %d\n", count)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Println()

	store := blob.NewMemoryStore()
	engine := fact.New(store)
	attr := value.Name("bench/counter")

	entities := make([]fact.Entity, count)
	for i := range entities {
		entities[i] = fact.NewEntity()
	}

	start := time.Now()
	for i, e := range entities {
		if _, err := engine.Assert(mainCtx(), attr, e, value.OfInt(int64(i)), nil); err != nil {
			return err
		}
	}
	assertResult := BenchResult{Name: "Assert", Duration: time.Since(start), Ops: count}
	fmt.Println(assertResult)

	start = time.Now()
	for _, e := range entities {
		if _, _, err := engine.Current(mainCtx(), attr, e); err != nil {
			return err
		}
	}
	selectResult := BenchResult{Name: "Current lookup", Duration: time.Since(start), Ops: count}
	fmt.Println(selectResult)

	stats, err := engine.Stats(mainCtx())
	if err != nil {
		return err
	}
	fmt.Printf("\nFinal index sizes: eav=%d aev=%d vae=%d\n", stats.EAVCount, stats.AEVCount, stats.VAECount)
	return nil
}

func runSyncSmoke() error {
	fmt.Println("Dialog Sync Smoke Test")
	fmt.Println("=======================")

	store := blob.NewMemoryStore()
	pointer := newMemoryPointer()

	a := fact.New(store)
	clientA := syncclient.New(a, store, pointer)
	b := fact.New(store)
	clientB := syncclient.New(b, store, pointer)

	attr := value.Name("profile/handle")
	alice := fact.NewEntity()
	if _, err := a.Assert(mainCtx(), attr, alice, value.OfString("alice"), nil); err != nil {
		return err
	}
	if err := clientA.Push(mainCtx()); err != nil {
		return err
	}
	if err := clientB.Pull(mainCtx()); err != nil {
		return err
	}

	_, ok, err := b.Current(mainCtx(), attr, alice)
	if err != nil {
		return err
	}
	fmt.Printf("replica B sees alice after pull: %v\n", ok)
	return nil
}
