// gru-search enumerates multi-week round-robin schedules in which every
// week scores the per-week pain optimum. It extends the paths of a source
// tree file by one or more weeks (or synthesizes week 0 when no source is
// given), spreads the work fairly across a worker pool, and survives
// interrupts by checkpointing the output so the same command resumes it.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/dispatch"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := dispatch.Options{}
	flag.IntVar(&opts.Teams, "teams", 0, "team count (even, 4..16)")
	flag.IntVar(&opts.Weeks, "weeks", 0, "target number of weeks")
	flag.StringVar(&opts.SourcePath, "source", "", "tree file of prefixes to extend (omit to start from week 0)")
	flag.StringVar(&opts.OutPath, "out", "", "output tree file; resumed in place if it already exists")
	flag.IntVar(&opts.Workers, "workers", 0, "worker pool size (0 = all CPUs)")
	flag.Int64Var(&opts.Breadth, "breadth", 500, "results per work unit before an input requeues (0 = unbounded)")
	flag.IntVar(&opts.CacheSize, "cache", 0, "week enumeration cache entries (0 = default)")
	diversify := flag.Uint("diversify", 0, "rotate candidate order per depth with this seed (0 = natural order)")
	flag.BoolVar(&opts.Shuffle, "shuffle", false, "shuffle the initial input order")
	flag.Int64Var(&opts.ShuffleSeed, "shuffle-seed", 0, "shuffle seed (0 = from the clock)")
	flag.IntVar(&opts.FirstMatchup, "first-matchup", 0, "matchup id pinned to slot 0 of a fresh week 0 (-1 = free)")
	flag.BoolVar(&opts.Validate, "validate", false, "count results only; read and write no files")
	flag.StringVar(&opts.DedupDir, "dedup-dir", "", "spill the dedup set to disk under this directory")
	flag.BoolVar(&opts.DedupLSM, "dedup-lsm", false, "keep the dedup set in an in-memory LSM instead of a hash map")

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	fset.Set("v", "1")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	flag.Parse()
	defer klog.Flush()

	opts.Diversify = uint32(*diversify)

	co, err := dispatch.New(opts)
	if err != nil {
		klog.Errorf("%v", err)
		return 2
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		klog.Warningf("interrupt: finishing in-flight units and checkpointing")
		co.Stop()
		select {
		case <-co.Done():
		case <-sigCh:
			klog.Errorf("second interrupt: exiting without a checkpoint")
			klog.Flush()
			os.Exit(130)
		}
	}()

	sum, err := co.Run()
	if err != nil {
		klog.Errorf("search failed: %v", err)
		return 1
	}

	if sum.Interrupted {
		fmt.Printf("interrupted: %d paths so far, %d of %d inputs finished\n", sum.Paths, sum.Retired, sum.Inputs)
		fmt.Printf("resume with: %s\n", strings.Join(os.Args, " "))
	} else {
		fmt.Printf("done: %d paths from %d inputs in %d units (%d duplicates dropped, %d carried forward)\n",
			sum.Paths, sum.Inputs, sum.Units, sum.Dupes, sum.CopiedFwd)
	}
	return 0
}
