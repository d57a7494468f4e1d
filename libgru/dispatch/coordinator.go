// Package dispatch runs the multi-week search: it fans bounded work units
// out to a worker pool, absorbs their results through a dedup set into the
// tree store, and checkpoints cleanly when interrupted so a later run can
// pick up exactly where this one stopped.
package dispatch

import (
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/treestore"
)

// Options configures one search run.
type Options struct {
	Teams        int
	Weeks        int    // target path length
	SourcePath   string // tree file of prefixes to extend; "" synthesizes week 0
	OutPath      string // output tree file; resumed in place if it exists
	Workers      int    // worker pool size; <= 0 means GOMAXPROCS-ish NumCPU
	Breadth      int64  // results per work unit; 0 lets one unit run unbounded
	CacheSize    int    // enumeration cache entries; <= 0 means the default
	Diversify    uint32 // non-zero rotates candidate order per depth
	Shuffle      bool   // shuffle initial queue order
	ShuffleSeed  int64  // 0 seeds from the clock
	FirstMatchup int    // pin slot 0 of synthesized week 0; -1 leaves it free
	Validate     bool   // count results only; no file reads or writes
	DedupDir     string // on-disk dedup set; "" keeps it in memory
	DedupLSM     bool   // in-memory LSM dedup instead of the hash set
}

// Summary is what a finished (or checkpointed) run reports.
type Summary struct {
	Inputs      int   // source prefixes this run started from
	Retired     int   // inputs whose subtrees are now fully explored
	Units       int64 // work units dispatched
	Paths       int64 // distinct paths in the output (or counted, with Validate)
	Dupes       int64 // results dropped by the dedup set
	CopiedFwd   int64 // paths carried forward from a prior output
	Interrupted bool
}

// errAbandoned aborts a run that was interrupted before new exploration
// began; the prior output file is left untouched.
var errAbandoned = errors.New("interrupted before exploration began")

// Coordinator owns a run end to end. One goroutine calls Run; Stop may be
// called from any goroutine, any number of times.
type Coordinator struct {
	opts     Options
	lay      *gru.Layout
	cache    *libgru.EnumCache
	dedup    libgru.PathSet
	store    *treestore.Writer
	queue    inputQueue
	srcDepth int

	workCh   chan unit
	resultCh chan unitResult
	workerWG sync.WaitGroup

	stopping atomic.Bool
	closing  chan struct{}
	closed   chan struct{}

	summary Summary
	runErr  error
	keyBuf  []byte
}

func New(opts Options) (*Coordinator, error) {
	lay, err := gru.NewLayout(opts.Teams)
	if err != nil {
		return nil, err
	}
	if opts.Weeks < 1 {
		return nil, errors.Wrapf(gru.ErrWeekCount, "weeks=%d", opts.Weeks)
	}
	if opts.Validate && (opts.SourcePath != "" || opts.OutPath != "") {
		return nil, errors.New("validate runs touch no files; drop the source and output paths")
	}
	if !opts.Validate && opts.OutPath == "" {
		return nil, errors.New("an output path is required")
	}
	if opts.FirstMatchup < -1 || opts.FirstMatchup >= lay.Matchups {
		return nil, errors.Wrapf(gru.ErrBadMatchup, "first matchup %d of %d", opts.FirstMatchup, lay.Matchups)
	}
	if opts.Breadth < 0 {
		return nil, errors.Errorf("breadth %d is negative", opts.Breadth)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	co := &Coordinator{
		opts:    opts,
		lay:     lay,
		cache:   libgru.NewEnumCache(lay, opts.CacheSize),
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	switch {
	case opts.DedupDir != "":
		co.dedup = libgru.NewLSMSet(opts.DedupDir)
	case opts.DedupLSM:
		co.dedup = libgru.NewLSMSet("")
	default:
		co.dedup = libgru.NewMemSet()
	}
	return co, nil
}

// Stop requests a graceful halt: workers wind down at the next poll, and Run
// checkpoints whatever is unfinished. Safe to call repeatedly.
func (co *Coordinator) Stop() {
	if co.stopping.CompareAndSwap(false, true) {
		close(co.closing)
	}
}

// Stopping is closed once a stop has been requested.
func (co *Coordinator) Stopping() <-chan struct{} {
	return co.closing
}

// Done is closed once Run has returned and the output is safe to read.
func (co *Coordinator) Done() <-chan struct{} {
	return co.closed
}

// Run executes the whole search and returns its summary. On interrupt the
// summary is marked Interrupted and the error is still nil: a checkpoint is
// a normal outcome, not a failure.
func (co *Coordinator) Run() (Summary, error) {
	defer close(co.closed)
	defer co.dedup.Close()

	inputs, err := co.loadInputs()
	if err != nil {
		return co.summary, err
	}
	co.summary.Inputs = len(inputs)
	if co.stopping.Load() {
		co.summary.Interrupted = true
		return co.summary, nil
	}
	klog.Infof("searching %d-team %d-week schedules: %d inputs, %d workers, breadth %d",
		co.opts.Teams, co.opts.Weeks, len(inputs), co.opts.Workers, co.opts.Breadth)

	if !co.opts.Validate {
		if err := co.openStore(inputs); err != nil {
			if errors.Is(err, errAbandoned) {
				co.abandonStore()
				co.summary.Interrupted = true
				klog.Warningf("interrupted while carrying the prior output forward; %s left untouched", co.opts.OutPath)
				return co.summary, nil
			}
			co.abandonStore()
			return co.summary, err
		}
	}

	co.explore(inputs)

	if !co.opts.Validate {
		if err := co.sealStore(inputs); err != nil && co.runErr == nil {
			co.runErr = err
		}
	}
	for _, in := range inputs {
		if in.retired {
			co.summary.Retired++
		}
	}
	co.summary.Interrupted = co.stopping.Load() && co.summary.Retired < len(inputs)
	return co.summary, co.runErr
}

// openStore plans the resume against any prior output, creates the scratch
// store alongside it, and carries the prior paths forward. The scratch file
// only replaces the prior output at seal time.
func (co *Coordinator) openStore(inputs []*inputPath) error {
	prior, err := co.scanPrior(inputs)
	if err != nil {
		return err
	}

	co.store, err = treestore.Create(co.opts.OutPath+".tmp", co.opts.Teams, co.opts.Weeks)
	if err != nil {
		return err
	}
	if prior {
		live := 0
		for _, in := range inputs {
			if !in.retired {
				live++
			}
		}
		klog.Infof("resuming %s: %d of %d inputs still open", co.opts.OutPath, live, len(inputs))
		return co.copyForward()
	}
	return nil
}

func (co *Coordinator) abandonStore() {
	if co.store == nil {
		return
	}
	co.store.Finalize(true)
	co.store = nil
	os.Remove(co.opts.OutPath + ".tmp")
}

// sealStore checkpoints every unfinished input, finalizes the header, and
// atomically replaces the prior output.
func (co *Coordinator) sealStore(inputs []*inputPath) error {
	// Complete markers from the prior file flag zero-result branches, which
	// copy-forward cannot carry; re-emit them or a later run re-walks them.
	for _, in := range inputs {
		if in.marker == treestore.MarkerComplete && in.skip == 0 {
			if err := co.store.WriteMarker(in.prefix, treestore.MarkerComplete); err != nil {
				return err
			}
		}
	}

	unfinished := 0
	for _, in := range inputs {
		if in.retired {
			continue
		}
		unfinished++
		if err := co.store.WriteMarker(in.prefix, treestore.MarkerIncomplete); err != nil {
			return err
		}
	}
	if unfinished > 0 {
		klog.Warningf("checkpointed %d unfinished inputs", unfinished)
	}
	if err := co.store.Finalize(unfinished > 0); err != nil {
		return err
	}
	co.store = nil
	return os.Rename(co.opts.OutPath+".tmp", co.opts.OutPath)
}

// explore drives the fairness loop: dequeue, dispatch, absorb, requeue.
// Requeued inputs join at the tail, so no input starts unit k+1 until every
// live input has finished unit k.
func (co *Coordinator) explore(inputs []*inputPath) {
	co.workCh = make(chan unit)
	co.resultCh = make(chan unitResult, co.opts.Workers)
	co.workerWG.Add(co.opts.Workers)
	for w := 0; w < co.opts.Workers; w++ {
		go co.runWorker()
	}

	order := make([]*inputPath, 0, len(inputs))
	for _, in := range inputs {
		if !in.retired {
			order = append(order, in)
		}
	}
	if co.opts.Shuffle {
		seed := co.opts.ShuffleSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rand.New(rand.NewSource(seed)).Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		klog.Infof("shuffled input order with seed %d", seed)
	}
	for _, in := range order {
		co.queue.Enqueue(in)
	}

	inFlight := 0
	for co.queue.Count > 0 || inFlight > 0 {
		for inFlight < co.opts.Workers && !co.stopping.Load() {
			in := co.queue.Dequeue()
			if in == nil {
				break
			}
			co.workCh <- unit{in: in, skip: in.skip, breadth: co.opts.Breadth}
			inFlight++
			co.summary.Units++
		}
		if inFlight == 0 {
			break
		}
		co.absorb(<-co.resultCh)
		inFlight--
	}

	close(co.workCh)
	co.workerWG.Wait()
}

// absorb folds one unit result into the run: dedup, store, and either
// retire the input or send it to the back of the queue.
func (co *Coordinator) absorb(res unitResult) {
	in := res.in
	in.skip += res.found

	for _, p := range res.paths {
		co.keyBuf = p.AppendKey(co.keyBuf[:0])
		if !co.dedup.TryAdd(co.keyBuf) {
			co.summary.Dupes++
			continue
		}
		if co.store != nil {
			if err := co.store.WritePath(p); err != nil {
				co.fail(err)
				return
			}
		}
		co.summary.Paths++
	}
	if co.store != nil {
		if err := co.store.Flush(); err != nil {
			co.fail(err)
			return
		}
	}

	if res.err != nil {
		co.fail(errors.Wrapf(res.err, "input %d", in.id))
		return
	}

	switch {
	case res.exhausted:
		in.retired = true
		if in.skip == 0 && co.store != nil {
			// Nothing under this prefix, ever: a complete marker keeps a
			// later resume from re-walking a known-dead branch.
			if err := co.store.WriteMarker(in.prefix, treestore.MarkerComplete); err != nil {
				co.fail(err)
				return
			}
		}
		klog.V(1).Infof("input %d exhausted with %d paths", in.id, in.skip)
	case !co.stopping.Load():
		co.queue.Enqueue(in)
	}

	if co.summary.Units%256 == 0 {
		hits, misses := co.cache.Stats()
		klog.Infof("progress: %d units, %d paths, %d live inputs, cache %d/%d",
			co.summary.Units, co.summary.Paths, co.queue.Count, hits, hits+misses)
	}
}

// fail records the first fatal error and starts a graceful stop so the
// checkpoint still lands.
func (co *Coordinator) fail(err error) {
	if co.runErr == nil {
		co.runErr = err
		klog.Errorf("halting: %v", err)
	}
	co.Stop()
}
