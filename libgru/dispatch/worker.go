package dispatch

import (
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru"
)

// unit is one bounded work assignment: extend one input by at most breadth
// new results, skipping the ones already found in earlier units.
type unit struct {
	in      *inputPath
	skip    int64
	breadth int64
}

type unitResult struct {
	in        *inputPath
	paths     []gru.Path
	found     int64
	exhausted bool
	err       error
}

// runWorker pulls units until the coordinator closes the channel. Workers
// never touch shared state: everything they learn rides back on resultCh.
func (co *Coordinator) runWorker() {
	defer co.workerWG.Done()
	for u := range co.workCh {
		res := unitResult{in: u.in}
		res.found, res.exhausted, res.err = libgru.SearchPaths(co.lay, co.cache, u.in.prefix, libgru.SearchOpts{
			Weeks:     co.opts.Weeks,
			Skip:      u.skip,
			Breadth:   u.breadth,
			Diversify: co.opts.Diversify,
			Stop:      co.stopRequested,
		}, func(p gru.Path) {
			res.paths = append(res.paths, p)
		})
		co.resultCh <- res
	}
}

func (co *Coordinator) stopRequested() bool {
	return co.stopping.Load()
}
