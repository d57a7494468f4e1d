package libgru

import (
	"github.com/pkg/errors"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// SearchOpts bounds one path-search call.
type SearchOpts struct {
	Weeks     int         // target path length in weeks
	Skip      int64       // accepted results to discard before emitting
	Breadth   int64       // halt after this many emitted results; 0 = unlimited
	Diversify uint32      // non-zero rotates candidate order per depth; order only, never membership
	Stop      func() bool // optional; polled at every node, halts with exhausted=false
}

type pathSearch struct {
	lay   *gru.Layout
	cache *EnumCache
	opts  SearchOpts
	emit  func(gru.Path)

	path    gru.Path // working path, emitted via Clone
	skipped int64
	found   int64
}

// SearchPaths extends prefix to opts.Weeks weeks, emitting every completion
// all of whose weeks score the per-week optimum. Traversal order is
// deterministic for a given Diversify value, which is what makes Skip a
// faithful "resume after the first k results" as long as successive calls
// agree on it.
//
// found counts emitted results (after Skip); exhausted reports whether the
// whole subtree was visited. A prefix already at target length emits itself.
func SearchPaths(lay *gru.Layout, cache *EnumCache, prefix gru.Path, opts SearchOpts, emit func(gru.Path)) (found int64, exhausted bool, err error) {
	if opts.Weeks < 1 || opts.Weeks < len(prefix) {
		return 0, false, errors.Wrapf(gru.ErrWeekCount, "prefix has %d weeks, target is %d", len(prefix), opts.Weeks)
	}
	rt, err := Replay(lay, prefix)
	if err != nil {
		return 0, false, err
	}

	ps := &pathSearch{
		lay:   lay,
		cache: cache,
		opts:  opts,
		emit:  emit,
		path:  make(gru.Path, opts.Weeks),
	}
	copy(ps.path, prefix)

	exhausted = ps.descend(rt, len(prefix))
	return ps.found, exhausted, nil
}

// descend fills week `depth` and recurses. Returns false to halt the whole
// search (breadth reached, or stop fired).
func (ps *pathSearch) descend(rt RoundTracker, depth int) bool {
	if ps.opts.Stop != nil && ps.opts.Stop() {
		return false
	}
	if depth == ps.opts.Weeks {
		return ps.accept()
	}

	weeks, complete := ps.cache.OptimalWeeks(rt.ConstraintFor(), ps.opts.Stop)
	if !complete {
		return false
	}
	n := len(weeks)
	if n == 0 {
		return true // dead branch, fully explored
	}

	rot := 0
	if ps.opts.Diversify != 0 {
		rot = rotationFor(ps.opts.Diversify, depth, n)
	}
	for k := 0; k < n; k++ {
		wk := weeks[(k+rot)%n]
		ps.path[depth] = wk
		if !ps.descend(rt.Advance(wk), depth+1) {
			return false
		}
	}
	return true
}

func (ps *pathSearch) accept() bool {
	if ps.skipped < ps.opts.Skip {
		ps.skipped++
		return true
	}
	ps.emit(ps.path.Clone())
	ps.found++
	return ps.opts.Breadth == 0 || ps.found < ps.opts.Breadth
}

// rotationFor derives a stable start offset from the diversify seed, depth,
// and candidate count, so identical seeds reproduce identical orders.
func rotationFor(seed uint32, depth, n int) int {
	h := seed*2654435761 + uint32(depth)*0x9e3779b9
	return int(h % uint32(n))
}
