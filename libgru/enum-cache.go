package libgru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// DefaultCacheSize bounds the enumeration cache when the caller passes none.
const DefaultCacheSize = 4096

// EnumCache memoizes optimal-scoring week enumerations keyed by constraint.
// The hit rate is what makes multi-week search tractable: distinct prefixes
// collapse onto few distinct constraints, and each is enumerated once.
//
// Safe for concurrent use. Two goroutines missing on the same key fill it
// twice; both fills produce identical lists, so the duplicate work is
// harmless and needs no locking beyond the cache's own.
type EnumCache struct {
	lay    *gru.Layout
	lru    *lru.Cache[Constraint, []gru.Week]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewEnumCache(lay *gru.Layout, size int) *EnumCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[Constraint, []gru.Week](size)
	if err != nil {
		panic(err)
	}
	return &EnumCache{
		lay: lay,
		lru: cache,
	}
}

// OptimalWeeks returns every week satisfying cons whose score equals the
// per-week optimum, in enumeration order. complete is false when stop cut
// the fill short; a partial list is returned to the caller but never cached.
//
// Callers must treat the returned slice and its weeks as read-only; the same
// slice is handed to every goroutine that hits the same constraint.
func (ec *EnumCache) OptimalWeeks(cons Constraint, stop func() bool) (weeks []gru.Week, complete bool) {
	if cached, ok := ec.lru.Get(cons); ok {
		ec.hits.Add(1)
		return cached, true
	}
	ec.misses.Add(1)

	total := 0
	complete = EnumerateWeeks(ec.lay, cons, -1, stop, func(wk gru.Week) bool {
		total++
		if ec.lay.WeekScore(wk) == gru.WeekOptimal {
			weeks = append(weeks, wk)
		}
		return true
	})
	if complete {
		ec.lru.Add(cons, weeks)
		klog.V(2).Infof("enum cache fill: %d legal weeks, %d optimal", total, len(weeks))
	}
	return weeks, complete
}

// Stats reports lifetime cache hits and misses.
func (ec *EnumCache) Stats() (hits, misses int64) {
	return ec.hits.Load(), ec.misses.Load()
}
