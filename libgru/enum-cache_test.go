package libgru

import (
	"testing"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// retuneOptimal points the pruning oracle at the best score a four-team
// week can reach, so small-league tests see non-empty optimal lists.
func retuneOptimal(t *testing.T) {
	saved := gru.WeekOptimal
	t.Cleanup(func() { gru.WeekOptimal = saved })
	gru.WeekOptimal = gru.Score{DoubleByes: 1, FiveSpans: 2}
}

// optimalWeeks4 enumerates the expected cache fill directly.
func optimalWeeks4(lay *gru.Layout) []gru.Week {
	var want []gru.Week
	EnumerateWeeks(lay, fullRound4(lay), -1, nil, func(wk gru.Week) bool {
		if lay.WeekIsOptimal(wk) {
			want = append(want, wk)
		}
		return true
	})
	return want
}

func TestEnumCacheFillAndHit(t *testing.T) {
	retuneOptimal(t)
	lay := layout4(t)
	cache := NewEnumCache(lay, 16)
	cons := fullRound4(lay)

	want := optimalWeeks4(lay)
	if len(want) < 2 {
		t.Fatal("nope")
	}

	got, complete := cache.OptimalWeeks(cons, nil)
	if !complete {
		t.Fatal("uncut fill must complete")
	}
	if len(got) != len(want) {
		t.Fatalf("got %d weeks, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("week %d diverged", i)
		}
	}
	if hits, misses := cache.Stats(); hits != 0 || misses != 1 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}

	again, complete := cache.OptimalWeeks(cons, nil)
	if !complete || len(again) != len(want) {
		t.Fatal("nope")
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}

func TestEnumCachePartialNotCached(t *testing.T) {
	retuneOptimal(t)
	lay := layout4(t)
	cache := NewEnumCache(lay, 16)
	cons := fullRound4(lay)

	weeks, complete := cache.OptimalWeeks(cons, func() bool { return true })
	if complete || len(weeks) != 0 {
		t.Fatal("pre-fired stop must yield an incomplete, empty fill")
	}

	// The partial fill must not have been cached.
	if _, complete = cache.OptimalWeeks(cons, nil); !complete {
		t.Fatal("nope")
	}
	if hits, misses := cache.Stats(); hits != 0 || misses != 2 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}

func TestEnumCacheDistinctConstraints(t *testing.T) {
	retuneOptimal(t)
	lay := layout4(t)
	cache := NewEnumCache(lay, 16)

	full, _ := cache.OptimalWeeks(fullRound4(lay), nil)
	if len(full) == 0 {
		t.Fatal("nope")
	}

	// An infeasible constraint caches an empty list rather than refilling.
	var dead Constraint
	dead.Exclude.Add(0)
	dead.Required = lay.Universe.Minus(dead.Exclude)
	empty, complete := cache.OptimalWeeks(dead, nil)
	if !complete || len(empty) != 0 {
		t.Fatal("nope")
	}
	cache.OptimalWeeks(dead, nil)
	if hits, misses := cache.Stats(); hits != 1 || misses != 2 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}
