package libgru

import (
	"github.com/pkg/errors"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// RoundTracker tracks which matchups the current round-robin round has
// consumed. It is a small value: Advance returns the successor state and
// leaves the receiver untouched, so search branches fork trackers freely.
//
// A week holds S = 3N/2 slots and a round holds N(N-1)/2 matchups, so at
// most one round boundary falls inside any week. The open round plus its
// index is therefore the whole state; the transiently opened next round
// exists only inside Advance.
type RoundTracker struct {
	lay   *gru.Layout
	round int            // current round index, 0-based
	used  gru.MatchupSet // matchups the current round has consumed
}

func NewRoundTracker(lay *gru.Layout) RoundTracker {
	return RoundTracker{lay: lay}
}

// Round returns the 0-based index of the round currently being filled.
func (rt RoundTracker) Round() int {
	return rt.round
}

// Used returns the matchups the current round has consumed so far.
func (rt RoundTracker) Used() gru.MatchupSet {
	return rt.used
}

// ConstraintFor derives the constraint on the next week. With remaining
// matchups in the round and S slots in a week:
//
//	remaining >= S: the week stays inside the round, so everything already
//	    used is excluded.
//	remaining <= S: the round completes this week, so every unused matchup
//	    is required.
//	remaining == S: both at once; the week is exactly the rest of the round.
func (rt RoundTracker) ConstraintFor() Constraint {
	remaining := rt.lay.Matchups - rt.used.Count()
	cons := Constraint{}
	if remaining >= rt.lay.Slots {
		cons.Exclude = rt.used
	}
	if remaining <= rt.lay.Slots {
		cons.Required = rt.lay.Universe.Minus(rt.used)
	}
	return cons
}

// Advance consumes one week that satisfies ConstraintFor. Matchups finishing
// the current round land there; in a straddling week the leftovers open the
// next round. Slot order never matters. Advance assumes wk is valid; weeks
// from EnumerateWeeks always are, and foreign weeks go through Replay.
func (rt RoundTracker) Advance(wk gru.Week) RoundTracker {
	next := rt
	remaining := rt.lay.Matchups - rt.used.Count()

	if remaining >= rt.lay.Slots {
		for _, id := range wk {
			next.used.Add(id)
		}
		if next.used.Count() == rt.lay.Matchups {
			next.round++
			next.used = gru.MatchupSet{}
		}
		return next
	}

	missing := rt.lay.Universe.Minus(rt.used)
	carried := gru.MatchupSet{}
	for _, id := range wk {
		if !missing.Has(id) {
			carried.Add(id)
		}
	}
	next.round++
	next.used = carried
	return next
}

// Replay rebuilds tracker state from week 0 of p, validating both the
// per-week schedule rules and the round discipline of every week. Stored
// results never carry round state, so resuming from a file always
// reconstructs it this way.
func Replay(lay *gru.Layout, p gru.Path) (RoundTracker, error) {
	rt := NewRoundTracker(lay)
	for wi, wk := range p {
		if err := lay.CheckWeek(wk); err != nil {
			return rt, errors.Wrapf(err, "week %d", wi)
		}

		remaining := lay.Matchups - rt.used.Count()
		if remaining >= lay.Slots {
			for _, id := range wk {
				if rt.used.Has(id) {
					return rt, errors.Wrapf(gru.ErrRoundOverflow,
						"week %d repeats %s in round %d", wi, lay.MatchupLabel(id), rt.round)
				}
				rt.used.Add(id)
			}
			if rt.used.Count() == lay.Matchups {
				rt.round++
				rt.used = gru.MatchupSet{}
			}
			continue
		}

		// Straddling week: it must finish the current round exactly, and
		// the carried matchups open the next one.
		missing := lay.Universe.Minus(rt.used)
		carried := gru.MatchupSet{}
		for _, id := range wk {
			if missing.Has(id) {
				missing.Remove(id)
			} else {
				carried.Add(id)
			}
		}
		if !missing.IsEmpty() {
			return rt, errors.Wrapf(gru.ErrRoundShort,
				"week %d leaves round %d missing %d matchups", wi, rt.round, missing.Count())
		}
		rt.round++
		rt.used = carried
	}
	return rt, nil
}
