package libgru

import (
	"math/bits"
	"sync"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// Constraint is the per-week matchup constraint derived from round state:
// ids in Exclude must not appear; ids in Required must appear somewhere.
// A week satisfying Required may place those ids in any slots; there is no
// positional obligation.
type Constraint struct {
	Exclude  gru.MatchupSet
	Required gru.MatchupSet
}

// weekEnum is the working state of one week enumeration. Each slot frame
// saves the pattern array locally and undoes its scalar mutations in exact
// inverse order, so no per-node allocation happens.
type weekEnum struct {
	lay *gru.Layout

	left    [gru.MaxTeams]int8           // games each team still needs this week
	pats    [gru.MaxTeams]gru.PatternSet // patterns still consistent per team
	needs   [gru.MaxTeams]uint16         // bitmask of still-required opponents
	unavail gru.MatchupSet               // excluded or already placed this week
	reqLeft int                          // required matchups not yet placed

	week       [gru.MaxSlots]gru.MatchupID
	fixedFirst int
	stop       func() bool
	emit       func(gru.Week) bool
}

var weekEnumPool = sync.Pool{
	New: func() interface{} {
		return new(weekEnum)
	},
}

// EnumerateWeeks runs a fresh depth-first search over the week's slots,
// calling emit for every schedule satisfying cons, in a deterministic order.
// emit returns false to end the search; stop (optional) is polled at every
// slot and also ends it. fixedFirst >= 0 pins slot 0 to that matchup id.
//
// The return value reports whether the search space was exhausted (false
// when emit or stop cut it short). An infeasible constraint produces no
// emits and returns true: a dead branch, not an error.
func EnumerateWeeks(lay *gru.Layout, cons Constraint, fixedFirst int, stop func() bool, emit func(gru.Week) bool) bool {
	if fixedFirst >= lay.Matchups {
		return true
	}

	we := weekEnumPool.Get().(*weekEnum)
	defer weekEnumPool.Put(we)

	we.lay = lay
	we.fixedFirst = fixedFirst
	we.stop = stop
	we.emit = emit
	we.unavail = cons.Exclude
	we.reqLeft = cons.Required.Count()

	for t := 0; t < lay.Teams; t++ {
		we.left[t] = gru.GamesPerTeam
		we.pats[t] = lay.AllPatterns()
		we.needs[t] = 0
	}

	var scrap [gru.MaxMatchups]gru.MatchupID
	for _, id := range cons.Required.AppendIDs(scrap[:0]) {
		a, b := lay.Pair(id)
		we.needs[a] |= 1 << b
		we.needs[b] |= 1 << a
	}

	return we.enumSlot(0)
}

// enumSlot fills slot si and recurses. Returns false to halt the entire
// search (emit said stop, or the stop callback fired).
func (we *weekEnum) enumSlot(si int) bool {
	if we.stop != nil && we.stop() {
		return false
	}

	S := we.lay.Slots
	if we.reqLeft > S-si {
		return true // required matchups can no longer fit
	}
	if si == S {
		wk := make(gru.Week, S)
		copy(wk, we.week[:S])
		return we.emit(wk)
	}

	if si == 0 && we.fixedFirst >= 0 {
		id := gru.MatchupID(we.fixedFirst)
		if we.unavail.Has(id) {
			return true
		}
		a, b := we.lay.Pair(id)
		return we.place(si, a, b, id)
	}

	// Candidate teams: games left and a pattern that includes this slot.
	mask := we.lay.SlotPatterns(si)
	var cand [gru.MaxTeams]gru.Team
	nc := 0
	for t := 0; t < we.lay.Teams; t++ {
		if we.left[t] > 0 && we.pats[t].Overlaps(mask) {
			cand[nc] = gru.Team(t)
			nc++
		}
	}

	for i := 0; i < nc-1; i++ {
		for j := i + 1; j < nc; j++ {
			id := we.lay.PairID(cand[i], cand[j])
			if we.unavail.Has(id) {
				continue
			}
			if !we.place(si, cand[i], cand[j], id) {
				return false
			}
		}
	}
	return true
}

// place applies matchup id at slot si, recurses if the position stays
// viable, then undoes everything in exact inverse order.
func (we *weekEnum) place(si int, a, b gru.Team, id gru.MatchupID) bool {
	mask := we.lay.SlotPatterns(si)

	we.week[si] = id
	we.unavail.Add(id)
	we.left[a]--
	we.left[b]--

	wasRequired := we.needs[a]&(1<<b) != 0
	if wasRequired {
		we.needs[a] &^= 1 << b
		we.needs[b] &^= 1 << a
		we.reqLeft--
	}

	// Teams playing this slot keep only patterns containing it; everyone
	// else loses those same patterns (they skipped the slot).
	saved := we.pats
	for t := 0; t < we.lay.Teams; t++ {
		if gru.Team(t) == a || gru.Team(t) == b {
			we.pats[t] = we.pats[t].Intersect(mask)
		} else {
			we.pats[t] = we.pats[t].Minus(mask)
		}
	}

	keepGoing := true
	if we.viable() {
		keepGoing = we.enumSlot(si + 1)
	}

	we.pats = saved
	if wasRequired {
		we.needs[a] |= 1 << b
		we.needs[b] |= 1 << a
		we.reqLeft++
	}
	we.left[a]++
	we.left[b]++
	we.unavail.Remove(id)

	return keepGoing
}

// viable prunes positions no completion can rescue: a team with games left
// but no surviving pattern, or more required opponents than remaining games.
func (we *weekEnum) viable() bool {
	for t := 0; t < we.lay.Teams; t++ {
		nl := we.left[t]
		if nl > 0 && we.pats[t].IsEmpty() {
			return false
		}
		if bits.OnesCount16(we.needs[t]) > int(nl) {
			return false
		}
	}
	return true
}
