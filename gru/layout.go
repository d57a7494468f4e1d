package gru

import (
	"fmt"

	"github.com/pkg/errors"
)

// patternShapes are the base slot-triples a team's weekly games may occupy,
// relative to the slot of its first game: two span-4 shapes and three span-5
// shapes. Three consecutive slots is not a legal shape.
var patternShapes = [5][GamesPerTeam]uint8{
	{0, 1, 3},
	{0, 2, 3},
	{0, 1, 4},
	{0, 2, 4},
	{0, 3, 4},
}

// Layout holds every table derived from a team count: the matchup id
// bijection, the pattern triples, and the per-slot pattern masks.
// A Layout is computed once and never mutated; all components share one.
type Layout struct {
	Teams    int        // N
	Slots    int        // S = 3N/2
	Matchups int        // N(N-1)/2, the round size
	Universe MatchupSet // all matchup ids of this layout

	// NumPatterns is the count of legal slot-triples for this slot count.
	NumPatterns int

	pairID   [MaxTeams][MaxTeams]MatchupID
	pairs    [MaxMatchups][2]Team
	patterns [MaxPatterns][GamesPerTeam]uint8
	slotPats [MaxSlots]PatternSet
	allPats  PatternSet
}

// NewLayout validates the team count and precomputes all derived tables.
func NewLayout(teams int) (*Layout, error) {
	if teams < MinTeams || teams > MaxTeams || teams%2 != 0 {
		return nil, errors.Wrapf(ErrTeamCount, "got %d", teams)
	}

	lay := &Layout{
		Teams:    teams,
		Slots:    3 * teams / 2,
		Matchups: teams * (teams - 1) / 2,
	}

	id := MatchupID(0)
	for a := 0; a < teams-1; a++ {
		for b := a + 1; b < teams; b++ {
			lay.pairID[a][b] = id
			lay.pairID[b][a] = id
			lay.pairs[id] = [2]Team{Team(a), Team(b)}
			lay.Universe.Add(id)
			id++
		}
	}

	for _, shape := range patternShapes {
		span := int(shape[GamesPerTeam-1]) + 1
		for off := 0; off+span <= lay.Slots; off++ {
			pi := lay.NumPatterns
			lay.NumPatterns++
			for g, rel := range shape {
				slot := off + int(rel)
				lay.patterns[pi][g] = uint8(slot)
				lay.slotPats[slot].Add(pi)
			}
			lay.allPats.Add(pi)
		}
	}

	return lay, nil
}

// PairID returns the dense matchup id for two distinct teams (order-insensitive).
func (lay *Layout) PairID(a, b Team) MatchupID {
	return lay.pairID[a][b]
}

// Pair returns the two teams of a matchup, lower team first.
func (lay *Layout) Pair(id MatchupID) (Team, Team) {
	pair := lay.pairs[id]
	return pair[0], pair[1]
}

// SlotPatterns returns the mask of patterns that include the given slot.
func (lay *Layout) SlotPatterns(slot int) PatternSet {
	return lay.slotPats[slot]
}

// AllPatterns returns the mask with every pattern of this layout set.
func (lay *Layout) AllPatterns() PatternSet {
	return lay.allPats
}

// PatternSlots returns the slot triple of the given pattern index.
func (lay *Layout) PatternSlots(pi int) [GamesPerTeam]uint8 {
	return lay.patterns[pi]
}

// MatchupLabel formats a matchup id as "AvB" for human-readable output.
func (lay *Layout) MatchupLabel(id MatchupID) string {
	a, b := lay.Pair(id)
	return fmt.Sprintf("%dv%d", a, b)
}

// CheckWeek verifies the schedule invariants for one week: exactly S slots,
// ids in range, no repeated matchup, every team playing exactly GamesPerTeam
// games, and every team's slot span within [MinSpan, MaxSpan].
func (lay *Layout) CheckWeek(wk Week) error {
	if len(wk) != lay.Slots {
		return errors.Wrapf(ErrBadLine, "got %d slots, want %d", len(wk), lay.Slots)
	}

	var seen MatchupSet
	var first, last, count [MaxTeams]int8
	for t := range first {
		first[t] = -1
	}

	for si, id := range wk {
		if int(id) >= lay.Matchups {
			return errors.Wrapf(ErrBadMatchup, "slot %d holds id %d", si, id)
		}
		if seen.Has(id) {
			return errors.Wrapf(ErrRepeatedMatchup, "slot %d holds id %d", si, id)
		}
		seen.Add(id)

		a, b := lay.Pair(id)
		for _, t := range [2]Team{a, b} {
			if first[t] < 0 {
				first[t] = int8(si)
			}
			last[t] = int8(si)
			count[t]++
		}
	}

	for t := 0; t < lay.Teams; t++ {
		if count[t] != GamesPerTeam {
			return errors.Wrapf(ErrGameCount, "team %d plays %d", t, count[t])
		}
		span := last[t] - first[t] + 1
		if span > MaxSpan {
			return errors.Wrapf(ErrSpanExceeded, "team %d spans %d slots", t, span)
		}
		if span < MinSpan {
			return errors.Wrapf(ErrConsecutive, "team %d", t)
		}
	}
	return nil
}

// CheckPath verifies every week of a path. Round-level invariants are the
// round tracker's concern and are verified by replay, not here.
func (lay *Layout) CheckPath(p Path) error {
	for wi, wk := range p {
		if err := lay.CheckWeek(wk); err != nil {
			return errors.Wrapf(err, "week %d", wi)
		}
	}
	return nil
}
