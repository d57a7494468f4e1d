package gru

import "fmt"

// Score is the pain tally of one week (or the sum over a path's weeks):
// DoubleByes counts per-team consecutive-game slot gaps of exactly 3;
// FiveSpans counts teams whose three games span exactly 5 slots.
type Score struct {
	DoubleByes int
	FiveSpans  int
}

// WeekOptimal is the minimum achievable per-week score for all supported
// team counts. This is an empirically established oracle used for pruning,
// not something derived at runtime.
var WeekOptimal = Score{DoubleByes: 2, FiveSpans: 4}

func (s Score) Plus(other Score) Score {
	return Score{
		DoubleByes: s.DoubleByes + other.DoubleByes,
		FiveSpans:  s.FiveSpans + other.FiveSpans,
	}
}

func (s Score) String() string {
	return fmt.Sprintf("(%d,%d)", s.DoubleByes, s.FiveSpans)
}

// WeekScore tallies the pain metrics of one week. Teams that do not play
// exactly GamesPerTeam games contribute nothing; callers that care about
// structural validity use CheckWeek.
func (lay *Layout) WeekScore(wk Week) Score {
	var slots [MaxTeams][GamesPerTeam]int8
	var count [MaxTeams]int8

	for si, id := range wk {
		a, b := lay.Pair(id)
		for _, t := range [2]Team{a, b} {
			if count[t] < GamesPerTeam {
				slots[t][count[t]] = int8(si)
			}
			count[t]++
		}
	}

	score := Score{}
	for t := 0; t < lay.Teams; t++ {
		if count[t] != GamesPerTeam {
			continue
		}
		g := slots[t]
		if g[1]-g[0] == 3 {
			score.DoubleByes++
		}
		if g[2]-g[1] == 3 {
			score.DoubleByes++
		}
		if g[2]-g[0]+1 == MaxSpan {
			score.FiveSpans++
		}
	}
	return score
}

// PathScore sums the week scores of a path.
func (lay *Layout) PathScore(p Path) Score {
	total := Score{}
	for _, wk := range p {
		total = total.Plus(lay.WeekScore(wk))
	}
	return total
}

// WeekTeamScores adds wk's per-team double-bye and five-span counts into
// byes and spans, both indexed by team and at least lay.Teams long. Rankers
// use the per-team breakdown to measure how evenly pain lands.
func (lay *Layout) WeekTeamScores(wk Week, byes, spans []int) {
	var slots [MaxTeams][GamesPerTeam]int8
	var count [MaxTeams]int8

	for si, id := range wk {
		a, b := lay.Pair(id)
		for _, t := range [2]Team{a, b} {
			if count[t] < GamesPerTeam {
				slots[t][count[t]] = int8(si)
			}
			count[t]++
		}
	}

	for t := 0; t < lay.Teams; t++ {
		if count[t] != GamesPerTeam {
			continue
		}
		g := slots[t]
		if g[1]-g[0] == 3 {
			byes[t]++
		}
		if g[2]-g[1] == 3 {
			byes[t]++
		}
		if g[2]-g[0]+1 == MaxSpan {
			spans[t]++
		}
	}
}

// WeekIsOptimal reports whether a week scores exactly the fixed optimum.
func (lay *Layout) WeekIsOptimal(wk Week) bool {
	return lay.WeekScore(wk) == WeekOptimal
}
