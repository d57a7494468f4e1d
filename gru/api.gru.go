package gru

import (
	"math/bits"
)

const (

	// GamesPerTeam is the number of games every team plays each week.
	GamesPerTeam = 3

	// MinSpan and MaxSpan bound the slot span (last - first + 1) a team's
	// weekly games may occupy. The lower bound is what outlaws a team playing
	// three consecutive slots.
	MinSpan = 4
	MaxSpan = 5

	// MinTeams and MaxTeams bound the supported league sizes (team count must be even).
	MinTeams = 4
	MaxTeams = 16

	// MaxSlots is the worst-case number of slots in a week: S = 3N/2.
	MaxSlots = 3 * MaxTeams / 2

	// MaxMatchups is the worst-case matchup universe size: N(N-1)/2.
	MaxMatchups = MaxTeams * (MaxTeams - 1) / 2

	// MaxPatterns is the worst-case count of legal slot-triples for one team's
	// weekly games: two span-4 shapes and three span-5 shapes, each shifted
	// across all valid offsets.
	MaxPatterns = 2*(MaxSlots-3) + 3*(MaxSlots-4)
)

// Team is a zero-based team index in [0, N).
type Team byte

// MatchupID is a dense integer naming an unordered pair of teams,
// assigned in lexicographic pair order (0v1, 0v2, ... 1v2, ...).
type MatchupID byte

// Week is one week's schedule: exactly S matchup ids, one per slot.
type Week []MatchupID

// Path is an in-order sequence of weekly schedules, week 0 first.
type Path []Week

func (wk Week) Clone() Week {
	dupe := make(Week, len(wk))
	copy(dupe, wk)
	return dupe
}

func (wk Week) Equal(other Week) bool {
	if len(wk) != len(other) {
		return false
	}
	for i, id := range wk {
		if other[i] != id {
			return false
		}
	}
	return true
}

func (p Path) Clone() Path {
	dupe := make(Path, len(p))
	for i, wk := range p {
		dupe[i] = wk.Clone()
	}
	return dupe
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i, wk := range p {
		if !wk.Equal(other[i]) {
			return false
		}
	}
	return true
}

// AppendKey appends the canonical byte encoding of this Path, used as a
// dedup key. Weeks have fixed length for a given layout, so the raw id
// bytes are unambiguous.
func (p Path) AppendKey(dst []byte) []byte {
	for _, wk := range p {
		for _, id := range wk {
			dst = append(dst, byte(id))
		}
	}
	return dst
}

// PathAdder accepts canonical path keys, reporting if a key was newly added.
type PathAdder interface {

	// TryAdd adds the given key if it is not already present.
	//
	// If the key is already present, this call has no effect and returns false.
	// If the key isn't present, it is added and TryAdd() returns true.
	TryAdd(key []byte) bool
}

// MatchupSet is a bitset over matchup ids, sized for the worst-case universe.
type MatchupSet [2]uint64

func (set *MatchupSet) Add(id MatchupID) {
	set[id>>6] |= uint64(1) << (id & 63)
}

func (set *MatchupSet) Remove(id MatchupID) {
	set[id>>6] &^= uint64(1) << (id & 63)
}

func (set MatchupSet) Has(id MatchupID) bool {
	return set[id>>6]&(uint64(1)<<(id&63)) != 0
}

func (set MatchupSet) Count() int {
	return bits.OnesCount64(set[0]) + bits.OnesCount64(set[1])
}

func (set MatchupSet) IsEmpty() bool {
	return set[0] == 0 && set[1] == 0
}

func (set MatchupSet) Union(other MatchupSet) MatchupSet {
	return MatchupSet{set[0] | other[0], set[1] | other[1]}
}

func (set MatchupSet) Minus(other MatchupSet) MatchupSet {
	return MatchupSet{set[0] &^ other[0], set[1] &^ other[1]}
}

func (set MatchupSet) Intersect(other MatchupSet) MatchupSet {
	return MatchupSet{set[0] & other[0], set[1] & other[1]}
}

// AppendIDs appends the member ids in ascending order.
func (set MatchupSet) AppendIDs(dst []MatchupID) []MatchupID {
	for word := 0; word < 2; word++ {
		w := set[word]
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			dst = append(dst, MatchupID(word<<6+bit))
			w &= w - 1
		}
	}
	return dst
}

// PatternSet is a bitset over pattern indices, sized for the worst case.
type PatternSet [2]uint64

func (set *PatternSet) Add(i int) {
	set[i>>6] |= uint64(1) << (i & 63)
}

func (set PatternSet) Has(i int) bool {
	return set[i>>6]&(uint64(1)<<(i&63)) != 0
}

func (set PatternSet) IsEmpty() bool {
	return set[0] == 0 && set[1] == 0
}

func (set PatternSet) Count() int {
	return bits.OnesCount64(set[0]) + bits.OnesCount64(set[1])
}

func (set PatternSet) Intersect(other PatternSet) PatternSet {
	return PatternSet{set[0] & other[0], set[1] & other[1]}
}

func (set PatternSet) Minus(other PatternSet) PatternSet {
	return PatternSet{set[0] &^ other[0], set[1] &^ other[1]}
}

func (set PatternSet) Overlaps(other PatternSet) bool {
	return set[0]&other[0] != 0 || set[1]&other[1] != 0
}
