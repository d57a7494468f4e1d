package painrank

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// RankedPath pairs a schedule with its computed pain.
type RankedPath struct {
	Pain  float64
	Score gru.Score
	Path  gru.Path
}

// rankKey orders the tree by pain, ties broken by arrival order so ranking
// is stable across runs over the same file.
type rankKey struct {
	pain float64
	ord  int64
}

// PathPain computes the weighted pain of one schedule plus its raw totals.
func (w Weights) PathPain(lay *gru.Layout, p gru.Path) (float64, gru.Score) {
	var byes, spans [gru.MaxTeams]int
	for _, wk := range p {
		lay.WeekTeamScores(wk, byes[:], spans[:])
	}

	sumB, sumS := 0, 0
	minB, maxB := byes[0], byes[0]
	minS, maxS := spans[0], spans[0]
	for t := 0; t < lay.Teams; t++ {
		sumB += byes[t]
		sumS += spans[t]
		if byes[t] < minB {
			minB = byes[t]
		}
		if byes[t] > maxB {
			maxB = byes[t]
		}
		if spans[t] < minS {
			minS = spans[t]
		}
		if spans[t] > maxS {
			maxS = spans[t]
		}
	}

	pain := w.DoubleByes*float64(sumB) +
		w.FiveSpans*float64(sumS) +
		w.DoubleByeSpread*float64(maxB-minB) +
		w.FiveSpanSpread*float64(maxS-minS)
	return pain, gru.Score{DoubleByes: sumB, FiveSpans: sumS}
}

// Rank drains src, scores every schedule against w, and returns the topK
// least painful in ascending pain order. topK <= 0 keeps everything.
func Rank(lay *gru.Layout, src *gru.PathStream, w Weights, topK int) []RankedPath {
	ranked := redblacktree.Tree{
		Comparator: func(A, B interface{}) int {
			A0 := A.(rankKey)
			B0 := B.(rankKey)
			switch {
			case A0.pain < B0.pain:
				return -1
			case A0.pain > B0.pain:
				return 1
			case A0.ord < B0.ord:
				return -1
			case A0.ord > B0.ord:
				return 1
			}
			return 0
		},
	}

	ord := int64(0)
	for p := range src.Outlet {
		pain, score := w.PathPain(lay, p)
		ranked.Put(rankKey{pain, ord}, RankedPath{Pain: pain, Score: score, Path: p})
		ord++
		if topK > 0 && ranked.Size() > topK {
			ranked.Remove(ranked.Right().Key)
		}
	}

	out := make([]RankedPath, 0, ranked.Size())
	itr := ranked.Iterator()
	for itr.Next() {
		out = append(out, itr.Value().(RankedPath))
	}
	return out
}
