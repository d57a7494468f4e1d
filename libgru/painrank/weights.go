// Package painrank orders finished schedules by how much their remaining
// pain matters once the hard per-week optimum has already been enforced:
// two schedules with identical totals can still differ in how evenly the
// double-byes and five-slot spans land across teams.
package painrank

import (
	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
)

// WeightsExpr is a weighted sum of pain metrics, e.g.
//
//	doubleByes + fiveSpans + 2.5*fiveSpanSpread
type WeightsExpr struct {
	First *Term         `parser:"@@"`
	Rest  []*SignedTerm `parser:"@@*"`
}

type SignedTerm struct {
	Sign string `parser:"@(\"+\" | \"-\")"`
	Term *Term  `parser:"@@"`
}

type Term struct {
	Coef   *float64 `parser:"(@(Float | Int) \"*\")?"`
	Metric string   `parser:"@Ident"`
}

var parseWeightsExpr = participle.MustBuild[WeightsExpr]()

// DefaultExpr weighs every metric equally.
const DefaultExpr = "doubleByes + fiveSpans + doubleByeSpread + fiveSpanSpread"

// Weights holds the resolved coefficient of each pain metric. The totals
// count events across the whole schedule; the spreads measure max minus min
// of the per-team counts.
type Weights struct {
	DoubleByes      float64
	FiveSpans       float64
	DoubleByeSpread float64
	FiveSpanSpread  float64
}

// ParseWeights compiles a weights expression. Repeating a metric accumulates
// its coefficients; an unknown metric name is an error.
func ParseWeights(expr string) (Weights, error) {
	parsed, err := parseWeightsExpr.ParseString("", expr)
	if err != nil {
		return Weights{}, err
	}

	w := Weights{}
	if err := w.applyTerm(parsed.First, 1); err != nil {
		return Weights{}, err
	}
	for _, st := range parsed.Rest {
		sign := float64(1)
		if st.Sign == "-" {
			sign = -1
		}
		if err := w.applyTerm(st.Term, sign); err != nil {
			return Weights{}, err
		}
	}
	return w, nil
}

func (w *Weights) applyTerm(term *Term, sign float64) error {
	coef := sign
	if term.Coef != nil {
		coef *= *term.Coef
	}
	switch term.Metric {
	case "doubleByes":
		w.DoubleByes += coef
	case "fiveSpans":
		w.FiveSpans += coef
	case "doubleByeSpread":
		w.DoubleByeSpread += coef
	case "fiveSpanSpread":
		w.FiveSpanSpread += coef
	default:
		return errors.Errorf("unknown pain metric %q", term.Metric)
	}
	return nil
}
