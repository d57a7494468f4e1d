// gru-score ranks the schedules of a tree file by a weighted pain
// expression and prints the least painful ones. The per-week optimum is
// already enforced by the search; this is how a league picks between
// schedules that tie on totals but spread the pain differently.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/painrank"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/treestore"
)

func main() {
	os.Exit(run())
}

func run() int {
	inPath := flag.String("in", "", "tree file of schedules to rank")
	weightsExpr := flag.String("weights", painrank.DefaultExpr,
		"pain expression over doubleByes, fiveSpans, doubleByeSpread, fiveSpanSpread")
	topK := flag.Int("top", 20, "how many schedules to print (0 = all)")

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	flag.Parse()
	defer klog.Flush()

	if *inPath == "" {
		klog.Errorf("an input tree file is required (-in)")
		return 2
	}
	weights, err := painrank.ParseWeights(*weightsExpr)
	if err != nil {
		klog.Errorf("bad weights expression: %v", err)
		return 2
	}

	tr, err := treestore.Open(*inPath)
	if err != nil {
		klog.Errorf("%v", err)
		return 2
	}
	defer tr.Close()

	hdr := tr.Header()
	lay, err := gru.NewLayout(hdr.Teams)
	if err != nil {
		klog.Errorf("%v", err)
		return 2
	}
	if hdr.Partial {
		klog.Warningf("%s is a partial checkpoint; ranking what it holds so far", *inPath)
	}

	ranked := painrank.Rank(lay, tr.StreamPaths(), weights, *topK)
	if err := tr.Err(); err != nil {
		klog.Errorf("%v", err)
		return 1
	}

	fmt.Printf("top %d of %d-team %d-week schedules by %q:\n", len(ranked), hdr.Teams, hdr.Weeks, *weightsExpr)
	for i, rp := range ranked {
		fmt.Printf("%4d. pain %7.2f  score %v  %s\n", i+1, rp.Pain, rp.Score, gru.FormatPath(rp.Path))
	}
	return 0
}
