// gru-stats inspects a schedule tree file: header against actual contents,
// the score histogram of its paths, and optionally a full re-validation of
// every schedule rule, a frontier summary at a chosen depth, or a slot grid
// of one chosen schedule.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/treestore"
)

const maxProblemPrints = 10

func main() {
	os.Exit(run())
}

func run() int {
	inPath := flag.String("in", "", "tree file to inspect")
	check := flag.Bool("check", false, "re-validate every path: schedule rules, round discipline, per-week optimality")
	frontierAt := flag.Int("frontier", 0, "summarize prefixes at this depth instead of reading paths (0 = off)")
	showAt := flag.Int64("show", 0, "render this path (1-based, file order) as a slot grid (0 = off)")

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
	state := "complete"
	if hdr.Partial {
		state = "partial"
	}
	fmt.Printf("%s: %d teams, %d weeks, %d paths recorded, %s\n",
		*inPath, hdr.Teams, hdr.Weeks, hdr.Count, state)

	if *frontierAt > 0 {
		return frontier(tr, *frontierAt)
	}
	if *showAt > 0 {
		return showPath(os.Stdout, tr, lay, *showAt)
	}

	totals, err := scanPaths(tr, lay, *check)
	if err != nil {
		klog.Errorf("%v", err)
		return 1
	}

	fmt.Printf("paths read:  %d\n", totals.paths)
	scores := make([]gru.Score, 0, len(totals.histogram))
	for s := range totals.histogram {
		scores = append(scores, s)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].DoubleByes != scores[j].DoubleByes {
			return scores[i].DoubleByes < scores[j].DoubleByes
		}
		return scores[i].FiveSpans < scores[j].FiveSpans
	})
	for _, s := range scores {
		fmt.Printf("  score %v: %d paths\n", s, totals.histogram[s])
	}
	if inc, comp := tr.Markers(); inc+comp > 0 {
		fmt.Printf("markers:     %d incomplete, %d complete\n", inc, comp)
	}
	if bad := tr.BadLines(); bad > 0 {
		fmt.Printf("bad lines:   %d skipped\n", bad)
	}

	if totals.paths != hdr.Count {
		fmt.Printf("header says %d paths but the file holds %d\n", hdr.Count, totals.paths)
		if *check {
			return 1
		}
	}
	if *check {
		if totals.problems > 0 {
			fmt.Printf("check FAILED: %d problems\n", totals.problems)
			return 1
		}
		fmt.Println("check passed")
	}
	return 0
}

// scanTotals is what one pass over a file's paths accumulates.
type scanTotals struct {
	paths     int64
	problems  int
	histogram map[gru.Score]int64
}

// scanPaths reads every path and tallies the score histogram. With check set
// it also replays each path against the schedule and round rules and the
// per-week optimum, counting problems rather than stopping at the first.
func scanPaths(tr *treestore.Reader, lay *gru.Layout, check bool) (scanTotals, error) {
	totals := scanTotals{histogram: map[gru.Score]int64{}}
	for {
		p, err := tr.ReadPath()
		if err == io.EOF {
			return totals, nil
		}
		if err != nil {
			return totals, err
		}
		totals.paths++
		totals.histogram[lay.PathScore(p)]++
		if !check {
			continue
		}
		if _, err := libgru.Replay(lay, p); err != nil {
			totals.problems = logProblem(totals.problems, "path %d: %v", totals.paths, err)
			continue
		}
		for wi, wk := range p {
			if !lay.WeekIsOptimal(wk) {
				totals.problems = logProblem(totals.problems, "path %d week %d scores %v, not %v",
					totals.paths, wi, lay.WeekScore(wk), gru.WeekOptimal)
			}
		}
	}
}

func logProblem(problems int, format string, args ...interface{}) int {
	problems++
	if problems <= maxProblemPrints {
		klog.Errorf(format, args...)
	}
	return problems
}

// showPath streams to the wanted path and renders it as a slot grid: the
// matchup of every slot, then one row per team marking the slots it plays.
func showPath(out io.Writer, tr *treestore.Reader, lay *gru.Layout, want int64) int {
	var count int64
	for {
		p, err := tr.ReadPath()
		if err == io.EOF {
			break
		}
		if err != nil {
			klog.Errorf("%v", err)
			return 1
		}
		count++
		if count < want {
			continue
		}
		printGrid(out, lay, p, want)
		return 0
	}
	klog.Errorf("path %d requested but the file holds %d", want, count)
	return 2
}

func printGrid(out io.Writer, lay *gru.Layout, p gru.Path, ord int64) {
	fmt.Fprintf(out, "path %d: %s  score %v\n", ord, gru.FormatPath(p), lay.PathScore(p))
	byes := make([]int, lay.Teams)
	spans := make([]int, lay.Teams)
	for wi, wk := range p {
		for t := range byes {
			byes[t], spans[t] = 0, 0
		}
		lay.WeekTeamScores(wk, byes, spans)

		fmt.Fprintf(out, "week %d:\n", wi+1)
		var b strings.Builder
		b.WriteString("  slot ")
		for si := range wk {
			fmt.Fprintf(&b, "%6d", si+1)
		}
		fmt.Fprintln(out, b.String())

		b.Reset()
		b.WriteString("  game ")
		for _, id := range wk {
			fmt.Fprintf(&b, "%6s", lay.MatchupLabel(id))
		}
		fmt.Fprintln(out, b.String())

		for t := 0; t < lay.Teams; t++ {
			b.Reset()
			fmt.Fprintf(&b, "  t%-4d", t)
			for _, id := range wk {
				a, z := lay.Pair(id)
				mark := "."
				if int(a) == t || int(z) == t {
					mark = "X"
				}
				fmt.Fprintf(&b, "%6s", mark)
			}
			if byes[t] > 0 {
				fmt.Fprintf(&b, "  double-bye")
			}
			if spans[t] > 0 {
				fmt.Fprintf(&b, "  five-span")
			}
			fmt.Fprintln(out, b.String())
		}
	}
}

func frontier(tr *treestore.Reader, depth int) int {
	nodes := 0
	err := tr.FrontierScan(depth, func(node treestore.FrontierNode) error {
		nodes++
		mark := ""
		switch node.Marker {
		case treestore.MarkerIncomplete:
			mark = " [incomplete]"
		case treestore.MarkerComplete:
			mark = " [complete]"
		}
		fmt.Printf("%s: %d paths%s\n", gru.FormatPath(node.Prefix), node.Leaves, mark)
		return nil
	})
	if err != nil {
		klog.Errorf("%v", err)
		return 1
	}
	fmt.Printf("%d prefixes at depth %d\n", nodes, depth)
	return 0
}
