package dispatch

import (
	"errors"
	"io"
	"os"
	"path"
	"testing"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/treestore"
)

// retuneOptimal points the pruning oracle at the best score a four-team
// week can reach; the shipped value targets larger leagues.
func retuneOptimal(t *testing.T) {
	saved := gru.WeekOptimal
	t.Cleanup(func() { gru.WeekOptimal = saved })
	gru.WeekOptimal = gru.Score{DoubleByes: 1, FiveSpans: 2}
}

// optimalWeeks enumerates every optimal first week, in traversal order.
func optimalWeeks(t *testing.T, lay *gru.Layout) []gru.Week {
	cons := libgru.NewRoundTracker(lay).ConstraintFor()
	var weeks []gru.Week
	libgru.EnumerateWeeks(lay, cons, -1, nil, func(wk gru.Week) bool {
		if lay.WeekIsOptimal(wk) {
			weeks = append(weeks, wk)
		}
		return true
	})
	if len(weeks) < 3 {
		t.Fatal("need several optimal weeks to stage a resume")
	}
	return weeks
}

func tmpDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "junk*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// pairKeys is the full expected result set for a two-week search: every
// optimal week followed by every optimal week.
func pairKeys(weeks []gru.Week) map[string]bool {
	want := map[string]bool{}
	for _, w0 := range weeks {
		for _, w1 := range weeks {
			want[string(gru.Path{w0, w1}.AppendKey(nil))] = true
		}
	}
	return want
}

// readTree drains a finished or checkpointed tree file into a key set.
func readTree(t *testing.T, name string) (keys map[string]bool, hdr treestore.Header, incomplete, complete int64) {
	tr, err := treestore.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	keys = map[string]bool{}
	for {
		p, err := tr.ReadPath()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		key := string(p.AppendKey(nil))
		if keys[key] {
			t.Fatalf("duplicate path in %s", name)
		}
		keys[key] = true
	}
	if tr.Err() != nil {
		t.Fatal(tr.Err())
	}
	incomplete, complete = tr.Markers()
	return keys, tr.Header(), incomplete, complete
}

func sameKeys(t *testing.T, got, want map[string]bool) {
	if len(got) != len(want) {
		t.Fatalf("got %d paths, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Fatal("expected path missing")
		}
	}
}

func mustRun(t *testing.T, opts Options) Summary {
	co, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := co.Run()
	if err != nil {
		t.Fatal(err)
	}
	return sum
}

func TestNewValidation(t *testing.T) {
	out := path.Join(tmpDir(t), "out.txt")

	if _, err := New(Options{Teams: 5, Weeks: 2, OutPath: out}); !errors.Is(err, gru.ErrTeamCount) {
		t.Fatalf("err=%v", err)
	}
	if _, err := New(Options{Teams: 4, Weeks: 0, OutPath: out}); !errors.Is(err, gru.ErrWeekCount) {
		t.Fatalf("err=%v", err)
	}
	if _, err := New(Options{Teams: 4, Weeks: 2}); err == nil {
		t.Fatal("output path must be required")
	}
	if _, err := New(Options{Teams: 4, Weeks: 2, Validate: true, OutPath: out}); err == nil {
		t.Fatal("validate runs must reject file paths")
	}
	if _, err := New(Options{Teams: 4, Weeks: 2, OutPath: out, FirstMatchup: 6}); !errors.Is(err, gru.ErrBadMatchup) {
		t.Fatalf("err=%v", err)
	}
	if _, err := New(Options{Teams: 4, Weeks: 2, OutPath: out, FirstMatchup: -2}); !errors.Is(err, gru.ErrBadMatchup) {
		t.Fatalf("err=%v", err)
	}
	if _, err := New(Options{Teams: 4, Weeks: 2, OutPath: out, Breadth: -1}); err == nil {
		t.Fatal("negative breadth must be rejected")
	}
}

func TestRunFresh(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))
	out := path.Join(tmpDir(t), "out.txt")

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, OutPath: out,
		Workers: 2, Breadth: 5, FirstMatchup: -1,
	})
	if sum.Interrupted || sum.Inputs != len(opt) || sum.Retired != len(opt) {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.Paths != nOpt*nOpt || sum.Dupes != 0 || sum.CopiedFwd != 0 {
		t.Fatalf("summary=%+v", sum)
	}
	// Per input: full units of 5, then one more to prove exhaustion.
	if want := nOpt * (nOpt/5 + 1); sum.Units != want {
		t.Fatalf("units=%d, want %d", sum.Units, want)
	}

	keys, hdr, incomplete, complete := readTree(t, out)
	if hdr.Partial || hdr.Count != nOpt*nOpt || incomplete != 0 || complete != 0 {
		t.Fatalf("hdr=%+v markers=%d/%d", hdr, incomplete, complete)
	}
	sameKeys(t, keys, pairKeys(opt))

	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("scratch file left behind")
	}
}

func TestRunPinnedFirstMatchup(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	out := path.Join(tmpDir(t), "out.txt")

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, OutPath: out, Workers: 2, FirstMatchup: 0,
	})

	// Week 0 is pinned; continuations are not.
	var pinned []gru.Week
	for _, wk := range opt {
		if wk[0] == 0 {
			pinned = append(pinned, wk)
		}
	}
	if len(pinned) == 0 || sum.Inputs != len(pinned) {
		t.Fatalf("inputs=%d pinned=%d", sum.Inputs, len(pinned))
	}
	want := map[string]bool{}
	for _, w0 := range pinned {
		for _, w1 := range opt {
			want[string(gru.Path{w0, w1}.AppendKey(nil))] = true
		}
	}
	keys, _, _, _ := readTree(t, out)
	sameKeys(t, keys, want)
}

func TestRunValidate(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, Workers: 2, FirstMatchup: -1, Validate: true,
	})
	if sum.Paths != nOpt*nOpt || sum.Retired != len(opt) || sum.Interrupted {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestRunNoInputs(t *testing.T) {
	// Under the shipped oracle no four-team week scores (2,4): the
	// exhaustive answer is an empty, complete result file.
	out := path.Join(tmpDir(t), "out.txt")

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, OutPath: out, Workers: 2, FirstMatchup: -1,
	})
	if sum.Inputs != 0 || sum.Paths != 0 || sum.Interrupted {
		t.Fatalf("summary=%+v", sum)
	}
	keys, hdr, _, _ := readTree(t, out)
	if len(keys) != 0 || hdr.Count != 0 || hdr.Partial {
		t.Fatalf("hdr=%+v", hdr)
	}
}

func TestStopBeforeRun(t *testing.T) {
	retuneOptimal(t)
	out := path.Join(tmpDir(t), "out.txt")

	co, err := New(Options{Teams: 4, Weeks: 2, OutPath: out, Workers: 2, FirstMatchup: -1})
	if err != nil {
		t.Fatal(err)
	}
	co.Stop()
	co.Stop() // idempotent
	select {
	case <-co.Stopping():
	default:
		t.Fatal("Stopping not signaled")
	}

	sum, err := co.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Interrupted {
		t.Fatal("nope")
	}
	select {
	case <-co.Done():
	default:
		t.Fatal("Done not signaled")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("a run stopped before exploring must not create output")
	}
}

func TestResumeFromCheckpoint(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))
	out := path.Join(tmpDir(t), "out.txt")

	// A checkpoint as an interrupted run leaves one: the first input
	// finished (present, unmarked), the second stopped after its first
	// two results in traversal order, the rest never started.
	tw, err := treestore.Create(out, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, w1 := range opt {
		if err := tw.WritePath(gru.Path{opt[0], w1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.WritePath(gru.Path{opt[1], opt[0]}); err != nil {
		t.Fatal(err)
	}
	if err := tw.WritePath(gru.Path{opt[1], opt[1]}); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteMarker(gru.Path{opt[1]}, treestore.MarkerIncomplete); err != nil {
		t.Fatal(err)
	}
	if err := tw.Finalize(true); err != nil {
		t.Fatal(err)
	}

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, OutPath: out,
		Workers: 2, Breadth: 5, FirstMatchup: -1,
	})
	if sum.Interrupted || sum.Inputs != len(opt) || sum.Retired != len(opt) {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.CopiedFwd != nOpt+2 {
		t.Fatalf("copied %d, want %d", sum.CopiedFwd, nOpt+2)
	}
	if sum.Paths != nOpt*nOpt-(nOpt+2) || sum.Dupes != 0 {
		t.Fatalf("summary=%+v", sum)
	}

	keys, hdr, incomplete, complete := readTree(t, out)
	if hdr.Partial || hdr.Count != nOpt*nOpt || incomplete != 0 || complete != 0 {
		t.Fatalf("hdr=%+v markers=%d/%d", hdr, incomplete, complete)
	}
	sameKeys(t, keys, pairKeys(opt))
}

func TestResumeCarriesCompleteMarkers(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))
	out := path.Join(tmpDir(t), "out.txt")

	// A prior run proved the first input dead: a complete marker with no
	// leaves beneath it.
	tw, err := treestore.Create(out, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteMarker(gru.Path{opt[0]}, treestore.MarkerComplete); err != nil {
		t.Fatal(err)
	}
	if err := tw.Finalize(true); err != nil {
		t.Fatal(err)
	}

	opts := Options{Teams: 4, Weeks: 2, OutPath: out, Workers: 2, FirstMatchup: -1}
	sum := mustRun(t, opts)
	if sum.Retired != len(opt) || sum.Paths != (nOpt-1)*nOpt || sum.Interrupted {
		t.Fatalf("summary=%+v", sum)
	}

	keys, hdr, incomplete, complete := readTree(t, out)
	if hdr.Partial || hdr.Count != (nOpt-1)*nOpt || incomplete != 0 || complete != 1 {
		t.Fatalf("hdr=%+v markers=%d/%d", hdr, incomplete, complete)
	}
	for key := range keys {
		if key[:len(opt[0])] == string(gru.Path{opt[0]}.AppendKey(nil)) {
			t.Fatal("dead branch explored anyway")
		}
	}

	// Rerunning changes nothing: every input is already proven, so the
	// run only carries the file forward and reseals it.
	sum = mustRun(t, opts)
	if sum.Units != 0 || sum.Paths != 0 || sum.CopiedFwd != (nOpt-1)*nOpt {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.Retired != len(opt) || sum.Interrupted {
		t.Fatalf("summary=%+v", sum)
	}
	_, hdr, incomplete, complete = readTree(t, out)
	if hdr.Partial || hdr.Count != (nOpt-1)*nOpt || incomplete != 0 || complete != 1 {
		t.Fatalf("hdr=%+v markers=%d/%d", hdr, incomplete, complete)
	}
}

func TestRunFromSource(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))
	dir := tmpDir(t)
	src := path.Join(dir, "src.txt")
	out := path.Join(dir, "out.txt")

	tw, err := treestore.Create(src, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	writeSrc := func(p gru.Path) {
		if err := tw.WritePath(p); err != nil {
			t.Fatal(err)
		}
	}
	writeSrc(gru.Path{opt[0]})
	writeSrc(gru.Path{opt[1]})
	// A duplicate collapses on load and an illegal schedule is dropped.
	writeSrc(gru.Path{opt[0]})
	writeSrc(gru.Path{{0, 3, 5, 4, 1, 2}})
	if err := tw.Finalize(false); err != nil {
		t.Fatal(err)
	}

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, SourcePath: src, OutPath: out, Workers: 2,
	})
	if sum.Inputs != 2 || sum.Retired != 2 || sum.Paths != 2*nOpt {
		t.Fatalf("summary=%+v", sum)
	}

	want := map[string]bool{}
	for _, w0 := range []gru.Week{opt[0], opt[1]} {
		for _, w1 := range opt {
			want[string(gru.Path{w0, w1}.AppendKey(nil))] = true
		}
	}
	keys, hdr, _, _ := readTree(t, out)
	if hdr.Count != 2*nOpt || hdr.Partial {
		t.Fatalf("hdr=%+v", hdr)
	}
	sameKeys(t, keys, want)
}

func TestSourceErrors(t *testing.T) {
	dir := tmpDir(t)
	out := path.Join(dir, "out.txt")

	runWith := func(src string, teams, weeks int) error {
		co, err := New(Options{Teams: teams, Weeks: weeks, SourcePath: src, OutPath: out, Workers: 1})
		if err != nil {
			t.Fatal(err)
		}
		_, err = co.Run()
		return err
	}

	if err := runWith(path.Join(dir, "absent.txt"), 4, 2); !errors.Is(err, gru.ErrMissingSource) {
		t.Fatalf("err=%v", err)
	}

	mkSrc := func(name string, teams, weeks int, partial bool) string {
		p := path.Join(dir, name)
		tw, err := treestore.Create(p, teams, weeks)
		if err != nil {
			t.Fatal(err)
		}
		if err := tw.Finalize(partial); err != nil {
			t.Fatal(err)
		}
		return p
	}

	if err := runWith(mkSrc("partial.txt", 4, 1, true), 4, 2); !errors.Is(err, gru.ErrSourceMismatch) {
		t.Fatalf("err=%v", err)
	}
	if err := runWith(mkSrc("deep.txt", 4, 2, false), 4, 2); !errors.Is(err, gru.ErrSourceMismatch) {
		t.Fatalf("err=%v", err)
	}
	if err := runWith(mkSrc("teams.txt", 6, 1, false), 4, 2); !errors.Is(err, gru.ErrSourceMismatch) {
		t.Fatalf("err=%v", err)
	}
}

func TestInterruptThenConverge(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))
	out := path.Join(tmpDir(t), "out.txt")
	opts := Options{Teams: 4, Weeks: 2, OutPath: out, Workers: 2, Breadth: 1, FirstMatchup: -1}

	// Stop races the run: it may land before exploration, mid-run, or
	// after everything finished. All three leave a resumable state.
	co, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	go co.Stop()
	first, err := co.Run()
	if err != nil {
		t.Fatal(err)
	}

	second := mustRun(t, opts)
	if second.Interrupted {
		t.Fatal("unstopped run reported an interrupt")
	}
	if second.CopiedFwd != first.Paths {
		t.Fatalf("carried %d forward of %d stored", second.CopiedFwd, first.Paths)
	}
	if second.Dupes != 0 || first.Paths+second.Paths != nOpt*nOpt {
		t.Fatalf("first=%+v second=%+v", first, second)
	}

	keys, hdr, incomplete, complete := readTree(t, out)
	if hdr.Partial || hdr.Count != nOpt*nOpt || incomplete != 0 || complete != 0 {
		t.Fatalf("hdr=%+v markers=%d/%d", hdr, incomplete, complete)
	}
	sameKeys(t, keys, pairKeys(opt))
}

func TestRunShuffledAndLSM(t *testing.T) {
	retuneOptimal(t)
	lay, err := gru.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	opt := optimalWeeks(t, lay)
	nOpt := int64(len(opt))
	out := path.Join(tmpDir(t), "out.txt")

	sum := mustRun(t, Options{
		Teams: 4, Weeks: 2, OutPath: out, Workers: 2, FirstMatchup: -1,
		Shuffle: true, ShuffleSeed: 42, DedupLSM: true,
	})
	if sum.Paths != nOpt*nOpt || sum.Dupes != 0 {
		t.Fatalf("summary=%+v", sum)
	}
	keys, _, _, _ := readTree(t, out)
	sameKeys(t, keys, pairKeys(opt))
}
