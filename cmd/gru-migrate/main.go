// gru-migrate rewrites a schedule tree file into canonical form: malformed
// lines drop with a warning, duplicate paths collapse to one, prefix
// compression is recomputed, markers carry through unchanged, and the
// header count is rewritten from what the file actually holds.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/treestore"
)

func main() {
	os.Exit(run())
}

func run() int {
	inPath := flag.String("in", "", "tree file to migrate")
	outPath := flag.String("out", "", "destination for the rewritten file")
	strict := flag.Bool("strict", false, "also drop paths that break schedule or round rules")
	dedupDir := flag.String("dedup-dir", "", "spill the dedup set to disk under this directory")

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	flag.Parse()
	defer klog.Flush()

	if *inPath == "" || *outPath == "" {
		klog.Errorf("both -in and -out are required")
		return 2
	}
	if *inPath == *outPath {
		klog.Errorf("-in and -out name the same file; migration is not in place")
		return 2
	}

	tr, err := treestore.Open(*inPath)
	if err != nil {
		klog.Errorf("%v", err)
		return 2
	}
	defer tr.Close()
	hdr := tr.Header()

	var lay *gru.Layout
	if *strict {
		if lay, err = gru.NewLayout(hdr.Teams); err != nil {
			klog.Errorf("%v", err)
			return 2
		}
	}

	tw, err := treestore.Create(*outPath, hdr.Teams, hdr.Weeks)
	if err != nil {
		klog.Errorf("%v", err)
		return 1
	}

	var dedup libgru.PathSet
	if *dedupDir != "" {
		dedup = libgru.NewLSMSet(*dedupDir)
	} else {
		dedup = libgru.NewMemSet()
	}
	defer dedup.Close()

	dupes, invalid, err := migrate(tr, tw, lay, dedup)
	if err != nil {
		klog.Errorf("%v", err)
		os.Remove(*outPath)
		return 1
	}

	if err := tw.Finalize(hdr.Partial); err != nil {
		klog.Errorf("%v", err)
		os.Remove(*outPath)
		return 1
	}

	fmt.Printf("migrated %s -> %s: %d paths kept, %d duplicates dropped, %d invalid dropped, %d bad lines skipped\n",
		*inPath, *outPath, dedup.Count(), dupes, invalid, tr.BadLines())
	return 0
}

// migrate streams every event of tr into tw, collapsing duplicate paths and
// re-anchoring markers under their surviving prefix. With lay non-nil it also
// drops paths that break the schedule or round rules.
func migrate(tr *treestore.Reader, tw *treestore.Writer, lay *gru.Layout, dedup libgru.PathSet) (dupes, invalid int64, err error) {
	weeks := tr.Header().Weeks
	var stack gru.Path
	var key []byte
	for {
		ev, err := tr.ReadEvent()
		if err == io.EOF {
			return dupes, invalid, nil
		}
		if err != nil {
			return dupes, invalid, err
		}

		if ev.Marker != 0 {
			if ev.Depth > len(stack) {
				continue // marker under dropped lines; nothing to flag
			}
			if err := tw.WriteMarker(stack[:ev.Depth], ev.Marker); err != nil {
				return dupes, invalid, err
			}
			continue
		}
		if ev.Depth > len(stack) {
			continue // already warned by the reader
		}
		stack = append(stack[:ev.Depth], ev.Week)
		if len(stack) < weeks {
			continue
		}

		if lay != nil {
			if _, err := libgru.Replay(lay, stack); err != nil {
				invalid++
				klog.Warningf("dropping invalid path: %v", err)
				continue
			}
		}
		key = stack.AppendKey(key[:0])
		if !dedup.TryAdd(key) {
			dupes++
			continue
		}
		if err := tw.WritePath(stack); err != nil {
			return dupes, invalid, err
		}
	}
}
