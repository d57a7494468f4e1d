package dispatch

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru"
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/libgru/treestore"
)

// loadInputs produces the run's source prefixes: every path of the source
// file, or every optimal week 0 when no source is given. Duplicate source
// prefixes collapse to one.
func (co *Coordinator) loadInputs() ([]*inputPath, error) {
	if co.opts.SourcePath == "" {
		return co.synthInputs()
	}

	tr, err := treestore.Open(co.opts.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(gru.ErrMissingSource, "%s", co.opts.SourcePath)
		}
		return nil, err
	}
	defer tr.Close()

	hdr := tr.Header()
	switch {
	case hdr.Teams != co.opts.Teams:
		return nil, errors.Wrapf(gru.ErrSourceMismatch, "source holds %d teams, search wants %d", hdr.Teams, co.opts.Teams)
	case hdr.Weeks >= co.opts.Weeks:
		return nil, errors.Wrapf(gru.ErrSourceMismatch, "source already spans %d weeks, search wants %d", hdr.Weeks, co.opts.Weeks)
	case hdr.Partial:
		return nil, errors.Wrapf(gru.ErrSourceMismatch, "source %s is partial; resume that search first", co.opts.SourcePath)
	}
	co.srcDepth = hdr.Weeks

	var inputs []*inputPath
	unique := libgru.NewMemSet()
	defer unique.Close()
	for {
		p, err := tr.ReadPath()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		key := p.AppendKey(nil)
		if !unique.TryAdd(key) {
			continue
		}
		if _, err := libgru.Replay(co.lay, p); err != nil {
			klog.Warningf("%s: skipping invalid path: %v", co.opts.SourcePath, err)
			continue
		}
		inputs = append(inputs, &inputPath{
			id:     len(inputs),
			prefix: p,
			key:    string(key),
		})
	}
	return inputs, nil
}

// synthInputs enumerates week 0 fresh and keeps the optimal-scoring weeks.
// Pinning slot 0 to a fixed matchup is how the caller strips the symmetry
// of relabeled first slots without losing any schedule shapes.
func (co *Coordinator) synthInputs() ([]*inputPath, error) {
	co.srcDepth = 1
	cons := libgru.NewRoundTracker(co.lay).ConstraintFor()

	var inputs []*inputPath
	libgru.EnumerateWeeks(co.lay, cons, co.opts.FirstMatchup, co.stopRequested, func(wk gru.Week) bool {
		if co.lay.WeekScore(wk) == gru.WeekOptimal {
			p := gru.Path{wk}
			inputs = append(inputs, &inputPath{
				id:     len(inputs),
				prefix: p,
				key:    string(p.AppendKey(nil)),
			})
		}
		return true
	})
	return inputs, nil
}

// scanPrior reads an existing output file, if any, and folds what it proves
// into the inputs: leaves already found become skip counts, a complete
// marker or an unmarked presence retires the input, an incomplete marker
// leaves it live. Returns whether a prior file was found.
func (co *Coordinator) scanPrior(inputs []*inputPath) (bool, error) {
	tr, err := treestore.Open(co.opts.OutPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer tr.Close()

	hdr := tr.Header()
	if hdr.Teams != co.opts.Teams || hdr.Weeks != co.opts.Weeks {
		return false, errors.Wrapf(gru.ErrSourceMismatch,
			"existing output %s holds teams=%d weeks=%d", co.opts.OutPath, hdr.Teams, hdr.Weeks)
	}

	byKey := make(map[string]*inputPath, len(inputs))
	for _, in := range inputs {
		byKey[in.key] = in
	}

	err = tr.FrontierScan(co.srcDepth, func(node treestore.FrontierNode) error {
		in := byKey[string(node.Prefix.AppendKey(nil))]
		if in == nil {
			return nil // prefix no longer among the inputs; its paths still copy forward
		}
		in.seen = true
		in.skip += node.Leaves
		if node.Marker != 0 {
			in.marker = node.Marker
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	for _, in := range inputs {
		if in.seen && in.marker != treestore.MarkerIncomplete {
			in.retired = true
		}
	}
	return true, nil
}

// copyForward streams every path of the prior output into the new store,
// seeding the dedup set so resumed exploration cannot re-add them. An
// interrupt here abandons the new store and leaves the prior file as it was.
func (co *Coordinator) copyForward() error {
	tr, err := treestore.Open(co.opts.OutPath)
	if err != nil {
		return err
	}
	defer tr.Close()

	var key []byte
	for {
		if co.stopping.Load() {
			return errAbandoned
		}
		p, err := tr.ReadPath()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		key = p.AppendKey(key[:0])
		if !co.dedup.TryAdd(key) {
			continue
		}
		if err := co.store.WritePath(p); err != nil {
			return err
		}
		co.summary.CopiedFwd++
	}
	klog.Infof("carried %d paths forward from %s", co.summary.CopiedFwd, co.opts.OutPath)
	return nil
}
