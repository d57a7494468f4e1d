// Package treestore reads and writes schedule tree files: a text format
// holding a depth-first forest of week lines, one week per line, each line
// indented by one TAB per week of depth, with the weeks shared with the
// previously written path suppressed. A line holding the single character
// '?' or '.' marks the branch above it incomplete or complete; the first
// line is always a fixed-width header carrying team count, week count, and
// result count.
package treestore

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

const (
	// MarkerIncomplete trails a prefix whose subtree was cut off mid-search
	// and must be resumed; MarkerComplete trails one that finished with
	// nothing beneath it. Neither character can open a schedule line.
	MarkerIncomplete = byte('?')
	MarkerComplete   = byte('.')

	indentChar = byte('\t')
	countWidth = 12
	partialTag = "(partial)"
)

// Header is the first line of every tree file.
type Header struct {
	Teams   int
	Weeks   int
	Count   int64
	Partial bool
}

func (hdr Header) format() string {
	line := fmt.Sprintf("# teams=%d weeks=%d count=%0*d", hdr.Teams, hdr.Weeks, countWidth, hdr.Count)
	if hdr.Partial {
		line += " " + partialTag
	}
	return line + "\n"
}

func parseHeader(line string) (Header, error) {
	hdr := Header{}
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != "#" {
		return hdr, errors.Wrapf(gru.ErrBadHeader, "%q", line)
	}
	for _, field := range fields[1:] {
		var err error
		switch {
		case strings.HasPrefix(field, "teams="):
			hdr.Teams, err = strconv.Atoi(field[len("teams="):])
		case strings.HasPrefix(field, "weeks="):
			hdr.Weeks, err = strconv.Atoi(field[len("weeks="):])
		case strings.HasPrefix(field, "count="):
			hdr.Count, err = strconv.ParseInt(field[len("count="):], 10, 64)
		case field == partialTag:
			hdr.Partial = true
		default:
			err = errors.Errorf("unknown field %q", field)
		}
		if err != nil {
			return hdr, errors.Wrapf(gru.ErrBadHeader, "%q: %v", line, err)
		}
	}
	if hdr.Teams < gru.MinTeams || hdr.Teams > gru.MaxTeams || hdr.Teams%2 != 0 {
		return hdr, errors.Wrapf(gru.ErrBadHeader, "teams=%d", hdr.Teams)
	}
	if hdr.Weeks < 1 {
		return hdr, errors.Wrapf(gru.ErrBadHeader, "weeks=%d", hdr.Weeks)
	}
	return hdr, nil
}

// Writer streams paths into a tree file. A single goroutine (the
// coordinator) owns a Writer and serializes every call.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	hdr     Header
	hdrLen  int
	last    gru.Path
	scratch []byte
}

// Create opens path for writing and emits a provisional header marked
// partial; Finalize rewrites it in place.
func Create(path string, teams, weeks int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating tree file")
	}
	tw := &Writer{
		f:   f,
		w:   bufio.NewWriterSize(f, 64*1024),
		hdr: Header{Teams: teams, Weeks: weeks, Partial: true},
	}
	head := tw.hdr.format()
	tw.hdrLen = len(head)
	if _, err := tw.w.WriteString(head); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "writing header to %s", path)
	}
	return tw, nil
}

// Count returns the number of paths written so far.
func (tw *Writer) Count() int64 {
	return tw.hdr.Count
}

// WritePath emits p, suppressing the leading weeks it shares with the
// previously written path. Callers stream paths in depth-first order; the
// writer records whatever order it is handed.
func (tw *Writer) WritePath(p gru.Path) error {
	if tw.f == nil {
		return gru.ErrStoreClosed
	}
	if len(p) == 0 {
		return errors.Wrap(gru.ErrBadLine, "empty path")
	}
	common := commonWeeks(tw.last, p)
	if common == len(p) {
		common-- // identical to the last path: re-emit its leaf line
	}
	for depth := common; depth < len(p); depth++ {
		if err := tw.writeLine(depth, p[depth]); err != nil {
			return err
		}
	}
	tw.last = p.Clone()
	tw.hdr.Count++
	return nil
}

// WriteMarker emits prefix (compressed like any path) followed by a marker
// line at the prefix's depth, flagging the whole branch beneath it. Markers
// flush through to the file: they exist to survive whatever ends the run.
func (tw *Writer) WriteMarker(prefix gru.Path, marker byte) error {
	if tw.f == nil {
		return gru.ErrStoreClosed
	}
	common := commonWeeks(tw.last, prefix)
	for depth := common; depth < len(prefix); depth++ {
		if err := tw.writeLine(depth, prefix[depth]); err != nil {
			return err
		}
	}
	if common < len(prefix) {
		tw.last = prefix.Clone()
	}

	line := tw.scratch[:0]
	for i := 0; i < len(prefix); i++ {
		line = append(line, indentChar)
	}
	line = append(line, marker, '\n')
	tw.scratch = line[:0]
	if _, err := tw.w.Write(line); err != nil {
		return err
	}
	return tw.w.Flush()
}

// Flush pushes buffered whole lines to the file. The coordinator calls it
// after each absorbed batch so a hard kill loses at most one batch.
func (tw *Writer) Flush() error {
	if tw.f == nil {
		return gru.ErrStoreClosed
	}
	return tw.w.Flush()
}

// Finalize flushes everything, rewrites the header in place with the final
// count (space-padded to the identical byte length), and closes the file.
// partial=true keeps the partial tag for a checkpointed run.
func (tw *Writer) Finalize(partial bool) error {
	if tw.f == nil {
		return gru.ErrStoreClosed
	}
	err := tw.w.Flush()

	tw.hdr.Partial = partial
	raw := []byte(tw.hdr.format())
	if len(raw) > tw.hdrLen {
		return errors.Wrapf(gru.ErrBadHeader, "finalized header grew from %d to %d bytes", tw.hdrLen, len(raw))
	}
	if len(raw) < tw.hdrLen {
		padded := make([]byte, 0, tw.hdrLen)
		padded = append(padded, raw[:len(raw)-1]...)
		for len(padded) < tw.hdrLen-1 {
			padded = append(padded, ' ')
		}
		raw = append(padded, '\n')
	}
	if _, werr := tw.f.WriteAt(raw, 0); err == nil {
		err = werr
	}
	if cerr := tw.f.Close(); err == nil {
		err = cerr
	}
	tw.f = nil
	tw.w = nil
	return errors.Wrapf(err, "finalizing tree file")
}

func (tw *Writer) writeLine(depth int, wk gru.Week) error {
	buf := tw.scratch[:0]
	for i := 0; i < depth; i++ {
		buf = append(buf, indentChar)
	}
	for si, id := range wk {
		if si > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(id), 10)
	}
	buf = append(buf, '\n')
	tw.scratch = buf[:0]
	_, err := tw.w.Write(buf)
	return err
}

func commonWeeks(a, b gru.Path) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i].Equal(b[i]) {
		i++
	}
	return i
}
