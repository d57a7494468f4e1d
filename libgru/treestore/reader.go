package treestore

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// maxLineWarnings caps per-file bad-line log noise; the total still lands in
// one summary line at Close.
const maxLineWarnings = 5

// Reader streams a tree file. A missing or bad header is fatal; anything
// wrong below it (truncated tail, stray bytes, an over-deep line) skips that
// line and keeps going, since a checkpointed file may legitimately end
// mid-write.
type Reader struct {
	f        *os.File
	scan     *bufio.Scanner
	hdr      Header
	name     string
	slots    int
	matchups int

	stack      gru.Path
	lineNo     int
	badLines   int
	incomplete int64
	complete   int64
	err        error
}

// Open opens a tree file and consumes its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scan.Scan() {
		f.Close()
		if err := scan.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		return nil, errors.Wrapf(gru.ErrBadHeader, "%s is empty", path)
	}
	hdr, err := parseHeader(scan.Text())
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &Reader{
		f:        f,
		scan:     scan,
		hdr:      hdr,
		name:     filepath.Base(path),
		slots:    3 * hdr.Teams / 2,
		matchups: hdr.Teams * (hdr.Teams - 1) / 2,
		lineNo:   1,
	}, nil
}

func (tr *Reader) Header() Header {
	return tr.hdr
}

// BadLines returns how many lines were skipped as malformed so far.
func (tr *Reader) BadLines() int {
	return tr.badLines
}

// Markers returns how many incomplete and complete markers have been read
// so far. Incomplete markers mean the file is a checkpoint with branches
// still owed a resume.
func (tr *Reader) Markers() (incomplete, complete int64) {
	return tr.incomplete, tr.complete
}

// Err returns the first read error, if any. A reader that reached EOF with
// a nil Err has seen the whole file.
func (tr *Reader) Err() error {
	return tr.err
}

func (tr *Reader) Close() error {
	if tr.badLines > maxLineWarnings {
		klog.Warningf("%s: skipped %d malformed lines in total", tr.name, tr.badLines)
	}
	if tr.f == nil {
		return nil
	}
	err := tr.f.Close()
	tr.f = nil
	return err
}

// ReadPath returns the next full path in file order, or io.EOF after the
// last one. Marker lines never disturb the depth stack.
func (tr *Reader) ReadPath() (gru.Path, error) {
	for {
		ev, err := tr.ReadEvent()
		if err != nil {
			return nil, err
		}
		if ev.Marker != 0 || ev.orphaned(tr) {
			continue
		}
		tr.stack = append(tr.stack[:ev.Depth], ev.Week)
		if len(tr.stack) == tr.hdr.Weeks {
			return tr.stack.Clone(), nil
		}
	}
}

// StreamPaths drains the reader through a PathStream and closes it when the
// file ends. A read error mid-file truncates the stream; check Err after.
func (tr *Reader) StreamPaths() *gru.PathStream {
	stream := gru.NewPathStream(tr.name)
	go func() {
		for {
			p, err := tr.ReadPath()
			if err != nil {
				break
			}
			stream.Outlet <- p
		}
		stream.Close()
	}()
	return stream
}

// FrontierNode summarizes one prefix at the scan depth: how many full paths
// lie beneath it in this stretch of the file, and the marker trailing it,
// if any. Because a later checkpoint may re-emit a prefix the file already
// visited, the same prefix can reach visit more than once; callers merge
// by summing Leaves and keeping the last non-zero Marker.
type FrontierNode struct {
	Prefix gru.Path
	Leaves int64
	Marker byte
}

// FrontierScan streams per-prefix summaries at the given depth without
// materializing full paths. The reader is consumed; reopen to scan again.
func (tr *Reader) FrontierScan(depth int, visit func(FrontierNode) error) error {
	if depth < 1 || depth > tr.hdr.Weeks {
		return errors.Wrapf(gru.ErrWeekCount, "frontier depth %d of %d weeks", depth, tr.hdr.Weeks)
	}

	var node FrontierNode
	open := false
	flush := func() error {
		if !open {
			return nil
		}
		open = false
		n := node
		node = FrontierNode{}
		return visit(n)
	}

	for {
		ev, err := tr.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if ev.Marker != 0 {
			if open && ev.Depth == depth {
				node.Marker = ev.Marker
			}
			continue
		}
		if ev.orphaned(tr) {
			continue
		}
		if ev.Depth < depth {
			if err := flush(); err != nil {
				return err
			}
		}
		tr.stack = append(tr.stack[:ev.Depth], ev.Week)
		if len(tr.stack) == depth && !open {
			open = true
			node.Prefix = tr.stack[:depth].Clone()
		}
		if len(tr.stack) == tr.hdr.Weeks && open {
			node.Leaves++
		}
	}
	return flush()
}

// Event is one well-formed line below the header: either a week at some
// depth or a marker flagging the prefix above it.
type Event struct {
	Depth  int
	Marker byte     // 0 for schedule lines
	Week   gru.Week // nil for marker lines
}

// orphaned reports a week line deeper than anything the file has led up to,
// which can only come from corruption; the reader warns and drops it.
func (ev Event) orphaned(tr *Reader) bool {
	if ev.Depth > len(tr.stack) {
		tr.warnBadLine("orphaned")
		return true
	}
	return false
}

// ReadEvent returns the next well-formed line, or io.EOF. Most callers want
// ReadPath or FrontierScan; event order matters only to tools that must
// reproduce a file exactly, markers included.
func (tr *Reader) ReadEvent() (Event, error) {
	if tr.err != nil {
		return Event{}, tr.err
	}
	for tr.scan.Scan() {
		tr.lineNo++
		raw := tr.scan.Bytes()
		depth := 0
		for depth < len(raw) && raw[depth] == indentChar {
			depth++
		}
		body := raw[depth:]
		if len(body) == 0 {
			tr.warnBadLine("empty")
			continue
		}
		if len(body) == 1 && (body[0] == MarkerIncomplete || body[0] == MarkerComplete) {
			// Markers sit at the depth of the prefix they flag, which can
			// equal the week count when a source prefix is already full length.
			if depth > tr.hdr.Weeks {
				tr.warnBadLine("over-deep marker")
				continue
			}
			if body[0] == MarkerIncomplete {
				tr.incomplete++
			} else {
				tr.complete++
			}
			return Event{Depth: depth, Marker: body[0]}, nil
		}
		if depth >= tr.hdr.Weeks {
			tr.warnBadLine("over-deep")
			continue
		}
		wk, ok := tr.parseWeek(body)
		if !ok {
			continue
		}
		return Event{Depth: depth, Week: wk}, nil
	}
	if err := tr.scan.Err(); err != nil {
		tr.err = errors.Wrapf(err, "reading %s", tr.name)
		return Event{}, tr.err
	}
	return Event{}, io.EOF
}

func (tr *Reader) parseWeek(body []byte) (gru.Week, bool) {
	wk := make(gru.Week, 0, tr.slots)
	val, digits := 0, 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || body[i] == ',' {
			if digits == 0 || val >= tr.matchups {
				tr.warnBadLine("bad matchup id")
				return nil, false
			}
			wk = append(wk, gru.MatchupID(val))
			val, digits = 0, 0
			continue
		}
		c := body[i]
		if c < '0' || c > '9' || val > gru.MaxMatchups {
			tr.warnBadLine("not a schedule line")
			return nil, false
		}
		val = val*10 + int(c-'0')
		digits++
	}
	if len(wk) != tr.slots {
		tr.warnBadLine("wrong slot count")
		return nil, false
	}
	return wk, true
}

func (tr *Reader) warnBadLine(reason string) {
	tr.badLines++
	if tr.badLines <= maxLineWarnings {
		klog.Warningf("%s:%d: skipping %s line", tr.name, tr.lineNo, reason)
	}
}
