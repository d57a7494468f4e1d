package gru

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PathStream carries accepted paths through processing stages; each stage
// runs in its own goroutine and forwards to the stream it returns.
type PathStream struct {
	Label  string
	Outlet chan Path
}

func NewPathStream(label string) *PathStream {
	return &PathStream{
		Label:  label,
		Outlet: make(chan Path, 4),
	}
}

func (stream *PathStream) Close() {
	if stream.Outlet != nil {
		close(stream.Outlet)
	}
}

func (stream *PathStream) Push(p Path) {
	stream.Outlet <- p
}

// PullAll drains the stream, returning every path.
func (stream *PathStream) PullAll() []Path {
	var all []Path
	for p := range stream.Outlet {
		all = append(all, p)
	}
	return all
}

// Count drains the stream, returning only the number of paths seen.
func (stream *PathStream) Count() int64 {
	count := int64(0)
	for range stream.Outlet {
		count++
	}
	return count
}

// AddTo forwards only the paths newly added to the target set;
// duplicates are dropped.
func (stream *PathStream) AddTo(target PathAdder) *PathStream {
	next := &PathStream{
		Label:  stream.Label,
		Outlet: make(chan Path, 1),
	}

	go func() {
		var key []byte
		for p := range stream.Outlet {
			key = p.AppendKey(key[:0])
			if target.TryAdd(key) {
				next.Outlet <- p
			}
		}
		next.Close()
	}()

	return next
}

// Print writes one line per path (label, ordinal, score, weeks) and forwards.
func (stream *PathStream) Print(out io.Writer, lay *Layout) *PathStream {
	next := &PathStream{
		Label:  stream.Label,
		Outlet: make(chan Path, 1),
	}

	go func() {
		count := 0
		for p := range stream.Outlet {
			count++
			fmt.Fprintf(out, "%s,%06d,%v,%s\n", stream.Label, count, lay.PathScore(p), FormatPath(p))
			next.Outlet <- p
		}
		next.Close()
	}()

	return next
}

// FormatWeek renders a week as comma-separated matchup ids.
func FormatWeek(wk Week) string {
	var b strings.Builder
	b.Grow(3 * len(wk))
	for si, id := range wk {
		if si > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	return b.String()
}

// FormatPath renders a path as its weeks joined by '/'.
func FormatPath(p Path) string {
	var b strings.Builder
	for wi, wk := range p {
		if wi > 0 {
			b.WriteByte('/')
		}
		b.WriteString(FormatWeek(wk))
	}
	return b.String()
}
