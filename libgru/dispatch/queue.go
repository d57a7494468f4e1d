package dispatch

import (
	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// inputPath is one source prefix being extended, tracked across fairness
// rounds and resumes. The coordinator alone mutates it.
type inputPath struct {
	id     int      // ordinal in source order
	prefix gru.Path
	key    string // canonical key, for resume planning

	skip    int64 // results already emitted for this prefix, any run
	seen    bool  // appeared in the prior output file
	marker  byte  // marker the prior output file left on it
	retired bool  // subtree fully explored, never dispatched again

	next *inputPath
}

// inputQueue is the coordinator's FIFO of inputs awaiting their next work
// unit. Requeueing at the tail is the whole fairness policy: no input gets
// unit k+1 until every live input has finished unit k.
type inputQueue struct {
	Head  *inputPath
	Tail  *inputPath
	Count int
}

func (queue *inputQueue) Enqueue(in *inputPath) {
	in.next = nil
	if queue.Tail != nil {
		queue.Tail.next = in
	}
	queue.Tail = in
	if queue.Head == nil {
		queue.Head = in
	}
	queue.Count++
}

func (queue *inputQueue) Dequeue() *inputPath {
	in := queue.Head
	if in == nil {
		return nil
	}
	queue.Head = in.next
	in.next = nil
	if queue.Tail == in {
		queue.Tail = nil
	}
	queue.Count--
	return in
}
