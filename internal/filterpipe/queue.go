package filterpipe

import (
	"sync"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// InputStream is the narrow surface the pipeline needs from an input
// stream handle. *ipfixcodec.Stream satisfies it directly; tests use a
// fake.
type InputStream interface {
	NextRecord() (*rwrec.Record, error)
	Header() *ipfixcodec.FileHeader
	SidecarDescriptor() *rwrec.SidecarDescriptor
}

// Input pairs a stream handle with the name used in logs and unreadable-
// input diagnostics (§4.3 "unreadable input files are logged and
// skipped").
type Input struct {
	Name   string
	Stream InputStream
}

// StreamQueue is the thread-safe input iterator of §4.3: a shared queue
// of stream handles that worker goroutines drain concurrently, each
// claiming one stream at a time until none remain.
type StreamQueue struct {
	mu      sync.Mutex
	inputs  []Input
	nextIdx int
}

// NewStreamQueue builds a queue over inputs, to be drained in order by
// however many workers are started.
func NewStreamQueue(inputs []Input) *StreamQueue {
	return &StreamQueue{inputs: inputs}
}

// Next claims the next unclaimed input, reporting false once the queue is
// exhausted.
func (q *StreamQueue) Next() (Input, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.nextIdx >= len(q.inputs) {
		return Input{}, false
	}
	in := q.inputs[q.nextIdx]
	q.nextIdx++
	return in, true
}

// Total reports the number of inputs the queue was built with, for the
// Files column of the stats output.
func (q *StreamQueue) Total() int {
	return len(q.inputs)
}
