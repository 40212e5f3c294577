package filterpipe

import (
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/silkflow/silkflow/internal/rwrec"
)

// DestKind identifies one of the three output destination types of §4.3.
type DestKind int

const (
	DestPass DestKind = iota
	DestFail
	DestAll
)

func (k DestKind) String() string {
	switch k {
	case DestPass:
		return "pass"
	case DestFail:
		return "fail"
	case DestAll:
		return "all"
	default:
		return "unknown"
	}
}

// RecordWriter is the narrow surface a destination stream needs: write a
// record, close when done. *ipfixcodec.Stream (wrapped to translate
// *rwrec.Record into a template-bound WriteRecord call) satisfies it in
// cmd/rwfilter; tests use an in-memory fake.
type RecordWriter interface {
	WriteRecord(rec *rwrec.Record) error
	Close() error
}

type outputStream struct {
	name   string
	writer RecordWriter
}

// Destination fans a dispatched record out to every live stream of one
// destination type, enforcing the type's optional record cap and EPIPE
// isolation of §4.3.
type Destination struct {
	kind DestKind
	cap  uint64 // 0 = unbounded

	mu      sync.Mutex
	streams []outputStream
	written uint64

	// onStreamClosed is invoked (with the lock held) once per stream that
	// closes, whether from EPIPE or from the destination hitting its
	// cap, so the owning Pipeline can recompute the shared "any output
	// left" condition of §4.3's output-cap rule.
	onStreamClosed func()
}

// NewDestination builds a Destination over streams, with an optional
// record cap (0 means unlimited).
func NewDestination(kind DestKind, streams []RecordWriter, names []string, cap uint64) *Destination {
	d := &Destination{kind: kind, cap: cap}
	for i, s := range streams {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		d.streams = append(d.streams, outputStream{name: name, writer: s})
	}
	return d
}

// SetOnStreamClosed installs the callback the owning Pipeline uses to
// track the process-wide "any live output remains" condition.
func (d *Destination) SetOnStreamClosed(fn func()) {
	d.mu.Lock()
	d.onStreamClosed = fn
	d.mu.Unlock()
}

// LiveStreams reports how many of this destination's streams are still
// open.
func (d *Destination) LiveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// Flush writes records to every live stream of the destination, applying
// the record cap (truncating and closing all streams of this type once
// the cap is reached) and isolating EPIPE to the one stream that hit it,
// per §4.3's dispatch and output-cap rules. Flush holds the destination
// mutex for the duration of one buffer's write — per-record writes are
// never individually locked.
func (d *Destination) Flush(records []*rwrec.Record) error {
	if len(records) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.streams) == 0 {
		return nil
	}

	toWrite := records
	atCap := false
	if d.cap > 0 {
		remaining := d.cap - d.written
		if remaining == 0 {
			return nil
		}
		if uint64(len(records)) >= remaining {
			toWrite = records[:remaining]
			atCap = true
		}
	}

	closed := make([]int, 0)
	for i := range d.streams {
		if err := writeAll(d.streams[i].writer, toWrite); err != nil {
			if isBrokenPipe(err) {
				closed = append(closed, i)
				continue
			}
			return rwrec.NewError(rwrec.KindWrite, "destination write failed for "+d.streams[i].name, err)
		}
	}
	d.written += uint64(len(toWrite))

	if atCap {
		for i := range d.streams {
			already := false
			for _, c := range closed {
				if c == i {
					already = true
				}
			}
			if !already {
				closed = append(closed, i)
			}
		}
	}
	d.closeLocked(closed)
	return nil
}

func (d *Destination) closeLocked(indices []int) {
	if len(indices) == 0 {
		return
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
		d.streams[i].writer.Close()
	}
	kept := d.streams[:0]
	for i, s := range d.streams {
		if !drop[i] {
			kept = append(kept, s)
		}
	}
	d.streams = kept
	cb := d.onStreamClosed
	for range indices {
		if cb != nil {
			cb()
		}
	}
}

// Close closes every remaining stream, used at pipeline shutdown.
func (d *Destination) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := make([]int, len(d.streams))
	for i := range all {
		all[i] = i
	}
	d.closeLocked(all)
}

func writeAll(w RecordWriter, records []*rwrec.Record) error {
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
