package netstats

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu    sync.Mutex
	calls [][]Snapshot
}

func (f *fakeSink) InsertSnapshots(_ context.Context, snapshots []Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]Snapshot, len(snapshots))
	copy(cp, snapshots)
	f.calls = append(f.calls, cp)
	return nil
}

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += len(c)
	}
	return n
}

func TestFlusherFlushesAtBatchSize(t *testing.T) {
	sink := &fakeSink{}
	f := NewFlusher(sink, 3, time.Hour)
	for i := 0; i < 3; i++ {
		f.Push(Snapshot{Files: int32(i)})
	}
	deadline := time.Now().Add(time.Second)
	for sink.total() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	f.Stop()
	if sink.total() != 3 {
		t.Fatalf("got %d snapshots flushed, want 3", sink.total())
	}
}

func TestFlusherFlushesRemainderOnStop(t *testing.T) {
	sink := &fakeSink{}
	f := NewFlusher(sink, 100, time.Hour)
	f.Push(Snapshot{Files: 1})
	f.Stop()
	if sink.total() != 1 {
		t.Fatalf("got %d snapshots flushed, want 1", sink.total())
	}
}
