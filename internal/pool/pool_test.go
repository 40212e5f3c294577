package pool

import (
	"testing"
	"time"
)

func TestGetReusesReturnedBlocks(t *testing.T) {
	p := New(16, 2)
	a := p.Get()
	p.Put(a)
	b := p.Get()
	if p.Allocated() != 1 {
		t.Fatalf("Allocated() = %d, want 1 after reuse", p.Allocated())
	}
	if len(b) != 16 {
		t.Fatalf("len(b) = %d, want 16", len(b))
	}
}

func TestTryGetRespectsCeiling(t *testing.T) {
	p := New(8, 1)
	if _, ok := p.TryGet(); !ok {
		t.Fatal("expected first TryGet to succeed")
	}
	if _, ok := p.TryGet(); ok {
		t.Fatal("expected second TryGet to fail at ceiling 1")
	}
}

func TestPutUnblocksWaitingGet(t *testing.T) {
	p := New(8, 1)
	first := p.Get()

	done := make(chan []byte, 1)
	go func() {
		done <- p.Get()
	}()

	p.Put(first)
	select {
	case b := <-done:
		if len(b) != 8 {
			t.Fatalf("len(b) = %d, want 8", len(b))
		}
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock the waiting Get within 1s")
	}
}

func TestZeroCeilingIsUnbounded(t *testing.T) {
	p := New(4, 0)
	for i := 0; i < 100; i++ {
		p.Get()
	}
	if p.Allocated() != 100 {
		t.Fatalf("Allocated() = %d, want 100", p.Allocated())
	}
}
