package bagtree

import "testing"

func TestSetGetDelete(t *testing.T) {
	tr := New(1)
	tr.Set([]byte("b"), []uint64{2})
	tr.Set([]byte("a"), []uint64{1})
	tr.Set([]byte("c"), []uint64{3})

	if v, ok := tr.Get([]byte("a")); !ok || v[0] != 1 {
		t.Fatalf("Get(a) = %v,%v want [1],true", v, ok)
	}
	if !tr.Delete([]byte("b")) {
		t.Fatal("expected Delete(b) to report true")
	}
	if _, ok := tr.Get([]byte("b")); ok {
		t.Fatal("expected b to be gone after Delete")
	}
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
}

func TestIterateAscending(t *testing.T) {
	tr := New(1)
	for _, k := range []string{"z", "m", "a", "q"} {
		tr.Set([]byte(k), []uint64{1})
	}
	var order []string
	tr.Iterate(func(key []byte, _ []uint64) bool {
		order = append(order, string(key))
		return true
	})
	want := []string{"a", "m", "q", "z"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Iterate order = %v, want %v", order, want)
		}
	}
}

func TestAddAccumulates(t *testing.T) {
	tr := New(2)
	tr.Add([]byte("k"), []uint64{5, 1})
	got, ok := tr.Add([]byte("k"), []uint64{7, 2})
	if !ok {
		t.Fatal("expected Add to succeed")
	}
	if got[0] != 12 || got[1] != 3 {
		t.Fatalf("Add accumulated = %v, want [12 3]", got)
	}
}

func TestAddOverflowRollsBack(t *testing.T) {
	tr := New(1)
	tr.Set([]byte("k"), []uint64{^uint64(0)})
	if _, ok := tr.Add([]byte("k"), []uint64{1}); ok {
		t.Fatal("expected Add overflow to report false")
	}
	if v, _ := tr.Get([]byte("k")); v[0] != ^uint64(0) {
		t.Fatalf("expected counter unchanged after failed Add, got %v", v)
	}
}

func TestSubtractUnderflowRollsBack(t *testing.T) {
	tr := New(1)
	tr.Set([]byte("k"), []uint64{5})
	if _, ok := tr.Subtract([]byte("k"), []uint64{10}); ok {
		t.Fatal("expected Subtract underflow to report false")
	}
	if v, _ := tr.Get([]byte("k")); v[0] != 5 {
		t.Fatalf("expected counter unchanged after failed Subtract, got %v", v)
	}
}

func TestSubtractToZeroRemovesEntry(t *testing.T) {
	tr := New(2)
	tr.Set([]byte("k"), []uint64{5, 3})
	if _, ok := tr.Subtract([]byte("k"), []uint64{5, 3}); !ok {
		t.Fatal("expected exact Subtract to succeed")
	}
	if tr.Len() != 0 {
		t.Fatalf("expected all-zero-counter key removed, Len() = %d", tr.Len())
	}
}

func TestSubtractPartialZeroKeepsEntry(t *testing.T) {
	tr := New(2)
	tr.Set([]byte("k"), []uint64{5, 3})
	if _, ok := tr.Subtract([]byte("k"), []uint64{5, 0}); !ok {
		t.Fatal("expected Subtract to succeed")
	}
	if tr.Len() != 1 {
		t.Fatalf("expected entry to survive when one field is still nonzero, Len() = %d", tr.Len())
	}
}

func TestBuildSortedRejectsOutOfOrder(t *testing.T) {
	_, err := BuildSorted([]BuildSortedInput{
		{Key: []byte("b"), Counters: []uint64{1}},
		{Key: []byte("a"), Counters: []uint64{2}},
	})
	if err == nil {
		t.Fatal("expected error for out-of-order input")
	}
}

func TestBuildSortedThenLookup(t *testing.T) {
	tr, err := BuildSorted([]BuildSortedInput{
		{Key: []byte("a"), Counters: []uint64{1}},
		{Key: []byte("b"), Counters: []uint64{2}},
		{Key: []byte("c"), Counters: []uint64{3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := tr.Get([]byte("b")); !ok || v[0] != 2 {
		t.Fatalf("Get(b) = %v,%v want [2],true", v, ok)
	}
}
