// Package bagtree implements an ordered byte-key to counter-tuple map as
// a single sorted slice searched with sort.Search, unifying what
// skbag.c keeps as two backends — a radix trie for small/dense keys and
// a red-black tree for the rest — into one library-free structure: a
// contiguous sorted vector. See DESIGN.md for why no third-party
// ordered-map or B-tree package is used instead.
package bagtree

import "sort"

type entry struct {
	key      string
	counters []uint64
}

// Tree is an ordered map from byte-string keys to fixed-width uint64
// counter tuples. Every entry in a Tree carries the same tuple width,
// set by New or by BuildSorted. The zero value is
// ready to use. A Tree is not safe for concurrent use.
type Tree struct {
	entries []entry
	width   int
}

// New returns an empty Tree whose counter tuples have the given width.
// A width of 1 gives plain scalar-counter behavior.
func New(width int) *Tree {
	return &Tree{width: width}
}

func (t *Tree) search(key string) (int, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].key >= key
	})
	if i < len(t.entries) && t.entries[i].key == key {
		return i, true
	}
	return i, false
}

// Width returns the counter-tuple width this tree was created with.
func (t *Tree) Width() int { return t.width }

// Get returns the counter tuple stored under key, and whether key is
// present. The returned slice must not be retained across a subsequent
// mutating call.
func (t *Tree) Get(key []byte) ([]uint64, bool) {
	i, ok := t.search(string(key))
	if !ok {
		return nil, false
	}
	return t.entries[i].counters, true
}

// Set stores the counter tuple under key, inserting a new entry if key
// is absent. Setting an all-zero tuple does not remove the entry;
// callers that want zero-means-absent semantics call Delete (or rely on
// Subtract's automatic removal).
func (t *Tree) Set(key []byte, counters []uint64) {
	tuple := append([]uint64(nil), counters...)
	i, ok := t.search(string(key))
	if ok {
		t.entries[i].counters = tuple
		return
	}
	t.entries = append(t.entries, entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = entry{key: string(key), counters: tuple}
}

// Add adds deltas field-wise to the counter tuple stored under key
// (inserting it if absent) and returns the resulting tuple. Add reports
// false, leaving the tree unmodified, if any field would overflow
// uint64.
func (t *Tree) Add(key []byte, deltas []uint64) ([]uint64, bool) {
	i, ok := t.search(string(key))
	current := make([]uint64, len(deltas))
	if ok {
		copy(current, t.entries[i].counters)
	}
	result := make([]uint64, len(deltas))
	for j, d := range deltas {
		sum := current[j] + d
		if sum < current[j] {
			return nil, false
		}
		result[j] = sum
	}
	if ok {
		t.entries[i].counters = result
		return result, true
	}
	t.entries = append(t.entries, entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = entry{key: string(key), counters: result}
	return result, true
}

// Subtract subtracts deltas field-wise from the counter tuple stored
// under key. If any field's result would underflow, Subtract leaves the
// tree unmodified and returns false — callers implementing bag
// subtraction rollback rely on this to detect a would-be-negative
// counter before committing. When every resulting field is zero, the
// entry is removed.
func (t *Tree) Subtract(key []byte, deltas []uint64) ([]uint64, bool) {
	i, ok := t.search(string(key))
	current := make([]uint64, len(deltas))
	if ok {
		copy(current, t.entries[i].counters)
	}
	result := make([]uint64, len(deltas))
	allZero := true
	for j, d := range deltas {
		if d > current[j] {
			return nil, false
		}
		result[j] = current[j] - d
		if result[j] != 0 {
			allZero = false
		}
	}
	switch {
	case !ok && allZero:
		return result, true
	case !ok:
		t.entries = append(t.entries, entry{})
		copy(t.entries[i+1:], t.entries[i:])
		t.entries[i] = entry{key: string(key), counters: result}
		return result, true
	case allZero:
		t.deleteAt(i)
		return result, true
	default:
		t.entries[i].counters = result
		return result, true
	}
}

// Delete removes key, reporting whether it was present.
func (t *Tree) Delete(key []byte) bool {
	i, ok := t.search(string(key))
	if !ok {
		return false
	}
	t.deleteAt(i)
	return true
}

func (t *Tree) deleteAt(i int) {
	copy(t.entries[i:], t.entries[i+1:])
	t.entries = t.entries[:len(t.entries)-1]
}

// Len returns the number of keys stored.
func (t *Tree) Len() int { return len(t.entries) }

// Clone returns a deep copy, used by callers (the Aggregate Bag engine's
// AddBag/SubtractBag) that need to stage mutations and roll back the
// entire operation on a later conflict rather than undo them one at a
// time.
func (t *Tree) Clone() *Tree {
	entries := make([]entry, len(t.entries))
	for i, e := range t.entries {
		entries[i] = entry{key: e.key, counters: append([]uint64(nil), e.counters...)}
	}
	return &Tree{entries: entries, width: t.width}
}

// Iterate calls fn for every entry in ascending key order, stopping
// early if fn returns false.
func (t *Tree) Iterate(fn func(key []byte, counters []uint64) bool) {
	for _, e := range t.entries {
		if !fn([]byte(e.key), e.counters) {
			return
		}
	}
}

// BuildSortedInput is one (key, counter tuple) pair for BuildSorted.
type BuildSortedInput struct {
	Key      []byte
	Counters []uint64
}

// BuildSorted constructs a Tree directly from pairs already sorted in
// ascending key order, skipping the per-insert binary search and shift.
// Duplicate or out-of-order keys are rejected with an error. The aggbag
// file reader does not use BuildSorted; it inserts entries with Set.
func BuildSorted(pairs []BuildSortedInput) (*Tree, error) {
	entries := make([]entry, len(pairs))
	width := 0
	if len(pairs) > 0 {
		width = len(pairs[0].Counters)
	}
	for i, p := range pairs {
		if i > 0 && string(p.Key) <= string(pairs[i-1].Key) {
			return nil, errNotSorted
		}
		entries[i] = entry{key: string(p.Key), counters: append([]uint64(nil), p.Counters...)}
	}
	return &Tree{entries: entries, width: width}, nil
}
