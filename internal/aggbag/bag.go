// Package aggbag implements the Aggregate Bag engine: an ordered
// multi-field key to multi-field counter map supporting merge,
// subtraction, and projection, as described in §4.4.
package aggbag

import (
	"fmt"
	"sort"

	"github.com/silkflow/silkflow/internal/bagtree"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// Bag is an ordered map from a key tuple to a counter tuple, each tuple
// shaped by an ordered, ascending-by-id list of field ids fixed at
// creation time.
type Bag struct {
	keyFields     []rwrec.FieldID
	counterFields []rwrec.FieldID
	frozen        bool
	tree          *bagtree.Tree
}

// New returns an empty Bag with an unset schema.
func New() *Bag {
	return &Bag{}
}

// SetKeyFields sets the bag's ordered key-field list. ids are sorted
// ascending by id and must be unique. Once both key and counter fields
// are set, the shape freezes and further schema changes are rejected.
func (b *Bag) SetKeyFields(ids []rwrec.FieldID) error {
	if b.frozen {
		return rwrec.NewError(rwrec.KindModified, "bag shape already frozen", nil)
	}
	sorted, err := dedupeSorted(ids)
	if err != nil {
		return err
	}
	for _, id := range sorted {
		if !id.IsKeyCapable() {
			return rwrec.NewError(rwrec.KindSchema, "field is not key-capable: "+id.Name(), nil)
		}
	}
	b.keyFields = sorted
	return b.maybeFreeze()
}

// SetCounterFields sets the bag's ordered counter-field list, with the
// same uniqueness/sort/freeze rules as SetKeyFields.
func (b *Bag) SetCounterFields(ids []rwrec.FieldID) error {
	if b.frozen {
		return rwrec.NewError(rwrec.KindModified, "bag shape already frozen", nil)
	}
	sorted, err := dedupeSorted(ids)
	if err != nil {
		return err
	}
	b.counterFields = sorted
	return b.maybeFreeze()
}

// maybeFreeze fixes the bag's shape once both key and counter fields are
// set. Per §4.4's invariant, key and counter fields must be disjoint and
// the encoded key width must fit in maxKeyWidth bytes; a violation is a
// KindSchema error returned immediately from the SetKeyFields/
// SetCounterFields call that completes the schema, rather than surfacing
// later as a misleading "bag schema not yet fixed" from the next
// operation.
func (b *Bag) maybeFreeze() error {
	if len(b.keyFields) == 0 || len(b.counterFields) == 0 {
		return nil
	}
	for _, k := range b.keyFields {
		for _, c := range b.counterFields {
			if k == c {
				return rwrec.NewError(rwrec.KindSchema,
					"key and counter fields overlap: "+k.Name(), nil)
			}
		}
	}
	width := 0
	for _, id := range b.keyFields {
		_, w, ok := FieldInfo(id)
		if !ok {
			return rwrec.NewError(rwrec.KindSchema, "unknown key field: "+id.Name(), nil)
		}
		width += w
	}
	if width > maxKeyWidth {
		return rwrec.NewError(rwrec.KindSchema,
			fmt.Sprintf("encoded key width %d exceeds %d-byte maximum", width, maxKeyWidth), nil)
	}
	b.tree = bagtree.New(len(b.counterFields))
	b.frozen = true
	return nil
}

func dedupeSorted(ids []rwrec.FieldID) ([]rwrec.FieldID, error) {
	if len(ids) == 0 {
		return nil, rwrec.NewError(rwrec.KindSchema, "field list must be non-empty", nil)
	}
	seen := make(map[rwrec.FieldID]bool, len(ids))
	out := make([]rwrec.FieldID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, rwrec.NewError(rwrec.KindSchema, "duplicate field id: "+id.Name(), nil)
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// KeyFields returns the bag's ordered key-field ids.
func (b *Bag) KeyFields() []rwrec.FieldID { return b.keyFields }

// CounterFields returns the bag's ordered counter-field ids.
func (b *Bag) CounterFields() []rwrec.FieldID { return b.counterFields }

// Frozen reports whether the bag's shape has been fixed.
func (b *Bag) Frozen() bool { return b.frozen }

// Len returns the number of distinct keys stored.
func (b *Bag) Len() int {
	if b.tree == nil {
		return 0
	}
	return b.tree.Len()
}

func (b *Bag) requireFrozen() error {
	if !b.frozen {
		return rwrec.NewError(rwrec.KindSchema, "bag schema not yet fixed", nil)
	}
	return nil
}

// EncodeKey concatenates the big-endian encoding of each key field,
// drawing each value from values in the bag's declared field order.
func (b *Bag) EncodeKey(values map[rwrec.FieldID]any) ([]byte, error) {
	if err := b.requireFrozen(); err != nil {
		return nil, err
	}
	var out []byte
	for _, id := range b.keyFields {
		v, ok := values[id]
		if !ok {
			return nil, rwrec.NewError(rwrec.KindSchema, "missing key field value: "+id.Name(), nil)
		}
		enc, err := encodeField(id, v)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// DecodeKey splits an encoded key back into its per-field values.
func (b *Bag) DecodeKey(key []byte) (map[rwrec.FieldID]any, error) {
	out := make(map[rwrec.FieldID]any, len(b.keyFields))
	off := 0
	for _, id := range b.keyFields {
		_, width, _ := FieldInfo(id)
		if off+width > len(key) {
			return nil, rwrec.NewError(rwrec.KindRead, "truncated bag key", nil)
		}
		v, err := decodeField(id, key[off:off+width])
		if err != nil {
			return nil, err
		}
		out[id] = v
		off += width
	}
	return out, nil
}

func (b *Bag) encodeCounters(values map[rwrec.FieldID]uint64) []uint64 {
	out := make([]uint64, len(b.counterFields))
	for i, id := range b.counterFields {
		out[i] = values[id]
	}
	return out
}

func (b *Bag) decodeCounters(tuple []uint64) map[rwrec.FieldID]uint64 {
	out := make(map[rwrec.FieldID]uint64, len(b.counterFields))
	for i, id := range b.counterFields {
		out[id] = tuple[i]
	}
	return out
}

// Get looks up the counter tuple for a fully populated key tuple.
func (b *Bag) Get(key map[rwrec.FieldID]any) (map[rwrec.FieldID]uint64, error) {
	if err := b.requireFrozen(); err != nil {
		return nil, err
	}
	enc, err := b.EncodeKey(key)
	if err != nil {
		return nil, err
	}
	tuple, ok := b.tree.Get(enc)
	if !ok {
		return nil, nil
	}
	return b.decodeCounters(tuple), nil
}

// Set replaces the counter tuple for key, inserting it if absent.
func (b *Bag) Set(key map[rwrec.FieldID]any, counter map[rwrec.FieldID]uint64) error {
	if err := b.requireFrozen(); err != nil {
		return err
	}
	enc, err := b.EncodeKey(key)
	if err != nil {
		return err
	}
	b.tree.Set(enc, b.encodeCounters(counter))
	return nil
}

// Add adds delta field-wise to key's counter tuple (inserting it if
// absent) and returns the resulting tuple. Add returns a KindOverflow
// error, leaving the bag unchanged, if any counter field would exceed
// 2^64-1.
func (b *Bag) Add(key map[rwrec.FieldID]any, delta map[rwrec.FieldID]uint64) (map[rwrec.FieldID]uint64, error) {
	if err := b.requireFrozen(); err != nil {
		return nil, err
	}
	enc, err := b.EncodeKey(key)
	if err != nil {
		return nil, err
	}
	tuple, ok := b.tree.Add(enc, b.encodeCounters(delta))
	if !ok {
		return nil, rwrec.NewError(rwrec.KindOverflow, "counter overflow on add", nil)
	}
	return b.decodeCounters(tuple), nil
}

// Subtract subtracts delta field-wise from key's counter tuple. If any
// field would underflow, the bag is left unchanged and a KindUnderflow
// error is returned. When the resulting tuple is all-zero, the entry is
// removed.
func (b *Bag) Subtract(key map[rwrec.FieldID]any, delta map[rwrec.FieldID]uint64) (map[rwrec.FieldID]uint64, error) {
	if err := b.requireFrozen(); err != nil {
		return nil, err
	}
	enc, err := b.EncodeKey(key)
	if err != nil {
		return nil, err
	}
	tuple, ok := b.tree.Subtract(enc, b.encodeCounters(delta))
	if !ok {
		return nil, rwrec.NewError(rwrec.KindUnderflow, "counter underflow on subtract", nil)
	}
	return b.decodeCounters(tuple), nil
}

// Remove deletes the entry for key, reporting whether it was present.
func (b *Bag) Remove(key map[rwrec.FieldID]any) (bool, error) {
	if err := b.requireFrozen(); err != nil {
		return false, err
	}
	enc, err := b.EncodeKey(key)
	if err != nil {
		return false, err
	}
	return b.tree.Delete(enc), nil
}

// Iterate yields (key, counter) in ascending key order. The iteration is
// invalidated by any mutating call made from within fn.
func (b *Bag) Iterate(fn func(key map[rwrec.FieldID]any, counter map[rwrec.FieldID]uint64) bool) error {
	if err := b.requireFrozen(); err != nil {
		return err
	}
	var iterErr error
	b.tree.Iterate(func(enc []byte, tuple []uint64) bool {
		k, err := b.DecodeKey(enc)
		if err != nil {
			iterErr = err
			return false
		}
		return fn(k, b.decodeCounters(tuple))
	})
	return iterErr
}

// Stats reports the number of unique keys and an approximate in-memory
// storage footprint, per §4.4's stats() operation.
type Stats struct {
	Keys          int
	FootprintByte int64
}

func (b *Bag) Stats() Stats {
	keyWidth := 0
	for _, id := range b.keyFields {
		_, w, _ := FieldInfo(id)
		keyWidth += w
	}
	entryWidth := int64(keyWidth + 8*len(b.counterFields))
	return Stats{Keys: b.Len(), FootprintByte: entryWidth * int64(b.Len())}
}
