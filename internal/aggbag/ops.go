package aggbag

import (
	"github.com/silkflow/silkflow/internal/rwrec"
)

// sameFields reports whether two field-id lists are identical in both
// membership and order (both are already kept ascending-sorted by
// construction, so this is a plain element-wise comparison).
func sameFields(a, b []rwrec.FieldID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func subsetIndex(sub, super []rwrec.FieldID) ([]int, bool) {
	pos := make(map[rwrec.FieldID]int, len(super))
	for i, id := range super {
		pos[id] = i
	}
	idx := make([]int, len(sub))
	for i, id := range sub {
		p, ok := pos[id]
		if !ok {
			return nil, false
		}
		idx[i] = p
	}
	return idx, true
}

// AddBag adds every entry of src into dst, field-wise. src's key fields
// must exactly match dst's (the caller pads a narrower src schema with
// InsertField before calling, per §4.4's "missing key fields have been
// set via insert_field" rule); src's counter fields must be a subset of
// dst's. Any counter overflow aborts the whole operation and leaves dst
// unchanged.
func (dst *Bag) AddBag(src *Bag) error {
	return dst.mergeBag(src, false)
}

// SubtractBag is AddBag's symmetric counterpart.
func (dst *Bag) SubtractBag(src *Bag) error {
	return dst.mergeBag(src, true)
}

func (dst *Bag) mergeBag(src *Bag, subtract bool) error {
	if err := dst.requireFrozen(); err != nil {
		return err
	}
	if err := src.requireFrozen(); err != nil {
		return err
	}
	if !sameFields(src.keyFields, dst.keyFields) {
		return rwrec.NewError(rwrec.KindSchema, "add_bag/subtract_bag: key-field mismatch", nil)
	}
	counterIdx, ok := subsetIndex(src.counterFields, dst.counterFields)
	if !ok {
		return rwrec.NewError(rwrec.KindSchema, "add_bag/subtract_bag: src counter fields not a subset of dst", nil)
	}

	staged := dst.tree.Clone()
	var opErr error
	src.tree.Iterate(func(key []byte, srcTuple []uint64) bool {
		delta := make([]uint64, len(dst.counterFields))
		for i, pos := range counterIdx {
			delta[pos] = srcTuple[i]
		}
		var ok bool
		if subtract {
			_, ok = staged.Subtract(key, delta)
		} else {
			_, ok = staged.Add(key, delta)
		}
		if !ok {
			kind := rwrec.KindOverflow
			if subtract {
				kind = rwrec.KindUnderflow
			}
			opErr = rwrec.NewError(kind, "add_bag/subtract_bag: counter conflict, rolled back", nil)
			return false
		}
		return true
	})
	if opErr != nil {
		return opErr
	}
	dst.tree = staged
	return nil
}

// InsertField extends b's schema by one key field, whose value for every
// existing entry is the supplied constant. The returned bag does not keep
// the constant: entries added to it later carry whatever value their key
// gives for that field. If the field id is already part of b's key schema,
// InsertField overwrites its constant value for every entry instead of
// failing — see DESIGN.md's record of this Open Question decision.
func (b *Bag) InsertField(id rwrec.FieldID, constant any) (*Bag, error) {
	if err := b.requireFrozen(); err != nil {
		return nil, err
	}
	if _, _, ok := FieldInfo(id); !ok {
		return nil, rwrec.NewError(rwrec.KindSchema, "insert_field: unknown field", nil)
	}

	newKeyFields := make([]rwrec.FieldID, 0, len(b.keyFields)+1)
	replaced := false
	for _, k := range b.keyFields {
		if k == id {
			replaced = true
		}
		newKeyFields = append(newKeyFields, k)
	}
	if !replaced {
		newKeyFields = append(newKeyFields, id)
	}

	out := New()
	if err := out.SetKeyFields(newKeyFields); err != nil {
		return nil, err
	}
	if err := out.SetCounterFields(b.counterFields); err != nil {
		return nil, err
	}

	var iterErr error
	b.tree.Iterate(func(encKey []byte, tuple []uint64) bool {
		values, err := b.DecodeKey(encKey)
		if err != nil {
			iterErr = err
			return false
		}
		values[id] = constant
		newEnc, err := out.EncodeKey(values)
		if err != nil {
			iterErr = err
			return false
		}
		out.tree.Set(newEnc, tuple)
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return out, nil
}

// RemoveFields produces a new bag over src's schema minus ids, summing
// counters of entries that collide after the projection.
func (src *Bag) RemoveFields(ids []rwrec.FieldID) (*Bag, error) {
	drop := make(map[rwrec.FieldID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var keepKey, keepCounter []rwrec.FieldID
	for _, id := range src.keyFields {
		if !drop[id] {
			keepKey = append(keepKey, id)
		}
	}
	for _, id := range src.counterFields {
		if !drop[id] {
			keepCounter = append(keepCounter, id)
		}
	}
	return src.project(keepKey, keepCounter)
}

// SelectFields is RemoveFields's complement: it keeps exactly ids,
// applying the same collision-sum rule.
func (src *Bag) SelectFields(ids []rwrec.FieldID) (*Bag, error) {
	keep := make(map[rwrec.FieldID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var keepKey, keepCounter []rwrec.FieldID
	for _, id := range src.keyFields {
		if keep[id] {
			keepKey = append(keepKey, id)
		}
	}
	for _, id := range src.counterFields {
		if keep[id] {
			keepCounter = append(keepCounter, id)
		}
	}
	return src.project(keepKey, keepCounter)
}

func (src *Bag) project(keepKey, keepCounter []rwrec.FieldID) (*Bag, error) {
	if err := src.requireFrozen(); err != nil {
		return nil, err
	}
	if len(keepKey) == 0 || len(keepCounter) == 0 {
		return nil, rwrec.NewError(rwrec.KindSchema, "projection would leave an empty key or counter schema", nil)
	}

	out := New()
	if err := out.SetKeyFields(keepKey); err != nil {
		return nil, err
	}
	if err := out.SetCounterFields(keepCounter); err != nil {
		return nil, err
	}

	var iterErr error
	src.tree.Iterate(func(encKey []byte, tuple []uint64) bool {
		values, err := src.DecodeKey(encKey)
		if err != nil {
			iterErr = err
			return false
		}
		newEnc, err := out.EncodeKey(values)
		if err != nil {
			iterErr = err
			return false
		}
		delta := make([]uint64, len(keepCounter))
		for i, id := range keepCounter {
			for j, srcID := range src.counterFields {
				if srcID == id {
					delta[i] = tuple[j]
				}
			}
		}
		if _, ok := out.tree.Add(newEnc, delta); !ok {
			iterErr = rwrec.NewError(rwrec.KindOverflow, "projection collision overflowed a counter", nil)
			return false
		}
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return out, nil
}
