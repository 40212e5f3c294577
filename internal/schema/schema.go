// Package schema models the IPFIX-style record layout described in spec §3:
// an ordered list of (enterprise_id, element_id, length) field descriptors,
// reference-counted and frozen once emitted to the codec.
package schema

import (
	"fmt"
	"sync/atomic"

	"github.com/silkflow/silkflow/internal/rwrec"
)

// FieldSpec identifies one information element by (enterprise_id,
// element_id) together with its effective length.
type FieldSpec struct {
	EnterpriseID uint32
	ElementID    uint16
	Length       uint16
}

// Schema is the ordered field-descriptor list of §3. It is reference
// counted (Retain/Release) and becomes immutable once Freeze is called,
// modeling the source's manual clone/destroy dance as an arc-shared
// immutable value per the REDESIGN FLAGS.
type Schema struct {
	fields []FieldSpec
	frozen bool
	refs   int32
}

// New creates an empty, mutable schema.
func New() *Schema {
	return &Schema{refs: 1}
}

// Append adds a field descriptor. Fails if the schema is frozen.
func (s *Schema) Append(f FieldSpec) error {
	if s.frozen {
		return rwrec.NewError(rwrec.KindSchema, "cannot mutate a frozen schema", nil)
	}
	s.fields = append(s.fields, f)
	return nil
}

// Freeze marks the schema immutable. Idempotent.
func (s *Schema) Freeze() { s.frozen = true }

// Frozen reports whether Freeze has been called.
func (s *Schema) Frozen() bool { return s.frozen }

// Fields returns the ordered field list. Callers must not mutate the
// returned slice.
func (s *Schema) Fields() []FieldSpec { return s.fields }

// Retain increments the reference count, standing in for the source's
// manual schema clone-by-refcount.
func (s *Schema) Retain() *Schema {
	atomic.AddInt32(&s.refs, 1)
	return s
}

// Release decrements the reference count. The caller must not use s after
// the count reaches zero.
func (s *Schema) Release() {
	atomic.AddInt32(&s.refs, -1)
}

// RefCount reports the current reference count, for tests and diagnostics.
func (s *Schema) RefCount() int32 {
	return atomic.LoadInt32(&s.refs)
}

// Equivalent reports whether a and b agree in field identity and length,
// per §3 "Two schemas are equivalent iff their field sequences agree in
// element identity and length."
func Equivalent(a, b *Schema) bool {
	if len(a.fields) != len(b.fields) {
		return false
	}
	for i := range a.fields {
		if a.fields[i] != b.fields[i] {
			return false
		}
	}
	return true
}

// TemplateTable maps a per-stream template-id to the Schema negotiated for
// it. Template ids are either assigned automatically (NextID) or pinned by
// the writer (Set).
type TemplateTable struct {
	schemas map[uint16]*Schema
	nextID  uint16
}

// NewTemplateTable returns an empty table. IPFIX reserves template ids
// below 256, so auto-assignment starts at 256 as real exporters do.
func NewTemplateTable() *TemplateTable {
	return &TemplateTable{schemas: make(map[uint16]*Schema), nextID: 256}
}

// Set pins schema to the given template id, overwriting any prior
// association — the "pinned by the writer" path of §3.
func (t *TemplateTable) Set(id uint16, s *Schema) {
	t.schemas[id] = s
}

// Assign allocates the next available template id and binds it to s,
// returning the assigned id.
func (t *TemplateTable) Assign(s *Schema) uint16 {
	for {
		id := t.nextID
		t.nextID++
		if t.nextID == 0 {
			t.nextID = 256
		}
		if _, exists := t.schemas[id]; !exists {
			t.schemas[id] = s
			return id
		}
	}
}

// Lookup returns the schema bound to id, or a KindRead TemplateUnknown
// error per §4.2's next_record failure modes.
func (t *TemplateTable) Lookup(id uint16) (*Schema, error) {
	s, ok := t.schemas[id]
	if !ok {
		return nil, rwrec.NewError(rwrec.KindRead, fmt.Sprintf("template %d unknown", id), nil)
	}
	return s, nil
}
