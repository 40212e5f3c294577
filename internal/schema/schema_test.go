package schema

import "testing"

func TestEquivalent(t *testing.T) {
	a := New()
	_ = a.Append(FieldSpec{ElementID: 8, Length: 4})
	_ = a.Append(FieldSpec{ElementID: 12, Length: 4})
	a.Freeze()

	b := New()
	_ = b.Append(FieldSpec{ElementID: 8, Length: 4})
	_ = b.Append(FieldSpec{ElementID: 12, Length: 4})
	b.Freeze()

	if !Equivalent(a, b) {
		t.Fatalf("expected equivalent schemas")
	}

	c := New()
	_ = c.Append(FieldSpec{ElementID: 8, Length: 16})
	_ = c.Append(FieldSpec{ElementID: 12, Length: 4})
	c.Freeze()

	if Equivalent(a, c) {
		t.Fatalf("expected schemas with differing lengths to not be equivalent")
	}
}

func TestFreezeRejectsMutation(t *testing.T) {
	s := New()
	s.Freeze()
	if err := s.Append(FieldSpec{ElementID: 1, Length: 1}); err == nil {
		t.Fatalf("expected Append on frozen schema to fail")
	}
}

func TestTemplateTableAssignAndLookup(t *testing.T) {
	tbl := NewTemplateTable()
	s := New()
	s.Freeze()

	id := tbl.Assign(s)
	if id < 256 {
		t.Fatalf("expected auto-assigned id >= 256, got %d", id)
	}
	got, err := tbl.Lookup(id)
	if err != nil || got != s {
		t.Fatalf("Lookup(%d) = %v, %v; want %v, nil", id, got, err, s)
	}
}

func TestTemplateTablePinned(t *testing.T) {
	tbl := NewTemplateTable()
	s := New()
	tbl.Set(42, s)
	got, err := tbl.Lookup(42)
	if err != nil || got != s {
		t.Fatalf("Lookup(42) = %v, %v; want %v, nil", got, err, s)
	}
}

func TestTemplateTableUnknown(t *testing.T) {
	tbl := NewTemplateTable()
	if _, err := tbl.Lookup(999); err == nil {
		t.Fatalf("expected unknown template lookup to fail")
	}
}
