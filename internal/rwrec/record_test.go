package rwrec

import (
	"net/netip"
	"testing"
	"time"
)

func sampleRecord() *Record {
	r := &Record{
		SrcAddr:   netip.MustParseAddr("10.0.0.1"),
		DstAddr:   netip.MustParseAddr("10.0.0.2"),
		SrcPort:   1234,
		DstPort:   443,
		Protocol:  6,
		Packets:   3,
		Bytes:     180,
		StartTime: time.Unix(1700000000, 0),
		Duration:  5 * time.Second,
	}
	return r
}

func TestRecordValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{"valid", func(r *Record) {}, false},
		{"zero packets", func(r *Record) { r.Packets = 0 }, true},
		{"bytes less than packets", func(r *Record) { r.Bytes = 1; r.Packets = 5 }, true},
		{"negative duration", func(r *Record) { r.Duration = -1 }, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := sampleRecord()
			c.mutate(r)
			err := r.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestRecordClearDropsSidecar(t *testing.T) {
	r := sampleRecord()
	desc := NewSidecarDescriptor()
	if err := r.SidecarSet(desc, "tag", NewSidecarValue(SidecarString, "x")); err != nil {
		t.Fatal(err)
	}
	r.Clear()
	if r.Packets != 0 {
		t.Fatalf("expected zeroed fixed fields, got packets=%d", r.Packets)
	}
	if _, ok := r.SidecarGet("tag"); ok {
		t.Fatalf("expected sidecar dropped after Clear")
	}
}

func TestRecordCopyDeepCopiesSidecar(t *testing.T) {
	src := sampleRecord()
	desc := NewSidecarDescriptor()
	if err := src.SidecarSet(desc, "tag", NewSidecarValue(SidecarString, "x")); err != nil {
		t.Fatal(err)
	}
	var dst Record
	Copy(&dst, src)

	// Mutate src's sidecar directly; dst must be unaffected (deep copy).
	src.Sidecar["tag"] = NewSidecarValue(SidecarString, "mutated")
	v, ok := dst.SidecarGet("tag")
	if !ok || v.Raw() != "x" {
		t.Fatalf("expected dst sidecar unaffected by src mutation, got %v", v.Raw())
	}
}

func TestSidecarSetTypeConflict(t *testing.T) {
	r := sampleRecord()
	desc := NewSidecarDescriptor()
	if err := r.SidecarSet(desc, "tag", NewSidecarValue(SidecarString, "x")); err != nil {
		t.Fatal(err)
	}
	if err := r.SidecarSet(desc, "tag", NewSidecarValue(SidecarUint32, uint32(1))); err == nil {
		t.Fatalf("expected type-conflict error")
	}
}

func TestSidecarGetAbsent(t *testing.T) {
	r := sampleRecord()
	if _, ok := r.SidecarGet("missing"); ok {
		t.Fatalf("expected absent sidecar field to report false")
	}
}

func TestMergeSidecarDescriptorsConflict(t *testing.T) {
	a := NewSidecarDescriptor()
	if err := a.Register("tag", SidecarString, 0); err != nil {
		t.Fatal(err)
	}
	b := NewSidecarDescriptor()
	if err := b.Register("tag", SidecarUint32, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := Merge(a, b); err == nil {
		t.Fatalf("expected conflicting merge to fail")
	}
}

func TestMergeSidecarDescriptorsUnion(t *testing.T) {
	a := NewSidecarDescriptor()
	_ = a.Register("tagA", SidecarString, 0)
	b := NewSidecarDescriptor()
	_ = b.Register("tagB", SidecarUint32, 0)

	merged, err := Merge(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Fields()) != 2 {
		t.Fatalf("expected union of 2 fields, got %d", len(merged.Fields()))
	}
}
