package main

import (
	"testing"

	"github.com/silkflow/silkflow/internal/rwrec"
)

func TestParseFieldList(t *testing.T) {
	ids, err := parseFieldList("sIPv4, dPort,protocol")
	if err != nil {
		t.Fatalf("parseFieldList: %v", err)
	}
	want := []rwrec.FieldID{rwrec.FieldSIPv4, rwrec.FieldDPort, rwrec.FieldProtocol}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestParseFieldListRejectsUnknown(t *testing.T) {
	if _, err := parseFieldList("bogus-field"); err == nil {
		t.Fatalf("expected error for unknown field name")
	}
}

func TestParseFieldListRejectsEmpty(t *testing.T) {
	if _, err := parseFieldList(""); err == nil {
		t.Fatalf("expected error for empty field list")
	}
}

func TestParseToBag(t *testing.T) {
	key, counter, err := parseToBag("sIPv4,packets")
	if err != nil {
		t.Fatalf("parseToBag: %v", err)
	}
	if key != rwrec.FieldSIPv4 || counter != rwrec.FieldPackets {
		t.Fatalf("got key=%v counter=%v", key, counter)
	}
}

func TestParseToBagRejectsWrongArity(t *testing.T) {
	if _, _, err := parseToBag("sIPv4"); err == nil {
		t.Fatalf("expected error for single-field spec")
	}
	if _, _, err := parseToBag("sIPv4,packets,records"); err == nil {
		t.Fatalf("expected error for three-field spec")
	}
}

func TestParseInsertFieldIP(t *testing.T) {
	id, value, err := parseInsertField("sIPv4=10.0.0.1")
	if err != nil {
		t.Fatalf("parseInsertField: %v", err)
	}
	if id != rwrec.FieldSIPv4 {
		t.Fatalf("got field %v", id)
	}
	if _, ok := value.(interface{ String() string }); !ok {
		t.Fatalf("expected an address-like value, got %T", value)
	}
}

func TestParseInsertFieldInteger(t *testing.T) {
	id, value, err := parseInsertField("protocol=6")
	if err != nil {
		t.Fatalf("parseInsertField: %v", err)
	}
	if id != rwrec.FieldProtocol {
		t.Fatalf("got field %v", id)
	}
	n, ok := value.(uint64)
	if !ok || n != 6 {
		t.Fatalf("got value %v (%T)", value, value)
	}
}

func TestParseInsertFieldRequiresEquals(t *testing.T) {
	if _, _, err := parseInsertField("sIPv4"); err == nil {
		t.Fatalf("expected error for a spec with no '='")
	}
}

func TestBagKeyTypeForFallsBackToCustom(t *testing.T) {
	if bagKeyTypeFor(rwrec.FieldApplication) != BagKeyCustom {
		t.Fatalf("expected CUSTOM for a field absent from the illustrative table")
	}
	if bagKeyTypeFor(rwrec.FieldSIPv4) != BagKeySIPv4 {
		t.Fatalf("expected SIPv4 for sIPv4")
	}
}
