package ipset

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
)

func TestInsertContainsDedup(t *testing.T) {
	s := New()
	a := netip.MustParseAddr("192.0.2.1")
	if !s.Insert(a) {
		t.Fatal("expected first insert to report true")
	}
	if s.Insert(a) {
		t.Fatal("expected duplicate insert to report false")
	}
	if !s.Contains(a) {
		t.Fatal("expected Contains to find inserted address")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestIterateAscendingAcrossV4AndV6(t *testing.T) {
	s := New()
	s.Insert(netip.MustParseAddr("2001:db8::1"))
	s.Insert(netip.MustParseAddr("10.0.0.1"))
	s.Insert(netip.MustParseAddr("10.0.0.9"))

	var order []string
	s.Iterate(func(a netip.Addr) bool {
		order = append(order, a.String())
		return true
	})
	if len(order) != 3 {
		t.Fatalf("expected 3 members, got %v", order)
	}
	if order[0] != "10.0.0.1" || order[1] != "10.0.0.9" {
		t.Fatalf("expected IPv4-mapped addresses to sort before native IPv6, got %v", order)
	}
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	s := New()
	s.Insert(netip.MustParseAddr("198.51.100.7"))
	s.Insert(netip.MustParseAddr("198.51.100.3"))

	var buf bytes.Buffer
	if err := s.WriteTo(&buf, ipfixcodec.CompressionNone); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	if !got.Contains(netip.MustParseAddr("198.51.100.3")) {
		t.Fatal("expected round-tripped set to contain 198.51.100.3")
	}
}
