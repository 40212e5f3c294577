package ipfixcodec

import (
	"bytes"
	"io"
	"net/netip"
	"testing"

	"github.com/silkflow/silkflow/internal/rwrec"
	"github.com/silkflow/silkflow/internal/schema"
)

func buildV4Schema() *schema.Schema {
	sch := schema.New()
	for _, spec := range []schema.FieldSpec{
		{ElementID: ieidSourceIPv4Address, Length: 4},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidSourceTransportPort, Length: 2},
		{ElementID: ieidDestTransportPort, Length: 2},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidOctetDeltaCount, Length: 8},
		{ElementID: ieidPacketDeltaCount, Length: 8},
		{ElementID: ieidFlowStartMilliseconds, Length: 8},
		{ElementID: ieidFlowEndMilliseconds, Length: 8},
	} {
		_ = sch.Append(spec)
	}
	sch.Freeze()
	return sch
}

func TestStreamWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	ws, err := OpenWriter(&buf, FormatFlow, CompressionNone, []HeaderEntry{
		{Type: EntryAnnotation, Data: []byte("unit test")},
	})
	if err != nil {
		t.Fatal(err)
	}

	sch := buildV4Schema()
	if _, err := ws.WriteTemplate(300, sch); err != nil {
		t.Fatal(err)
	}

	rec := &rwrec.Record{
		SrcAddr:  netip.MustParseAddr("203.0.113.5"),
		DstAddr:  netip.MustParseAddr("203.0.113.9"),
		SrcPort:  1111,
		DstPort:  2222,
		Protocol: 6,
		Bytes:    500,
		Packets:  5,
	}
	if err := ws.WriteRecord(300, rec, 1000); err != nil {
		t.Fatal(err)
	}
	if err := ws.Close(); err != nil {
		t.Fatal(err)
	}

	rs, err := OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(rs.Header().Entries) != 1 || string(rs.Header().Entries[0].Data) != "unit test" {
		t.Fatalf("expected annotation entry to survive round trip, got %+v", rs.Header().Entries)
	}

	got, err := rs.NextRecord()
	if err != nil {
		t.Fatal(err)
	}
	if got.SrcAddr != rec.SrcAddr || got.DstAddr != rec.DstAddr {
		t.Fatalf("address mismatch after stream round trip")
	}
	if got.SrcPort != rec.SrcPort || got.DstPort != rec.DstPort || got.Bytes != rec.Bytes || got.Packets != rec.Packets {
		t.Fatalf("field mismatch after stream round trip: %+v", got)
	}

	if _, err := rs.NextRecord(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestStreamWriteRecordReusesBuffersAcrossRecords(t *testing.T) {
	var buf bytes.Buffer
	ws, err := OpenWriter(&buf, FormatFlow, CompressionNone, nil)
	if err != nil {
		t.Fatal(err)
	}
	sch := buildV4Schema()
	if _, err := ws.WriteTemplate(300, sch); err != nil {
		t.Fatal(err)
	}

	recs := []*rwrec.Record{
		{SrcAddr: netip.MustParseAddr("10.0.0.1"), DstPort: 80, Protocol: 6, Bytes: 1000, Packets: 10},
		{SrcAddr: netip.MustParseAddr("10.0.0.2"), DstPort: 443, Protocol: 17, Bytes: 2000, Packets: 20},
		{SrcAddr: netip.MustParseAddr("10.0.0.3"), DstPort: 53, Protocol: 1, Bytes: 3000, Packets: 30},
	}
	for i, rec := range recs {
		if err := ws.WriteRecord(300, rec, int64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ws.Close(); err != nil {
		t.Fatal(err)
	}

	rs, err := OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range recs {
		got, err := rs.NextRecord()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got.SrcAddr != want.SrcAddr || got.DstPort != want.DstPort || got.Protocol != want.Protocol ||
			got.Bytes != want.Bytes || got.Packets != want.Packets {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, got, want)
		}
	}
}

func TestStreamDeflateCompression(t *testing.T) {
	var buf bytes.Buffer
	ws, err := OpenWriter(&buf, FormatFlow, CompressionDeflate, nil)
	if err != nil {
		t.Fatal(err)
	}
	sch := buildV4Schema()
	if _, err := ws.WriteTemplate(300, sch); err != nil {
		t.Fatal(err)
	}
	rec := &rwrec.Record{Protocol: 17, Bytes: 10, Packets: 1}
	if err := ws.WriteRecord(300, rec, 0); err != nil {
		t.Fatal(err)
	}
	if err := ws.Close(); err != nil {
		t.Fatal(err)
	}

	rs, err := OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := rs.NextRecord()
	if err != nil {
		t.Fatal(err)
	}
	if got.Protocol != 17 || got.Bytes != 10 {
		t.Fatalf("deflate round trip mismatch: %+v", got)
	}
}

func TestStreamSnappyCompression(t *testing.T) {
	var buf bytes.Buffer
	ws, err := OpenWriter(&buf, FormatFlow, CompressionSnappy, nil)
	if err != nil {
		t.Fatal(err)
	}
	sch := buildV4Schema()
	if _, err := ws.WriteTemplate(300, sch); err != nil {
		t.Fatal(err)
	}
	rec := &rwrec.Record{Protocol: 17, Bytes: 10, Packets: 1}
	if err := ws.WriteRecord(300, rec, 0); err != nil {
		t.Fatal(err)
	}
	if err := ws.Close(); err != nil {
		t.Fatal(err)
	}

	rs, err := OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := rs.NextRecord()
	if err != nil {
		t.Fatal(err)
	}
	if got.Protocol != 17 || got.Bytes != 10 {
		t.Fatalf("snappy round trip mismatch: %+v", got)
	}
}

func TestStreamZstdCompression(t *testing.T) {
	var buf bytes.Buffer
	ws, err := OpenWriter(&buf, FormatFlow, CompressionZstd, nil)
	if err != nil {
		t.Fatal(err)
	}
	sch := buildV4Schema()
	if _, err := ws.WriteTemplate(300, sch); err != nil {
		t.Fatal(err)
	}
	rec := &rwrec.Record{Protocol: 6, Bytes: 123, Packets: 4}
	if err := ws.WriteRecord(300, rec, 0); err != nil {
		t.Fatal(err)
	}
	if err := ws.Close(); err != nil {
		t.Fatal(err)
	}

	rs, err := OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := rs.NextRecord()
	if err != nil {
		t.Fatal(err)
	}
	if got.Protocol != 6 || got.Bytes != 123 {
		t.Fatalf("zstd round trip mismatch: %+v", got)
	}
}

func TestOpenReaderRejectsBadMagic(t *testing.T) {
	_, err := OpenReader(bytes.NewReader([]byte("not-a-silkflow-stream-at-all")))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}
