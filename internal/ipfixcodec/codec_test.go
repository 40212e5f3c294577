package ipfixcodec

import (
	"net/netip"
	"testing"
	"time"

	"github.com/silkflow/silkflow/internal/rwrec"
	"github.com/silkflow/silkflow/internal/schema"
)

func TestDecodeNTPMicrosecondsTestableProperty(t *testing.T) {
	const jan1970 = ntpEpochOffsetSeconds
	if got := decodeNTPMicrosecondsMillis(uint64(jan1970) << 32); got != 0 {
		t.Fatalf("decode_ntp_usec(jan1970<<32|0) = %d, want 0", got)
	}
	if got := decodeNTPMicrosecondsMillis((uint64(jan1970) << 32) | (1 << 31)); got != 500 {
		t.Fatalf("decode_ntp_usec(jan1970<<32|1<<31) = %d, want 500", got)
	}
}

func TestDeriveTimesSysUpTimeRollover(t *testing.T) {
	// Scenario §8.4: flowStartSysUpTime=5000, flowEndSysUpTime=100 —
	// end must be treated as rolled over: duration = (2^32-5000+100)ms.
	f := TimeFields{
		HaveSysUpTime:        true,
		FlowStartSysUpTime:   5000,
		FlowEndSysUpTime:     100,
		HaveSystemInitTime:   true,
		SystemInitTimeMillis: 1_700_000_000_000,
	}
	exportMillis := int64(1_700_000_000_000) + 5000
	_, duration := DeriveTimes(f, exportMillis)
	want := (int64(1)<<32 - 5000 + 100)
	if duration != want {
		t.Fatalf("duration = %d, want %d", duration, want)
	}
}

func TestDeriveTimesPriorityMillisBeforeSeconds(t *testing.T) {
	f := TimeFields{
		HaveMillis:    true,
		StartMillis:   1000,
		HaveEndMillis: true,
		EndMillis:     6000,
		HaveSeconds:   true,
		StartSeconds:  999,
		HaveEndSeconds: true,
		EndSeconds:    999999,
	}
	start, duration := DeriveTimes(f, 0)
	if start != 1000 || duration != 5000 {
		t.Fatalf("start=%d duration=%d, want 1000,5000 (milliseconds must win over seconds)", start, duration)
	}
}

func TestDeriveTimesNoFieldsFallsBackToExportTime(t *testing.T) {
	start, duration := DeriveTimes(TimeFields{}, 42_000)
	if start != 42_000 || duration != 0 {
		t.Fatalf("start=%d duration=%d, want export-time fallback 42000,0", start, duration)
	}
}

func buildV4Template() *Template {
	specs := []schema.FieldSpec{
		{ElementID: ieidSourceIPv4Address, Length: 4},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidSourceTransportPort, Length: 2},
		{ElementID: ieidDestTransportPort, Length: 2},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidOctetDeltaCount, Length: 8},
		{ElementID: ieidPacketDeltaCount, Length: 8},
		{ElementID: ieidTCPControlBits, Length: 1},
		{ElementID: ieidIngressInterface, Length: 4},
		{ElementID: ieidEgressInterface, Length: 4},
		{ElementID: ieidFlowStartMilliseconds, Length: 8},
		{ElementID: ieidFlowEndMilliseconds, Length: 8},
		{ElementID: ieidFlowEndReason, Length: 1},
	}
	return NewTemplate(256, specs)
}

func sampleCoreRecord() *rwrec.Record {
	start := time.UnixMilli(1_700_000_000_000).UTC()
	return &rwrec.Record{
		SrcAddr:   netip.MustParseAddr("192.0.2.1"),
		DstAddr:   netip.MustParseAddr("198.51.100.7"),
		SrcPort:   443,
		DstPort:   51234,
		Protocol:  6,
		Bytes:     4096,
		Packets:   7,
		TCPFlags:  0x1b,
		Input:     3,
		Output:    9,
		StartTime: start,
		Duration:  2500 * time.Millisecond,
		EndReason: rwrec.EndReasonIdle,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tmpl := buildV4Template()
	rec := sampleCoreRecord()

	wire := EncodeDataRecord(rec, tmpl)
	got, err := decodeCore(wire, tmpl, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got.SrcAddr != rec.SrcAddr || got.DstAddr != rec.DstAddr {
		t.Fatalf("address round trip mismatch: got %v/%v want %v/%v", got.SrcAddr, got.DstAddr, rec.SrcAddr, rec.DstAddr)
	}
	if got.SrcPort != rec.SrcPort || got.DstPort != rec.DstPort {
		t.Fatalf("port round trip mismatch")
	}
	if got.Protocol != rec.Protocol || got.Bytes != rec.Bytes || got.Packets != rec.Packets {
		t.Fatalf("protocol/bytes/packets round trip mismatch")
	}
	if !got.StartTime.Equal(rec.StartTime) {
		t.Fatalf("start time round trip mismatch: got %v want %v", got.StartTime, rec.StartTime)
	}
	if got.Duration != rec.Duration {
		t.Fatalf("duration round trip mismatch: got %v want %v", got.Duration, rec.Duration)
	}
}

func TestDecodeFieldOrderPermutationInvariant(t *testing.T) {
	specsA := []schema.FieldSpec{
		{ElementID: ieidSourceIPv4Address, Length: 4},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidOctetDeltaCount, Length: 8},
		{ElementID: ieidPacketDeltaCount, Length: 8},
	}
	specsB := []schema.FieldSpec{
		{ElementID: ieidPacketDeltaCount, Length: 8},
		{ElementID: ieidOctetDeltaCount, Length: 8},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidSourceIPv4Address, Length: 4},
	}
	tmplA := NewTemplate(256, specsA)
	tmplB := NewTemplate(257, specsB)

	rec := &rwrec.Record{
		SrcAddr:  netip.MustParseAddr("10.1.2.3"),
		DstAddr:  netip.MustParseAddr("10.4.5.6"),
		Protocol: 17,
		Bytes:    1000,
		Packets:  2,
	}

	wireA := EncodeDataRecord(rec, tmplA)
	wireB := EncodeDataRecord(rec, tmplB)

	gotA, err := decodeCore(wireA, tmplA, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	gotB, err := decodeCore(wireB, tmplB, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	if gotA.SrcAddr != gotB.SrcAddr || gotA.DstAddr != gotB.DstAddr ||
		gotA.Protocol != gotB.Protocol || gotA.Bytes != gotB.Bytes || gotA.Packets != gotB.Packets {
		t.Fatalf("field-order permutation produced different canonical records: %+v vs %+v", gotA, gotB)
	}
}

func TestBidirectionalSplitsIntoForwardAndReverse(t *testing.T) {
	specs := []schema.FieldSpec{
		{ElementID: ieidSourceIPv4Address, Length: 4},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidSourceTransportPort, Length: 2},
		{ElementID: ieidDestTransportPort, Length: 2},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidOctetDeltaCount, Length: 8},
		{ElementID: ieidPacketDeltaCount, Length: 8},
		{EnterpriseID: reversePEN, ElementID: ieidOctetDeltaCount, Length: 8},
		{EnterpriseID: reversePEN, ElementID: ieidPacketDeltaCount, Length: 8},
	}
	tmpl := NewTemplate(256, specs)
	if !tmpl.Bidirectional {
		t.Fatalf("expected template with forward+reverse volume counters to be marked bidirectional")
	}

	rec := &rwrec.Record{
		SrcAddr: netip.MustParseAddr("10.0.0.1"), DstAddr: netip.MustParseAddr("10.0.0.2"),
		SrcPort: 80, DstPort: 1234, Protocol: 6, Bytes: 100, Packets: 1,
	}
	wire := EncodeDataRecord(rec, tmpl)
	// Manually stamp in reverse counters (EncodeDataRecord never writes
	// reverse fields, since this codec only produces unidirectional
	// output).
	revOffset := tmpl.Fields[len(tmpl.Fields)-2].Offset
	writeUint(wire[revOffset:revOffset+8], 55)
	writeUint(wire[revOffset+8:revOffset+16], 3)

	recs, err := DecodeDataRecord(wire, tmpl, 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records (forward+reverse), got %d", len(recs))
	}
	fwd, rev := recs[0], recs[1]
	if fwd.SrcAddr != rec.SrcAddr || rev.SrcAddr != rec.DstAddr {
		t.Fatalf("expected reverse record to have swapped addresses")
	}
	if rev.Bytes != 55 || rev.Packets != 3 {
		t.Fatalf("expected reverse record to carry reverse counters, got bytes=%d packets=%d", rev.Bytes, rev.Packets)
	}
	if !fwd.StartTime.Equal(rev.StartTime) {
		t.Fatalf("expected forward/reverse records to share start time")
	}
}

func TestFirewallQuirksDropAndMark(t *testing.T) {
	specs := []schema.FieldSpec{
		{ElementID: ieidSourceIPv4Address, Length: 4},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidPacketDeltaCount, Length: 8},
		{ElementID: ieidFirewallEvent, Length: 1},
	}
	tmpl := NewTemplate(256, specs)
	rec := &rwrec.Record{Protocol: 6, Packets: 1}

	mk := func(event uint8) []byte {
		wire := EncodeDataRecord(rec, tmpl)
		offset := tmpl.Fields[len(tmpl.Fields)-1].Offset
		wire[offset] = event
		return wire
	}

	desc := rwrec.NewSidecarDescriptor()

	// flowDeleted passes through ordinarily.
	out, err := DecodeDataRecord(mk(firewallEventDeleted), tmpl, QuirksFirewallEvent, 0, desc)
	if err != nil || len(out) != 1 {
		t.Fatalf("flowDeleted: got %v recs, err %v", len(out), err)
	}

	// flowDenied passes through with a sidecar marker.
	out, err = DecodeDataRecord(mk(firewallEventDenied), tmpl, QuirksFirewallEvent, 0, desc)
	if err != nil || len(out) != 1 {
		t.Fatalf("flowDenied: got %v recs, err %v", len(out), err)
	}
	if _, ok := out[0].SidecarGet(SidecarFirewallDenied); !ok {
		t.Fatalf("expected flowDenied record to carry the sidecar marker")
	}

	// flowCreated is silently dropped unless the debug quirk is set.
	out, err = DecodeDataRecord(mk(firewallEventCreated), tmpl, QuirksFirewallEvent, 0, desc)
	if err != nil || len(out) != 0 {
		t.Fatalf("flowCreated: expected drop, got %d records", len(out))
	}
	out, err = DecodeDataRecord(mk(firewallEventCreated), tmpl, QuirksFirewallEvent|QuirksDebugFirewallEvents, 0, desc)
	if err != nil || len(out) != 1 {
		t.Fatalf("flowCreated with debug quirk: expected passthrough, got %d records, err %v", len(out), err)
	}
}
