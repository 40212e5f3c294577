package ipfixcodec

import (
	"net/netip"

	"github.com/silkflow/silkflow/internal/rwrec"
)

const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

// extractTimeFields reads whichever of the time gauntlet's candidate
// fields tmpl provides out of record, for DeriveTimes to prioritize.
func extractTimeFields(record []byte, tmpl *Template) TimeFields {
	var f TimeFields
	if b, ok := tmpl.field(record, ieFlowStartSysUpTime, false); ok {
		f.HaveSysUpTime = true
		f.FlowStartSysUpTime = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieFlowEndSysUpTime, false); ok {
		f.FlowEndSysUpTime = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieSystemInitTimeMillis, false); ok {
		f.HaveSystemInitTime = true
		f.SystemInitTimeMillis = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowStartMillis, false); ok {
		f.HaveMillis = true
		f.StartMillis = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowEndMillis, false); ok {
		f.HaveEndMillis = true
		f.EndMillis = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowStartSeconds, false); ok {
		f.HaveSeconds = true
		f.StartSeconds = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieFlowEndSeconds, false); ok {
		f.HaveEndSeconds = true
		f.EndSeconds = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieFlowStartMicro, false); ok {
		f.HaveNTPMicro = true
		f.StartNTPMicro = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowEndMicro, false); ok {
		f.HaveEndNTPMicro = true
		f.EndNTPMicro = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowStartNano, false); ok {
		f.HaveNTPNano = true
		f.StartNTPNano = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowEndNano, false); ok {
		f.HaveEndNTPNano = true
		f.EndNTPNano = readUint(b)
	}
	if b, ok := tmpl.field(record, ieFlowStartDeltaMicro, false); ok {
		f.HaveDeltaMicro = true
		f.StartDeltaMicro = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieFlowEndDeltaMicro, false); ok {
		f.HaveEndDeltaMicro = true
		f.EndDeltaMicro = uint32(readUint(b))
	}
	switch {
	case f.HaveMillis && !f.HaveEndMillis:
		f.HaveStartOnly = true
	case f.HaveSeconds && !f.HaveEndSeconds:
		f.HaveStartOnly = true
	case f.HaveEndMillis && !f.HaveMillis:
		f.HaveEndOnly = true
	case f.HaveEndSeconds && !f.HaveSeconds:
		f.HaveEndOnly = true
	}
	return f
}

// decodeCore decodes the direction-agnostic fields of record — addresses,
// ports, protocol, interfaces, time, extension fields — using the forward
// (non-reverse) counters. The caller handles bidirectional counter
// selection and address/port swapping.
func decodeCore(record []byte, tmpl *Template, exportTimeMillis int64, desc *rwrec.SidecarDescriptor) (*rwrec.Record, error) {
	rec := &rwrec.Record{}

	if b, ok := tmpl.field(record, ieSourceIPv6, false); ok {
		if a, ok2 := netip.AddrFromSlice(b); ok2 {
			rec.SrcAddr = a
		}
	} else if b, ok := tmpl.field(record, ieSourceIPv4, false); ok {
		if a, ok2 := netip.AddrFromSlice(b); ok2 {
			rec.SrcAddr = a
		}
	}
	if b, ok := tmpl.field(record, ieDestIPv6, false); ok {
		if a, ok2 := netip.AddrFromSlice(b); ok2 {
			rec.DstAddr = a
		}
	} else if b, ok := tmpl.field(record, ieDestIPv4, false); ok {
		if a, ok2 := netip.AddrFromSlice(b); ok2 {
			rec.DstAddr = a
		}
	}
	if b, ok := tmpl.field(record, ieNextHopIPv6, false); ok {
		if a, ok2 := netip.AddrFromSlice(b); ok2 {
			rec.NhAddr = a
		}
	} else if b, ok := tmpl.field(record, ieNextHopIPv4, false); ok {
		if a, ok2 := netip.AddrFromSlice(b); ok2 {
			rec.NhAddr = a
		}
	}

	if b, ok := tmpl.field(record, ieSourcePort, false); ok {
		rec.SrcPort = uint16(readUint(b))
	}
	if b, ok := tmpl.field(record, ieDestPort, false); ok {
		rec.DstPort = uint16(readUint(b))
	}
	if b, ok := tmpl.field(record, ieProtocol, false); ok {
		rec.Protocol = b[0]
	}
	if b, ok := tmpl.field(record, ieOctetDeltaCount, false); ok {
		rec.Bytes = readUint(b)
	}
	if b, ok := tmpl.field(record, iePacketDeltaCount, false); ok {
		rec.Packets = readUint(b)
	}
	if b, ok := tmpl.field(record, ieTCPControlBits, false); ok {
		rec.TCPFlags = b[len(b)-1]
		rec.TCPSessionFlags = rec.TCPFlags
	}
	if b, ok := tmpl.field(record, ieIngressInterface, false); ok {
		rec.Input = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieEgressInterface, false); ok {
		rec.Output = uint32(readUint(b))
	}
	if b, ok := tmpl.field(record, ieFlowEndReason, false); ok {
		rec.EndReason = rwrec.EndReason(b[0])
	}

	tf := extractTimeFields(record, tmpl)
	startMillis, durationMillis := DeriveTimes(tf, exportTimeMillis)
	rec.StartTime = millisToTime(startMillis)
	rec.Duration = millisToDuration(durationMillis)

	if b, ok := tmpl.field(record, ieBgpSourceAS, false); ok && desc != nil {
		_ = rec.SidecarSet(desc, "bgpSourceAS", rwrec.NewSidecarValue(rwrec.SidecarUint32, uint32(readUint(b))))
	}
	if b, ok := tmpl.field(record, ieBgpDestAS, false); ok && desc != nil {
		_ = rec.SidecarSet(desc, "bgpDestAS", rwrec.NewSidecarValue(rwrec.SidecarUint32, uint32(readUint(b))))
	}

	return rec, nil
}

// DecodeDataRecord decodes one fixed-width record body against tmpl,
// applying the firewall-quirks policy and the bidirectional/reverse
// handling of §4.2. It returns zero records when the quirks policy drops
// the record, one when it is unidirectional (or reverse-only, after
// swapping), and two (forward, reverse) when both forward and reverse
// volume counters are present and non-zero.
func DecodeDataRecord(record []byte, tmpl *Template, quirks ProbeQuirks, exportTimeMillis int64, desc *rwrec.SidecarDescriptor) ([]*rwrec.Record, error) {
	if len(record) < tmpl.RecordLen {
		return nil, rwrec.NewError(rwrec.KindRead, "short read decoding data record", nil)
	}

	var firewallEvent uint8
	haveFirewallEvent := false
	if b, ok := tmpl.field(record, ieFirewallEvent, false); ok {
		firewallEvent = b[0]
		haveFirewallEvent = true
	}
	keep, denied := applyFirewallQuirks(quirks, firewallEvent, haveFirewallEvent)
	if !keep {
		return nil, nil
	}

	rec, err := decodeCore(record, tmpl, exportTimeMillis, desc)
	if err != nil {
		return nil, err
	}
	if denied && desc != nil {
		_ = rec.SidecarSet(desc, SidecarFirewallDenied, rwrec.NewSidecarValue(rwrec.SidecarBool, true))
	}

	if !quirks.has(QuirksZeroPackets) && rec.Packets == 0 {
		return nil, nil
	}

	reverseBytesPresent := tmpl.Bitmap.has(ieReverseOctetDeltaCount)
	forwardBytesPresent := tmpl.Bitmap.has(ieOctetDeltaCount)

	var reverseBytes, reversePackets uint64
	if b, ok := tmpl.field(record, ieReverseOctetDeltaCount, true); ok {
		reverseBytes = readUint(b)
	}
	if b, ok := tmpl.field(record, ieReversePacketDeltaCount, true); ok {
		reversePackets = readUint(b)
	}

	switch {
	case forwardBytesPresent && reverseBytesPresent && reverseBytes > 0:
		rev := &rwrec.Record{}
		rwrec.Copy(rev, rec)
		swapDirection(rev)
		rev.Bytes = reverseBytes
		rev.Packets = reversePackets
		return []*rwrec.Record{rec, rev}, nil

	case !forwardBytesPresent && reverseBytesPresent:
		rec.Bytes = reverseBytes
		rec.Packets = reversePackets
		swapDirection(rec)
		return []*rwrec.Record{rec}, nil

	default:
		return []*rwrec.Record{rec}, nil
	}
}

// swapDirection reverses a record's directional fields, per §4.2: swapped
// addresses, ports (unless ICMP), interfaces, and TCP flags.
func swapDirection(r *rwrec.Record) {
	r.SrcAddr, r.DstAddr = r.DstAddr, r.SrcAddr
	if r.Protocol != protocolICMP && r.Protocol != protocolICMPv6 {
		r.SrcPort, r.DstPort = r.DstPort, r.SrcPort
	}
	r.Input, r.Output = r.Output, r.Input
	r.TCPInitFlags, r.TCPSessionFlags = r.TCPSessionFlags, r.TCPInitFlags
}
