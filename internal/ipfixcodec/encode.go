package ipfixcodec

import (
	"github.com/silkflow/silkflow/internal/rwrec"
)

// EncodeDataRecord serializes rec against tmpl's field order, writing each
// forward field that has a case in EncodeDataRecordInto's switch from the
// corresponding rwrec.Record field. Every other field the template
// declares (elements this codec does not recognize, recognized elements
// with no case there, and reverse (biflow) fields) is encoded as zero
// bytes — this codec does not
// generate biflow records on write, only consumes them on read.
func EncodeDataRecord(rec *rwrec.Record, tmpl *Template) []byte {
	out := make([]byte, tmpl.RecordLen)
	EncodeDataRecordInto(out, rec, tmpl)
	return out
}

// EncodeDataRecordInto is EncodeDataRecord with a caller-supplied
// destination buffer, which must be exactly tmpl.RecordLen bytes. Stream's
// write path uses this with a pooled buffer to avoid one allocation per
// record on a hot output path.
func EncodeDataRecordInto(out []byte, rec *rwrec.Record, tmpl *Template) {
	for i := range out {
		out[i] = 0
	}
	for _, f := range tmpl.Fields {
		b := out[f.Offset : f.Offset+int(f.Length)]
		if f.Reverse || !f.Known {
			continue
		}
		switch f.Kind {
		case ieSourceIPv4, ieSourceIPv6:
			copySlice(b, rec.SrcAddr.AsSlice())
		case ieDestIPv4, ieDestIPv6:
			copySlice(b, rec.DstAddr.AsSlice())
		case ieNextHopIPv4, ieNextHopIPv6:
			copySlice(b, rec.NhAddr.AsSlice())
		case ieSourcePort:
			writeUint(b, uint64(rec.SrcPort))
		case ieDestPort:
			writeUint(b, uint64(rec.DstPort))
		case ieProtocol:
			b[0] = rec.Protocol
		case ieOctetDeltaCount:
			writeUint(b, rec.Bytes)
		case iePacketDeltaCount:
			writeUint(b, rec.Packets)
		case ieTCPControlBits:
			b[len(b)-1] = rec.TCPFlags
		case ieIngressInterface:
			writeUint(b, uint64(rec.Input))
		case ieEgressInterface:
			writeUint(b, uint64(rec.Output))
		case ieFlowEndReason:
			b[0] = byte(rec.EndReason)
		case ieFlowStartMillis:
			writeUint(b, uint64(timeToMillis(rec.StartTime)))
		case ieFlowEndMillis:
			writeUint(b, uint64(timeToMillis(rec.StartTime.Add(rec.Duration))))
		case ieFlowStartSeconds:
			writeUint(b, uint64(rec.StartTime.Unix()))
		case ieFlowEndSeconds:
			writeUint(b, uint64(rec.StartTime.Add(rec.Duration).Unix()))
		}
	}
}

func copySlice(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	if len(src) >= len(dst) {
		copy(dst, src[len(src)-len(dst):])
	} else {
		copy(dst[len(dst)-len(src):], src)
	}
}
