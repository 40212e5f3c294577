package ipfixcodec

import (
	"github.com/silkflow/silkflow/internal/schema"
)

// reversePEN is the IANA-reserved enterprise number (RFC 5103) used to mark
// a Reverse Information Element — the bit the codec checks to recognize
// biflow/bidirectional counters (§4.2 "Bidirectional and reverse records").
const reversePEN = 29305

// ieKind enumerates the information elements the codec cares about. The
// per-template InterestingElements bitmap is keyed by this enum instead of
// rescanning (enterprise_id, element_id) pairs on every record, per §4.2's
// "Template callback" contract and the REDESIGN FLAGS' "small bitset keyed
// by an enum of interesting elements."
type ieKind int

const (
	ieSourceIPv4 ieKind = iota
	ieDestIPv4
	ieSourceIPv6
	ieDestIPv6
	ieNextHopIPv4
	ieNextHopIPv6
	ieSourcePort
	ieDestPort
	ieProtocol
	ieTCPControlBits
	ieOctetDeltaCount
	iePacketDeltaCount
	ieIngressInterface
	ieEgressInterface
	ieBgpSourceAS
	ieBgpDestAS
	ieFlowStartSysUpTime
	ieFlowEndSysUpTime
	ieSystemInitTimeMillis
	ieFlowStartSeconds
	ieFlowEndSeconds
	ieFlowStartMillis
	ieFlowEndMillis
	ieFlowStartMicro
	ieFlowEndMicro
	ieFlowStartNano
	ieFlowEndNano
	ieFlowStartDeltaMicro
	ieFlowEndDeltaMicro
	ieFlowEndReason
	ieFirewallEvent
	ieReverseOctetDeltaCount
	ieReversePacketDeltaCount
	ieNumKinds
)

// standard (enterprise 0) information element ids, per IANA's IPFIX
// registry; the subset this codec recognizes.
const (
	ieidOctetDeltaCount        = 1
	ieidPacketDeltaCount       = 2
	ieidProtocolIdentifier     = 4
	ieidTCPControlBits         = 6
	ieidSourceTransportPort    = 7
	ieidSourceIPv4Address      = 8
	ieidIngressInterface       = 10
	ieidDestTransportPort      = 11
	ieidDestIPv4Address        = 12
	ieidEgressInterface        = 14
	ieidIPNextHopIPv4Address   = 15
	ieidBgpSourceAsNumber      = 16
	ieidBgpDestAsNumber        = 17
	ieidFlowEndSysUpTime       = 21
	ieidFlowStartSysUpTime     = 22
	ieidSourceIPv6Address      = 27
	ieidDestIPv6Address        = 28
	ieidIPNextHopIPv6Address   = 62
	ieidFlowEndReason          = 136
	ieidFlowStartSeconds       = 150
	ieidFlowEndSeconds         = 151
	ieidFlowStartMilliseconds  = 152
	ieidFlowEndMilliseconds    = 153
	ieidFlowStartMicroseconds  = 154
	ieidFlowEndMicroseconds    = 155
	ieidFlowStartNanoseconds   = 156
	ieidFlowEndNanoseconds     = 157
	ieidFlowStartDeltaMicrosec = 158
	ieidFlowEndDeltaMicrosec   = 159
	ieidSystemInitTimeMillisec = 160
	ieidFirewallEvent          = 233
)

// classifyIE maps (enterprise_id, element_id) to the ieKind this codec
// recognizes, and whether the element is a reverse (biflow) counterpart.
func classifyIE(enterpriseID uint32, elementID uint16) (kind ieKind, reverse, known bool) {
	reverse = enterpriseID == reversePEN
	switch elementID {
	case ieidSourceIPv4Address:
		return ieSourceIPv4, reverse, true
	case ieidDestIPv4Address:
		return ieDestIPv4, reverse, true
	case ieidSourceIPv6Address:
		return ieSourceIPv6, reverse, true
	case ieidDestIPv6Address:
		return ieDestIPv6, reverse, true
	case ieidIPNextHopIPv4Address:
		return ieNextHopIPv4, reverse, true
	case ieidIPNextHopIPv6Address:
		return ieNextHopIPv6, reverse, true
	case ieidSourceTransportPort:
		return ieSourcePort, reverse, true
	case ieidDestTransportPort:
		return ieDestPort, reverse, true
	case ieidProtocolIdentifier:
		return ieProtocol, reverse, true
	case ieidTCPControlBits:
		return ieTCPControlBits, reverse, true
	case ieidOctetDeltaCount:
		if reverse {
			return ieReverseOctetDeltaCount, true, true
		}
		return ieOctetDeltaCount, false, true
	case ieidPacketDeltaCount:
		if reverse {
			return ieReversePacketDeltaCount, true, true
		}
		return iePacketDeltaCount, false, true
	case ieidIngressInterface:
		return ieIngressInterface, reverse, true
	case ieidEgressInterface:
		return ieEgressInterface, reverse, true
	case ieidBgpSourceAsNumber:
		return ieBgpSourceAS, reverse, true
	case ieidBgpDestAsNumber:
		return ieBgpDestAS, reverse, true
	case ieidFlowStartSysUpTime:
		return ieFlowStartSysUpTime, reverse, true
	case ieidFlowEndSysUpTime:
		return ieFlowEndSysUpTime, reverse, true
	case ieidSystemInitTimeMillisec:
		return ieSystemInitTimeMillis, reverse, true
	case ieidFlowStartSeconds:
		return ieFlowStartSeconds, reverse, true
	case ieidFlowEndSeconds:
		return ieFlowEndSeconds, reverse, true
	case ieidFlowStartMilliseconds:
		return ieFlowStartMillis, reverse, true
	case ieidFlowEndMilliseconds:
		return ieFlowEndMillis, reverse, true
	case ieidFlowStartMicroseconds:
		return ieFlowStartMicro, reverse, true
	case ieidFlowEndMicroseconds:
		return ieFlowEndMicro, reverse, true
	case ieidFlowStartNanoseconds:
		return ieFlowStartNano, reverse, true
	case ieidFlowEndNanoseconds:
		return ieFlowEndNano, reverse, true
	case ieidFlowStartDeltaMicrosec:
		return ieFlowStartDeltaMicro, reverse, true
	case ieidFlowEndDeltaMicrosec:
		return ieFlowEndDeltaMicro, reverse, true
	case ieidFlowEndReason:
		return ieFlowEndReason, reverse, true
	case ieidFirewallEvent:
		return ieFirewallEvent, reverse, true
	default:
		return 0, reverse, false
	}
}

// InterestingElements is the per-template bitmap of which recognized
// elements are present, consulted by record decode instead of rescanning
// elements per record.
type InterestingElements uint64

func (b InterestingElements) has(k ieKind) bool { return b&(1<<uint(k)) != 0 }
func (b *InterestingElements) set(k ieKind)      { *b |= 1 << uint(k) }

// TemplateField is one field of a negotiated template together with its
// byte offset and length within the fixed-width record body this codec
// supports (variable-length IEs are out of scope, matching spec.md's
// exclusion of full protocol fidelity beyond what the filter needs).
type TemplateField struct {
	EnterpriseID uint32
	ElementID    uint16
	Length       uint16
	Offset       int
	Kind         ieKind
	Reverse      bool
	Known        bool
}

// Template binds a schema.Schema to the decode-time metadata the codec
// needs: field offsets and the interesting-element bitmap.
type Template struct {
	ID         uint16
	Schema     *schema.Schema
	Fields     []TemplateField
	RecordLen  int
	Bitmap     InterestingElements
	Bidirectional bool
}

// NewTemplate builds a Template from an ordered field-spec list, computing
// offsets, the interesting-element bitmap, and the bidirectional flag (set
// when both a forward and a reverse volume counter are present, per §4.2).
func NewTemplate(id uint16, specs []schema.FieldSpec) *Template {
	s := schema.New()
	t := &Template{ID: id, Schema: s}

	offset := 0
	haveForwardVolume, haveReverseVolume := false, false
	for _, spec := range specs {
		_ = s.Append(spec)
		kind, reverse, known := classifyIE(spec.EnterpriseID, spec.ElementID)
		tf := TemplateField{
			EnterpriseID: spec.EnterpriseID,
			ElementID:    spec.ElementID,
			Length:       spec.Length,
			Offset:       offset,
			Kind:         kind,
			Reverse:      reverse,
			Known:        known,
		}
		t.Fields = append(t.Fields, tf)
		if known {
			t.Bitmap.set(kind)
			if reverse && (kind == ieReverseOctetDeltaCount || kind == ieReversePacketDeltaCount) {
				haveReverseVolume = true
			}
			if !reverse && (kind == ieOctetDeltaCount || kind == iePacketDeltaCount) {
				haveForwardVolume = true
			}
		}
		offset += int(spec.Length)
	}
	t.RecordLen = offset
	t.Bidirectional = haveForwardVolume && haveReverseVolume
	s.Freeze()
	return t
}

// field returns the raw bytes for a known ieKind within record, and
// whether it was present in this template.
func (t *Template) field(record []byte, k ieKind, reverse bool) ([]byte, bool) {
	for _, f := range t.Fields {
		if f.Known && f.Kind == k && f.Reverse == reverse {
			if f.Offset+int(f.Length) > len(record) {
				return nil, false
			}
			return record[f.Offset : f.Offset+int(f.Length)], true
		}
	}
	return nil, false
}

func readUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = (v << 8) | uint64(c)
	}
	return v
}

func writeUint(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
