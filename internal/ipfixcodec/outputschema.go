package ipfixcodec

import "github.com/silkflow/silkflow/internal/schema"

// FullRecordSchema builds the canonical IPv4-oriented field list
// cmd/rwfilter announces on every output stream it opens: the core
// address/port/protocol/volume/interface/time fields of §3, encoded with
// the standard (enterprise 0) IANA element ids this codec already
// recognizes via classifyIE. It exists so every rwfilter output stream
// shares one negotiated template regardless of what subset of fields the
// input templates carried.
func FullRecordSchema() *schema.Schema {
	s := schema.New()
	fields := []schema.FieldSpec{
		{ElementID: ieidSourceIPv4Address, Length: 4},
		{ElementID: ieidDestIPv4Address, Length: 4},
		{ElementID: ieidIPNextHopIPv4Address, Length: 4},
		{ElementID: ieidSourceTransportPort, Length: 2},
		{ElementID: ieidDestTransportPort, Length: 2},
		{ElementID: ieidProtocolIdentifier, Length: 1},
		{ElementID: ieidOctetDeltaCount, Length: 8},
		{ElementID: ieidPacketDeltaCount, Length: 8},
		{ElementID: ieidTCPControlBits, Length: 1},
		{ElementID: ieidIngressInterface, Length: 4},
		{ElementID: ieidEgressInterface, Length: 4},
		{ElementID: ieidFlowStartSeconds, Length: 4},
		{ElementID: ieidFlowEndSeconds, Length: 4},
		{ElementID: ieidFlowEndReason, Length: 1},
	}
	for _, f := range fields {
		_ = s.Append(f)
	}
	s.Freeze()
	return s
}
