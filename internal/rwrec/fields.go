// Package rwrec defines the canonical flow record: a fixed-field core plus
// a typed sidecar extension map.
package rwrec

// FieldID identifies a field by the catalog shared between the fixed record
// layout and the Aggregate Bag key/counter field lists, so field names never
// drift between internal/rwrec and internal/aggbag.
type FieldID uint16

// Field-type ids. Values below 1000 are key-capable; 1000+ are
// counter-only. The numbering is arbitrary but stable — it is the catalog
// cmd/rwaggbagtool's --select-fields/--to-bag switches resolve names
// against, and the wire encoding of internal/aggbag's schema header entry.
const (
	FieldSIPv4 FieldID = iota + 1
	FieldDIPv4
	FieldSIPv6
	FieldDIPv6
	FieldNhIPv4
	FieldNhIPv6
	FieldSPort
	FieldDPort
	FieldProtocol
	FieldSensor
	FieldFlowtypeClass
	FieldFlowtypeType
	FieldInput
	FieldOutput
	FieldApplication
	FieldSTime
	FieldElapsed
	FieldEndReason
	FieldAttributes
	FieldTCPInitFlags
	FieldTCPSessionFlags
	FieldTCPFlags

	FieldPackets FieldID = iota + 1000
	FieldBytes
	FieldRecords
	FieldSumBytes
	FieldSumPackets
)

// Name returns the canonical lower-camel name used in --select-fields and
// --to-bag switch values and in the bag schema header entry's debug form.
func (f FieldID) Name() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "custom"
}

var fieldNames = map[FieldID]string{
	FieldSIPv4:           "sIPv4",
	FieldDIPv4:           "dIPv4",
	FieldSIPv6:           "sIPv6",
	FieldDIPv6:           "dIPv6",
	FieldNhIPv4:          "nhIPv4",
	FieldNhIPv6:          "nhIPv6",
	FieldSPort:           "sPort",
	FieldDPort:           "dPort",
	FieldProtocol:        "protocol",
	FieldSensor:          "sensor",
	FieldFlowtypeClass:   "class",
	FieldFlowtypeType:    "type",
	FieldInput:           "input",
	FieldOutput:          "output",
	FieldApplication:     "application",
	FieldSTime:           "sTime",
	FieldElapsed:         "elapsed",
	FieldEndReason:       "end-reason",
	FieldAttributes:      "attributes",
	FieldTCPInitFlags:    "initFlags",
	FieldTCPSessionFlags: "sessionFlags",
	FieldTCPFlags:        "flags",
	FieldPackets:         "packets",
	FieldBytes:           "bytes",
	FieldRecords:         "records",
	FieldSumBytes:        "sum-bytes",
	FieldSumPackets:      "sum-packets",
}

var fieldsByName = func() map[string]FieldID {
	m := make(map[string]FieldID, len(fieldNames))
	for id, name := range fieldNames {
		m[name] = id
	}
	return m
}()

// FieldByName resolves a --select-fields/--to-bag field name, reporting
// whether it is a known catalog entry.
func FieldByName(name string) (FieldID, bool) {
	id, ok := fieldsByName[name]
	return id, ok
}

// IsKeyCapable reports whether the field may appear in an Aggregate Bag key
// tuple (as opposed to counter-only fields such as packets/bytes/records).
func (f FieldID) IsKeyCapable() bool {
	return f < 1000
}

// EndReason enumerates the flow-end reason bits of §3.
type EndReason uint8

const (
	EndReasonUnknown EndReason = iota
	EndReasonIdle
	EndReasonActive
	EndReasonEndOfFlow
	EndReasonForced
	EndReasonResourceLimit
)

// Attribute bit flags, §3 "aggregate flags".
type Attributes uint8

const (
	AttrTimeout Attributes = 1 << iota
	AttrUniformPacketSize
	AttrFirewallDenied
	AttrFirewallEvent
)
