package rwrec

import (
	"fmt"
	"net/netip"
	"time"
)

// Record is the canonical in-memory flow record of spec §3: a fixed-size
// core plus an owned Sidecar of typed extension fields. The fixed fields
// have value semantics; Sidecar is the only reference/owned member, so
// Clear/Copy must handle it explicitly rather than relying on a plain
// struct assignment.
type Record struct {
	SrcAddr  netip.Addr
	DstAddr  netip.Addr
	NhAddr   netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	Packets uint64
	Bytes   uint64

	StartTime time.Time
	Duration  time.Duration

	TCPInitFlags    uint8
	TCPSessionFlags uint8
	TCPFlags        uint8 // aggregate OR of all flags seen

	SensorID    uint16
	FlowClassID uint8
	FlowTypeID  uint8
	Input       uint32
	Output      uint32

	Application uint16
	EndReason   EndReason
	Attributes  Attributes

	Sidecar Sidecar
}

// Clear zeroes the fixed fields and drops owned sidecar values, per §4.1.
func (r *Record) Clear() {
	sc := r.Sidecar
	*r = Record{}
	sc.clear()
	r.Sidecar = sc
}

// Copy deep-copies src into dst, including the sidecar, per §4.1.
func Copy(dst, src *Record) {
	*dst = *src
	dst.Sidecar = src.Sidecar.clone()
}

// EndTime is derived, never stored: start_time + duration.
func (r *Record) EndTime() time.Time {
	return r.StartTime.Add(r.Duration)
}

// Validate checks the invariants of §4.1. A record failing validation was
// either mis-decoded or produced by a codec bug; callers should treat this
// as a KindRead error on the record that produced it.
func (r *Record) Validate() error {
	if r.Packets == 0 {
		return NewError(KindRange, "packets must be >= 1", nil)
	}
	if r.Bytes < r.Packets {
		return NewError(KindRange, fmt.Sprintf("bytes (%d) must be >= packets (%d)", r.Bytes, r.Packets), nil)
	}
	if r.Duration < 0 {
		return NewError(KindRange, "duration must be non-negative (end_time >= start_time)", nil)
	}
	return nil
}

// FieldValue is the type-erased result of Get, discriminated by the
// concrete Go type carried (the same approach the sidecar uses for its
// typed extension values, per §9's "variant of well-known field kinds").
type FieldValue struct {
	v any
}

func val(v any) FieldValue { return FieldValue{v: v} }

// Get is the type-checked accessor keyed by FieldID over the fixed fields
// (the sidecar map is reached through SidecarGet, not Get/Set, since it is
// name-keyed rather than FieldID-keyed).
func (r *Record) Get(id FieldID) (FieldValue, error) {
	switch id {
	case FieldSIPv4, FieldSIPv6:
		return val(r.SrcAddr), nil
	case FieldDIPv4, FieldDIPv6:
		return val(r.DstAddr), nil
	case FieldNhIPv4, FieldNhIPv6:
		return val(r.NhAddr), nil
	case FieldSPort:
		return val(r.SrcPort), nil
	case FieldDPort:
		return val(r.DstPort), nil
	case FieldProtocol:
		return val(r.Protocol), nil
	case FieldPackets:
		return val(r.Packets), nil
	case FieldBytes:
		return val(r.Bytes), nil
	case FieldSTime:
		return val(r.StartTime), nil
	case FieldElapsed:
		return val(r.Duration), nil
	case FieldSensor:
		return val(r.SensorID), nil
	case FieldFlowtypeClass:
		return val(r.FlowClassID), nil
	case FieldFlowtypeType:
		return val(r.FlowTypeID), nil
	case FieldInput:
		return val(r.Input), nil
	case FieldOutput:
		return val(r.Output), nil
	case FieldApplication:
		return val(r.Application), nil
	case FieldEndReason:
		return val(r.EndReason), nil
	case FieldAttributes:
		return val(r.Attributes), nil
	case FieldTCPInitFlags:
		return val(r.TCPInitFlags), nil
	case FieldTCPSessionFlags:
		return val(r.TCPSessionFlags), nil
	case FieldTCPFlags:
		return val(r.TCPFlags), nil
	default:
		return FieldValue{}, NewError(KindInput, fmt.Sprintf("unknown fixed field id %d", id), nil)
	}
}

// Uint64 returns the value as a uint64, for callers (e.g. the Aggregate
// Bag key encoder) that only deal in unsigned integer and IP fields.
func (fv FieldValue) Uint64() (uint64, bool) {
	switch n := fv.v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return uint64(n), true
	case EndReason:
		return uint64(n), true
	case Attributes:
		return uint64(n), true
	default:
		return 0, false
	}
}

// Addr returns the value as a netip.Addr, for IP-typed fields.
func (fv FieldValue) Addr() (netip.Addr, bool) {
	a, ok := fv.v.(netip.Addr)
	return a, ok
}
