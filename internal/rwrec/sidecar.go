package rwrec

import (
	"fmt"
	"net/netip"
	"sort"
)

// SidecarType enumerates the typed-value catalog of §3: integers of any
// width up to 64 bits (signed or unsigned), floats, IP addresses, strings,
// byte arrays, datetimes at four resolutions, booleans, nested lists, and
// MAC addresses.
type SidecarType uint8

const (
	SidecarInt8 SidecarType = iota
	SidecarInt16
	SidecarInt32
	SidecarInt64
	SidecarUint8
	SidecarUint16
	SidecarUint32
	SidecarUint64
	SidecarFloat32
	SidecarFloat64
	SidecarIPv4
	SidecarIPv6
	SidecarString
	SidecarBytes
	SidecarDateTimeSeconds
	SidecarDateTimeMilliseconds
	SidecarDateTimeMicroseconds
	SidecarDateTimeNanoseconds
	SidecarBool
	SidecarList
	SidecarMAC
)

func (t SidecarType) String() string {
	names := [...]string{
		"int8", "int16", "int32", "int64",
		"uint8", "uint16", "uint32", "uint64",
		"float32", "float64",
		"ipv4", "ipv6", "string", "bytes",
		"datetimeSeconds", "datetimeMilliseconds", "datetimeMicroseconds", "datetimeNanoseconds",
		"bool", "list", "mac",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// SidecarValue is a single typed extension value stored under a name.
type SidecarValue struct {
	Type    SidecarType
	ElemType SidecarType // meaningful only when Type == SidecarList
	raw     any
}

func NewSidecarValue(t SidecarType, raw any) SidecarValue {
	return SidecarValue{Type: t, raw: raw}
}

func (v SidecarValue) Raw() any { return v.raw }

func (v SidecarValue) Addr() (netip.Addr, bool) {
	a, ok := v.raw.(netip.Addr)
	return a, ok
}

// Sidecar is a per-record keyed map from field name to typed value. The
// invariant "each name appears at most once per record" is enforced simply
// by using a Go map.
type Sidecar map[string]SidecarValue

func (s *Sidecar) clear() {
	*s = nil
}

func (s Sidecar) clone() Sidecar {
	if s == nil {
		return nil
	}
	out := make(Sidecar, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SidecarFieldDescriptor is one entry of a stream's SidecarDescriptor.
type SidecarFieldDescriptor struct {
	Name     string
	Type     SidecarType
	ElemType SidecarType // valid only when Type == SidecarList
}

// SidecarDescriptor is the per-stream list of (name, type, element-type?)
// tuples shared by every record produced by that stream, per §3. It is the
// authority SidecarSet checks a new value's type against.
type SidecarDescriptor struct {
	fields map[string]SidecarFieldDescriptor
}

func NewSidecarDescriptor() *SidecarDescriptor {
	return &SidecarDescriptor{fields: make(map[string]SidecarFieldDescriptor)}
}

// Register adds name to the descriptor's first-seen type, or verifies that
// a value of the given type is compatible with the type already registered
// under that name.
func (d *SidecarDescriptor) Register(name string, t, elemType SidecarType) error {
	existing, ok := d.fields[name]
	if !ok {
		d.fields[name] = SidecarFieldDescriptor{Name: name, Type: t, ElemType: elemType}
		return nil
	}
	if existing.Type != t || (t == SidecarList && existing.ElemType != elemType) {
		return NewError(KindSchema, fmt.Sprintf(
			"sidecar field %q previously registered as %s, got %s", name, existing.Type, t), nil)
	}
	return nil
}

// Lookup returns the descriptor entry for name, if any.
func (d *SidecarDescriptor) Lookup(name string) (SidecarFieldDescriptor, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// Fields returns the descriptor's entries sorted by name, for deterministic
// header-entry encoding (§6.3).
func (d *SidecarDescriptor) Fields() []SidecarFieldDescriptor {
	out := make([]SidecarFieldDescriptor, 0, len(d.fields))
	for _, f := range d.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Merge unions two stream descriptors, as required when the filter pipeline
// merges multiple input streams' headers (§4.3 "Header merging"). It fails
// with a KindSchema error when a name is declared with incompatible types
// across the two descriptors, per §3's invariant.
func Merge(a, b *SidecarDescriptor) (*SidecarDescriptor, error) {
	out := NewSidecarDescriptor()
	for _, f := range a.Fields() {
		out.fields[f.Name] = f
	}
	for _, f := range b.Fields() {
		if err := out.Register(f.Name, f.Type, f.ElemType); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SidecarSet inserts or overwrites a named sidecar value on rec, validating
// against (and registering into, on first sight) desc — per §4.1.
func (r *Record) SidecarSet(desc *SidecarDescriptor, name string, value SidecarValue) error {
	if err := desc.Register(name, value.Type, value.ElemType); err != nil {
		return err
	}
	if r.Sidecar == nil {
		r.Sidecar = make(Sidecar)
	}
	r.Sidecar[name] = value
	return nil
}

// SidecarGet returns the named sidecar value, and whether it was present.
func (r *Record) SidecarGet(name string) (SidecarValue, bool) {
	if r.Sidecar == nil {
		return SidecarValue{}, false
	}
	v, ok := r.Sidecar[name]
	return v, ok
}
