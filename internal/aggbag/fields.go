package aggbag

import (
	"github.com/silkflow/silkflow/internal/rwrec"
)

// FieldKind classifies how a field's value is encoded into key bytes.
type FieldKind int

const (
	KindIP FieldKind = iota
	KindUint
	KindTimeMillis
)

type fieldInfo struct {
	kind  FieldKind
	width int // encoded byte width; IP fields are always 16 (IPv4-mapped-IPv6)
}

var fieldTable = map[rwrec.FieldID]fieldInfo{
	rwrec.FieldSIPv4:           {KindIP, 16},
	rwrec.FieldDIPv4:           {KindIP, 16},
	rwrec.FieldSIPv6:           {KindIP, 16},
	rwrec.FieldDIPv6:           {KindIP, 16},
	rwrec.FieldNhIPv4:          {KindIP, 16},
	rwrec.FieldNhIPv6:          {KindIP, 16},
	rwrec.FieldSPort:           {KindUint, 2},
	rwrec.FieldDPort:           {KindUint, 2},
	rwrec.FieldProtocol:        {KindUint, 1},
	rwrec.FieldSensor:          {KindUint, 2},
	rwrec.FieldFlowtypeClass:   {KindUint, 1},
	rwrec.FieldFlowtypeType:    {KindUint, 1},
	rwrec.FieldInput:           {KindUint, 4},
	rwrec.FieldOutput:          {KindUint, 4},
	rwrec.FieldApplication:     {KindUint, 2},
	rwrec.FieldSTime:           {KindTimeMillis, 8},
	rwrec.FieldElapsed:         {KindUint, 4},
	rwrec.FieldEndReason:       {KindUint, 1},
	rwrec.FieldAttributes:      {KindUint, 1},
	rwrec.FieldTCPInitFlags:    {KindUint, 1},
	rwrec.FieldTCPSessionFlags: {KindUint, 1},
	rwrec.FieldTCPFlags:        {KindUint, 1},
}

// FieldInfo reports the encoding kind and width of a key-capable field,
// and whether it is present in the catalog at all.
func FieldInfo(id rwrec.FieldID) (kind FieldKind, width int, ok bool) {
	info, ok := fieldTable[id]
	return info.kind, info.width, ok
}

// maxKeyWidth is the 64-byte cap of §3's data-model invariant.
const maxKeyWidth = 64
