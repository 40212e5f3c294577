package ipfixcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/silkflow/silkflow/internal/rwrec"
)

// EncodeSidecarDescriptor renders d as the body of an
// EntrySidecarDescriptor header entry: a 4-byte field count followed by,
// per field, a length-prefixed name and two type bytes (Type, ElemType).
func EncodeSidecarDescriptor(d *rwrec.SidecarDescriptor) []byte {
	fields := d.Fields()
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(fields)))
	for _, f := range fields {
		var nameLen [2]byte
		binary.BigEndian.PutUint16(nameLen[:], uint16(len(f.Name)))
		out = append(out, nameLen[:]...)
		out = append(out, f.Name...)
		out = append(out, byte(f.Type), byte(f.ElemType))
	}
	return out
}

// DecodeSidecarDescriptor parses the body written by EncodeSidecarDescriptor.
func DecodeSidecarDescriptor(data []byte) (*rwrec.SidecarDescriptor, error) {
	if len(data) < 4 {
		return nil, rwrec.NewError(rwrec.KindRead, "short sidecar descriptor entry", nil)
	}
	count := binary.BigEndian.Uint32(data[0:4])
	off := 4
	desc := rwrec.NewSidecarDescriptor()
	for i := uint32(0); i < count; i++ {
		if off+2 > len(data) {
			return nil, rwrec.NewError(rwrec.KindRead, "truncated sidecar descriptor entry", nil)
		}
		nameLen := int(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
		if off+nameLen+2 > len(data) {
			return nil, rwrec.NewError(rwrec.KindRead, "truncated sidecar descriptor field", nil)
		}
		name := string(data[off : off+nameLen])
		off += nameLen
		typ := rwrec.SidecarType(data[off])
		elemType := rwrec.SidecarType(data[off+1])
		off += 2
		if err := desc.Register(name, typ, elemType); err != nil {
			return nil, fmt.Errorf("decoding sidecar descriptor: %w", err)
		}
	}
	return desc, nil
}
