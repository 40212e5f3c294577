package aggbag

import (
	"net/netip"
	"time"

	"github.com/silkflow/silkflow/internal/rwrec"
)

// encodeField returns field id's value v as a new slice of big-endian
// bytes at the field's fixed width. IP fields are
// always widened to their 16-byte IPv4-mapped-IPv6 form first, per §3's
// ordering rule.
func encodeField(id rwrec.FieldID, v any) ([]byte, error) {
	kind, width, ok := FieldInfo(id)
	if !ok {
		return nil, rwrec.NewError(rwrec.KindSchema, "unknown aggbag field", nil)
	}
	switch kind {
	case KindIP:
		addr, ok := v.(netip.Addr)
		if !ok {
			return nil, rwrec.NewError(rwrec.KindSchema, "expected netip.Addr for IP field", nil)
		}
		a16 := addr.As16()
		return a16[:], nil
	case KindTimeMillis:
		t, ok := v.(time.Time)
		if !ok {
			return nil, rwrec.NewError(rwrec.KindSchema, "expected time.Time for time field", nil)
		}
		return encodeUint(uint64(t.UnixMilli()), width), nil
	default:
		u, ok := toUint64(v)
		if !ok {
			return nil, rwrec.NewError(rwrec.KindSchema, "expected integer value for field", nil)
		}
		return encodeUint(u, width), nil
	}
}

func decodeField(id rwrec.FieldID, b []byte) (any, error) {
	kind, _, ok := FieldInfo(id)
	if !ok {
		return nil, rwrec.NewError(rwrec.KindSchema, "unknown aggbag field", nil)
	}
	switch kind {
	case KindIP:
		var a16 [16]byte
		copy(a16[:], b)
		addr := netip.AddrFrom16(a16)
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		return addr, nil
	case KindTimeMillis:
		return time.UnixMilli(int64(decodeUint(b))).UTC(), nil
	default:
		return decodeUint(b), nil
	}
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint32:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	default:
		return 0, false
	}
}

func encodeUint(v uint64, width int) []byte {
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
