package main

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/silkflow/silkflow/internal/aggbag"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// BagKeyType names the legacy SiLK Bag key-type enum a converted field
// maps onto, per §6.2's field-id-to-Bag-key-type table. It carries no
// behavior of its own — internal/aggbag.FieldInfo already drives the
// actual key width and encoding — but rwaggbagtool reports it in
// --to-bag's informational output so the table named in the spec has a
// concrete home.
type BagKeyType string

const (
	BagKeyCustom    BagKeyType = "CUSTOM"
	BagKeySIPv4     BagKeyType = "SIPv4"
	BagKeySIPv6     BagKeyType = "SIPv6"
	BagKeyDIPv4     BagKeyType = "DIPv4"
	BagKeyDIPv6     BagKeyType = "DIPv6"
	BagKeySPort     BagKeyType = "SPORT"
	BagKeyDPort     BagKeyType = "DPORT"
	BagKeyProto     BagKeyType = "PROTO"
	BagKeyPackets   BagKeyType = "PACKETS"
	BagKeyStartTime BagKeyType = "STARTTIME"
	BagKeySensor    BagKeyType = "SID"
	BagKeyFlowClass BagKeyType = "FTYPE_CLASS"
	BagKeyRecords   BagKeyType = "RECORDS"
	BagKeySumBytes  BagKeyType = "SUM_BYTES"
)

var bagKeyTypes = map[rwrec.FieldID]BagKeyType{
	rwrec.FieldSIPv4:         BagKeySIPv4,
	rwrec.FieldSIPv6:         BagKeySIPv6,
	rwrec.FieldDIPv4:         BagKeyDIPv4,
	rwrec.FieldDIPv6:         BagKeyDIPv6,
	rwrec.FieldSPort:         BagKeySPort,
	rwrec.FieldDPort:         BagKeyDPort,
	rwrec.FieldProtocol:      BagKeyProto,
	rwrec.FieldPackets:       BagKeyPackets,
	rwrec.FieldSTime:         BagKeyStartTime,
	rwrec.FieldSensor:        BagKeySensor,
	rwrec.FieldFlowtypeClass: BagKeyFlowClass,
	rwrec.FieldRecords:       BagKeyRecords,
	rwrec.FieldSumBytes:      BagKeySumBytes,
}

// bagKeyTypeFor resolves id's Bag-key-type name, falling back to CUSTOM
// (length 4 key / 8 counter, per §6.2) for anything not in the
// illustrative table above.
func bagKeyTypeFor(id rwrec.FieldID) BagKeyType {
	if t, ok := bagKeyTypes[id]; ok {
		return t
	}
	return BagKeyCustom
}

// parseFieldList resolves a comma-separated --select-fields/--remove-fields
// value into field ids, failing fatally on an unknown name per §4.5's
// failure semantics.
func parseFieldList(spec string) ([]rwrec.FieldID, error) {
	var out []rwrec.FieldID
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := rwrec.FieldByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown field name %q", name)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty field list")
	}
	return out, nil
}

// parseToBag resolves a --to-bag=KEYFIELD,COUNTERFIELD value into its two
// field ids, per §4.5's "conversion to Bag requires exactly two selected
// fields."
func parseToBag(spec string) (key, counter rwrec.FieldID, err error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("--to-bag requires exactly two comma-separated fields, got %q", spec)
	}
	key, ok := rwrec.FieldByName(strings.TrimSpace(parts[0]))
	if !ok {
		return 0, 0, fmt.Errorf("unknown key field %q", parts[0])
	}
	counter, ok = rwrec.FieldByName(strings.TrimSpace(parts[1]))
	if !ok {
		return 0, 0, fmt.Errorf("unknown counter field %q", parts[1])
	}
	return key, counter, nil
}

// parseInsertField resolves a --insert-field=NAME=VALUE switch into a
// field id and a constant value typed against that field's declared kind
// (IP, port/protocol/TCP-flags as integers, or timestamp), per §4.5 step
// 1's "parse constant-field values against their declared types."
func parseInsertField(spec string) (rwrec.FieldID, any, error) {
	eq := strings.IndexByte(spec, '=')
	if eq < 0 {
		return 0, nil, fmt.Errorf("--insert-field requires NAME=VALUE, got %q", spec)
	}
	name, raw := spec[:eq], spec[eq+1:]
	id, ok := rwrec.FieldByName(strings.TrimSpace(name))
	if !ok {
		return 0, nil, fmt.Errorf("unknown field name %q", name)
	}
	kind, _, ok := aggbag.FieldInfo(id)
	if !ok {
		return 0, nil, fmt.Errorf("field %q is not key-capable", name)
	}
	switch kind {
	case aggbag.KindIP:
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid IP constant %q for field %q: %w", raw, name, err)
		}
		return id, addr, nil
	case aggbag.KindTimeMillis:
		t, err := parseConstantTime(raw)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid timestamp constant %q for field %q: %w", raw, name, err)
		}
		return id, t, nil
	default:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid integer constant %q for field %q: %w", raw, name, err)
		}
		return id, n, nil
	}
}

func parseConstantTime(raw string) (time.Time, error) {
	for _, layout := range []string{"2006/01/02:15:04:05", "2006/01/02:15", "2006/01/02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
