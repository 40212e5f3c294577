package aggbag

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/rwrec"
)

const (
	currentVersion = 1
	legacyVersion  = 0
)

// Write serializes b to w: a file header (magic, version, compression,
// byte order) carrying a schema header entry that lists the key and
// counter field ids, followed by the fixed-width concatenation of each
// entry's encoded key and 64-bit counters, per §4.4's file format.
// extraEntries, if given, are copied in after the schema entry — the
// caller's note-add/note-file-add annotations, for instance.
func (b *Bag) Write(w io.Writer, compression ipfixcodec.CompressionMethod, extraEntries ...ipfixcodec.HeaderEntry) error {
	if err := b.requireFrozen(); err != nil {
		return err
	}
	schemaEntry := encodeSchemaEntry(b.keyFields, b.counterFields)
	entries := append([]ipfixcodec.HeaderEntry{{Type: ipfixcodec.EntryBagSchema, Data: schemaEntry}}, extraEntries...)
	h := &ipfixcodec.FileHeader{
		ByteOrder:   binary.BigEndian,
		Format:      ipfixcodec.FormatAggregateBag,
		Version:     currentVersion,
		Compression: compression,
		Entries:     entries,
	}
	if err := ipfixcodec.WriteFileHeader(w, h); err != nil {
		return err
	}
	body, err := ipfixcodec.WrapCompressionWriter(w, compression)
	if err != nil {
		return err
	}

	var writeErr error
	b.tree.Iterate(func(key []byte, tuple []uint64) bool {
		if _, err := body.Write(key); err != nil {
			writeErr = rwrec.NewError(rwrec.KindWrite, "writing bag entry key", err)
			return false
		}
		var cbuf [8]byte
		for _, c := range tuple {
			binary.BigEndian.PutUint64(cbuf[:], c)
			if _, err := body.Write(cbuf[:]); err != nil {
				writeErr = rwrec.NewError(rwrec.KindWrite, "writing bag entry counter", err)
				return false
			}
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}
	return body.Close()
}

// Read parses a Bag previously written by Write, including the legacy
// single-fixed-key/single-u64-counter form (version 0), which is decoded
// as a bag with key field sIPv4 and counter field packets.
func Read(r io.Reader) (*Bag, error) {
	h, err := ipfixcodec.ReadFileHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Format != ipfixcodec.FormatAggregateBag {
		return nil, rwrec.NewError(rwrec.KindHeader, "stream is not an Aggregate Bag file", nil)
	}
	body, err := ipfixcodec.WrapCompressionReader(r, h.Compression)
	if err != nil {
		return nil, err
	}

	switch h.Version {
	case legacyVersion:
		return readLegacy(body)
	case currentVersion:
		return readCurrent(h, body)
	default:
		return nil, rwrec.NewError(rwrec.KindHeader, "unsupported bag file version", nil)
	}
}

func readCurrent(h *ipfixcodec.FileHeader, body io.Reader) (*Bag, error) {
	var schemaData []byte
	for _, e := range h.Entries {
		if e.Type == ipfixcodec.EntryBagSchema {
			schemaData = e.Data
		}
	}
	if schemaData == nil {
		return nil, rwrec.NewError(rwrec.KindHeader, "bag file missing schema header entry", nil)
	}
	keyFields, counterFields, err := decodeSchemaEntry(schemaData)
	if err != nil {
		return nil, err
	}

	b := New()
	if err := b.SetKeyFields(keyFields); err != nil {
		return nil, err
	}
	if err := b.SetCounterFields(counterFields); err != nil {
		return nil, err
	}

	keyWidth := 0
	for _, id := range b.keyFields {
		_, w, _ := FieldInfo(id)
		keyWidth += w
	}
	recordWidth := keyWidth + 8*len(counterFields)

	var pairs []pendingEntry
	buf := make([]byte, recordWidth)
	for {
		if _, err := io.ReadFull(body, buf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, rwrec.NewError(rwrec.KindRead, "reading bag entry", err)
		}
		key := append([]byte(nil), buf[:keyWidth]...)
		counters := make([]uint64, len(counterFields))
		for i := range counters {
			counters[i] = binary.BigEndian.Uint64(buf[keyWidth+8*i : keyWidth+8*i+8])
		}
		pairs = append(pairs, pendingEntry{key: key, counters: counters})
	}
	for _, p := range pairs {
		b.tree.Set(p.key, p.counters)
	}
	return b, nil
}

type pendingEntry struct {
	key      []byte
	counters []uint64
}

func readLegacy(body io.Reader) (*Bag, error) {
	b := New()
	if err := b.SetKeyFields([]rwrec.FieldID{rwrec.FieldSIPv4}); err != nil {
		return nil, err
	}
	if err := b.SetCounterFields([]rwrec.FieldID{rwrec.FieldPackets}); err != nil {
		return nil, err
	}
	buf := make([]byte, 4+8)
	for {
		if _, err := io.ReadFull(body, buf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, rwrec.NewError(rwrec.KindRead, "reading legacy bag entry", err)
		}
		var a16 [16]byte
		a16[10], a16[11] = 0xff, 0xff
		copy(a16[12:], buf[:4])
		b.tree.Set(a16[:], []uint64{binary.BigEndian.Uint64(buf[4:12])})
	}
	return b, nil
}

func encodeSchemaEntry(keyFields, counterFields []rwrec.FieldID) []byte {
	out := make([]byte, 4+4)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(keyFields)))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(counterFields)))
	for _, id := range keyFields {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(id))
		out = append(out, b[:]...)
	}
	for _, id := range counterFields {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(id))
		out = append(out, b[:]...)
	}
	return out
}

func decodeSchemaEntry(data []byte) (keyFields, counterFields []rwrec.FieldID, err error) {
	if len(data) < 8 {
		return nil, nil, rwrec.NewError(rwrec.KindRead, "truncated bag schema entry", nil)
	}
	nKey := binary.BigEndian.Uint32(data[0:4])
	nCounter := binary.BigEndian.Uint32(data[4:8])
	off := 8
	need := off + 2*int(nKey) + 2*int(nCounter)
	if need > len(data) {
		return nil, nil, rwrec.NewError(rwrec.KindRead, "truncated bag schema field list", nil)
	}
	for i := uint32(0); i < nKey; i++ {
		keyFields = append(keyFields, rwrec.FieldID(binary.BigEndian.Uint16(data[off:off+2])))
		off += 2
	}
	for i := uint32(0); i < nCounter; i++ {
		counterFields = append(counterFields, rwrec.FieldID(binary.BigEndian.Uint16(data[off:off+2])))
		off += 2
	}
	return keyFields, counterFields, nil
}
