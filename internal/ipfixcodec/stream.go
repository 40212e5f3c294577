package ipfixcodec

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/silkflow/silkflow/internal/pool"
	"github.com/silkflow/silkflow/internal/rwrec"
	"github.com/silkflow/silkflow/internal/schema"
)

// bodyPoolCeiling bounds how many record-body buffers of one width a
// Stream keeps on hand. Writes to one Stream are always serialized (by
// the caller's Destination lock), so Get/Put strictly alternate; this
// just avoids reallocating across the handful of templates a stream
// typically writes.
const bodyPoolCeiling = 4

// setType discriminates the two kinds of frame a stream carries: a
// template definition, or a data record belonging to a previously
// announced template. This mirrors IPFIX's own template-set/data-set
// split (set ids 2 and >=256) without reproducing its exact wire values,
// since this stream format is private to silkflow.
type setType uint8

const (
	setTemplate setType = 1
	setData     setType = 2
)

// Stream is a sequential reader or writer of flow records, built on top
// of the file-header and template machinery in this package. A Stream
// read-side tracks every template announced so far in a TemplateTable and
// decodes each incoming data record against it; the write-side announces
// a template only through an explicit WriteTemplate call and reuses it
// afterward. WriteRecord does not announce templates itself: it fails for
// an id that WriteTemplate has not announced.
type Stream struct {
	header   *FileHeader
	table    *schema.TemplateTable
	sidecar  *rwrec.SidecarDescriptor
	quirks   ProbeQuirks
	templates map[uint16]*Template

	r io.Reader
	w io.Writer
	closer io.Closer

	pending []*rwrec.Record

	bodyPools map[int]*pool.Pool
}

// bodyPool returns (creating if needed) the buffer pool for record bodies
// of the given width.
func (s *Stream) bodyPool(width int) *pool.Pool {
	if s.bodyPools == nil {
		s.bodyPools = make(map[int]*pool.Pool)
	}
	p, ok := s.bodyPools[width]
	if !ok {
		p = pool.New(width, bodyPoolCeiling)
		s.bodyPools[width] = p
	}
	return p
}

// OpenReader opens r as a silkflow stream, reading and validating the
// file header before returning. A record version other than 1 is a
// fatal KindHeader error. The stream starts with no ProbeQuirks set;
// callers set them with SetQuirks.
func OpenReader(r io.Reader) (*Stream, error) {
	h, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Version != 1 {
		return nil, rwrec.NewError(rwrec.KindHeader, "unsupported record version", nil)
	}
	body, err := wrapCompressionReader(r, h.Compression)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		header:    h,
		table:     schema.NewTemplateTable(),
		sidecar:   rwrec.NewSidecarDescriptor(),
		templates: make(map[uint16]*Template),
		r:         body,
	}
	for _, e := range h.Entries {
		if e.Type == EntrySidecarDescriptor {
			// Sidecar field names/types are advisory on read; actual
			// per-record sidecar registration happens as values are
			// decoded, so an unparseable entry is not fatal.
			_ = e
		}
	}
	return s, nil
}

// OpenWriter opens w as a silkflow stream, writing the file header
// immediately.
func OpenWriter(w io.Writer, format RecordFormat, compression CompressionMethod, entries []HeaderEntry) (*Stream, error) {
	h := &FileHeader{
		ByteOrder:   binary.BigEndian,
		Format:      format,
		Version:     1,
		Compression: compression,
		Entries:     entries,
	}
	if err := writeFileHeader(w, h); err != nil {
		return nil, err
	}
	body, err := wrapCompressionWriter(w, compression)
	if err != nil {
		return nil, err
	}
	return &Stream{
		header:    h,
		table:     schema.NewTemplateTable(),
		sidecar:   rwrec.NewSidecarDescriptor(),
		templates: make(map[uint16]*Template),
		w:         body,
		closer:    body,
	}, nil
}

// Header returns the stream's file header, including every header entry
// read_header_entries would otherwise need to parse individually.
func (s *Stream) Header() *FileHeader { return s.header }

// SidecarDescriptor returns the descriptor this stream has accumulated
// from decoded sidecar values so far.
func (s *Stream) SidecarDescriptor() *rwrec.SidecarDescriptor { return s.sidecar }

// TemplateTable returns the stream's id-assignment table, for callers
// that want an auto-assigned id rather than choosing one themselves
// before calling WriteTemplate.
func (s *Stream) TemplateTable() *schema.TemplateTable { return s.table }

// SetQuirks overrides the probe quirks applied to subsequently decoded
// records.
func (s *Stream) SetQuirks(q ProbeQuirks) { s.quirks = q }

// Close closes the underlying writer, flushing any buffered compressed
// output. Reader-side streams have nothing to flush.
func (s *Stream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// NextRecord returns the next decoded flow record, transparently reading
// and registering template sets as it encounters them and splitting
// bidirectional data records into forward and reverse halves (the second
// half is buffered and returned on the following call). Returns
// io.EOF when the stream is exhausted.
func (s *Stream) NextRecord() (*rwrec.Record, error) {
	if len(s.pending) > 0 {
		rec := s.pending[0]
		s.pending = s.pending[1:]
		return rec, nil
	}

	for {
		st, id, exportMillis, body, err := s.readSet()
		if err != nil {
			return nil, err
		}
		switch st {
		case setTemplate:
			specs, err := decodeTemplateBody(body)
			if err != nil {
				return nil, err
			}
			tmpl := NewTemplate(id, specs)
			s.templates[id] = tmpl
			continue
		case setData:
			tmpl, ok := s.templates[id]
			if !ok {
				return nil, rwrec.NewError(rwrec.KindSchema, "data set references unknown template", nil)
			}
			recs, err := DecodeDataRecord(body, tmpl, s.quirks, exportMillis, s.sidecar)
			if err != nil {
				return nil, err
			}
			if len(recs) == 0 {
				continue
			}
			if len(recs) > 1 {
				s.pending = recs[1:]
			}
			return recs[0], nil
		default:
			return nil, rwrec.NewError(rwrec.KindRead, "unknown set type on stream", nil)
		}
	}
}

// WriteTemplate announces sch under id, encoding it onto the stream so
// that subsequent WriteRecord calls using the same id decode correctly.
// It is idempotent: announcing the same id twice with an equivalent
// schema is a no-op.
func (s *Stream) WriteTemplate(id uint16, sch *schema.Schema) (*Template, error) {
	if existing, ok := s.templates[id]; ok && schema.Equivalent(existing.Schema, sch) {
		return existing, nil
	}
	if err := s.writeSet(setTemplate, id, 0, encodeTemplateBody(sch.Fields())); err != nil {
		return nil, err
	}
	tmpl := NewTemplate(id, sch.Fields())
	s.templates[id] = tmpl
	return tmpl, nil
}

// WriteRecord encodes rec against the template previously announced with
// WriteTemplate under id and appends it to the stream.
func (s *Stream) WriteRecord(id uint16, rec *rwrec.Record, exportMillis int64) error {
	tmpl, ok := s.templates[id]
	if !ok {
		return rwrec.NewError(rwrec.KindSchema, "write_record: template not announced", nil)
	}
	p := s.bodyPool(tmpl.RecordLen)
	body := p.Get()
	EncodeDataRecordInto(body, rec, tmpl)
	err := s.writeSet(setData, id, exportMillis, body)
	p.Put(body)
	return err
}

func (s *Stream) writeSet(st setType, id uint16, exportMillis int64, body []byte) error {
	var prefix [15]byte
	prefix[0] = byte(st)
	binary.BigEndian.PutUint16(prefix[1:3], id)
	binary.BigEndian.PutUint64(prefix[3:11], uint64(exportMillis))
	binary.BigEndian.PutUint32(prefix[11:15], uint32(len(body)))
	if _, err := s.w.Write(prefix[:]); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing set prefix", err)
	}
	if _, err := s.w.Write(body); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing set body", err)
	}
	return nil
}

func (s *Stream) readSet() (setType, uint16, int64, []byte, error) {
	var prefix [15]byte
	if _, err := io.ReadFull(s.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, 0, nil, io.EOF
		}
		return 0, 0, 0, nil, rwrec.NewError(rwrec.KindRead, "reading set prefix", err)
	}
	st := setType(prefix[0])
	id := binary.BigEndian.Uint16(prefix[1:3])
	exportMillis := int64(binary.BigEndian.Uint64(prefix[3:11]))
	length := binary.BigEndian.Uint32(prefix[11:15])
	body := make([]byte, length)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return 0, 0, 0, nil, rwrec.NewError(rwrec.KindRead, "reading set body", err)
	}
	return st, id, exportMillis, body, nil
}

// encodeTemplateBody serializes a field-spec list as a template-set body:
// a 4-byte field count followed by 8 bytes per field
// (enterpriseID:4, elementID:2, length:2).
func encodeTemplateBody(fields []schema.FieldSpec) []byte {
	out := make([]byte, 4+8*len(fields))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(fields)))
	off := 4
	for _, f := range fields {
		binary.BigEndian.PutUint32(out[off:off+4], f.EnterpriseID)
		binary.BigEndian.PutUint16(out[off+4:off+6], f.ElementID)
		binary.BigEndian.PutUint16(out[off+6:off+8], f.Length)
		off += 8
	}
	return out
}

func decodeTemplateBody(body []byte) ([]schema.FieldSpec, error) {
	if len(body) < 4 {
		return nil, rwrec.NewError(rwrec.KindRead, "short template set body", nil)
	}
	count := binary.BigEndian.Uint32(body[0:4])
	specs := make([]schema.FieldSpec, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+8 > len(body) {
			return nil, rwrec.NewError(rwrec.KindRead, "truncated template field list", nil)
		}
		specs = append(specs, schema.FieldSpec{
			EnterpriseID: binary.BigEndian.Uint32(body[off : off+4]),
			ElementID:    binary.BigEndian.Uint16(body[off+4 : off+6]),
			Length:       binary.BigEndian.Uint16(body[off+6 : off+8]),
		})
		off += 8
	}
	return specs, nil
}
