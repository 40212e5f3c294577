package ipfixcodec

import (
	"bufio"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/silkflow/silkflow/internal/rwrec"
)

// magicBytes identifies a silkflow stream, per §6.3's "magic bytes".
var magicBytes = [4]byte{'S', 'K', 'F', 'L'}

// RecordFormat is the record-format id of §6.3.
type RecordFormat uint8

const (
	FormatFlow RecordFormat = iota
	FormatBag
	FormatAggregateBag
	FormatIPset
)

// CompressionMethod is the wire compression method code of §6.3. Per §9's
// interop requirement, only the method code itself needs to round-trip
// faithfully; this codec implements bodies for None, Deflate, Snappy, and
// Zstd. LZO has no body here: no corpus library implements it, and it is
// a legacy method §6.3 only requires the code for (see SPEC_FULL.md §5).
type CompressionMethod uint8

const (
	CompressionNone CompressionMethod = iota
	CompressionDeflate
	CompressionLZO
	CompressionSnappy
	CompressionZstd
)

// FileHeader is the stream preamble of §6.3.
type FileHeader struct {
	ByteOrder   binary.ByteOrder
	Format      RecordFormat
	Version     uint8
	Compression CompressionMethod
	Entries     []HeaderEntry
}

// HeaderEntryType discriminates the typed header entries of §6.3.
type HeaderEntryType uint8

const (
	EntryAnnotation HeaderEntryType = iota
	EntryInvocation
	EntrySidecarDescriptor
	EntryBagSchema
	EntryTemplateCollection
	entryUnknownMax = 255
)

// HeaderEntry is one length-prefixed typed header entry. Unknown entry
// types (anything this codec doesn't recognize) are kept as raw bytes in
// FileHeader.Entries rather than rejected, per §6.3's "Unknown entries
// MUST be skipped gracefully."
type HeaderEntry struct {
	Type HeaderEntryType
	Data []byte
}

func writeFileHeader(w io.Writer, h *FileHeader) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magicBytes[:]); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing magic", err)
	}
	if err := bw.WriteByte(1); err != nil { // byte-order flag: 1 = big-endian
		return rwrec.NewError(rwrec.KindWrite, "writing byte-order flag", err)
	}
	if err := bw.WriteByte(byte(h.Format)); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing record-format id", err)
	}
	if err := bw.WriteByte(h.Version); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing record version", err)
	}
	if err := bw.WriteByte(byte(h.Compression)); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing compression method", err)
	}
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(h.Entries)))
	if _, err := bw.Write(countBuf[:]); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing entry count", err)
	}
	for _, e := range h.Entries {
		if err := writeHeaderEntry(bw, e); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "flushing header", err)
	}
	return nil
}

func writeHeaderEntry(w io.Writer, e HeaderEntry) error {
	var buf [5]byte
	buf[0] = byte(e.Type)
	binary.BigEndian.PutUint32(buf[1:], uint32(len(e.Data)))
	if _, err := w.Write(buf[:]); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing header entry prefix", err)
	}
	if _, err := w.Write(e.Data); err != nil {
		return rwrec.NewError(rwrec.KindWrite, "writing header entry body", err)
	}
	return nil
}

// readFileHeader parses the stream preamble, keeping every header entry
// (including types this codec does not recognize) rather than failing,
// per §6.3's skip-unknown-gracefully requirement. It reads r unbuffered,
// so r is left positioned at the first body byte. A bad magic or an
// unsupported compression method code is a fatal KindHeader error; the
// record version is not checked here but by each format's own reader.
func readFileHeader(r io.Reader) (*FileHeader, error) {
	br := r

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, rwrec.NewError(rwrec.KindRead, "reading magic", err)
	}
	if magic != magicBytes {
		return nil, rwrec.NewError(rwrec.KindHeader, "bad magic bytes", nil)
	}
	var fixed [4]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return nil, rwrec.NewError(rwrec.KindRead, "reading fixed header", err)
	}
	byteOrderFlag, format, version, compression := fixed[0], fixed[1], fixed[2], fixed[3]

	var order binary.ByteOrder = binary.BigEndian
	if byteOrderFlag == 0 {
		order = binary.LittleEndian
	}

	h := &FileHeader{
		ByteOrder:   order,
		Format:      RecordFormat(format),
		Version:     version,
		Compression: CompressionMethod(compression),
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(br, countBuf[:]); err != nil {
		return nil, rwrec.NewError(rwrec.KindRead, "reading entry count", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])

	for i := uint32(0); i < count; i++ {
		entry, err := readHeaderEntry(br)
		if err != nil {
			return nil, err
		}
		h.Entries = append(h.Entries, entry)
	}

	switch h.Compression {
	case CompressionNone, CompressionDeflate, CompressionSnappy, CompressionZstd:
	default:
		return nil, rwrec.NewError(rwrec.KindHeader,
			fmt.Sprintf("unsupported compression method code %d", h.Compression), nil)
	}

	return h, nil
}

func readHeaderEntry(r io.Reader) (HeaderEntry, error) {
	var prefix [5]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return HeaderEntry{}, rwrec.NewError(rwrec.KindRead, "reading header entry prefix", err)
	}
	length := binary.BigEndian.Uint32(prefix[1:])
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return HeaderEntry{}, rwrec.NewError(rwrec.KindRead, "reading header entry body", err)
	}
	return HeaderEntry{Type: HeaderEntryType(prefix[0]), Data: data}, nil
}

// wrapCompressionReader returns a reader that inflates the stream body if
// the header's compression method requires it.
func wrapCompressionReader(r io.Reader, method CompressionMethod) (io.Reader, error) {
	switch method {
	case CompressionNone:
		return r, nil
	case CompressionDeflate:
		return flate.NewReader(r), nil
	case CompressionSnappy:
		return snappy.NewReader(r), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, rwrec.NewError(rwrec.KindHeader, "opening zstd reader", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, rwrec.NewError(rwrec.KindHeader, "unsupported compression method on read", nil)
	}
}

// flushCloser is the writer wrapCompressionWriter returns, compressing
// the stream body with the requested method; callers must Close it to
// flush the final block.
type flushCloser interface {
	io.Writer
	Close() error
}

func wrapCompressionWriter(w io.Writer, method CompressionMethod) (flushCloser, error) {
	switch method {
	case CompressionNone:
		return nopFlushCloser{w}, nil
	case CompressionDeflate:
		return flate.NewWriter(w, flate.DefaultCompression), nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, rwrec.NewError(rwrec.KindHeader, "opening zstd writer", err)
		}
		return enc, nil
	default:
		return nil, rwrec.NewError(rwrec.KindHeader,
			fmt.Sprintf("unsupported compression method code %d", method), nil)
	}
}

type nopFlushCloser struct{ io.Writer }

func (nopFlushCloser) Close() error { return nil }

// WriteFileHeader writes h as a stream preamble. Exported for the
// Aggregate Bag and IPset file writers, which share this package's file
// header shape (§6.3) without needing the flow-record template/data-set
// framing of Stream.
func WriteFileHeader(w io.Writer, h *FileHeader) error { return writeFileHeader(w, h) }

// ReadFileHeader reads and validates a stream preamble. See
// WriteFileHeader.
func ReadFileHeader(r io.Reader) (*FileHeader, error) { return readFileHeader(r) }

// WrapCompressionReader exposes wrapCompressionReader to other packages
// sharing this file-header format.
func WrapCompressionReader(r io.Reader, method CompressionMethod) (io.Reader, error) {
	return wrapCompressionReader(r, method)
}

// WrapCompressionWriter exposes wrapCompressionWriter to other packages
// sharing this file-header format. Callers must Close the returned
// writer to flush the final compressed block.
func WrapCompressionWriter(w io.Writer, method CompressionMethod) (io.WriteCloser, error) {
	return wrapCompressionWriter(w, method)
}
