package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// streamWriter adapts an *ipfixcodec.Stream to filterpipe.RecordWriter,
// writing every record against the single full-record template announced
// when the destination stream was opened.
type streamWriter struct {
	stream     *ipfixcodec.Stream
	templateID uint16
	closer     io.Closer
}

func (w *streamWriter) WriteRecord(rec *rwrec.Record) error {
	return w.stream.WriteRecord(w.templateID, rec, time.Now().UnixMilli())
}

func (w *streamWriter) Close() error {
	err := w.stream.Close()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// openOutputDestination opens one output stream per path in paths
// ("stdout" and "-" both mean the process's standard output), returning a
// streamWriter per path plus its display name, with the merged header
// entries announced and the full-record template written immediately.
func openOutputDestination(paths []string, format ipfixcodec.RecordFormat, compression ipfixcodec.CompressionMethod, entries []ipfixcodec.HeaderEntry) ([]*streamWriter, []string, error) {
	sch := ipfixcodec.FullRecordSchema()
	writers := make([]*streamWriter, 0, len(paths))
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		var f *os.File
		var fileCloser io.Closer
		if p == "stdout" || p == "-" {
			f = os.Stdout
		} else {
			file, err := os.Create(p)
			if err != nil {
				return nil, nil, fmt.Errorf("opening output %q: %w", p, err)
			}
			f = file
			fileCloser = file
		}
		stream, err := ipfixcodec.OpenWriter(f, format, compression, entries)
		if err != nil {
			if fileCloser != nil {
				fileCloser.Close()
			}
			return nil, nil, fmt.Errorf("writing header for %q: %w", p, err)
		}
		id := stream.TemplateTable().Assign(sch)
		if _, err := stream.WriteTemplate(id, sch); err != nil {
			if fileCloser != nil {
				fileCloser.Close()
			}
			return nil, nil, fmt.Errorf("announcing template for %q: %w", p, err)
		}
		writers = append(writers, &streamWriter{stream: stream, templateID: id, closer: fileCloser})
		names = append(names, p)
	}
	return writers, names, nil
}
