package filterpipe

import "github.com/silkflow/silkflow/internal/rwrec"

// approxRecordBytes approximates one flow record's wire footprint for
// sizing the worker-owned per-destination buffers of §4.3 ("fixed at
// startup so the buffer holds a whole number of records and totals
// ≈ 64 KiB"). The fixed fields of rwrec.Record plus typical sidecar
// overhead run a little over 100 bytes on the wire; 128 gives a round
// buffer size without costly per-record size accounting.
const approxRecordBytes = 128

// bufferCapacityBytes is the ≈64 KiB target of §4.3.
const bufferCapacityBytes = 64 * 1024

// bufferRecordCapacity is the whole number of records that fit in one
// buffer.
const bufferRecordCapacity = bufferCapacityBytes / approxRecordBytes

type recordBuffer struct {
	records []*rwrec.Record
}

func newRecordBuffer() *recordBuffer {
	return &recordBuffer{records: make([]*rwrec.Record, 0, bufferRecordCapacity)}
}

// workerBuffers holds one recordBuffer per destination kind, owned
// exclusively by a single worker goroutine — no synchronization needed
// here, only Destination.Flush takes a lock.
type workerBuffers struct {
	buffers map[DestKind]*recordBuffer
}

func newWorkerBuffers(destinations map[DestKind]*Destination) *workerBuffers {
	wb := &workerBuffers{buffers: make(map[DestKind]*recordBuffer, len(destinations))}
	for kind := range destinations {
		wb.buffers[kind] = newRecordBuffer()
	}
	return wb
}

// append adds rec to kind's buffer, flushing to dest when the buffer
// reaches capacity.
func (wb *workerBuffers) append(kind DestKind, rec *rwrec.Record, dest *Destination) error {
	buf, ok := wb.buffers[kind]
	if !ok {
		return nil
	}
	buf.records = append(buf.records, rec)
	if len(buf.records) >= bufferRecordCapacity {
		return wb.flush(kind, dest)
	}
	return nil
}

func (wb *workerBuffers) flush(kind DestKind, dest *Destination) error {
	buf, ok := wb.buffers[kind]
	if !ok || len(buf.records) == 0 {
		return nil
	}
	err := dest.Flush(buf.records)
	buf.records = buf.records[:0]
	return err
}

// flushAll drains every non-empty buffer, called when a worker runs out
// of input or is torn down, so no buffered record is silently dropped at
// end of stream.
func (wb *workerBuffers) flushAll(destinations map[DestKind]*Destination) error {
	for kind, dest := range destinations {
		if err := wb.flush(kind, dest); err != nil {
			return err
		}
	}
	return nil
}
