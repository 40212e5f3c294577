package filterpipe

import (
	"context"
	"io"
	"testing"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// fakeInput replays a fixed slice of records, satisfying InputStream.
type fakeInput struct {
	records []*rwrec.Record
	idx     int
	header  *ipfixcodec.FileHeader
	sidecar *rwrec.SidecarDescriptor
}

func newFakeInput(n int) *fakeInput {
	recs := make([]*rwrec.Record, n)
	for i := range recs {
		recs[i] = &rwrec.Record{Packets: 1, Bytes: 100, SrcPort: uint16(i)}
	}
	return &fakeInput{
		records: recs,
		header:  &ipfixcodec.FileHeader{},
		sidecar: rwrec.NewSidecarDescriptor(),
	}
}

func (f *fakeInput) NextRecord() (*rwrec.Record, error) {
	if f.idx >= len(f.records) {
		return nil, io.EOF
	}
	rec := f.records[f.idx]
	f.idx++
	return rec, nil
}

func (f *fakeInput) Header() *ipfixcodec.FileHeader             { return f.header }
func (f *fakeInput) SidecarDescriptor() *rwrec.SidecarDescriptor { return f.sidecar }

// evenPortsFail fails even source ports, passes odd ones — a
// deterministic, order-independent predicate used to check the
// pass+fail+ignored=total property regardless of worker count.
func evenPortsFail(rec *rwrec.Record) Verdict {
	if rec.SrcPort%2 == 0 {
		return Fail
	}
	return Pass
}

func runPipeline(t *testing.T, workers int, totalRecords int, cap uint64) (Stats, *fakeWriter, *fakeWriter) {
	t.Helper()
	return runPipelineStreams(t, workers, []int{totalRecords}, cap)
}

func runPipelineStreams(t *testing.T, workers int, streamSizes []int, cap uint64) (Stats, *fakeWriter, *fakeWriter) {
	t.Helper()
	inputs := make([]Input, len(streamSizes))
	for i, n := range streamSizes {
		inputs[i] = Input{Name: "in", Stream: newFakeInput(n)}
	}
	queue := NewStreamQueue(inputs)

	pass := &fakeWriter{}
	fail := &fakeWriter{}
	destinations := map[DestKind]*Destination{
		DestPass: NewDestination(DestPass, []RecordWriter{pass}, []string{"pass"}, cap),
		DestFail: NewDestination(DestFail, []RecordWriter{fail}, []string{"fail"}, cap),
	}
	p := NewPipeline(workers, queue, Chain{evenPortsFail}, destinations, nil)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return stats, pass, fail
}

func TestPassPlusFailEqualsTotal(t *testing.T) {
	stats, _, _ := runPipeline(t, 1, 100, 0)
	if stats.Pass.Records+stats.Fail.Records != stats.Total.Records {
		t.Fatalf("pass (%d) + fail (%d) != total (%d)", stats.Pass.Records, stats.Fail.Records, stats.Total.Records)
	}
	if stats.Total.Records != 100 {
		t.Fatalf("total = %d, want 100", stats.Total.Records)
	}
}

func TestMaxPassRecordsTruncates(t *testing.T) {
	_, pass, _ := runPipeline(t, 1, 100, 10)
	if len(pass.records) != 10 {
		t.Fatalf("pass destination got %d records, want 10 (capped)", len(pass.records))
	}
}

func TestMultiThreadedMatchesSerialTotals(t *testing.T) {
	streamSizes := []int{50, 75, 60, 80, 40, 90}
	serial, serialPass, serialFail := runPipelineStreams(t, 1, streamSizes, 0)
	parallel, parallelPass, parallelFail := runPipelineStreams(t, 8, streamSizes, 0)

	if serial.Total.Records != parallel.Total.Records {
		t.Fatalf("serial total %d != parallel total %d", serial.Total.Records, parallel.Total.Records)
	}
	if serial.Pass.Records != parallel.Pass.Records {
		t.Fatalf("serial pass %d != parallel pass %d", serial.Pass.Records, parallel.Pass.Records)
	}
	if serial.Fail.Records != parallel.Fail.Records {
		t.Fatalf("serial fail %d != parallel fail %d", serial.Fail.Records, parallel.Fail.Records)
	}
	if len(serialPass.records) != len(parallelPass.records) {
		t.Fatalf("serial pass stream got %d records, parallel got %d", len(serialPass.records), len(parallelPass.records))
	}
	if len(serialFail.records) != len(parallelFail.records) {
		t.Fatalf("serial fail stream got %d records, parallel got %d", len(serialFail.records), len(parallelFail.records))
	}
}
