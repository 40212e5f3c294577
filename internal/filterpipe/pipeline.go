package filterpipe

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silkflow/silkflow/internal/rwrec"
)

// Pipeline is the filter pipeline of §4.3: a worker pool drawing from a
// shared StreamQueue, running every record through a Chain, and
// dispatching the verdict to the configured Destinations.
type Pipeline struct {
	Workers      int
	Queue        *StreamQueue
	Chain        Chain
	Destinations map[DestKind]*Destination
	Logger       *zap.Logger

	liveOutputs atomic.Int64
}

// NewPipeline builds a Pipeline and seeds the shared live-output count of
// §4.3's output-cap rule ("recomputes the total number of live output
// streams after each close; when zero remain... all workers drain and
// exit") from every Destination's open streams. Run installs each
// Destination's onStreamClosed callback that decrements it.
func NewPipeline(workers int, queue *StreamQueue, chain Chain, destinations map[DestKind]*Destination, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		Workers:      workers,
		Queue:        queue,
		Chain:        chain,
		Destinations: destinations,
		Logger:       logger,
	}
	var live int64
	for _, d := range destinations {
		live += int64(d.LiveStreams())
	}
	p.liveOutputs.Store(live)
	return p
}

// Run drains the queue with Workers goroutines under an errgroup.Group,
// returning the summed statistics. A fatal write/allocation error on any
// output, per §4.3's failure semantics, propagates here and cancels every
// other worker; a read or decode error on an input is a local recovery:
// it is logged and the rest of that input is skipped, never returned.
// Records after the failing one in that input are not read.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, d := range p.Destinations {
		d.SetOnStreamClosed(func() {
			if p.liveOutputs.Add(-1) <= 0 {
				cancel()
			}
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	workerStats := make([]*Stats, p.Workers)
	for i := 0; i < p.Workers; i++ {
		stats := &Stats{}
		workerStats[i] = stats
		g.Go(func() error {
			return p.runWorker(ctx, stats)
		})
	}

	err := g.Wait()
	for _, d := range p.Destinations {
		d.Close()
	}
	return Sum(workerStats), err
}

func (p *Pipeline) runWorker(ctx context.Context, stats *Stats) error {
	buffers := newWorkerBuffers(p.Destinations)
	for {
		if ctx.Err() != nil {
			return buffers.flushAll(p.Destinations)
		}
		in, ok := p.Queue.Next()
		if !ok {
			return buffers.flushAll(p.Destinations)
		}
		stats.Files++
		if err := p.drainInput(ctx, in, buffers, stats); err != nil {
			buffers.flushAll(p.Destinations)
			return err
		}
	}
}

// drainInput reads every record of one input stream, stopping early if
// ctx is canceled. A read or decode error (KindRead, KindSchema, or an
// error without a Kind) is logged once and the rest of the stream is
// abandoned, including the records after a single undecodable one — an
// unreadable input file is skipped, not fatal, per §4.3's failure
// semantics. Any other error Kind is returned.
func (p *Pipeline) drainInput(ctx context.Context, in Input, buffers *workerBuffers, stats *Stats) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := in.Stream.NextRecord()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var kindErr *rwrec.Error
			if errors.As(err, &kindErr) && kindErr.Kind != rwrec.KindRead && kindErr.Kind != rwrec.KindSchema {
				return err // header/write/memory class errors on an input are unexpected; surface them
			}
			p.Logger.Warn("unreadable input, skipping remainder of stream",
				zap.String("input", in.Name), zap.Error(err))
			return nil
		}
		if err := p.dispatch(rec, buffers, stats); err != nil {
			return err
		}
	}
}

func (p *Pipeline) dispatch(rec *rwrec.Record, buffers *workerBuffers, stats *Stats) error {
	stats.Total.observe(rec.Packets, rec.Bytes)

	if d, ok := p.Destinations[DestAll]; ok {
		if err := buffers.append(DestAll, rec, d); err != nil {
			return err
		}
	}

	switch p.Chain.Evaluate(rec) {
	case Pass, PassNow:
		stats.Pass.observe(rec.Packets, rec.Bytes)
		if d, ok := p.Destinations[DestPass]; ok {
			if err := buffers.append(DestPass, rec, d); err != nil {
				return err
			}
		}
	case Fail:
		stats.Fail.observe(rec.Packets, rec.Bytes)
		if d, ok := p.Destinations[DestFail]; ok {
			if err := buffers.append(DestFail, rec, d); err != nil {
				return err
			}
		}
	case Ignore:
	}
	return nil
}
