package netstats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot is one periodic observation of a filter pipeline run's
// statistics, the row shape ArchiveSink writes to TimescaleDB — the
// stats-archival counterpart of the teacher's FlowRecordDB, scoped to
// pipeline/bag statistics rather than individual flow records since that
// is this module's persistence surface.
type Snapshot struct {
	Time           time.Time
	Files          int32
	RecordsRead    int64
	RecordsPassed  int64
	RecordsFailed  int64
	BytesRead      int64
	PacketsRead    int64
}

// ArchiveSink batches Snapshots and bulk-inserts them into TimescaleDB,
// grounded on the teacher's pgxpool connection and CopyFrom batch-insert
// pattern.
type ArchiveSink struct {
	pool *pgxpool.Pool
}

// NewArchiveSink connects to dsn and verifies connectivity with a ping,
// exactly as the teacher's NewClient does.
func NewArchiveSink(ctx context.Context, dsn string) (*ArchiveSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &ArchiveSink{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *ArchiveSink) Close() {
	s.pool.Close()
}

// InsertSnapshots bulk-inserts snapshots using CopyFrom, the teacher's own
// high-throughput insert path.
func (s *ArchiveSink) InsertSnapshots(ctx context.Context, snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	columns := []string{
		"time", "files", "records_read", "records_passed", "records_failed",
		"bytes_read", "packets_read",
	}
	_, err = conn.Conn().CopyFrom(
		ctx,
		pgx.Identifier{"pipeline_stats"},
		columns,
		pgx.CopyFromSlice(len(snapshots), func(i int) ([]interface{}, error) {
			s := snapshots[i]
			return []interface{}{
				s.Time, s.Files, s.RecordsRead, s.RecordsPassed, s.RecordsFailed,
				s.BytesRead, s.PacketsRead,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline stats: %w", err)
	}
	return nil
}

// snapshotInserter is the narrow surface Flusher needs from a sink,
// satisfied by *ArchiveSink; tests use an in-memory fake.
type snapshotInserter interface {
	InsertSnapshots(ctx context.Context, snapshots []Snapshot) error
}

// Flusher batches Snapshots pushed via Push and flushes them to a sink
// either when the batch reaches batchSize or every flushInterval,
// whichever comes first — the same shape as the teacher's databaseWriter
// ticker-plus-channel loop, generalized from flow records to stats
// snapshots.
type Flusher struct {
	sink          snapshotInserter
	batchSize     int
	flushInterval time.Duration

	in   chan Snapshot
	done chan struct{}
}

// NewFlusher starts a background goroutine batching snapshots for sink.
func NewFlusher(sink snapshotInserter, batchSize int, flushInterval time.Duration) *Flusher {
	f := &Flusher{
		sink:          sink,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		in:            make(chan Snapshot, batchSize),
		done:          make(chan struct{}),
	}
	go f.run()
	return f
}

// Push enqueues a snapshot for the next flush. It never blocks the
// caller past the channel's buffer: a full buffer means a flush is
// already overdue, so the snapshot is dropped rather than stalling the
// pipeline, mirroring the teacher's "buffer full, dropping" policy.
func (f *Flusher) Push(s Snapshot) {
	select {
	case f.in <- s:
	default:
	}
}

// Stop flushes any remaining batch and stops the background goroutine.
func (f *Flusher) Stop() {
	close(f.in)
	<-f.done
}

func (f *Flusher) run() {
	defer close(f.done)
	batch := make([]Snapshot, 0, f.batchSize)
	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		_ = f.sink.InsertSnapshots(context.Background(), batch)
		batch = batch[:0]
	}

	for {
		select {
		case s, ok := <-f.in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, s)
			if len(batch) >= f.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
