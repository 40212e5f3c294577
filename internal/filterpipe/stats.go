package filterpipe

import (
	"fmt"
	"strings"
)

// Row is one data row of the volume-statistics table: records, packets
// and bytes accumulated for one of Total/Pass/Fail.
type Row struct {
	Records uint64
	Packets uint64
	Bytes   uint64
}

func (r *Row) add(o Row) {
	r.Records += o.Records
	r.Packets += o.Packets
	r.Bytes += o.Bytes
}

func (r *Row) observe(packets, bytes uint64) {
	r.Records++
	r.Packets += packets
	r.Bytes += bytes
}

// Stats is the per-worker statistics accumulator of §4.3, summed across
// workers at shutdown into the two output forms of §6.1.
type Stats struct {
	Files int
	Total Row
	Pass  Row
	Fail  Row
}

// Add merges o into s in place.
func (s *Stats) Add(o Stats) {
	s.Files += o.Files
	s.Total.add(o.Total)
	s.Pass.add(o.Pass)
	s.Fail.add(o.Fail)
}

// Sum reduces per-worker stats accumulators into one totals value.
func Sum(workers []*Stats) Stats {
	var total Stats
	for _, w := range workers {
		if w != nil {
			total.Add(*w)
		}
	}
	return total
}

// VolumeTable renders the six pipe-delimited column stats form of §6.1:
// a blank label column plus Recs/Packets/Bytes/Files, one row each for
// Total/Pass/Fail.
func (s Stats) VolumeTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s|%12s|%14s|%16s|%8s\n", "", "Recs", "Packets", "Bytes", "Files")
	fmt.Fprintf(&b, "%-6s|%12d|%14d|%16d|%8d\n", "Total", s.Total.Records, s.Total.Packets, s.Total.Bytes, s.Files)
	fmt.Fprintf(&b, "%-6s|%12d|%14d|%16d|%8d\n", "Pass", s.Pass.Records, s.Pass.Packets, s.Pass.Bytes, s.Files)
	fmt.Fprintf(&b, "%-6s|%12d|%14d|%16d|%8d\n", "Fail", s.Fail.Records, s.Fail.Packets, s.Fail.Bytes, s.Files)
	return b.String()
}

// SimpleLine renders the single-line stats form of §6.1: "Files N. Read
// N. Pass N. Fail N." with fixed column widths.
func (s Stats) SimpleLine() string {
	return fmt.Sprintf("Files %8d. Read %10d. Pass %10d. Fail %10d.",
		s.Files, s.Total.Records, s.Pass.Records, s.Fail.Records)
}
