package filterpipe

import (
	"strings"
	"testing"
)

func TestSumAccumulatesWorkerStats(t *testing.T) {
	a := &Stats{Files: 1, Total: Row{Records: 10, Packets: 20, Bytes: 300}}
	b := &Stats{Files: 2, Total: Row{Records: 5, Packets: 8, Bytes: 90}}
	got := Sum([]*Stats{a, b})
	if got.Files != 3 || got.Total.Records != 15 || got.Total.Packets != 28 || got.Total.Bytes != 390 {
		t.Fatalf("got %+v", got)
	}
}

func TestSimpleLineFormat(t *testing.T) {
	s := Stats{Files: 2, Total: Row{Records: 100}, Pass: Row{Records: 60}, Fail: Row{Records: 40}}
	line := s.SimpleLine()
	for _, want := range []string{"Files", "Read", "Pass", "Fail"} {
		if !strings.Contains(line, want) {
			t.Fatalf("simple line %q missing %q", line, want)
		}
	}
}

func TestVolumeTableHasThreeDataRows(t *testing.T) {
	s := Stats{Files: 1, Total: Row{Records: 3}, Pass: Row{Records: 2}, Fail: Row{Records: 1}}
	table := s.VolumeTable()
	for _, want := range []string{"Total", "Pass", "Fail", "Recs", "Packets", "Bytes", "Files"} {
		if !strings.Contains(table, want) {
			t.Fatalf("volume table missing %q:\n%s", want, table)
		}
	}
}
