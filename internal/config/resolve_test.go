package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveInputsExpandsGlobsAndDedupes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.rw", "b.rw"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ResolveInputs([]string{filepath.Join(dir, "*.rw"), filepath.Join(dir, "a.rw")}, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.rw"), filepath.Join(dir, "b.rw")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestResolveInputsReadsFromFile(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(listPath, []byte("/data/flows/2026/07/31/one.rw\n/data/flows/2026/07/31/two.rw\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveInputs(nil, listPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 entries", got)
	}
}

func TestResolveInputsPassesThroughNonGlobLiteral(t *testing.T) {
	got, err := ResolveInputs([]string{"-"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "-" {
		t.Fatalf("got %v, want [-]", got)
	}
}
