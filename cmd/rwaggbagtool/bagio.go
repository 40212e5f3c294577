package main

import (
	"fmt"
	"os"

	"github.com/silkflow/silkflow/internal/aggbag"
)

// loadBag reads an Aggregate Bag from path, treating "-" as standard
// input per the tool's shared input-source convention with rwfilter.
func loadBag(path string) (*aggbag.Bag, error) {
	var f *os.File
	if path == "-" || path == "stdin" {
		f = os.Stdin
	} else {
		opened, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input %q: %w", path, err)
		}
		defer opened.Close()
		f = opened
	}
	b, err := aggbag.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading bag from %q: %w", path, err)
	}
	return b, nil
}
