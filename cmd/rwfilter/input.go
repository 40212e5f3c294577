package main

import (
	"fmt"
	"os"

	"github.com/silkflow/silkflow/internal/filterpipe"
	"github.com/silkflow/silkflow/internal/ipfixcodec"
)

// openInputs opens every resolved path as a readable stream, treating "-"
// as standard input per §6.1's "`-` / `stdin`" input-selection switch.
// The returned closer closes every file handle opened along the way;
// unopenable files are reported immediately rather than skipped, since
// §4.3's "unreadable input files are logged and skipped" applies to
// decode/read failures mid-stream, not to a file that never opened.
func openInputs(paths []string) ([]filterpipe.Input, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	inputs := make([]filterpipe.Input, 0, len(paths))
	for _, p := range paths {
		var f *os.File
		if p == "-" || p == "stdin" {
			f = os.Stdin
		} else {
			opened, err := os.Open(p)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("opening input %q: %w", p, err)
			}
			f = opened
			files = append(files, f)
		}
		stream, err := ipfixcodec.OpenReader(f)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("reading header of %q: %w", p, err)
		}
		inputs = append(inputs, filterpipe.Input{Name: p, Stream: stream})
	}
	return inputs, closeAll, nil
}
