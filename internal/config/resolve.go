package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveInputs expands paths (each may be a glob pattern) and optionally
// appends filenames listed one-per-line in fromFile, producing the
// deduplicated, sorted file list `--dry-run` reports. This is the
// file-resolution half of rwfglob's job — the sensor/class/type/date
// selection switches rwfglob itself exposes are out of scope per
// spec.md's exclusion of that CLI, but the underlying "turn switches
// into a concrete file list" step it shares with rwfilter is not.
func ResolveInputs(paths []string, fromFile string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, pattern := range paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			add(pattern) // not a glob, or a glob matching nothing yet (e.g. stdin marker "-")
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	if fromFile != "" {
		f, err := os.Open(fromFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open --xargs file list %q: %w", fromFile, err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			add(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read --xargs file list: %w", err)
		}
	}

	sort.Strings(out)
	return out, nil
}
