package main

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/silkflow/silkflow/internal/filterpipe"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// portRangeChecker builds a Checker matching records whose source or
// destination port falls within [lo, hi], compiled from a --sport or
// --dport switch value of the form "lo-hi" or a single port.
func portRangeChecker(spec string, dst bool) (filterpipe.Checker, error) {
	lo, hi, err := parseRange(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid port range %q: %w", spec, err)
	}
	return func(rec *rwrec.Record) filterpipe.Verdict {
		port := rec.SrcPort
		if dst {
			port = rec.DstPort
		}
		if uint64(port) >= lo && uint64(port) <= hi {
			return filterpipe.Pass
		}
		return filterpipe.Fail
	}, nil
}

// protocolSetChecker matches records whose protocol number is in the
// comma-separated set, e.g. "6,17" for TCP/UDP.
func protocolSetChecker(spec string) (filterpipe.Checker, error) {
	set := map[uint8]bool{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid protocol %q: %w", part, err)
		}
		set[uint8(n)] = true
	}
	return func(rec *rwrec.Record) filterpipe.Verdict {
		if set[rec.Protocol] {
			return filterpipe.Pass
		}
		return filterpipe.Fail
	}, nil
}

// cidrChecker matches records whose source or destination address falls
// within prefix.
func cidrChecker(spec string, dst bool) (filterpipe.Checker, error) {
	prefix, err := netip.ParsePrefix(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR block %q: %w", spec, err)
	}
	return func(rec *rwrec.Record) filterpipe.Verdict {
		addr := rec.SrcAddr
		if dst {
			addr = rec.DstAddr
		}
		if prefix.Contains(addr) {
			return filterpipe.Pass
		}
		return filterpipe.Fail
	}, nil
}

// timeRangeChecker matches records whose start time falls within
// [start, end], either bound optional.
func timeRangeChecker(startDate, endDate string) (filterpipe.Checker, error) {
	var start, end time.Time
	var err error
	if startDate != "" {
		start, err = parseDateSwitch(startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid --start-date %q: %w", startDate, err)
		}
	}
	if endDate != "" {
		end, err = parseDateSwitch(endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid --end-date %q: %w", endDate, err)
		}
	}
	return func(rec *rwrec.Record) filterpipe.Verdict {
		if !start.IsZero() && rec.StartTime.Before(start) {
			return filterpipe.Fail
		}
		if !end.IsZero() && rec.StartTime.After(end) {
			return filterpipe.Fail
		}
		return filterpipe.Pass
	}, nil
}

func parseDateSwitch(s string) (time.Time, error) {
	for _, layout := range []string{"2006/01/02:15", "2006/01/02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func parseRange(spec string) (lo, hi uint64, err error) {
	if i := strings.IndexByte(spec, '-'); i >= 0 {
		lo, err = strconv.ParseUint(spec[:i], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		hi, err = strconv.ParseUint(spec[i+1:], 10, 64)
		return lo, hi, err
	}
	n, err := strconv.ParseUint(spec, 10, 64)
	return n, n, err
}

// tupleFileChecker implements the N-tuple file filter of §4.3: each
// non-blank, non-comment line names a source-IP,dest-IP pair the record's
// (SrcAddr, DstAddr) tuple must match to pass. Lines are compared as exact
// address pairs, the simplest concrete reading of spec.md's "optional
// N-tuple file filter."
func tupleFileChecker(path string) (filterpipe.Checker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tuple file: %w", err)
	}
	defer f.Close()

	type tuple struct {
		src, dst netip.Addr
	}
	var tuples []tuple
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed tuple line %q", line)
		}
		src, err := netip.ParseAddr(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("malformed source address %q: %w", parts[0], err)
		}
		dst, err := netip.ParseAddr(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("malformed dest address %q: %w", parts[1], err)
		}
		tuples = append(tuples, tuple{src, dst})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tuple file: %w", err)
	}

	return func(rec *rwrec.Record) filterpipe.Verdict {
		for _, t := range tuples {
			if t.src == rec.SrcAddr && t.dst == rec.DstAddr {
				return filterpipe.Pass
			}
		}
		return filterpipe.Fail
	}, nil
}
