package filterpipe

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// ThreadsFromEnv resolves rwfilter's default worker count per §6.1:
// the explicit flag value if set (threads > 0), else SILK_RWFILTER_THREADS,
// else 1.
func ThreadsFromEnv(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if v := os.Getenv("SILK_RWFILTER_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// LogStatsProgram resolves the executable §6.1's environment contract
// names, preferring the rwfilter-specific variable over the general one.
func LogStatsProgram() (string, bool) {
	if v := os.Getenv("SILK_LOGSTATS_RWFILTER"); v != "" {
		return v, true
	}
	if v := os.Getenv("SILK_LOGSTATS"); v != "" {
		return v, true
	}
	return "", false
}

// RunLogStats invokes program with start-time, end-time, files,
// records-read and records-written as arguments, per §6.1's environment
// contract ("name an executable invoked with the start-time, end-time,
// files, records-read, and records-written after successful completion").
func RunLogStats(ctx context.Context, program string, start, end time.Time, files int, recordsRead, recordsWritten uint64) error {
	cmd := exec.CommandContext(ctx, program,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		strconv.Itoa(files),
		strconv.FormatUint(recordsRead, 10),
		strconv.FormatUint(recordsWritten, 10),
	)
	return cmd.Run()
}

// IgnoreSIGPIPE installs a process-wide SIGPIPE ignore, per §4.3's "SIGPIPE
// is ignored process-wide" — broken-pipe writes must surface as an EPIPE
// error from Write so Destination.Flush can close just the one stream,
// rather than terminating the process.
func IgnoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}
