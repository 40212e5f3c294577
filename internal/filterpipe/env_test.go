package filterpipe

import "testing"

func TestThreadsFromEnvPrefersFlag(t *testing.T) {
	t.Setenv("SILK_RWFILTER_THREADS", "4")
	if got := ThreadsFromEnv(2); got != 2 {
		t.Fatalf("got %d, want 2 (explicit flag wins)", got)
	}
}

func TestThreadsFromEnvFallsBackToEnv(t *testing.T) {
	t.Setenv("SILK_RWFILTER_THREADS", "4")
	if got := ThreadsFromEnv(0); got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
}

func TestThreadsFromEnvDefaultsToOne(t *testing.T) {
	t.Setenv("SILK_RWFILTER_THREADS", "")
	if got := ThreadsFromEnv(0); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestLogStatsProgramPrefersRwfilterSpecific(t *testing.T) {
	t.Setenv("SILK_LOGSTATS", "/usr/bin/generic")
	t.Setenv("SILK_LOGSTATS_RWFILTER", "/usr/bin/specific")
	prog, ok := LogStatsProgram()
	if !ok || prog != "/usr/bin/specific" {
		t.Fatalf("got (%q, %v), want (/usr/bin/specific, true)", prog, ok)
	}
}

func TestLogStatsProgramAbsent(t *testing.T) {
	t.Setenv("SILK_LOGSTATS", "")
	t.Setenv("SILK_LOGSTATS_RWFILTER", "")
	if _, ok := LogStatsProgram(); ok {
		t.Fatal("expected no log-stats program configured")
	}
}
