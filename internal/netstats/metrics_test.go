package netstats

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObservePipelineStatsExposedOverHTTP(t *testing.T) {
	m := NewMetrics()
	m.ObservePipelineStats(100, 60, 40, 6000, 100)
	m.ObserveBagStats(5, 320)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"silkflow_filterpipe_records_read_total 100",
		"silkflow_filterpipe_records_passed_total 60",
		"silkflow_filterpipe_records_failed_total 40",
		"silkflow_aggbag_keys 5",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
