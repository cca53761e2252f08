package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesCounters(t *testing.T) {
	RecordScan(150*time.Millisecond, false)
	RecordCleanup("delete", errors.New("boom"))
	RecordTreemapRebuild()
	RecordActivity("scan-completed")
	SetTreeNodes(12)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`dirstat_scans_total{result="finished"}`,
		`dirstat_cleanups_total{action="delete",result="error"}`,
		"dirstat_treemap_rebuilds_total",
		`dirstat_activity_total{kind="scan-completed"}`,
		"dirstat_tree_nodes 12",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
