package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTask_Counts(t *testing.T) {
	before := testutil.ToFloat64(TasksTotal.WithLabelValues("photo", "done"))

	RecordTask("photo", "done", "Done", 3*time.Second)
	RecordTask("photo", "done", "Done", time.Second)

	if got := testutil.ToFloat64(TasksTotal.WithLabelValues("photo", "done")) - before; got != 2 {
		t.Errorf("expected 2 more photo/done tasks, got %v", got)
	}
}

func TestRecordFallbackAndCommand(t *testing.T) {
	fb := testutil.ToFloat64(FallbacksTotal.WithLabelValues("describer"))
	RecordFallback("describer")
	if got := testutil.ToFloat64(FallbacksTotal.WithLabelValues("describer")) - fb; got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}

	cmd := testutil.ToFloat64(CommandsTotal.WithLabelValues("edit"))
	RecordCommand("edit")
	if got := testutil.ToFloat64(CommandsTotal.WithLabelValues("edit")) - cmd; got != 1 {
		t.Errorf("expected 1 edit command, got %v", got)
	}
}

func TestHandler_Exposes(t *testing.T) {
	ObserveHTTP("GET", "/health", "200", 5*time.Millisecond)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "shopbot_http_requests_total") {
		t.Error("expected shopbot_http_requests_total in exposition")
	}
}
