package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("EMF output is not JSON: %v\n%s", err, buf.String())
	}
	return doc
}

func TestTaskLine(t *testing.T) {
	var buf bytes.Buffer
	taskLine("photo", "failed", "describing", 1500*time.Millisecond).write(&buf)
	doc := decodeLine(t, &buf)

	meta, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws block")
	}
	if _, ok := meta["Timestamp"]; !ok {
		t.Error("missing Timestamp")
	}
	cw := meta["CloudWatchMetrics"].([]any)[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("Namespace = %v", cw["Namespace"])
	}
	if n := len(cw["Metrics"].([]any)); n != 2 {
		t.Errorf("expected latency and failure metrics, got %d", n)
	}

	checks := map[string]any{
		"TaskKind":      "photo",
		"TaskLatencyMs": float64(1500),
		"TaskFailures":  float64(1),
		"status":        "failed",
		"phase":         "describing",
	}
	for k, want := range checks {
		if doc[k] != want {
			t.Errorf("%s = %v, want %v", k, doc[k], want)
		}
	}
}

func TestTaskLine_DoneHasNoFailureMetric(t *testing.T) {
	var buf bytes.Buffer
	taskLine("reel", "done", "notifying", time.Second).write(&buf)
	if _, ok := decodeLine(t, &buf)["TaskFailures"]; ok {
		t.Error("unexpected TaskFailures on success")
	}
}

func TestRequestLine(t *testing.T) {
	var buf bytes.Buffer
	requestLine("/api/products", "GET", 200, 20*time.Millisecond).write(&buf)
	doc := decodeLine(t, &buf)

	if doc["Endpoint"] != "/api/products" || doc["RequestCount"] != float64(1) || doc["statusCode"] != float64(200) {
		t.Errorf("unexpected line: %v", doc)
	}
	dims := doc["_aws"].(map[string]any)["CloudWatchMetrics"].([]any)[0].(map[string]any)["Dimensions"].([]any)[0].([]any)
	if len(dims) == 0 || dims[0] != "Endpoint" {
		t.Errorf("Dimensions = %v", dims)
	}
}

func TestLine_NoMetricsWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	newLine().dim("Op", "x").prop("id", "y").write(&buf)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}
