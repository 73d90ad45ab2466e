package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

// Namespace is the CloudWatch namespace for every EMF line.
const Namespace = "KalaaSaarathi"

// CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
)

var (
	lambdaFunction = sync.OnceValue(func() string { return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") })

	// emfOut is where lines are written. Lambda ships stdout to CloudWatch Logs.
	emfOut io.Writer = os.Stdout
	emfMu  sync.Mutex
)

// EMFEnabled reports whether the process runs inside Lambda.
func EMFEnabled() bool {
	return lambdaFunction() != ""
}

type emfMetric struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type emfNamespace struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []emfMetric `json:"Metrics"`
}

type emfMeta struct {
	Timestamp         int64          `json:"Timestamp"`
	CloudWatchMetrics []emfNamespace `json:"CloudWatchMetrics"`
}

// emfLine is one embedded-metric-format document. Dimensions, metric values
// and plain properties all become top-level keys; only dimensions and
// metrics are declared in the _aws block.
type emfLine struct {
	dims    map[string]string
	metrics []emfMetric
	fields  map[string]any
}

func newLine() *emfLine {
	l := &emfLine{dims: map[string]string{}, fields: map[string]any{}}
	if fn := lambdaFunction(); fn != "" {
		l.dims["FunctionName"] = fn
	}
	return l
}

func (l *emfLine) dim(k, v string) *emfLine {
	l.dims[k] = v
	return l
}

func (l *emfLine) metric(name string, v float64, unit string) *emfLine {
	l.metrics = append(l.metrics, emfMetric{Name: name, Unit: unit})
	l.fields[name] = v
	return l
}

func (l *emfLine) prop(k string, v any) *emfLine {
	l.fields[k] = v
	return l
}

func (l *emfLine) marshal(now time.Time) ([]byte, error) {
	doc := make(map[string]any, len(l.fields)+len(l.dims)+1)
	maps.Copy(doc, l.fields)
	for k, v := range l.dims {
		doc[k] = v
	}
	doc["_aws"] = emfMeta{
		Timestamp: now.UnixMilli(),
		CloudWatchMetrics: []emfNamespace{{
			Namespace:  Namespace,
			Dimensions: [][]string{slices.Sorted(maps.Keys(l.dims))},
			Metrics:    l.metrics,
		}},
	}
	return json.Marshal(doc)
}

func (l *emfLine) write(w io.Writer) {
	if len(l.metrics) == 0 {
		return
	}
	data, err := l.marshal(time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: marshal: %v\n", err)
		return
	}
	emfMu.Lock()
	defer emfMu.Unlock()
	fmt.Fprintln(w, string(data))
}

func requestLine(endpoint, method string, status int, d time.Duration) *emfLine {
	return newLine().
		dim("Endpoint", endpoint).
		metric("RequestLatencyMs", float64(d.Milliseconds()), UnitMilliseconds).
		metric("RequestCount", 1, UnitCount).
		prop("method", method).
		prop("statusCode", status)
}

func taskLine(kind, status, phase string, d time.Duration) *emfLine {
	l := newLine().
		dim("TaskKind", kind).
		metric("TaskLatencyMs", float64(d.Milliseconds()), UnitMilliseconds).
		prop("status", status).
		prop("phase", phase)
	if status == "failed" {
		l.metric("TaskFailures", 1, UnitCount)
	}
	return l
}

// EmitRequest writes one request line when running inside Lambda.
func EmitRequest(endpoint, method string, status int, d time.Duration) {
	if EMFEnabled() {
		requestLine(endpoint, method, status, d).write(emfOut)
	}
}
