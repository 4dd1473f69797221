// Package tools implements the external collaborators callable by handlers:
// URL summarization, place search, conversation memory and browser
// automation primitives.
package tools

import (
	"context"
	"log"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/tsengs/familyagent/internal/observability"
)

// Args carries decoded tool-call arguments.
type Args map[string]any

// String returns the named argument as a string, empty when absent.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Int returns the named argument as an int, tolerating JSON numbers and
// numeric strings. Zero when absent or unparseable.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Tool is one callable capability with a name, a JSON-schema parameter
// description and a single Call contract.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args Args) (string, error)
}

// Recorder wraps tool invocations with logging and metrics. The dispatch
// outcome never depends on the recording itself.
type Recorder struct {
	metrics *observability.Metrics
	timeout time.Duration
}

func NewRecorder(metrics *observability.Metrics, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Recorder{metrics: metrics, timeout: timeout}
}

// Invoke runs the tool under the per-call timeout, recording start/end,
// elapsed time and a truncated result preview.
func (r *Recorder) Invoke(ctx context.Context, agentName string, tool Tool, args Args) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.Printf("tool call start: %s -> %s", agentName, tool.Name())
	start := time.Now()
	result, err := tool.Call(callCtx, args)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		log.Printf("tool call failed: %s (%s): %v", tool.Name(), elapsed.Round(time.Millisecond), err)
	} else {
		log.Printf("tool call done: %s (%s): %s", tool.Name(), elapsed.Round(time.Millisecond), preview(result, 100))
	}
	if r.metrics != nil {
		r.metrics.ToolCalls.WithLabelValues(tool.Name(), status).Inc()
	}
	return result, err
}

func preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
