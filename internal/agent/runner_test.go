package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tsengs/familyagent/internal/llm"
	"github.com/tsengs/familyagent/internal/observability"
	"github.com/tsengs/familyagent/internal/tools"
)

// scriptAdapter replays a fixed sequence of results.
type scriptAdapter struct {
	results []llm.Result
	calls   int
	seen    []llm.Request
}

func (a *scriptAdapter) Complete(_ context.Context, req llm.Request) (llm.Result, error) {
	a.seen = append(a.seen, req)
	if a.calls >= len(a.results) {
		return llm.Result{}, errors.New("script exhausted")
	}
	res := a.results[a.calls]
	a.calls++
	return res, nil
}

type echoTool struct {
	name  string
	calls int
	err   error
}

func (t *echoTool) Name() string                   { return t.name }
func (t *echoTool) Description() string            { return "test tool" }
func (t *echoTool) Parameters() map[string]any     { return map[string]any{"type": "object"} }
func (t *echoTool) Call(_ context.Context, args tools.Args) (string, error) {
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	return "echo:" + args.String("text"), nil
}

func newTestRunner(adapter llm.Adapter, maxSteps int) *Runner {
	metrics := observability.NewMetrics(fmt.Sprintf("test_runner_%d", time.Now().UnixNano()))
	rec := tools.NewRecorder(metrics, 0)
	return NewRunner(adapter, rec, maxSteps)
}

func TestRunnerReturnsFinalText(t *testing.T) {
	adapter := &scriptAdapter{results: []llm.Result{{Text: "哈囉"}}}
	root := &Agent{Name: "Root"}

	got, err := newTestRunner(adapter, 30).Run(context.Background(), root, "hi")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "哈囉" {
		t.Fatalf("Run() = %q, want 哈囉", got)
	}
}

func TestRunnerStripsBoldMarkers(t *testing.T) {
	adapter := &scriptAdapter{results: []llm.Result{{Text: "**重點**：今天**不營業**"}}}
	root := &Agent{Name: "Root"}

	got, err := newTestRunner(adapter, 30).Run(context.Background(), root, "hi")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(got, "**") {
		t.Fatalf("Run() = %q, bold markers not stripped", got)
	}
	if got != "重點：今天不營業" {
		t.Fatalf("Run() = %q", got)
	}
}

func TestRunnerExecutesToolThenFinishes(t *testing.T) {
	tool := &echoTool{name: "echo"}
	root := &Agent{Name: "Root", Tools: []tools.Tool{tool}}
	adapter := &scriptAdapter{results: []llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "ping"}}}},
		{Text: "done"},
	}}

	got, err := newTestRunner(adapter, 30).Run(context.Background(), root, "hi")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "done" {
		t.Fatalf("Run() = %q, want done", got)
	}
	if tool.calls != 1 {
		t.Fatalf("tool.calls = %d, want 1", tool.calls)
	}

	// The tool result must have been fed back to the provider.
	last := adapter.seen[len(adapter.seen)-1]
	found := false
	for _, m := range last.Messages {
		if m.Role == "tool" && m.Content == "echo:ping" {
			found = true
		}
	}
	if !found {
		t.Fatal("tool result not present in follow-up request")
	}
}

func TestRunnerToolErrorBecomesToolResult(t *testing.T) {
	tool := &echoTool{name: "echo", err: errors.New("boom")}
	root := &Agent{Name: "Root", Tools: []tools.Tool{tool}}
	adapter := &scriptAdapter{results: []llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{}}}},
		{Text: "recovered"},
	}}

	got, err := newTestRunner(adapter, 30).Run(context.Background(), root, "hi")
	if err != nil {
		t.Fatalf("Run() error = %v, tool failure must not fail the turn", err)
	}
	if got != "recovered" {
		t.Fatalf("Run() = %q, want recovered", got)
	}

	last := adapter.seen[len(adapter.seen)-1]
	found := false
	for _, m := range last.Messages {
		if m.Role == "tool" && strings.Contains(m.Content, "boom") {
			found = true
		}
	}
	if !found {
		t.Fatal("tool error text not surfaced as a tool result")
	}
}

func TestRunnerHandoffSwitchesAgent(t *testing.T) {
	leafTool := &echoTool{name: "leaf_tool"}
	leaf := &Agent{Name: "Leaf Agent", Tools: []tools.Tool{leafTool}}
	root := &Agent{Name: "Root", Handoffs: []*Agent{leaf}}

	adapter := &scriptAdapter{results: []llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: leaf.HandoffToolName(), Arguments: map[string]any{}}}},
		{Text: "from leaf"},
	}}

	got, err := newTestRunner(adapter, 30).Run(context.Background(), root, "hi")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "from leaf" {
		t.Fatalf("Run() = %q", got)
	}
	// The second completion step must run as the leaf agent.
	if adapter.seen[1].AgentName != "Leaf Agent" {
		t.Fatalf("second step agent = %q, want Leaf Agent", adapter.seen[1].AgentName)
	}
}

func TestRunnerRejectsForeignTools(t *testing.T) {
	other := &Agent{Name: "Other", Tools: []tools.Tool{&echoTool{name: "secret"}}}
	_ = other
	root := &Agent{Name: "Root"}
	adapter := &scriptAdapter{results: []llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "secret", Arguments: map[string]any{}}}},
		{Text: "ok"},
	}}

	_, err := newTestRunner(adapter, 30).Run(context.Background(), root, "hi")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	last := adapter.seen[len(adapter.seen)-1]
	found := false
	for _, m := range last.Messages {
		if m.Role == "tool" && strings.Contains(m.Content, "不存在") {
			found = true
		}
	}
	if !found {
		t.Fatal("unknown tool call not reported back to the provider")
	}
}

func TestRunnerBudgetExhaustion(t *testing.T) {
	// An adapter that always asks for another tool call never terminates
	// on its own; the budget must stop it.
	tool := &echoTool{name: "echo"}
	root := &Agent{Name: "Root", Tools: []tools.Tool{tool}}

	var loop []llm.Result
	for i := 0; i < 100; i++ {
		loop = append(loop, llm.Result{ToolCalls: []llm.ToolCall{{
			ID: fmt.Sprintf("c%d", i), Name: "echo", Arguments: map[string]any{},
		}}})
	}
	adapter := &scriptAdapter{results: loop}

	_, err := newTestRunner(adapter, 10).Run(context.Background(), root, "hi")
	if !errors.Is(err, ErrDispatchExhausted) {
		t.Fatalf("Run() error = %v, want ErrDispatchExhausted", err)
	}
	if adapter.calls > 10 {
		t.Fatalf("adapter.calls = %d, exceeded budget of 10", adapter.calls)
	}
}
