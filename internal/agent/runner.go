package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tsengs/familyagent/internal/llm"
	"github.com/tsengs/familyagent/internal/tools"
)

// ErrDispatchExhausted reports that a turn burned through the shared step
// budget without producing final text.
var ErrDispatchExhausted = errors.New("dispatch step budget exhausted")

// Runner walks the handler graph for one turn. Every completion step and
// every tool invocation consumes from one shared budget, so a runaway
// handoff chain cannot loop forever.
type Runner struct {
	adapter  llm.Adapter
	recorder *tools.Recorder
	maxSteps int
}

func NewRunner(adapter llm.Adapter, recorder *tools.Recorder, maxSteps int) *Runner {
	if maxSteps <= 0 {
		maxSteps = 30
	}
	return &Runner{adapter: adapter, recorder: recorder, maxSteps: maxSteps}
}

// Run dispatches one user turn starting at root and returns the final
// reply text with markdown bold markers stripped.
func (r *Runner) Run(ctx context.Context, root *Agent, input string) (string, error) {
	current := root
	messages := []llm.Message{{Role: "user", Content: input}}
	steps := 0

	for {
		if steps >= r.maxSteps {
			return "", fmt.Errorf("%w after %d steps", ErrDispatchExhausted, steps)
		}
		steps++

		res, err := r.adapter.Complete(ctx, llm.Request{
			AgentName:    current.Name,
			Instructions: current.Instructions,
			Messages:     messages,
			Tools:        current.toolDefs(),
		})
		if err != nil {
			return "", fmt.Errorf("complete step for %s: %w", current.Name, err)
		}

		if len(res.ToolCalls) == 0 {
			return stripBold(res.Text), nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   res.Text,
			ToolCalls: res.ToolCalls,
		})

		for _, call := range res.ToolCalls {
			if next, ok := current.handoffByName(call.Name); ok {
				log.Printf("dispatch: %s -> %s", current.Name, next.Name)
				current = next
				messages = append(messages, llm.Message{
					Role:       "tool",
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("已轉交給 %s。", next.Name),
				})
				continue
			}

			tool, ok := current.toolByName(call.Name)
			if !ok {
				// An unknown name goes back to the provider as a tool
				// result instead of failing the whole turn.
				messages = append(messages, llm.Message{
					Role:       "tool",
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("工具 %s 不存在。", call.Name),
				})
				continue
			}

			if steps >= r.maxSteps {
				return "", fmt.Errorf("%w after %d steps", ErrDispatchExhausted, steps)
			}
			steps++

			result, err := r.recorder.Invoke(ctx, current.Name, tool, tools.Args(call.Arguments))
			if err != nil {
				result = fmt.Sprintf("工具 %s 執行失敗：%v", call.Name, err)
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
}

// stripBold removes markdown bold markers, which messaging clients render
// literally.
func stripBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
