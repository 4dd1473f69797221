// Package agent defines the handler graph and the dispatch loop that
// walks it: a triage handler routes each turn, specialists run tools,
// and handoffs move control between them under one shared step budget.
package agent

import (
	"fmt"
	"strings"

	"github.com/tsengs/familyagent/internal/llm"
	"github.com/tsengs/familyagent/internal/tools"
)

const handoffPrefix = "transfer_to_"

// Agent is one handler: a name, its instructions, the tools it may call
// and the handlers it may hand off to. Agents are built once at startup
// and never mutated afterwards.
type Agent struct {
	Name         string
	Instructions string
	Tools        []tools.Tool
	Handoffs     []*Agent
}

// HandoffToolName returns the synthetic tool name that transfers control
// to this agent.
func (a *Agent) HandoffToolName() string {
	return handoffPrefix + slugify(a.Name)
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// toolDefs renders the agent's tools plus one synthetic transfer tool
// per handoff target.
func (a *Agent) toolDefs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(a.Tools)+len(a.Handoffs))
	for _, t := range a.Tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	for _, h := range a.Handoffs {
		defs = append(defs, llm.ToolDef{
			Name:        h.HandoffToolName(),
			Description: fmt.Sprintf("將對話交給 %s 處理。", h.Name),
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		})
	}
	return defs
}

// toolByName resolves a tool call against this agent's own tools only.
// Tools belonging to other agents are invisible here.
func (a *Agent) toolByName(name string) (tools.Tool, bool) {
	for _, t := range a.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// handoffByName resolves a transfer tool call to its target agent.
func (a *Agent) handoffByName(name string) (*Agent, bool) {
	for _, h := range a.Handoffs {
		if h.HandoffToolName() == name {
			return h, true
		}
	}
	return nil, false
}

// ValidateGraph rejects handoff cycles and duplicate agent names. It runs
// once at startup so a bad catalog fails fast instead of looping at
// dispatch time.
func ValidateGraph(root *Agent) error {
	if root == nil {
		return fmt.Errorf("agent graph: root is nil")
	}

	names := make(map[string]bool)
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Agent]int)

	var walk func(a *Agent, path []string) error
	walk = func(a *Agent, path []string) error {
		switch state[a] {
		case visiting:
			return fmt.Errorf("agent graph: handoff cycle through %q (path: %s)", a.Name, strings.Join(append(path, a.Name), " -> "))
		case done:
			return nil
		}
		if state[a] == unvisited {
			if names[a.Name] {
				return fmt.Errorf("agent graph: duplicate agent name %q", a.Name)
			}
			names[a.Name] = true
		}
		state[a] = visiting
		for _, h := range a.Handoffs {
			if err := walk(h, append(path, a.Name)); err != nil {
				return err
			}
		}
		state[a] = done
		return nil
	}
	return walk(root, nil)
}
