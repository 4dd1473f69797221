// Package llm bridges the dispatch runtime with a completion provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRateLimited reports provider quota exhaustion. The coordinator maps it
// to a distinct user-facing message.
var ErrRateLimited = errors.New("completion provider rate limited")

// ToolDef describes one callable tool offered to the provider.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a provider request to invoke a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one transcript entry. Role is "user", "assistant" or "tool".
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Request is one completion step for a single handler.
type Request struct {
	AgentName    string    `json:"agent_name"`
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
	Tools        []ToolDef `json:"tools,omitempty"`
}

// Result carries either final text or tool calls to execute, never both.
type Result struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Adapter turns one completion step into a Result.
type Adapter interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	BaseURL string
	Model   string
	APIKey  string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewHTTPAdapter(cfg.BaseURL, cfg.Model, cfg.APIKey), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("completion provider base URL is required for http mode")
		}
		return NewHTTPAdapter(cfg.BaseURL, cfg.Model, cfg.APIKey), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported llm adapter mode %q", cfg.Mode)
	}
}
