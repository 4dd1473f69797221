package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tsengs/familyagent/internal/reliability"
)

// HTTPAdapter talks to an OpenAI-compatible chat completions endpoint
// (the Gemini openai/ surface in production).
type HTTPAdapter struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client

	maxAttempts int
	backoffBase time.Duration
}

func NewHTTPAdapter(baseURL, model, apiKey string) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   model,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxAttempts: 3,
		backoffBase: 500 * time.Millisecond,
	}
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *HTTPAdapter) Complete(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return Result{}, fmt.Errorf("marshal completion request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, a.backoffBase, 5*time.Second)):
			}
		}

		res, retryable, err := a.once(ctx, payload)
		if err == nil {
			return res, nil
		}
		if !retryable {
			return Result{}, err
		}
		lastErr = err
	}
	return Result{}, lastErr
}

func (a *HTTPAdapter) once(ctx context.Context, payload []byte) (Result, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Result{}, false, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Result{}, false, fmt.Errorf("send completion request: %w", err)
	}
	defer res.Body.Close()

	if reliability.IsRateLimitedHTTPStatus(res.StatusCode) {
		return Result{}, false, ErrRateLimited
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("completion http status %d: %s", res.StatusCode, string(body))
		return Result{}, reliability.IsRetryableHTTPStatus(res.StatusCode), err
	}

	var parsed completionResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Result{}, false, fmt.Errorf("decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return Result{}, false, fmt.Errorf("completion provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, false, fmt.Errorf("completion response has no choices")
	}

	msg := parsed.Choices[0].Message
	out := Result{Text: strings.TrimSpace(msg.Content)}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return Result{}, false, fmt.Errorf("decode tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, false, nil
}

func (a *HTTPAdapter) buildRequest(req Request) completionRequest {
	out := completionRequest{Model: a.model}

	out.Messages = append(out.Messages, wireMessage{Role: "system", Content: req.Instructions})
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			wtc := wireToolCall{ID: tc.ID, Type: "function"}
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = string(args)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out.Messages = append(out.Messages, wm)
	}

	for _, t := range req.Tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		if wt.Function.Parameters == nil {
			wt.Function.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out.Tools = append(out.Tools, wt)
	}
	return out
}
