package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tsengs/familyagent/internal/tools"
)

// MockAdapter provides deterministic routing and replies when no provider
// is configured. It mirrors the triage instructions with fixed keyword
// rules so the dispatch state machine stays testable offline.
type MockAdapter struct {
	now func() time.Time
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{now: time.Now}
}

// SetClock overrides the reference time used for booking date resolution.
func (a *MockAdapter) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

var (
	urlRe           = regexp.MustCompile(`https?://\S+`)
	foodKeywords    = []string{"餐廳", "美食", "吃飯", "料理", "restaurant", "food"}
	memoryKeywords  = []string{"記得", "記住", "之前說", "約定", "remember"}
	bookingKeywords = []string{"訂位", "預約", "booking", "reserve"}
)

func (a *MockAdapter) Complete(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	// After a tool has produced output, answer with it.
	if result, ok := lastToolResult(req); ok {
		return Result{Text: result}, nil
	}

	input := firstUserContent(req)
	if handoff, ok := a.route(req, input); ok {
		return Result{ToolCalls: []ToolCall{handoff}}, nil
	}
	if call, ok := a.primaryToolCall(req, input); ok {
		return Result{ToolCalls: []ToolCall{call}}, nil
	}

	base := strings.TrimSpace(input)
	if base == "" {
		base = "我在聽。"
	}
	return Result{Text: fmt.Sprintf("我聽到了：%s", base)}, nil
}

// route picks a handoff for an agent that has transfer tools.
func (a *MockAdapter) route(req Request, input string) (ToolCall, bool) {
	url := urlRe.FindString(input)

	if containsAny(input, bookingKeywords) && url != "" {
		if tc, ok := handoffCall(req, "browser"); ok {
			return tc, true
		}
	}
	if url != "" && !isMapsURL(url) {
		if tc, ok := handoffCall(req, "summarize"); ok {
			return tc, true
		}
	}
	if containsAny(input, foodKeywords) {
		if tc, ok := handoffCall(req, "restaurant"); ok {
			return tc, true
		}
	}
	if containsAny(input, memoryKeywords) {
		if tc, ok := handoffCall(req, "memory"); ok {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// primaryToolCall drives a leaf agent to its main capability.
func (a *MockAdapter) primaryToolCall(req Request, input string) (ToolCall, bool) {
	for _, def := range req.Tools {
		switch def.Name {
		case "restaurant_booking":
			p := tools.ParseBookingParams(input, a.now())
			return ToolCall{
				ID:   "mock-booking",
				Name: def.Name,
				Arguments: map[string]any{
					"url":        p.URL,
					"party_size": p.PartySize,
					"date":       p.Date,
					"time":       p.Time,
				},
			}, true
		case "summarize_url":
			return ToolCall{
				ID:        "mock-summarize",
				Name:      def.Name,
				Arguments: map[string]any{"url": urlRe.FindString(input)},
			}, true
		case "search_places":
			return ToolCall{
				ID:        "mock-places",
				Name:      def.Name,
				Arguments: map[string]any{"query": strings.TrimSpace(input), "location": "台灣"},
			}, true
		case "search_conversation_memory":
			return ToolCall{ID: "mock-memory", Name: def.Name, Arguments: map[string]any{}}, true
		}
	}
	return ToolCall{}, false
}

func handoffCall(req Request, hint string) (ToolCall, bool) {
	for _, def := range req.Tools {
		if strings.HasPrefix(def.Name, "transfer_to_") && strings.Contains(def.Name, hint) {
			return ToolCall{ID: "mock-" + def.Name, Name: def.Name, Arguments: map[string]any{}}, true
		}
	}
	return ToolCall{}, false
}

func firstUserContent(req Request) string {
	for _, m := range req.Messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

func lastToolResult(req Request) (string, bool) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role != "tool" {
			continue
		}
		// Handoff acknowledgements are control flow, not tool output.
		if strings.HasPrefix(m.ToolCallID, "mock-transfer_to_") {
			continue
		}
		return m.Content, true
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isMapsURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "google.com/maps") ||
		strings.Contains(lower, "maps.app.goo.gl") ||
		strings.Contains(lower, "goo.gl/maps")
}
