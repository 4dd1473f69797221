package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsengs/familyagent/internal/memory"
)

// SearchMemoryTool reads back the caller's recent conversation records.
// The caller identity is carried on the context by the coordinator.
type SearchMemoryTool struct {
	store memory.Store
	limit int
}

func NewSearchMemoryTool(store memory.Store, limit int) *SearchMemoryTool {
	if limit <= 0 {
		limit = 6
	}
	return &SearchMemoryTool{store: store, limit: limit}
}

func (t *SearchMemoryTool) Name() string { return "search_conversation_memory" }

func (t *SearchMemoryTool) Description() string {
	return "查詢你與這位使用者最近的對話紀錄。"
}

func (t *SearchMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *SearchMemoryTool) Call(ctx context.Context, _ Args) (string, error) {
	id, ok := memory.IdentityFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("search_conversation_memory: no caller identity in context")
	}
	records, err := t.store.Recent(ctx, id, t.limit)
	if err != nil {
		return "", fmt.Errorf("search_conversation_memory: %w", err)
	}
	if len(records) == 0 {
		return "目前沒有先前的對話紀錄。", nil
	}
	return memory.FormatHistory(records, 0), nil
}

// SaveMemoryTool records a user/assistant exchange explicitly, for when an
// agent wants to pin something down mid-conversation.
type SaveMemoryTool struct {
	store memory.Store
}

func NewSaveMemoryTool(store memory.Store) *SaveMemoryTool {
	return &SaveMemoryTool{store: store}
}

func (t *SaveMemoryTool) Name() string { return "save_conversation_memory" }

func (t *SaveMemoryTool) Description() string {
	return "記下一段重要的對話內容，之後可以查詢。"
}

func (t *SaveMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_text":      map[string]any{"type": "string", "description": "使用者說的內容"},
			"assistant_text": map[string]any{"type": "string", "description": "要記住的回應或註記"},
		},
		"required": []string{"user_text", "assistant_text"},
	}
}

func (t *SaveMemoryTool) Call(ctx context.Context, args Args) (string, error) {
	id, ok := memory.IdentityFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("save_conversation_memory: no caller identity in context")
	}
	userText := strings.TrimSpace(args.String("user_text"))
	assistantText := strings.TrimSpace(args.String("assistant_text"))
	if userText == "" || assistantText == "" {
		return "", fmt.Errorf("save_conversation_memory: user_text and assistant_text are required")
	}
	if err := t.store.Append(ctx, id, userText, assistantText); err != nil {
		return "", fmt.Errorf("save_conversation_memory: %w", err)
	}
	return "已記下這段對話。", nil
}
