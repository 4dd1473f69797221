package linebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.line.me"

// Client talks to the platform messaging API: reply, push and the typing
// indicator.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

func NewClient(accessToken string) *Client {
	return &Client{
		baseURL:     defaultAPIBase,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the API host, used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Reply answers a webhook event through its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := map[string]any{
		"replyToken": replyToken,
		"messages": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// Push sends an unsolicited message to a user, group or room.
func (c *Client) Push(ctx context.Context, to, text string) error {
	payload := map[string]any{
		"to": to,
		"messages": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

// ShowLoading turns on the typing indicator for a direct chat. Group
// chats do not support it.
func (c *Client) ShowLoading(ctx context.Context, chatID string) error {
	payload := map[string]any{
		"chatId":         chatID,
		"loadingSeconds": 30,
	}
	return c.post(ctx, "/v2/bot/chat/loading/start", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return fmt.Errorf("post %s: status %d: %s", path, res.StatusCode, string(detail))
	}
	return nil
}
