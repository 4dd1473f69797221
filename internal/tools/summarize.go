package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const summaryMaxChars = 1000

// SummarizeTool fetches a page through the scraping collaborator and
// returns a truncated markdown summary of its main content.
type SummarizeTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSummarizeTool(baseURL, apiKey string) *SummarizeTool {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	return &SummarizeTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *SummarizeTool) Name() string { return "summarize_url" }

func (t *SummarizeTool) Description() string {
	return "抓取網址內容並提供摘要。"
}

func (t *SummarizeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "要摘要的網址"},
		},
		"required": []string{"url"},
	}
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

func (t *SummarizeTool) Call(ctx context.Context, args Args) (string, error) {
	url := strings.TrimSpace(args.String("url"))
	if url == "" {
		return "", fmt.Errorf("summarize_url: url is required")
	}
	if t.apiKey == "" {
		return "摘要服務尚未設定，請稍後再試。", nil
	}

	payload, err := json.Marshal(map[string]any{
		"url":             url,
		"formats":         []string{"markdown"},
		"onlyMainContent": true,
	})
	if err != nil {
		return "", fmt.Errorf("summarize_url: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("summarize_url: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize_url: fetch %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return "", fmt.Errorf("summarize_url: scrape status %d: %s", res.StatusCode, string(body))
	}

	var parsed scrapeResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("summarize_url: decode response: %w", err)
	}
	if !parsed.Success || strings.TrimSpace(parsed.Data.Markdown) == "" {
		return "無法抓取網站內容", nil
	}

	content := parsed.Data.Markdown
	if utf8.RuneCountInString(content) > summaryMaxChars {
		content = string([]rune(content)[:summaryMaxChars]) + "..."
	}
	return "網站內容摘要：\n" + content, nil
}
