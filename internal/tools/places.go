package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PlacesTool searches restaurants through the places collaborator and
// renders a short ranked list with map links.
type PlacesTool struct {
	baseURL    string
	apiKey     string
	maxResults int
	client     *http.Client
}

func NewPlacesTool(baseURL, apiKey string) *PlacesTool {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://places.googleapis.com"
	}
	return &PlacesTool{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: 5,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *PlacesTool) Name() string { return "search_places" }

func (t *PlacesTool) Description() string {
	return "搜尋餐廳並提供評分、地址與地圖連結。"
}

func (t *PlacesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":    map[string]any{"type": "string", "description": "餐廳或料理關鍵字"},
			"location": map[string]any{"type": "string", "description": "地區，例如 台北"},
		},
		"required": []string{"query"},
	}
}

type placesResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string  `json:"formattedAddress"`
		Rating           float64 `json:"rating"`
		UserRatingCount  int     `json:"userRatingCount"`
	} `json:"places"`
}

func (t *PlacesTool) Call(ctx context.Context, args Args) (string, error) {
	query := strings.TrimSpace(args.String("query"))
	if query == "" {
		return "", fmt.Errorf("search_places: query is required")
	}
	if t.apiKey == "" {
		return "餐廳搜尋服務尚未設定，請稍後再試。", nil
	}
	location := strings.TrimSpace(args.String("location"))
	if location == "" {
		location = "台灣"
	}

	payload, err := json.Marshal(map[string]any{
		"textQuery":    query + " " + location,
		"languageCode": "zh-TW",
		"maxResultCount": t.maxResults,
	})
	if err != nil {
		return "", fmt.Errorf("search_places: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("search_places: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", t.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.displayName,places.formattedAddress,places.rating,places.userRatingCount")

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search_places: search %q: %w", query, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return "", fmt.Errorf("search_places: status %d: %s", res.StatusCode, string(body))
	}

	var parsed placesResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("search_places: decode response: %w", err)
	}
	if len(parsed.Places) == 0 {
		return fmt.Sprintf("找不到「%s」相關的餐廳，換個關鍵字試試？", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "為你找到以下餐廳：\n")
	for i, p := range parsed.Places {
		if i >= t.maxResults {
			break
		}
		name := p.DisplayName.Text
		fmt.Fprintf(&b, "\n%d. %s", i+1, name)
		if p.Rating > 0 {
			fmt.Fprintf(&b, "（%.1f 分，%d 則評論）", p.Rating, p.UserRatingCount)
		}
		if p.FormattedAddress != "" {
			fmt.Fprintf(&b, "\n   地址：%s", p.FormattedAddress)
		}
		fmt.Fprintf(&b, "\n   地圖：https://www.google.com/maps/search/%s", url.QueryEscape(name))
	}
	return b.String(), nil
}
