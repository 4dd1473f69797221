package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tsengs/familyagent/internal/memory"
)

func TestSummarizeToolTruncatesContent(t *testing.T) {
	long := strings.Repeat("內", 1500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fc-key" {
			t.Errorf("auth = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"markdown": long},
		})
	}))
	defer srv.Close()

	tool := NewSummarizeTool(srv.URL, "fc-key")
	got, err := tool.Call(context.Background(), Args{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.HasPrefix(got, "網站內容摘要：") {
		t.Fatalf("result = %q, want summary prefix", got[:30])
	}
	body := strings.TrimPrefix(got, "網站內容摘要：\n")
	if n := utf8.RuneCountInString(body); n != 1003 { // 1000 chars + "..."
		t.Fatalf("summary length = %d runes, want 1003", n)
	}
}

func TestSummarizeToolScrapeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	tool := NewSummarizeTool(srv.URL, "fc-key")
	got, err := tool.Call(context.Background(), Args{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "無法抓取網站內容" {
		t.Fatalf("result = %q", got)
	}
}

func TestSummarizeToolRequiresURL(t *testing.T) {
	tool := NewSummarizeTool("", "fc-key")
	if _, err := tool.Call(context.Background(), Args{}); err == nil {
		t.Fatal("Call() = nil, want error without url")
	}
}

func TestPlacesToolFormatsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/places:searchText" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Goog-Api-Key"); got != "places-key" {
			t.Errorf("api key header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{
				{
					"displayName":      map[string]any{"text": "阿宏拉麵"},
					"formattedAddress": "台北市大安區某路1號",
					"rating":           4.5,
					"userRatingCount":  321,
				},
			},
		})
	}))
	defer srv.Close()

	tool := NewPlacesTool(srv.URL, "places-key")
	got, err := tool.Call(context.Background(), Args{"query": "拉麵"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	for _, want := range []string{"阿宏拉麵", "4.5", "321", "台北市大安區某路1號", "https://www.google.com/maps/search/"} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q:\n%s", want, got)
		}
	}
}

func TestPlacesToolNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"places": []any{}})
	}))
	defer srv.Close()

	tool := NewPlacesTool(srv.URL, "places-key")
	got, err := tool.Call(context.Background(), Args{"query": "不存在的料理"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(got, "找不到") {
		t.Fatalf("result = %q", got)
	}
}

func TestMemoryToolsRequireIdentity(t *testing.T) {
	store := memory.NewInMemoryStore()
	search := NewSearchMemoryTool(store, 6)
	save := NewSaveMemoryTool(store)

	if _, err := search.Call(context.Background(), Args{}); err == nil {
		t.Error("search without identity = nil, want error")
	}
	if _, err := save.Call(context.Background(), Args{"user_text": "a", "assistant_text": "b"}); err == nil {
		t.Error("save without identity = nil, want error")
	}
}

func TestMemoryToolsRoundTrip(t *testing.T) {
	store := memory.NewInMemoryStore()
	id := memory.Identity{UserID: "U1", GroupID: "G1"}
	ctx := memory.WithIdentity(context.Background(), id)

	save := NewSaveMemoryTool(store)
	if _, err := save.Call(ctx, Args{"user_text": "週六去露營", "assistant_text": "好，我記下了"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	search := NewSearchMemoryTool(store, 6)
	got, err := search.Call(ctx, Args{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(got, "週六去露營") {
		t.Fatalf("search result = %q", got)
	}

	// A different identity must not see these records.
	otherCtx := memory.WithIdentity(context.Background(), memory.Identity{UserID: "U2"})
	got, err = search.Call(otherCtx, Args{})
	if err != nil {
		t.Fatalf("search other: %v", err)
	}
	if strings.Contains(got, "週六去露營") {
		t.Fatal("records leaked across identities")
	}
}

// fakeDriver records the booking flow steps.
type fakeDriver struct {
	navigated []string
	scripts   []string
	slots     string
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) Eval(_ context.Context, script string) (string, error) {
	d.scripts = append(d.scripts, script)
	if strings.Contains(script, "time-slot:not(.disabled)") {
		return d.slots, nil
	}
	return "ok", nil
}

func (d *fakeDriver) Click(context.Context, string) error { return nil }

func (d *fakeDriver) Screenshot(context.Context) (string, error) {
	return "/tmp/booking_test.png", nil
}

func TestBookingToolHappyPath(t *testing.T) {
	driver := &fakeDriver{slots: "17:00\n17:30\n18:00"}
	tool := NewBookingTool(driver)

	got, err := tool.Call(context.Background(), Args{
		"url":        "https://booking.example.com/r/1",
		"party_size": 4,
		"date":       "2025-07-31",
		"time":       "17:30",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(driver.navigated) != 1 || driver.navigated[0] != "https://booking.example.com/r/1" {
		t.Fatalf("navigated = %v", driver.navigated)
	}
	for _, want := range []string{"4 人", "2025-07-31", "17:30", "/tmp/booking_test.png"} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q: %s", want, got)
		}
	}
	// party size and date must be applied before slots are read
	if len(driver.scripts) < 3 {
		t.Fatalf("scripts = %d, want party+date+slots at minimum", len(driver.scripts))
	}
}

func TestBookingToolNoSlots(t *testing.T) {
	driver := &fakeDriver{slots: ""}
	tool := NewBookingTool(driver)

	got, err := tool.Call(context.Background(), Args{
		"url":  "https://booking.example.com/r/1",
		"date": "2025-07-31",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(got, "沒有可訂的時段") {
		t.Fatalf("result = %q", got)
	}
}

func TestArgsHelpers(t *testing.T) {
	a := Args{"s": "hello", "f": float64(7), "n": 3, "str": "12", "bad": "x"}
	if a.String("s") != "hello" || a.String("missing") != "" {
		t.Error("String helper")
	}
	if a.Int("f") != 7 || a.Int("n") != 3 || a.Int("str") != 12 {
		t.Error("Int helper numeric forms")
	}
	if a.Int("bad") != 0 || a.Int("missing") != 0 {
		t.Error("Int helper fallbacks")
	}
}
