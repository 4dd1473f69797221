package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BrowserDriver is the slice of a real browser session the tools need.
// The rod-backed implementation lives in internal/browser.
type BrowserDriver interface {
	Navigate(ctx context.Context, url string) error
	Eval(ctx context.Context, script string) (string, error)
	Click(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) (string, error)
}

// NavigateTool opens a page in the shared browser session.
type NavigateTool struct {
	driver BrowserDriver
}

func NewNavigateTool(driver BrowserDriver) *NavigateTool {
	return &NavigateTool{driver: driver}
}

func (t *NavigateTool) Name() string { return "browser_navigate" }

func (t *NavigateTool) Description() string {
	return "在瀏覽器中開啟指定網址。"
}

func (t *NavigateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "要開啟的網址"},
		},
		"required": []string{"url"},
	}
}

func (t *NavigateTool) Call(ctx context.Context, args Args) (string, error) {
	url := strings.TrimSpace(args.String("url"))
	if url == "" {
		return "", fmt.Errorf("browser_navigate: url is required")
	}
	if err := t.driver.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("browser_navigate: %w", err)
	}
	return "已開啟 " + url, nil
}

// EvaluateTool runs a JavaScript expression on the current page.
type EvaluateTool struct {
	driver BrowserDriver
}

func NewEvaluateTool(driver BrowserDriver) *EvaluateTool {
	return &EvaluateTool{driver: driver}
}

func (t *EvaluateTool) Name() string { return "browser_evaluate" }

func (t *EvaluateTool) Description() string {
	return "在目前頁面上執行 JavaScript 並回傳結果。"
}

func (t *EvaluateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{"type": "string", "description": "要執行的 JavaScript"},
		},
		"required": []string{"script"},
	}
}

func (t *EvaluateTool) Call(ctx context.Context, args Args) (string, error) {
	script := args.String("script")
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("browser_evaluate: script is required")
	}
	out, err := t.driver.Eval(ctx, script)
	if err != nil {
		return "", fmt.Errorf("browser_evaluate: %w", err)
	}
	if out == "" {
		out = "(no result)"
	}
	return out, nil
}

// ClickTool clicks the first element matching a CSS selector.
type ClickTool struct {
	driver BrowserDriver
}

func NewClickTool(driver BrowserDriver) *ClickTool {
	return &ClickTool{driver: driver}
}

func (t *ClickTool) Name() string { return "browser_click" }

func (t *ClickTool) Description() string {
	return "點擊頁面上符合 CSS selector 的元素。"
}

func (t *ClickTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": map[string]any{"type": "string", "description": "CSS selector"},
		},
		"required": []string{"selector"},
	}
}

func (t *ClickTool) Call(ctx context.Context, args Args) (string, error) {
	selector := strings.TrimSpace(args.String("selector"))
	if selector == "" {
		return "", fmt.Errorf("browser_click: selector is required")
	}
	if err := t.driver.Click(ctx, selector); err != nil {
		return "", fmt.Errorf("browser_click: %w", err)
	}
	return "已點擊 " + selector, nil
}

// ScreenshotTool captures the current page.
type ScreenshotTool struct {
	driver BrowserDriver
}

func NewScreenshotTool(driver BrowserDriver) *ScreenshotTool {
	return &ScreenshotTool{driver: driver}
}

func (t *ScreenshotTool) Name() string { return "browser_screenshot" }

func (t *ScreenshotTool) Description() string {
	return "擷取目前頁面的截圖。"
}

func (t *ScreenshotTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *ScreenshotTool) Call(ctx context.Context, _ Args) (string, error) {
	path, err := t.driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("browser_screenshot: %w", err)
	}
	return "截圖已儲存：" + path, nil
}

// BookingTool drives an inline-booking page end to end: open the page,
// set party size and date, pick the first available slot, and leave the
// session on the final confirmation form with a screenshot as evidence.
type BookingTool struct {
	driver BrowserDriver
	now    func() time.Time
}

func NewBookingTool(driver BrowserDriver) *BookingTool {
	return &BookingTool{driver: driver, now: time.Now}
}

func (t *BookingTool) Name() string { return "restaurant_booking" }

func (t *BookingTool) Description() string {
	return "在餐廳訂位頁面完成人數、日期與時段選擇，停在最後確認頁。"
}

func (t *BookingTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":        map[string]any{"type": "string", "description": "訂位頁面網址"},
			"party_size": map[string]any{"type": "integer", "description": "用餐人數"},
			"date":       map[string]any{"type": "string", "description": "日期 YYYY-MM-DD"},
			"time":       map[string]any{"type": "string", "description": "時間 HH:MM"},
		},
		"required": []string{"url"},
	}
}

func (t *BookingTool) Call(ctx context.Context, args Args) (string, error) {
	url := strings.TrimSpace(args.String("url"))
	if url == "" {
		return "", fmt.Errorf("restaurant_booking: url is required")
	}
	partySize := args.Int("party_size")
	if partySize <= 0 {
		partySize = 2
	}
	date := strings.TrimSpace(args.String("date"))
	if date == "" {
		date = t.now().AddDate(0, 0, 1).Format("2006-01-02")
	}
	wantTime := strings.TrimSpace(args.String("time"))

	if err := t.driver.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("restaurant_booking: open page: %w", err)
	}

	if _, err := t.driver.Eval(ctx, selectPartySizeScript(partySize)); err != nil {
		return "", fmt.Errorf("restaurant_booking: set party size: %w", err)
	}
	if _, err := t.driver.Eval(ctx, selectDateScript(date)); err != nil {
		return "", fmt.Errorf("restaurant_booking: set date: %w", err)
	}

	slots, err := t.driver.Eval(ctx, listSlotsScript)
	if err != nil {
		return "", fmt.Errorf("restaurant_booking: read time slots: %w", err)
	}
	slot := pickSlot(slots, wantTime)
	if slot == "" {
		return fmt.Sprintf("「%s」當天沒有可訂的時段，要不要換個日期？", date), nil
	}

	if _, err := t.driver.Eval(ctx, clickSlotScript(slot)); err != nil {
		return "", fmt.Errorf("restaurant_booking: pick slot %s: %w", slot, err)
	}
	if _, err := t.driver.Eval(ctx, clickBookingButtonScript); err != nil {
		return "", fmt.Errorf("restaurant_booking: open confirmation form: %w", err)
	}

	shot, err := t.driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("restaurant_booking: capture confirmation: %w", err)
	}

	return fmt.Sprintf("已選好 %d 人、%s %s 的訂位，停在確認頁等你填寫聯絡資料。截圖：%s",
		partySize, date, slot, shot), nil
}

// pickSlot matches the wanted clock time against the newline-separated
// slot list from the page, falling back to the first available slot.
func pickSlot(slots, want string) string {
	var available []string
	for _, s := range strings.Split(slots, "\n") {
		s = strings.TrimSpace(s)
		if s != "" {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		return ""
	}
	if want != "" {
		for _, s := range available {
			if strings.Contains(s, want) {
				return s
			}
		}
	}
	return available[0]
}

func selectPartySizeScript(n int) string {
	return fmt.Sprintf(`(() => {
  const sel = document.querySelector('select[name*="party"], select[name*="people"], select[id*="adult"]');
  if (!sel) return 'no party selector';
  sel.value = '%d';
  sel.dispatchEvent(new Event('change', {bubbles: true}));
  return 'ok';
})()`, n)
}

func selectDateScript(date string) string {
	return fmt.Sprintf(`(() => {
  const input = document.querySelector('input[type="date"], input[name*="date"]');
  if (!input) return 'no date input';
  input.value = '%s';
  input.dispatchEvent(new Event('change', {bubbles: true}));
  return 'ok';
})()`, date)
}

const listSlotsScript = `(() => {
  const nodes = document.querySelectorAll('.time-slot:not(.disabled), [data-time]:not([disabled])');
  return Array.from(nodes).map(n => n.getAttribute('data-time') || n.textContent.trim()).join('\n');
})()`

func clickSlotScript(slot string) string {
	return fmt.Sprintf(`(() => {
  const nodes = document.querySelectorAll('.time-slot, [data-time]');
  for (const n of nodes) {
    const label = n.getAttribute('data-time') || n.textContent.trim();
    if (label.includes('%s')) { n.click(); return 'ok'; }
  }
  return 'slot not found';
})()`, slot)
}

const clickBookingButtonScript = `(() => {
  const btn = document.querySelector('button[type="submit"], .booking-btn, button.reserve');
  if (!btn) return 'no booking button';
  btn.click();
  return 'ok';
})()`
