// Package browser wraps a single shared Chrome session behind the small
// driver surface the booking tools use.
package browser

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the Chrome session is launched.
type Config struct {
	Headless   bool
	NavTimeout time.Duration
}

// Driver owns one lazily-started browser and one page. Tool calls are
// serialized; the booking flow depends on the page state between calls.
type Driver struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

func NewDriver(cfg Config) *Driver {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	return &Driver{cfg: cfg}
}

// Start launches Chrome eagerly. Callers may skip it; every operation
// starts the session on first use.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureStartedLocked(ctx)
}

func (d *Driver) ensureStartedLocked(ctx context.Context) error {
	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		log.Printf("browser: stale connection, relaunching")
		_ = d.browser.Close()
		d.browser = nil
		d.page = nil
	}

	controlURL, err := launcher.New().Headless(d.cfg.Headless).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("open page: %w", err)
	}

	d.browser = browser
	d.page = page
	log.Printf("browser: session started (headless=%v)", d.cfg.Headless)
	return nil
}

func (d *Driver) currentPage(ctx context.Context) (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureStartedLocked(ctx); err != nil {
		return nil, err
	}
	return d.page, nil
}

// Navigate opens a URL and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	page, err := d.currentPage(ctx)
	if err != nil {
		return err
	}
	p := page.Context(ctx).Timeout(d.cfg.NavTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Eval runs a JavaScript expression on the current page and returns the
// result rendered as text.
func (d *Driver) Eval(ctx context.Context, script string) (string, error) {
	page, err := d.currentPage(ctx)
	if err != nil {
		return "", err
	}
	res, err := page.Context(ctx).Eval("() => " + script)
	if err != nil {
		return "", fmt.Errorf("eval: %w", err)
	}
	v := res.Value
	if v.Nil() {
		return "", nil
	}
	if s, ok := v.Val().(string); ok {
		return s, nil
	}
	return v.String(), nil
}

// Click clicks the first element matching the selector.
func (d *Driver) Click(ctx context.Context, selector string) error {
	page, err := d.currentPage(ctx)
	if err != nil {
		return err
	}
	el, err := page.Context(ctx).Timeout(d.cfg.NavTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Screenshot captures the viewport into a temp file and returns its path.
func (d *Driver) Screenshot(ctx context.Context) (string, error) {
	page, err := d.currentPage(ctx)
	if err != nil {
		return "", err
	}
	data, err := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("booking_%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// Close shuts the browser down.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
		d.page = nil
	}
	return err
}
