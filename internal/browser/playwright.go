package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightEngine selects the playwright browser type
type PlaywrightEngine string

const (
	PlaywrightFirefox PlaywrightEngine = "firefox"
	PlaywrightWebKit  PlaywrightEngine = "webkit"
)

// Playwright launches Firefox or WebKit through playwright-go. The
// playwright driver process is started on first use and shared by every
// session of this factory until Close.
type Playwright struct {
	engine PlaywrightEngine

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywright returns a factory for the given engine
func NewPlaywright(engine PlaywrightEngine) *Playwright {
	return &Playwright{engine: engine}
}

func (p *Playwright) runtime() (*playwright.Playwright, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw != nil {
		return p.pw, nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	p.pw = pw
	return pw, nil
}

func (p *Playwright) browserType(pw *playwright.Playwright) (playwright.BrowserType, error) {
	switch p.engine {
	case PlaywrightFirefox:
		return pw.Firefox, nil
	case PlaywrightWebKit:
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unknown playwright engine %q", p.engine)
	}
}

// NewSession launches a browser with one page sized to the device. ctx
// bounds the launch only; playwright calls carry their own timeouts.
func (p *Playwright) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionSetup, err)
	}

	pw, err := p.runtime()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionSetup, err)
	}
	bt, err := p.browserType(pw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionSetup, err)
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: launch %s: %w", ErrSessionSetup, p.engine, err)
	}

	page, err := b.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: opts.Device.Width, Height: opts.Device.Height},
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: open page: %w", ErrSessionSetup, err)
	}

	return &playwrightSession{browser: b, page: page}, nil
}

// Close stops the shared playwright driver, if it was started
func (p *Playwright) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw == nil {
		return nil
	}
	err := p.pw.Stop()
	p.pw = nil
	return err
}

type playwrightSession struct {
	browser   playwright.Browser
	page      playwright.Page
	closeOnce sync.Once
	closeErr  error
}

func (s *playwrightSession) Navigate(url string) error {
	if _, err := s.page.Goto(url); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return nil
}

func (s *playwrightSession) WaitReady(timeout time.Duration) error {
	_, err := s.page.WaitForSelector("body", playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: body not present after %s", ErrReadinessTimeout, timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadinessTimeout, err)
	}
	return nil
}

func (s *playwrightSession) Metrics() (PageMetrics, error) {
	v, err := s.page.Evaluate(metricsJS)
	if err != nil {
		return PageMetrics{}, fmt.Errorf("%w: read page metrics: %w", ErrCapture, err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return PageMetrics{}, fmt.Errorf("%w: unexpected page metrics %T", ErrCapture, v)
	}
	return PageMetrics{
		ScrollHeight:   toInt(m["scrollHeight"]),
		ViewportHeight: toInt(m["viewportHeight"]),
	}, nil
}

func (s *playwrightSession) ScrollTo(offset int) error {
	if _, err := s.page.Evaluate(`y => window.scrollTo(0, y)`, offset); err != nil {
		return fmt.Errorf("%w: scroll to %d: %w", ErrCapture, offset, err)
	}
	return nil
}

func (s *playwrightSession) CaptureFullPage() ([]byte, error) {
	buf, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return buf, nil
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
	})
	return s.closeErr
}

// toInt converts a number decoded from a page evaluation
func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
