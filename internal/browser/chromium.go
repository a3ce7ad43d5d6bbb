package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// mobileMaxWidth is the widest viewport emulated as a touch device
const mobileMaxWidth = 767

// Chromium launches Chrome-family browsers through chromedp
type Chromium struct {
	execPath string
}

// NewChromium returns a factory for the browser at execPath
func NewChromium(execPath string) *Chromium {
	return &Chromium{execPath: execPath}
}

// NewSession starts a dedicated browser process sized to the device
func (c *Chromium) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	d := opts.Device
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(opts.Headless, c.execPath, d.Width, d.Height)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser, so launch failures surface here
	err := chromedp.Run(browserCtx,
		emulation.SetDeviceMetricsOverride(int64(d.Width), int64(d.Height), 1, d.Width <= mobileMaxWidth),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrSessionSetup, err)
	}

	return &chromiumSession{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

// Close is a no-op; every session owns its own browser process
func (c *Chromium) Close() error {
	return nil
}

type chromiumSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

func (s *chromiumSession) Navigate(url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return nil
}

func (s *chromiumSession) WaitReady(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: body not present after %s", ErrReadinessTimeout, timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadinessTimeout, err)
	}
	return nil
}

func (s *chromiumSession) Metrics() (PageMetrics, error) {
	var m PageMetrics
	err := chromedp.Run(s.ctx, chromedp.Evaluate(metricsJS, &m))
	if err != nil {
		return PageMetrics{}, fmt.Errorf("%w: read page metrics: %w", ErrCapture, err)
	}
	return m, nil
}

func (s *chromiumSession) ScrollTo(offset int) error {
	err := chromedp.Run(s.ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, offset), nil))
	if err != nil {
		return fmt.Errorf("%w: scroll to %d: %w", ErrCapture, offset, err)
	}
	return nil
}

// CaptureFullPage returns a PNG of the whole document. Quality 100 makes
// chromedp encode PNG instead of JPEG.
func (s *chromiumSession) CaptureFullPage() ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(s.ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return buf, nil
}

func (s *chromiumSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
		s.allocCancel()
	})
	return s.closeErr
}

// metricsJS reads the document height the way most layouts report it;
// body and documentElement disagree depending on quirks mode.
const metricsJS = `(() => ({
	scrollHeight: Math.max(document.body.scrollHeight, document.documentElement.scrollHeight),
	viewportHeight: window.innerHeight
}))()`
