// Package runner executes test cases against browser sessions and records
// one outcome per case.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/shotgrid/internal/browser"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

// Factories resolves the session factory for a browser kind.
// browser.Registry implements it.
type Factories interface {
	Factory(b types.Browser) (browser.Factory, error)
}

// Options controls how each case is captured
type Options struct {
	Headless      bool
	ReadyTimeout  time.Duration
	SettleDelay   time.Duration
	CaseTimeout   time.Duration // zero means unbounded
	Concurrency   int
	ScreenshotDir string
}

// RunInfo identifies the run a case belongs to; it feeds artifact naming
type RunInfo struct {
	ID        string
	Timestamp time.Time
}

// Runner captures full-page screenshots for test cases
type Runner struct {
	factories Factories
	opts      Options
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a new runner
func New(factories Factories, opts Options, logger zerolog.Logger) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		factories: factories,
		opts:      opts,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Run executes every case and returns their outcomes in case order. With
// Concurrency 1 cases run strictly one after another. A failing case never
// stops the others.
func (r *Runner) Run(ctx context.Context, run RunInfo, cases []types.TestCase) []types.Outcome {
	outcomes := make([]types.Outcome, len(cases))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, tc := range cases {
		g.Go(func() error {
			outcomes[i] = r.RunCase(ctx, run, tc)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// RunCase executes one case in its own session. Every error, including a
// panic in a driver, is recorded as a failure outcome.
func (r *Runner) RunCase(ctx context.Context, run RunInfo, tc types.TestCase) (out types.Outcome) {
	start := time.Now()
	out.TestCase = tc

	logger := r.logger.With().
		Str("url", tc.URL).
		Str("browser", string(tc.Browser)).
		Str("device", tc.Device.Name).
		Logger()
	logger.Debug().Msg("Running case")

	defer func() {
		if p := recover(); p != nil {
			out.Status = types.StatusFailure
			out.ArtifactPath = ""
			out.Error = fmt.Sprintf("panic: %v", p)
		}
		out.DurationMS = time.Since(start).Milliseconds()

		if out.Succeeded() {
			logger.Info().Str("artifact", out.ArtifactPath).Int64("duration_ms", out.DurationMS).Msg("Captured")
		} else {
			logger.Warn().Str("error", out.Error).Int64("duration_ms", out.DurationMS).Msg("Case failed")
		}
	}()

	path, err := r.capture(ctx, run, tc, logger)
	if err != nil {
		out.Status = types.StatusFailure
		out.Error = err.Error()
		return out
	}

	out.Status = types.StatusSuccess
	out.ArtifactPath = path
	return out
}

// capture owns the session for one case. The session is closed on every
// path once it exists; a failed setup leaves nothing to close.
func (r *Runner) capture(ctx context.Context, run RunInfo, tc types.TestCase, logger zerolog.Logger) (string, error) {
	if r.opts.CaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CaseTimeout)
		defer cancel()
	}

	factory, err := r.factories.Factory(tc.Browser)
	if err != nil {
		return "", err
	}

	sess, err := factory.NewSession(ctx, browser.SessionOptions{
		Device:   tc.Device,
		Headless: r.opts.Headless,
	})
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("%w: driver returned no session", browser.ErrSessionSetup)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	if err := sess.Navigate(tc.URL); err != nil {
		return "", err
	}
	if err := sess.WaitReady(r.opts.ReadyTimeout); err != nil {
		return "", err
	}

	img, err := r.fullPage(ctx, sess, tc.Device)
	if err != nil {
		return "", err
	}

	path := ArtifactPath(r.opts.ScreenshotDir, run, tc)
	if err := writeArtifact(path, img); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", browser.ErrCapture, path, err)
	}
	return path, nil
}

// fullPage scrolls through the page one viewport at a time so lazy content
// loads, returns to the top and takes a single full-page capture.
func (r *Runner) fullPage(ctx context.Context, sess browser.Session, device types.DeviceProfile) ([]byte, error) {
	m, err := sess.Metrics()
	if err != nil {
		return nil, err
	}

	step := m.ViewportHeight
	if step <= 0 {
		step = device.Height
	}
	if step <= 0 {
		step = m.ScrollHeight
	}

	for offset := 0; offset < m.ScrollHeight; offset += step {
		if err := sess.ScrollTo(offset); err != nil {
			return nil, err
		}
		if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
			return nil, fmt.Errorf("%w: %w", browser.ErrCapture, err)
		}
	}

	if err := sess.ScrollTo(0); err != nil {
		return nil, err
	}

	img, err := sess.CaptureFullPage()
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: empty screenshot", browser.ErrCapture)
	}
	return img, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
