// Package browser defines the session capability the case runner drives and
// the driver-backed implementations for each supported browser kind.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// Failure classes a session reports. Drivers wrap the underlying driver
// error with one of these so callers can tell the stages apart.
var (
	ErrSessionSetup     = errors.New("session setup failed")
	ErrNavigation       = errors.New("navigation failed")
	ErrReadinessTimeout = errors.New("page not ready")
	ErrCapture          = errors.New("capture failed")
)

// PageMetrics describes the scrollable geometry of the loaded page
type PageMetrics struct {
	ScrollHeight   int `json:"scrollHeight"`
	ViewportHeight int `json:"viewportHeight"`
}

// Session is one live browser scoped to a single test case.
// Close must be safe to call more than once.
type Session interface {
	Navigate(url string) error
	WaitReady(timeout time.Duration) error
	Metrics() (PageMetrics, error)
	ScrollTo(offset int) error
	CaptureFullPage() ([]byte, error)
	Close() error
}

// SessionOptions configures a new session
type SessionOptions struct {
	Device   types.DeviceProfile
	Headless bool
}

// Factory creates sessions for one browser kind
type Factory interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// Registry maps each browser kind to the factory that serves it
type Registry map[types.Browser]Factory

// Factory returns the factory registered for b
func (r Registry) Factory(b types.Browser) (Factory, error) {
	f, ok := r[b]
	if !ok {
		return nil, fmt.Errorf("%w: no driver registered for browser %q", ErrSessionSetup, b)
	}
	return f, nil
}

// Close releases every factory's shared resources
func (r Registry) Close() error {
	var errs []error
	for b, f := range r {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s driver: %w", b, err))
		}
	}
	return errors.Join(errs...)
}

// DriverConfig selects executables for the chromium-based browsers
type DriverConfig struct {
	ChromePath string
	EdgePath   string
}

// NewRegistry returns the default registry: chromedp drives Chrome and
// Edge, playwright drives Firefox and Safari (WebKit).
func NewRegistry(cfg DriverConfig) Registry {
	return Registry{
		types.BrowserChrome:  NewChromium(cfg.ChromePath),
		types.BrowserEdge:    NewChromium(cfg.EdgePath),
		types.BrowserFirefox: NewPlaywright(PlaywrightFirefox),
		types.BrowserSafari:  NewPlaywright(PlaywrightWebKit),
	}
}
