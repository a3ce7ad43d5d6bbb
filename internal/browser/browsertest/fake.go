// Package browsertest provides in-memory browser sessions for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ibeckermayer/shotgrid/internal/browser"
)

// PNG stands in for screenshot bytes; only the signature matters to callers
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Script decides how a fake session behaves for one URL
type Script struct {
	NavigateErr error
	ReadyErr    error
	CaptureErr  error
	PanicOn     string // "navigate", "ready" or "capture"
	Metrics     browser.PageMetrics
	Image       []byte
}

// Factory is a browser.Factory whose sessions follow Scripts
type Factory struct {
	SetupErr error
	Default  Script
	Scripts  map[string]Script // keyed by URL

	mu       sync.Mutex
	sessions []*Session
	closed   bool
}

// NewFactory returns a factory whose sessions succeed with a one-screen
// page of the given height
func NewFactory(pageHeight, viewportHeight int) *Factory {
	return &Factory{
		Default: Script{
			Metrics: browser.PageMetrics{ScrollHeight: pageHeight, ViewportHeight: viewportHeight},
			Image:   PNG,
		},
		Scripts: make(map[string]Script),
	}
}

func (f *Factory) NewSession(ctx context.Context, opts browser.SessionOptions) (browser.Session, error) {
	if f.SetupErr != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrSessionSetup, f.SetupErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrSessionSetup, err)
	}

	s := &Session{factory: f, Opts: opts}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Sessions returns every session created so far
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Closed reports whether the factory itself was closed
func (f *Factory) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Factory) script(url string) Script {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Scripts[url]; ok {
		return s
	}
	return f.Default
}

// Session records the calls the runner makes
type Session struct {
	Opts browser.SessionOptions

	factory *Factory
	script  Script

	mu       sync.Mutex
	url      string
	scrolls  []int
	closes   int
	waitedOn time.Duration
}

func (s *Session) Navigate(url string) error {
	s.mu.Lock()
	s.url = url
	s.script = s.factory.script(url)
	s.mu.Unlock()

	if s.script.PanicOn == "navigate" {
		panic("navigate exploded")
	}
	if s.script.NavigateErr != nil {
		return fmt.Errorf("%w: %s: %w", browser.ErrNavigation, url, s.script.NavigateErr)
	}
	return nil
}

func (s *Session) WaitReady(timeout time.Duration) error {
	s.mu.Lock()
	s.waitedOn = timeout
	s.mu.Unlock()

	if s.script.PanicOn == "ready" {
		panic("ready exploded")
	}
	if s.script.ReadyErr != nil {
		return fmt.Errorf("%w: %w", browser.ErrReadinessTimeout, s.script.ReadyErr)
	}
	return nil
}

func (s *Session) Metrics() (browser.PageMetrics, error) {
	return s.script.Metrics, nil
}

func (s *Session) ScrollTo(offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls = append(s.scrolls, offset)
	return nil
}

func (s *Session) CaptureFullPage() ([]byte, error) {
	if s.script.PanicOn == "capture" {
		panic("capture exploded")
	}
	if s.script.CaptureErr != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrCapture, s.script.CaptureErr)
	}
	return s.script.Image, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// URL returns the URL the session navigated to
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Scrolls returns the scroll offsets in call order
func (s *Session) Scrolls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.scrolls...)
}

// Closes returns how many times Close was called
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// ReadyTimeout returns the timeout passed to WaitReady
func (s *Session) ReadyTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitedOn
}
