package types

import (
	"fmt"
	"strings"
	"time"
)

// Browser identifies a browser engine a test case runs in
type Browser string

const (
	BrowserChrome  Browser = "chrome"
	BrowserFirefox Browser = "firefox"
	BrowserEdge    Browser = "edge"
	BrowserSafari  Browser = "safari"
)

// Browsers lists every supported browser kind
var Browsers = []Browser{BrowserChrome, BrowserFirefox, BrowserEdge, BrowserSafari}

// ParseBrowser converts a browser name to a Browser, case-insensitively
func ParseBrowser(s string) (Browser, error) {
	b := Browser(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Browsers {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown browser %q (want one of chrome, firefox, edge, safari)", s)
}

func (b Browser) MarshalText() ([]byte, error) {
	return []byte(b), nil
}

func (b *Browser) UnmarshalText(text []byte) error {
	parsed, err := ParseBrowser(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// DeviceProfile is a named viewport size emulating a class of client device
type DeviceProfile struct {
	Name   string `json:"name" toml:"name"`
	Width  int    `json:"width" toml:"width"`
	Height int    `json:"height" toml:"height"`
}

func (d DeviceProfile) String() string {
	return fmt.Sprintf("%s (%dx%d)", d.Name, d.Width, d.Height)
}

// TestCase is one (URL, browser, device) combination to execute
type TestCase struct {
	URL     string        `json:"url"`
	Browser Browser       `json:"browser"`
	Device  DeviceProfile `json:"device"`
}

// Status is the result of executing a test case
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the recorded result of executing one TestCase.
// ArtifactPath is set iff Status is StatusSuccess, Error iff StatusFailure.
type Outcome struct {
	TestCase
	Status       Status `json:"status"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// Succeeded reports whether the outcome recorded a capture
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// RunRecord holds all outcomes from one pipeline invocation
type RunRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Failed returns the number of failed outcomes in the run
func (r RunRecord) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// History is every persisted RunRecord, most recent first.
// Order is insertion order; it is never sorted by timestamp.
type History []RunRecord

// Prepend returns a new History with run in front of h
func (h History) Prepend(run RunRecord) History {
	out := make(History, 0, len(h)+1)
	out = append(out, run)
	return append(out, h...)
}
