package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/shotgrid/internal/browser"
	"github.com/ibeckermayer/shotgrid/internal/browser/browsertest"
	"github.com/ibeckermayer/shotgrid/internal/matrix"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

var desktop = types.DeviceProfile{Name: "desktop", Width: 1920, Height: 1080}

func newTestRunner(t *testing.T, reg browser.Registry, concurrency int) *Runner {
	t.Helper()
	r := New(reg, Options{
		Headless:      true,
		ReadyTimeout:  10 * time.Second,
		Concurrency:   concurrency,
		ScreenshotDir: filepath.Join(t.TempDir(), "screenshots"),
	}, zerolog.Nop())
	r.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return r
}

func testRun() RunInfo {
	return RunInfo{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Timestamp: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
}

func TestRunCase_Success(t *testing.T) {
	chrome := browsertest.NewFactory(1080, 1080)
	r := newTestRunner(t, browser.Registry{types.BrowserChrome: chrome}, 1)

	tc := types.TestCase{URL: "https://example.com", Browser: types.BrowserChrome, Device: desktop}
	out := r.RunCase(context.Background(), testRun(), tc)

	require.Equal(t, types.StatusSuccess, out.Status, out.Error)
	assert.Empty(t, out.Error)
	assert.Equal(t, tc, out.TestCase)

	pattern := regexp.MustCompile(`screenshots/chrome/desktop/example\.com_[0-9a-f]{8}_20261016-093000_0f8fad5b\.png$`)
	assert.Regexp(t, pattern, filepath.ToSlash(out.ArtifactPath))

	data, err := os.ReadFile(out.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, browsertest.PNG, data)

	sessions := chrome.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].Closes())
	assert.Equal(t, desktop, sessions[0].Opts.Device)
	assert.True(t, sessions[0].Opts.Headless)
	assert.Equal(t, 10*time.Second, sessions[0].ReadyTimeout())
}

func TestRunCase_ScrollsOneViewportAtATime(t *testing.T) {
	chrome := browsertest.NewFactory(2500, 1000)
	r := newTestRunner(t, browser.Registry{types.BrowserChrome: chrome}, 1)

	var slept int
	r.opts.SettleDelay = 500 * time.Millisecond
	r.sleep = func(ctx context.Context, d time.Duration) error {
		assert.Equal(t, 500*time.Millisecond, d)
		slept++
		return nil
	}

	tc := types.TestCase{URL: "https://example.com/long", Browser: types.BrowserChrome, Device: desktop}
	out := r.RunCase(context.Background(), testRun(), tc)
	require.True(t, out.Succeeded(), out.Error)

	sessions := chrome.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, []int{0, 1000, 2000, 0}, sessions[0].Scrolls())
	assert.Equal(t, 3, slept)
}

func TestRunCase_Failures(t *testing.T) {
	tests := []struct {
		name      string
		script    browsertest.Script
		wantErr   error
		wantInMsg string
	}{
		{
			name:      "navigation error",
			script:    browsertest.Script{NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
			wantErr:   browser.ErrNavigation,
			wantInMsg: "ERR_NAME_NOT_RESOLVED",
		},
		{
			name:      "readiness timeout",
			script:    browsertest.Script{ReadyErr: errors.New("deadline exceeded")},
			wantErr:   browser.ErrReadinessTimeout,
			wantInMsg: "deadline exceeded",
		},
		{
			name:      "capture error",
			script:    browsertest.Script{CaptureErr: errors.New("target closed")},
			wantErr:   browser.ErrCapture,
			wantInMsg: "target closed",
		},
		{
			name:      "empty screenshot",
			script:    browsertest.Script{Metrics: browser.PageMetrics{ScrollHeight: 10, ViewportHeight: 10}},
			wantErr:   browser.ErrCapture,
			wantInMsg: "empty screenshot",
		},
		{
			name:      "panic in driver",
			script:    browsertest.Script{PanicOn: "navigate"},
			wantInMsg: "panic: navigate exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chrome := browsertest.NewFactory(1080, 1080)
			chrome.Scripts["https://broken.example"] = tt.script
			r := newTestRunner(t, browser.Registry{types.BrowserChrome: chrome}, 1)

			tc := types.TestCase{URL: "https://broken.example", Browser: types.BrowserChrome, Device: desktop}
			out := r.RunCase(context.Background(), testRun(), tc)

			assert.Equal(t, types.StatusFailure, out.Status)
			assert.Empty(t, out.ArtifactPath)
			assert.NotEmpty(t, out.Error)
			assert.Contains(t, out.Error, tt.wantInMsg)
			if tt.wantErr != nil {
				assert.Contains(t, out.Error, tt.wantErr.Error())
			}

			sessions := chrome.Sessions()
			require.Len(t, sessions, 1)
			assert.Equal(t, 1, sessions[0].Closes(), "session must be closed exactly once")
		})
	}
}

func TestRunCase_SetupFailureClosesNothing(t *testing.T) {
	firefox := browsertest.NewFactory(1080, 1080)
	firefox.SetupErr = errors.New("geckodriver not found")
	r := newTestRunner(t, browser.Registry{types.BrowserFirefox: firefox}, 1)

	tc := types.TestCase{URL: "https://example.com", Browser: types.BrowserFirefox, Device: desktop}
	out := r.RunCase(context.Background(), testRun(), tc)

	assert.Equal(t, types.StatusFailure, out.Status)
	assert.Contains(t, out.Error, browser.ErrSessionSetup.Error())
	assert.Contains(t, out.Error, "geckodriver not found")
	assert.Empty(t, firefox.Sessions())
}

func TestRunCase_UnregisteredBrowser(t *testing.T) {
	r := newTestRunner(t, browser.Registry{}, 1)

	tc := types.TestCase{URL: "https://example.com", Browser: types.BrowserSafari, Device: desktop}
	out := r.RunCase(context.Background(), testRun(), tc)

	assert.Equal(t, types.StatusFailure, out.Status)
	assert.Contains(t, out.Error, `no driver registered for browser "safari"`)
}

func TestRun_OneOutcomePerCaseInOrder(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		chrome := browsertest.NewFactory(1080, 1080)
		chrome.Scripts["https://b.example"] = browsertest.Script{NavigateErr: errors.New("connection refused")}
		edge := browsertest.NewFactory(1080, 1080)
		r := newTestRunner(t, browser.Registry{
			types.BrowserChrome: chrome,
			types.BrowserEdge:   edge,
		}, concurrency)

		cases := matrix.Generate(
			[]string{"https://a.example", "https://b.example", "https://c.example"},
			[]types.Browser{types.BrowserChrome, types.BrowserEdge},
			[]types.DeviceProfile{desktop, {Name: "mobile", Width: 375, Height: 812}},
		)
		outcomes := r.Run(context.Background(), testRun(), cases)

		require.Len(t, outcomes, len(cases))
		for i := range cases {
			assert.Equal(t, cases[i], outcomes[i].TestCase)
			if cases[i].URL == "https://b.example" && cases[i].Browser == types.BrowserChrome {
				assert.Equal(t, types.StatusFailure, outcomes[i].Status)
			} else {
				assert.Equal(t, types.StatusSuccess, outcomes[i].Status, outcomes[i].Error)
			}
		}

		for _, s := range append(chrome.Sessions(), edge.Sessions()...) {
			assert.Equal(t, 1, s.Closes())
		}
		assert.Len(t, chrome.Sessions(), 6)
		assert.Len(t, edge.Sessions(), 6)
	}
}

func TestRun_EmptyMatrix(t *testing.T) {
	r := newTestRunner(t, browser.Registry{}, 1)
	outcomes := r.Run(context.Background(), testRun(), nil)
	assert.Empty(t, outcomes)
}

func TestRun_CanceledContextStillRecordsEveryCase(t *testing.T) {
	chrome := browsertest.NewFactory(1080, 1080)
	r := newTestRunner(t, browser.Registry{types.BrowserChrome: chrome}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cases := matrix.Generate([]string{"https://a.example", "https://b.example"}, []types.Browser{types.BrowserChrome}, []types.DeviceProfile{desktop})
	outcomes := r.Run(ctx, testRun(), cases)

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, types.StatusFailure, o.Status)
		assert.Contains(t, o.Error, context.Canceled.Error())
	}
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com", "example.com"},
		{"https://example.com/", "example.com"},
		{"http://www.github.com/foo/bar?x=1&y=2", "www.github.com_foo_bar_x_1_y_2"},
		{"https://host:8443/a b", "host_8443_a_b"},
		{"https://", "page"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}

func TestArtifactPath_DistinctPerRun(t *testing.T) {
	tc := types.TestCase{URL: "https://example.com", Browser: types.BrowserChrome, Device: desktop}
	ts := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	a := ArtifactPath("shots", RunInfo{ID: "aaaaaaaa-1111", Timestamp: ts}, tc)
	b := ArtifactPath("shots", RunInfo{ID: "bbbbbbbb-2222", Timestamp: ts}, tc)

	sum := sha256.Sum256([]byte(tc.URL))
	name := "example.com_" + hex.EncodeToString(sum[:4]) + "_20261016-093000_aaaaaaaa.png"
	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Join("shots", "chrome", "desktop", name), a)
	assert.Equal(t, a, ArtifactPath("shots", RunInfo{ID: "aaaaaaaa-1111", Timestamp: ts}, tc))
}

func TestArtifactPath_DistinctPerCase(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("x", 200)
	tests := []struct {
		name string
		a, b types.TestCase
	}{
		{
			name: "query vs path",
			a:    types.TestCase{URL: "https://example.com/a?b", Browser: types.BrowserChrome, Device: desktop},
			b:    types.TestCase{URL: "https://example.com/a/b", Browser: types.BrowserChrome, Device: desktop},
		},
		{
			name: "scheme only",
			a:    types.TestCase{URL: "https://example.com/a/b", Browser: types.BrowserChrome, Device: desktop},
			b:    types.TestCase{URL: "http://example.com/a/b", Browser: types.BrowserChrome, Device: desktop},
		},
		{
			name: "long shared prefix",
			a:    types.TestCase{URL: long + "/one", Browser: types.BrowserChrome, Device: desktop},
			b:    types.TestCase{URL: long + "/two", Browser: types.BrowserChrome, Device: desktop},
		},
		{
			name: "device names differing in punctuation",
			a:    types.TestCase{URL: "https://example.com", Browser: types.BrowserChrome, Device: types.DeviceProfile{Name: "my device", Width: 800, Height: 600}},
			b:    types.TestCase{URL: "https://example.com", Browser: types.BrowserChrome, Device: types.DeviceProfile{Name: "my_device", Width: 800, Height: 600}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, ArtifactPath("shots", testRun(), tt.a), ArtifactPath("shots", testRun(), tt.b))
		})
	}
}

func TestRun_EveryCaseGetsItsOwnFile(t *testing.T) {
	chrome := browsertest.NewFactory(1080, 1080)
	r := newTestRunner(t, browser.Registry{types.BrowserChrome: chrome}, 1)

	long := "https://example.com/" + strings.Repeat("x", 200)
	cases := matrix.Generate(
		[]string{"https://example.com/a?b", "https://example.com/a/b", "http://example.com/a/b", long + "/one", long + "/two"},
		[]types.Browser{types.BrowserChrome},
		[]types.DeviceProfile{desktop},
	)
	outcomes := r.Run(context.Background(), RunInfo{ID: "abcdef12", Timestamp: time.Unix(0, 0)}, cases)

	paths := make(map[string]string)
	for _, o := range outcomes {
		require.Equal(t, types.StatusSuccess, o.Status, o.Error)
		prev, dup := paths[o.ArtifactPath]
		assert.False(t, dup, "%q and %q share %s", prev, o.URL, o.ArtifactPath)
		paths[o.ArtifactPath] = o.URL
		assert.FileExists(t, o.ArtifactPath)
	}
	assert.Len(t, paths, len(cases))
}
