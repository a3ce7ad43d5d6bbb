package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// Config holds all application configuration
type Config struct {
	Version  int                   `toml:"version"`
	URLs     []string              `toml:"urls"`
	Browsers []types.Browser       `toml:"browsers"`
	Devices  []types.DeviceProfile `toml:"devices"`
	Capture  CaptureConfig         `toml:"capture"`
	Report   ReportConfig          `toml:"report"`
	Logging  LoggingConfig         `toml:"logging"`
}

type CaptureConfig struct {
	Headless      bool     `toml:"headless"`
	ReadyTimeout  Duration `toml:"ready_timeout"`
	SettleDelay   Duration `toml:"settle_delay"`
	CaseTimeout   Duration `toml:"case_timeout"` // zero means unbounded
	Concurrency   int      `toml:"concurrency"`
	ScreenshotDir string   `toml:"screenshot_dir"`
	ChromePath    string   `toml:"chrome_path"` // empty lets chromedp find Chrome
	EdgePath      string   `toml:"edge_path"`
}

type ReportConfig struct {
	Backend     string   `toml:"backend"` // "json" or "sqlite"
	HistoryPath string   `toml:"history_path"`
	OutputPath  string   `toml:"output_path"`
	Formats     []string `toml:"formats"` // "html" and/or "markdown"
	Title       string   `toml:"title"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Duration is a time.Duration written as a Go duration string ("10s", "500ms")
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		URLs: []string{
			"https://example.com",
			"https://example.org",
		},
		Browsers: []types.Browser{types.BrowserChrome, types.BrowserFirefox, types.BrowserEdge},
		Devices: []types.DeviceProfile{
			{Name: "desktop", Width: 1920, Height: 1080},
			{Name: "mobile", Width: 375, Height: 812},
		},
		Capture: CaptureConfig{
			Headless:      true,
			ReadyTimeout:  Duration{10 * time.Second},
			SettleDelay:   Duration{500 * time.Millisecond},
			Concurrency:   1,
			ScreenshotDir: "screenshots",
			EdgePath:      "microsoft-edge",
		},
		Report: ReportConfig{
			Backend:     BackendJSON,
			HistoryPath: "test_results.json",
			OutputPath:  "index.html",
			Formats:     []string{FormatHTML},
			Title:       "Screenshot Test Results",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "shotgrid"), nil
}

// ConfigPath returns the full path to the default config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from path. Settings missing from the file keep their
// defaults, except the url, browser and device lists which start empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.URLs, cfg.Browsers, cfg.Devices = nil, nil, nil

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown config keys %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to path, creating parent directories as needed
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Validate checks the values a run depends on. Empty url, browser or
// device lists are valid and yield an empty test matrix.
func (c *Config) Validate() error {
	var errs []error

	for _, b := range c.Browsers {
		if _, err := types.ParseBrowser(string(b)); err != nil {
			errs = append(errs, err)
		}
	}
	seen := make(map[string]bool)
	for _, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, errors.New("device with empty name"))
		}
		if d.Width <= 0 || d.Height <= 0 {
			errs = append(errs, fmt.Errorf("device %q: width and height must be positive, got %dx%d", d.Name, d.Width, d.Height))
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("duplicate device name %q", d.Name))
		}
		seen[d.Name] = true
	}
	if c.Capture.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("capture.concurrency must be at least 1, got %d", c.Capture.Concurrency))
	}
	if c.Capture.ReadyTimeout.Duration <= 0 {
		errs = append(errs, errors.New("capture.ready_timeout must be positive"))
	}
	if c.Capture.SettleDelay.Duration < 0 || c.Capture.CaseTimeout.Duration < 0 {
		errs = append(errs, errors.New("capture durations must not be negative"))
	}
	if c.Capture.ScreenshotDir == "" {
		errs = append(errs, errors.New("capture.screenshot_dir is required"))
	}

	switch c.Report.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown report.backend %q (want json or sqlite)", c.Report.Backend))
	}
	if c.Report.HistoryPath == "" {
		errs = append(errs, errors.New("report.history_path is required"))
	}
	if c.Report.OutputPath == "" {
		errs = append(errs, errors.New("report.output_path is required"))
	}
	for _, f := range c.Report.Formats {
		if f != FormatHTML && f != FormatMarkdown {
			errs = append(errs, fmt.Errorf("unknown report format %q (want html or markdown)", f))
		}
	}

	return errors.Join(errs...)
}
