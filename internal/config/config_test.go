package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
urls = ["https://example.com", "https://github.com"]
browsers = ["Chrome", "safari"]

[[devices]]
name = "tablet"
width = 768
height = 1024

[capture]
ready_timeout = "5s"
concurrency = 3

[report]
backend = "sqlite"
history_path = "history.db"
formats = ["html", "markdown"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com", "https://github.com"}, cfg.URLs)
	assert.Equal(t, []types.Browser{types.BrowserChrome, types.BrowserSafari}, cfg.Browsers)
	assert.Equal(t, []types.DeviceProfile{{Name: "tablet", Width: 768, Height: 1024}}, cfg.Devices)
	assert.Equal(t, 5*time.Second, cfg.Capture.ReadyTimeout.Duration)
	assert.Equal(t, 3, cfg.Capture.Concurrency)
	assert.Equal(t, BackendSQLite, cfg.Report.Backend)
	assert.Equal(t, []string{FormatHTML, FormatMarkdown}, cfg.Report.Formats)

	// Unset settings keep their defaults
	assert.True(t, cfg.Capture.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.Capture.SettleDelay.Duration)
	assert.Equal(t, "screenshots", cfg.Capture.ScreenshotDir)
	assert.Equal(t, "index.html", cfg.Report.OutputPath)
}

func TestLoad_MissingListsAreEmpty(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[logging]\nlevel = \"debug\"\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.URLs)
	assert.Empty(t, cfg.Browsers)
	assert.Empty(t, cfg.Devices)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown browser", `browsers = ["netscape"]`, "netscape"},
		{"unknown key", "[capture]\nheadles = false\n", "unknown config keys"},
		{"bad duration", "[capture]\nready_timeout = \"soon\"\n", "invalid duration"},
		{"zero width", "[[devices]]\nname = \"x\"\nwidth = 0\nheight = 10\n", "width and height must be positive"},
		{"duplicate device", "[[devices]]\nname = \"x\"\nwidth = 1\nheight = 1\n[[devices]]\nname = \"x\"\nwidth = 2\nheight = 2\n", "duplicate device"},
		{"zero concurrency", "[capture]\nconcurrency = 0\n", "concurrency"},
		{"unknown backend", "[report]\nbackend = \"postgres\"\n", "postgres"},
		{"unknown format", "[report]\nformats = [\"pdf\"]\n", "pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Capture.CaseTimeout = Duration{2 * time.Minute}

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
