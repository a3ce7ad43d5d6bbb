// Package report merges run records into the persisted history and renders
// the history as a static report.
package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/shotgrid/internal/store"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

// TemplateVersion is bumped whenever the report layout changes
const TemplateVersion = 1

// Output formats
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

//go:embed templates/*
var templateFS embed.FS

// Renderer writes one report format
type Renderer interface {
	Format() string
	Render(w io.Writer, page Page) error
}

// Output pairs a renderer with the file it writes
type Output struct {
	Path     string
	Renderer Renderer
}

// Aggregator owns the load, merge, save and render sequence
type Aggregator struct {
	repo    store.Repository
	outputs []Output
	title   string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator writing every output in outputs
func NewAggregator(repo store.Repository, title string, outputs []Output, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		repo:    repo,
		outputs: outputs,
		title:   title,
		logger:  logger,
		now:     time.Now,
	}
}

// Aggregate prepends run to the persisted history, saves it and renders
// every output from the merged history. History errors abort before any
// output is touched.
func (a *Aggregator) Aggregate(ctx context.Context, run types.RunRecord) (types.History, error) {
	if _, err := a.repo.Load(ctx); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if err := a.repo.Append(run); err != nil {
		return nil, fmt.Errorf("append run %s: %w", run.ID, err)
	}
	if err := a.repo.Save(ctx); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}

	history, err := a.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload history: %w", err)
	}

	a.logger.Debug().Str("run", run.ID).Int("runs", len(history)).Msg("History saved")

	if err := a.Render(history); err != nil {
		return history, err
	}
	return history, nil
}

// Rebuild renders the persisted history without adding a run
func (a *Aggregator) Rebuild(ctx context.Context) (types.History, error) {
	history, err := a.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, a.Render(history)
}

// Render writes every configured output for history
func (a *Aggregator) Render(history types.History) error {
	generatedAt := a.now().UTC().Format(time.RFC3339)
	for _, out := range a.outputs {
		page := NewPage(a.title, history, filepath.Dir(out.Path), generatedAt)

		var buf bytes.Buffer
		if err := out.Renderer.Render(&buf, page); err != nil {
			return fmt.Errorf("render %s report: %w", out.Renderer.Format(), err)
		}
		if dir := filepath.Dir(out.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create report dir: %w", err)
			}
		}
		if err := os.WriteFile(out.Path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("write %s report: %w", out.Renderer.Format(), err)
		}

		a.logger.Info().Str("format", out.Renderer.Format()).Str("path", out.Path).Msg("Report written")
	}
	return nil
}

// Outputs returns the configured outputs
func (a *Aggregator) Outputs() []Output {
	return a.outputs
}

// NewRenderer returns the renderer for format
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case FormatHTML:
		return NewHTML()
	case FormatMarkdown:
		return NewMarkdown()
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// OutputPath derives the path for format from the primary output path. The
// HTML report keeps the path as given; other formats swap the extension.
func OutputPath(primary, format string) string {
	if format == FormatHTML {
		return primary
	}
	ext := filepath.Ext(primary)
	base := primary[:len(primary)-len(ext)]
	switch format {
	case FormatMarkdown:
		return base + ".md"
	default:
		return base + "." + format
	}
}
