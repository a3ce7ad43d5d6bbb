// Package app wires the matrix, runner and report aggregator into one run.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/shotgrid/internal/config"
	"github.com/ibeckermayer/shotgrid/internal/matrix"
	"github.com/ibeckermayer/shotgrid/internal/report"
	"github.com/ibeckermayer/shotgrid/internal/runner"
	"github.com/ibeckermayer/shotgrid/internal/store"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

// App holds the application state for one invocation.
type App struct {
	config     *config.Config
	runner     *runner.Runner
	aggregator *report.Aggregator
	logger     zerolog.Logger

	now   func() time.Time
	newID func() string
}

// New creates a new App instance. The caller keeps ownership of factories
// and repo and closes them.
func New(cfg *config.Config, factories runner.Factories, repo store.Repository, logger zerolog.Logger) (*App, error) {
	outputs := make([]report.Output, 0, len(cfg.Report.Formats))
	for _, format := range cfg.Report.Formats {
		r, err := report.NewRenderer(format)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, report.Output{
			Path:     report.OutputPath(cfg.Report.OutputPath, format),
			Renderer: r,
		})
	}

	run := runner.New(factories, runner.Options{
		Headless:      cfg.Capture.Headless,
		ReadyTimeout:  cfg.Capture.ReadyTimeout.Duration,
		SettleDelay:   cfg.Capture.SettleDelay.Duration,
		CaseTimeout:   cfg.Capture.CaseTimeout.Duration,
		Concurrency:   cfg.Capture.Concurrency,
		ScreenshotDir: cfg.Capture.ScreenshotDir,
	}, logger)

	return &App{
		config:     cfg,
		runner:     run,
		aggregator: report.NewAggregator(repo, cfg.Report.Title, outputs, logger),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// Run executes the full matrix, merges the run into the history and
// renders the report. The returned record is valid even when persisting it
// failed.
func (a *App) Run(ctx context.Context) (types.RunRecord, error) {
	info := runner.RunInfo{ID: a.newID(), Timestamp: a.now().UTC()}
	cases := matrix.Generate(a.config.URLs, a.config.Browsers, a.config.Devices)

	a.logger.Info().
		Str("run", info.ID).
		Int("urls", len(a.config.URLs)).
		Int("browsers", len(a.config.Browsers)).
		Int("devices", len(a.config.Devices)).
		Int("cases", len(cases)).
		Msg("Starting run")

	start := time.Now()
	outcomes := a.runner.Run(ctx, info, cases)

	record := types.RunRecord{
		ID:        info.ID,
		Timestamp: info.Timestamp,
		Outcomes:  outcomes,
	}

	a.logger.Info().
		Str("run", record.ID).
		Int("cases", len(outcomes)).
		Int("failed", record.Failed()).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("Run finished")

	// An interrupted run is still recorded
	if _, err := a.aggregator.Aggregate(context.WithoutCancel(ctx), record); err != nil {
		return record, err
	}
	return record, nil
}

// RenderReport re-renders every configured report from the stored history
func (a *App) RenderReport(ctx context.Context) (types.History, error) {
	return a.aggregator.Rebuild(ctx)
}

// ReportPaths returns the files the report is written to
func (a *App) ReportPaths() []string {
	outputs := a.aggregator.Outputs()
	paths := make([]string, len(outputs))
	for i, out := range outputs {
		paths[i] = out.Path
	}
	return paths
}

// OpenReport opens the primary report in the default browser.
func (a *App) OpenReport() error {
	paths := a.ReportPaths()
	if len(paths) == 0 {
		return fmt.Errorf("no report formats configured")
	}
	a.logger.Info().Str("path", paths[0]).Msg("Opening report")
	return browser.OpenFile(paths[0])
}

// PrintSummary writes one line per outcome followed by the completion
// message.
func (a *App) PrintSummary(w io.Writer, run types.RunRecord) {
	fmt.Fprintf(w, "\n=== Run %s (%d cases, %d failed) ===\n\n", shortID(run.ID), len(run.Outcomes), run.Failed())
	for _, o := range run.Outcomes {
		status := "✓"
		if !o.Succeeded() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  [%s]\n", status, o.URL, o.Browser, o.Device.Name, time.Duration(o.DurationMS)*time.Millisecond)
		if o.Error != "" {
			fmt.Fprintf(w, "   Error: %s\n", o.Error)
		}
		if o.ArtifactPath != "" {
			fmt.Fprintf(w, "   Screenshot: %s\n", o.ArtifactPath)
		}
	}

	paths := a.ReportPaths()
	if len(paths) > 0 {
		fmt.Fprintf(w, "\nTests completed. Check %s for results.\n", paths[0])
	} else {
		fmt.Fprintln(w, "\nTests completed.")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
