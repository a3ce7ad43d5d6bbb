package cli

// This file contains the run and report commands.

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ibeckermayer/shotgrid/internal/app"
	"github.com/ibeckermayer/shotgrid/internal/browser"
	"github.com/ibeckermayer/shotgrid/internal/config"
	"github.com/ibeckermayer/shotgrid/internal/store"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "URL to capture, replaces the configured list (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:    "browser",
			Aliases: []string{"b"},
			Usage:   "Browser to use (chrome, firefox, edge, safari), replaces the configured list (repeatable)",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Number of cases captured at the same time",
		},
		&cli.BoolFlag{
			Name:  "headed",
			Usage: "Show browser windows instead of running headless",
		},
		&cli.BoolFlag{
			Name:  "open",
			Usage: "Open the report when the run finishes",
		},
	}
}

// overrides are the run flags that replace config values
type overrides struct {
	URLs        []string
	Browsers    []string
	Concurrency int
	Headed      bool
}

func overridesFrom(ctx *cli.Context) overrides {
	o := overrides{
		URLs:     ctx.StringSlice("url"),
		Browsers: ctx.StringSlice("browser"),
		Headed:   ctx.Bool("headed"),
	}
	if ctx.IsSet("concurrency") {
		o.Concurrency = ctx.Int("concurrency")
	}
	return o
}

func (o overrides) apply(cfg *config.Config) error {
	if len(o.URLs) > 0 {
		cfg.URLs = o.URLs
	}
	if len(o.Browsers) > 0 {
		browsers := make([]types.Browser, 0, len(o.Browsers))
		for _, s := range o.Browsers {
			b, err := types.ParseBrowser(s)
			if err != nil {
				return err
			}
			browsers = append(browsers, b)
		}
		cfg.Browsers = browsers
	}
	if o.Concurrency != 0 {
		cfg.Capture.Concurrency = o.Concurrency
	}
	if o.Headed {
		cfg.Capture.Headless = false
	}
	return cfg.Validate()
}

func (a *App) run(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := overridesFrom(ctx).apply(cfg); err != nil {
		return fmt.Errorf("invalid run options: %w", err)
	}

	registry := browser.NewRegistry(browser.DriverConfig{
		ChromePath: cfg.Capture.ChromePath,
		EdgePath:   cfg.Capture.EdgePath,
	})
	defer func() {
		if err := registry.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to shut down browser drivers")
		}
	}()

	repo, err := store.Open(cfg.Report.Backend, cfg.Report.HistoryPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	shots, err := app.New(cfg, registry, repo, a.logger)
	if err != nil {
		return err
	}

	run, runErr := shots.Run(ctx.Context)
	shots.PrintSummary(a.stdout, run)
	if runErr != nil {
		a.logger.Error().Err(runErr).Msg("Failed to record run")
		return cli.Exit(runErr.Error(), 1)
	}

	if ctx.Bool("open") {
		if err := shots.OpenReport(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to open report")
		}
	}

	if err := ctx.Context.Err(); err != nil {
		return cli.Exit("run interrupted", 1)
	}
	if failed := run.Failed(); failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d cases failed", failed, len(run.Outcomes)), 1)
	}
	return nil
}

func (a *App) report(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	repo, err := store.Open(cfg.Report.Backend, cfg.Report.HistoryPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	shots, err := app.New(cfg, browser.Registry{}, repo, a.logger)
	if err != nil {
		return err
	}

	history, err := shots.RenderReport(ctx.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(a.stdout, "Rendered %d runs\n", len(history))
	for _, p := range shots.ReportPaths() {
		fmt.Fprintf(a.stdout, "  %s\n", p)
	}
	return nil
}
