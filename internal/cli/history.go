package cli

// This file contains the history, init and open commands.

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pkg/browser"
	"github.com/urfave/cli/v2"

	"github.com/ibeckermayer/shotgrid/internal/app"
	shotbrowser "github.com/ibeckermayer/shotgrid/internal/browser"
	"github.com/ibeckermayer/shotgrid/internal/config"
	"github.com/ibeckermayer/shotgrid/internal/store"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

func (a *App) history(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	repo, err := store.Open(cfg.Report.Backend, cfg.Report.HistoryPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	history, err := repo.Load(ctx.Context)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	printHistory(a.stdout, history, ctx.Int("limit"))
	return nil
}

func printHistory(w io.Writer, history types.History, limit int) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No runs recorded yet")
		return
	}

	runs := history
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}

	fmt.Fprintf(w, "\n=== History (%d total) ===\n\n", len(history))
	for _, run := range runs {
		status := "✓"
		if run.Failed() > 0 {
			status = "✗"
		}

		// Show short ID (first 8 chars)
		shortID := run.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Fprintf(w, "%s  %s  cases=%d  failed=%d  id=%s\n",
			status, run.Timestamp.Local().Format("2006-01-02 15:04:05"), len(run.Outcomes), run.Failed(), shortID)
	}
	fmt.Fprintln(w)
}

func (a *App) initConfig(ctx *cli.Context) error {
	path, err := a.configPath(ctx)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !ctx.Bool("force") {
		return cli.Exit(fmt.Sprintf("config already exists at %s (use --force to overwrite)", path), 1)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(a.stdout, "Created default config at: %s\n", path)
	return nil
}

func (a *App) open(ctx *cli.Context) error {
	target := ctx.Args().First()
	switch target {
	case "config":
		path, err := a.configPath(ctx)
		if err != nil {
			return err
		}
		return browser.OpenFile(path)
	case "", "report":
		cfg, err := a.loadConfig(ctx)
		if err != nil {
			return err
		}
		repo, err := store.Open(cfg.Report.Backend, cfg.Report.HistoryPath)
		if err != nil {
			return err
		}
		defer repo.Close()

		shots, err := app.New(cfg, shotbrowser.Registry{}, repo, a.logger)
		if err != nil {
			return err
		}
		return shots.OpenReport()
	default:
		return cli.Exit(fmt.Sprintf("unknown target %q (want report or config)", target), 1)
	}
}
