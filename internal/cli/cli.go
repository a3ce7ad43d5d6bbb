// Package cli implements the shotgrid command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ibeckermayer/shotgrid/internal/config"
)

const AppName = "shotgrid"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	stdout io.Writer
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})

	app := &App{
		logger: logger,
		stdout: os.Stdout,
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Capture full-page screenshots of URLs across browsers and devices",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file (default: user config dir)",
				EnvVars: []string{"SHOTGRID_CONFIG"},
			},
		}, runFlags()...),
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
		// Running without a command runs the matrix with the same flags as run
		Action: app.run,
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Capture every URL × browser × device and update the report",
		Action: app.run,
		Flags:  runFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "report",
		Usage:  "Re-render the report from the stored history",
		Action: app.report,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "history",
		Usage:  "List previous runs, newest first",
		Action: app.history,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (0 for all)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "init",
		Usage:  "Write the default config file",
		Action: app.initConfig,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "open",
		Usage:     "Open the rendered report, or the config file with 'open config'",
		ArgsUsage: "[report|config]",
		Action:    app.open,
	})
	return app
}

// Run runs the CLI until it finishes or the process is interrupted
func (a *App) Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.cli.RunContext(ctx, args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

func (a *App) configPath(ctx *cli.Context) (string, error) {
	if p := ctx.String("config"); p != "" {
		return p, nil
	}
	return config.ConfigPath()
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist yet. The configured log level applies unless --verbose is set.
func (a *App) loadConfig(ctx *cli.Context) (*config.Config, error) {
	path, err := a.configPath(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Info().Str("path", path).Msg("No config file found, using defaults (run 'shotgrid init' to create one)")
		cfg = config.Default()
	} else if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	} else {
		a.logger.Debug().Str("path", path).Msg("Loaded config")
	}

	if !ctx.Bool("verbose") && cfg.Logging.Level != "" {
		level, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Logging.Level, err)
		}
		zerolog.SetGlobalLevel(level)
	}
	return cfg, nil
}
