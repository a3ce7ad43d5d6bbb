// Command probe opens one URL in a visible browser window using the same
// session setup as shotgrid runs, so a page can be inspected by hand.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ibeckermayer/shotgrid/internal/browser"
	"github.com/ibeckermayer/shotgrid/internal/types"
)

func main() {
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	app := &cli.App{
		Name:      "probe",
		Usage:     "Open a URL in a visible browser with a device viewport",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "browser", Aliases: []string{"b"}, Value: string(types.BrowserChrome), Usage: "chrome, firefox, edge or safari"},
			&cli.IntFlag{Name: "width", Value: 1920, Usage: "Viewport width"},
			&cli.IntFlag{Name: "height", Value: 1080, Usage: "Viewport height"},
			&cli.StringFlag{Name: "chrome-path", Usage: "Chrome executable (default: auto-detect)"},
			&cli.StringFlag{Name: "edge-path", Value: "microsoft-edge", Usage: "Edge executable"},
		},
		Action: func(ctx *cli.Context) error {
			url := ctx.Args().First()
			if url == "" {
				url = "https://bot.sannysoft.com"
			}
			b, err := types.ParseBrowser(ctx.String("browser"))
			if err != nil {
				return err
			}

			registry := browser.NewRegistry(browser.DriverConfig{
				ChromePath: ctx.String("chrome-path"),
				EdgePath:   ctx.String("edge-path"),
			})
			defer registry.Close()

			factory, err := registry.Factory(b)
			if err != nil {
				return err
			}

			device := types.DeviceProfile{Name: "probe", Width: ctx.Int("width"), Height: ctx.Int("height")}
			logger.Info().Str("url", url).Str("browser", string(b)).Str("device", device.String()).Msg("Opening page")

			// non-headless so you can see it
			sess, err := factory.NewSession(ctx.Context, browser.SessionOptions{Device: device, Headless: false})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Navigate(url); err != nil {
				return err
			}
			if err := sess.WaitReady(10 * time.Second); err != nil {
				return err
			}
			if m, err := sess.Metrics(); err == nil {
				logger.Info().Int("scroll_height", m.ScrollHeight).Int("viewport_height", m.ViewportHeight).Msg("Page ready")
			}

			fmt.Println("Press Enter to close the browser...")
			bufio.NewReader(os.Stdin).ReadString('\n')

			logger.Info().Msg("Done.")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("Probe failed")
	}
}
