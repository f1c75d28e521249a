// Package cmd is the daemon's commandline entry point: flag parsing,
// configuration loading, and the one-shot --list-adapters/--generate
// modes, built the same way the teacher's cmd package wires urfave/cli/v2
// around its own koanf-backed config package.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/config"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

// These values are set at compile-time via -ldflags.
var (
	Version  = ""
	Revision = ""
)

// Run runs the commandline application.
func Run() error {
	return newApp().Run(os.Args)
}

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	return &cli.App{
		Name:                   "btaudiod",
		Usage:                  "Bluetooth Audio Orchestrator daemon.",
		Version:                Version + " (" + Revision + ")",
		Description:            "Coordinates BlueZ, PulseAudio, and an HTTP/WebSocket control plane for Bluetooth Classic audio devices.",
		DefaultCommand:         "btaudiod",
		Copyright:              "(c) btaudiod.",
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "list-adapters",
				Aliases: []string{"l"},
				Usage:   "List available Bluetooth adapters and exit.",
				Action: func(*cli.Context, bool) error {
					var sb strings.Builder

					logger := newLogger("error", "text")
					session := bluez.NewSession(logger)
					if err := session.Start(context.Background()); err != nil {
						return err
					}
					defer session.Stop()

					sb.WriteString("List of adapters:")
					for _, adapter := range session.ListAdapters() {
						sb.WriteString("\n")
						sb.WriteString("- ")
						sb.WriteString(adapter.Interface)
						sb.WriteString(" (")
						sb.WriteString(string(adapter.Address))
						sb.WriteString(")")
					}

					fmt.Println(sb.String())

					return nil
				},
			},
			&cli.StringFlag{
				Name:    "adapter",
				Aliases: []string{"a"},
				EnvVars: []string{"BTAUDIOD_ADAPTER"},
				Usage:   "Adapter to use: 'auto', a MAC address, or an hciN name.",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"BTAUDIOD_LOG_LEVEL"},
				Usage:   "Log level: debug, info, warn, error.",
			},
			&cli.StringFlag{
				Name:    "log-format",
				EnvVars: []string{"BTAUDIOD_LOG_FORMAT"},
				Usage:   "Log format: text or json.",
			},
			&cli.StringFlag{
				Name:    "http-listen",
				Aliases: []string{"p"},
				EnvVars: []string{"BTAUDIOD_HTTP_LISTEN"},
				Usage:   "HTTP/WebSocket control-plane listen address (host:port or :port).",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				EnvVars: []string{"BTAUDIOD_DATA_DIR"},
				Usage:   "Override the directory the device/settings JSON stores live in.",
			},
			&cli.BoolFlag{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "Generate configuration and exit.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					k := koanf.New(".")

					cliCtx.Command.Name = "global"

					conf := config.NewConfig()
					if err := conf.Load(k, cliCtx); err != nil {
						return err
					}

					oldcfgparsed, err := conf.GenerateAndSave(k)
					if !oldcfgparsed {
						printWarn("the old configuration could not be parsed")
					}

					return err
				},
			},
		},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.Bool("list-adapters") || cliCtx.Bool("generate") {
				return nil
			}

			// required for koanf to merge all global flags under the root namespace.
			cliCtx.Command.Name = "global"

			k, cfg := koanf.New("."), config.NewConfig()
			if err := cfg.Load(k, cliCtx); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runDaemon(cfg)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}
