package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg/cmd/devreg/console"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "devreg"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "inspect and drive I2C/SPI device registers"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: mcp2221, nanopi or generic",
			Value:   adapterMCP2221,
			EnvVars: []string{"DEVREG_ADAPTER"},
		},
		&cli.StringFlag{
			Name:    "bus",
			Aliases: []string{"b"},
			Usage:   "bus device for the generic adapter, bus number for nanopi",
			Value:   "/dev/i2c-1",
			EnvVars: []string{"DEVREG_BUS"},
		},
		&cli.IntFlag{
			Name:  "index",
			Usage: "MCP2221 bridge to use when several are connected",
			Value: -1,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "timeout of a single command",
			Value: 5 * time.Second,
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&regCmd,
		&tempReadCmd,
		&lightCmd,
		&powerCmd,
		&gpioCmd,
		&motionCmd,
		&airCmd,
		&memoryCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return console.ExitCode(err)
	}
	return 0
}
