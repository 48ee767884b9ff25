package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/air"
	"github.com/mklimuk/devreg/cmd/devreg/console"
)

var airCmd = cli.Command{
	Name:  "air",
	Usage: "AGS02MA TVOC sensor; needs a bus clock of 30 kHz or less",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "tx-delay", Usage: "pause between selecting and reading a register", Value: 100 * time.Millisecond},
	},
	Subcommands: cli.Commands{
		&airReadCmd,
		&airCalibrateCmd,
	},
}

func withAGS02MA(c *cli.Context, fn func(ctx context.Context, s *air.AGS02MA) error) error {
	return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
		s := air.NewAGS02MA(bus, air.WithTxDelay(c.Duration("tx-delay")))
		defer s.Close(ctx)
		return fn(ctx, s)
	})
}

var airCalibrateCmd = cli.Command{
	Name: "calibrate",
	Action: func(c *cli.Context) error {
		return withAGS02MA(c, func(ctx context.Context, s *air.AGS02MA) error {
			if err := s.Calibrate(ctx); err != nil {
				return console.Fail("error calibrating", err)
			}
			console.Printf("calibrated\n")
			return nil
		})
	},
}

var airReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "details", Usage: "also read the firmware version and sensing resistance"},
	},
	Action: func(c *cli.Context) error {
		return withAGS02MA(c, func(ctx context.Context, s *air.AGS02MA) error {
			if c.Bool("details") {
				ver, err := s.ReadVersion(ctx)
				if err != nil {
					return console.Fail("error reading version", err)
				}
				resistance, err := s.ReadResistance(ctx)
				if err != nil {
					return console.Fail("error reading resistance", err)
				}
				console.Printf("version: %d\n", ver)
				console.Printf("resistance: %d00 ohm\n", resistance)
			}
			ppb, err := s.GetTVOC(ctx)
			if err != nil {
				return console.Fail("error getting TVOC read", err)
			}
			console.Printf("%s ppb\n", console.White(ppb))
			return nil
		})
	},
}
