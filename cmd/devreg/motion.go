package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/accel"
	"github.com/mklimuk/devreg/cmd/devreg/console"
)

var motionCmd = cli.Command{
	Name:  "motion",
	Usage: "BMA220 slope detection",
	Subcommands: cli.Commands{
		&motionInitCmd,
		&motionCheckCmd,
		&motionResetCmd,
	},
}

func withBMA220(c *cli.Context, fn func(ctx context.Context, s *accel.BMA220) error) error {
	return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
		s := accel.NewBMA220(bus)
		defer s.Close()
		return fn(ctx, s)
	})
}

var motionInitCmd = cli.Command{
	Name: "init",
	Action: func(c *cli.Context) error {
		return withBMA220(c, func(ctx context.Context, s *accel.BMA220) error {
			id, err := s.ChipID(ctx)
			if err != nil {
				return console.Fail("error reading BMA220 chip id", err)
			}
			console.Infof("chip id %#02x", id)
			if err := s.InitMotionDetection(ctx); err != nil {
				return console.Fail("error initializing BMA220", err)
			}
			return nil
		})
	},
}

var motionCheckCmd = cli.Command{
	Name: "check",
	Action: func(c *cli.Context) error {
		return withBMA220(c, func(ctx context.Context, s *accel.BMA220) error {
			motion, err := s.CheckMotionInterrupt(ctx)
			if err != nil {
				return console.Fail("error checking motion detection on BMA220", err)
			}
			if motion == 1 {
				console.Printf("motion interrupt: %s\n", console.Yellow(true))
			} else {
				console.Printf("motion interrupt: %s\n", console.Green(false))
			}
			return nil
		})
	},
}

var motionResetCmd = cli.Command{
	Name: "reset",
	Action: func(c *cli.Context) error {
		return withBMA220(c, func(ctx context.Context, s *accel.BMA220) error {
			if err := s.ResetMotionInterrupt(ctx); err != nil {
				return console.Fail("error resetting motion detection on BMA220", err)
			}
			return nil
		})
	},
}
