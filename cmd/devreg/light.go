package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/environment"
)

var lightCmd = cli.Command{
	Name:  "light",
	Usage: "ambient light sensors",
	Subcommands: cli.Commands{
		&lightReadCmd,
		&lightConfigCmd,
	},
}

func newVEML7700(c *cli.Context, bus devreg.I2CBus) (*environment.VEML7700, error) {
	var opts []environment.VEML7700ConfigOption
	if s := c.String("address"); s != "" {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, environment.WithVEML7700Address(addr))
	}
	return environment.NewVEML7700(bus, opts...), nil
}

var lightReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "sensor",
			Aliases: []string{"s"},
			Usage:   "veml7700 or bh1750",
			Value:   "veml7700",
		},
		addressFlag(),
	},
	Action: func(c *cli.Context) error {
		return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
			if c.String("sensor") == "bh1750" {
				return readBH1750(ctx, c, bus)
			}
			s, err := newVEML7700(c, bus)
			if err != nil {
				return console.Exit(console.ExitFailure, "%s", err)
			}
			lux, err := s.Lux(ctx)
			if err != nil {
				return console.Fail("error getting light read", err)
			}
			white, err := s.White(ctx)
			if err != nil {
				return console.Fail("error getting white channel read", err)
			}
			console.PInfof(console.PictoLight, "%s lux", console.White(fmt.Sprintf("%.2f", lux)))
			console.Printf("white: %d\n", white)
			return nil
		})
	},
}

func readBH1750(ctx context.Context, c *cli.Context, bus devreg.I2CBus) error {
	addr := uint16(environment.BH1750AddrLow)
	if a := c.String("address"); a != "" {
		var err error
		if addr, err = parseAddress(a); err != nil {
			return console.Exit(console.ExitFailure, "%s", err)
		}
	}
	s := environment.NewBH1750(bus, addr, environment.WithBH1750Mode(environment.BH1750HighResolution))
	lux, err := s.Lux(ctx)
	if err != nil {
		return console.Exit(console.ExitBus, "error getting light read: %s", console.Red(err))
	}
	console.PInfof(console.PictoLight, "%s lux", console.White(fmt.Sprintf("%.2f", lux)))
	return nil
}

var lightConfigCmd = cli.Command{
	Name:  "config",
	Usage: "print the VEML7700 configuration and id",
	Flags: []cli.Flag{addressFlag()},
	Action: func(c *cli.Context) error {
		return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
			s, err := newVEML7700(c, bus)
			if err != nil {
				return console.Exit(console.ExitFailure, "%s", err)
			}
			id, err := s.DeviceID(ctx)
			if err != nil {
				return console.Fail("error reading device id", err)
			}
			conf, err := s.Config(ctx)
			if err != nil {
				return console.Fail("error reading config", err)
			}
			console.Printf("id: %#02x, address option: %#02x\n", id.ID, uint8(id.AddressOption))
			console.Printf("gain: %s\nintegration time: %s\npersistence: %s\ninterrupt: %t\nshutdown: %t\n",
				console.White(conf.Gain), console.White(conf.IntegrationTime), console.White(conf.Persistence),
				conf.InterruptEnable, conf.Shutdown)
			return nil
		})
	},
}
