package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/environment"
)

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read a temperature sensor",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "sensor",
			Aliases: []string{"s"},
			Usage:   "tc74, shtc3 or hih6021",
			Value:   "tc74",
		},
		addressFlag(),
		&cli.BoolFlag{Name: "standby", Usage: "put the TC74 in standby after reading"},
	},
	Action: func(c *cli.Context) error {
		return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
			switch c.String("sensor") {
			case "tc74":
				var opts []environment.TC74ConfigOption
				if s := c.String("address"); s != "" {
					addr, err := parseAddress(s)
					if err != nil {
						return console.Exit(console.ExitFailure, "%s", err)
					}
					opts = append(opts, environment.WithAddress(addr))
				}
				s := environment.NewTC74(bus, opts...)
				if err := s.Wake(ctx); err != nil {
					return console.Fail("error waking sensor", err)
				}
				temp, err := s.GetTemperature(ctx)
				if err != nil {
					return console.Fail("error getting temperature read", err)
				}
				console.PInfof(console.PictoThermometer, "%s", console.White(temp))
				if c.Bool("standby") {
					if err := s.Standby(ctx); err != nil {
						return console.Fail("error entering standby", err)
					}
				}
			case "hih6021":
				s := environment.NewHIH6021(bus)
				temp, hum, err := s.GetTempAndHum(ctx)
				if err != nil {
					return console.Fail("error getting temperature read", err)
				}
				console.PInfof(console.PictoThermometer, " %s", console.White(temp))
				console.PInfof(console.PictoHumidity, "%s", console.White(hum))
			case "shtc3":
				s := environment.NewSHTC3(bus)
				temp, hum, err := s.GetTempAndHum(ctx)
				if err != nil {
					return console.Fail("error getting temperature read", err)
				}
				console.PInfof(console.PictoThermometer, " %s", console.White(temp))
				console.PInfof(console.PictoHumidity, "%s", console.White(hum))
			default:
				return console.Exit(console.ExitFailure, "unknown sensor %q", c.String("sensor"))
			}
			return nil
		})
	},
}
