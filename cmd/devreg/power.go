package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/power"
)

var powerCmd = cli.Command{
	Name:  "power",
	Usage: "INA226 current and power monitor",
	Flags: []cli.Flag{
		addressFlag(),
		&cli.Float64Flag{Name: "shunt", Usage: "shunt resistance in ohms", Value: 0.1},
		&cli.Float64Flag{Name: "current-lsb", Usage: "current resolution in amperes", Value: 0.0001},
	},
	Action: func(c *cli.Context) error {
		return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
			var opts []power.INA226Option
			if s := c.String("address"); s != "" {
				addr, err := parseAddress(s)
				if err != nil {
					return console.Exit(console.ExitFailure, "%s", err)
				}
				opts = append(opts, power.WithAddress(addr))
			}
			m := power.NewINA226(bus, opts...)
			if err := m.Identify(ctx); err != nil {
				return console.Fail("could not identify INA226", err)
			}
			lsb := c.Float64("current-lsb")
			cal, err := power.CalibrationFor(lsb, c.Float64("shunt"))
			if err != nil {
				return console.Exit(console.ExitFailure, "%s", console.Red(err))
			}
			if err := m.Calibrate(ctx, cal); err != nil {
				return console.Fail("could not calibrate", err)
			}
			busV, err := m.BusVoltage(ctx)
			if err != nil {
				return console.Fail("could not read bus voltage", err)
			}
			shunt, err := m.ShuntVoltage(ctx)
			if err != nil {
				return console.Fail("could not read shunt voltage", err)
			}
			current, err := m.Current(ctx)
			if err != nil {
				return console.Fail("could not read current", err)
			}
			pwr, err := m.Power(ctx)
			if err != nil {
				return console.Fail("could not read power", err)
			}
			console.PInfof(console.PictoPower, "bus %s", console.White(fmt.Sprintf("%.3f V", float64(busV)*power.BusVoltageLSB)))
			console.Printf("shunt: %.2f mV\n", float64(shunt)*power.ShuntVoltageLSB*1e3)
			console.Printf("current: %.4f A\n", float64(current)*lsb)
			console.Printf("power: %.4f W\n", float64(pwr)*lsb*25)
			return nil
		})
	},
}
