package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/gpio"
)

var gpioCmd = cli.Command{
	Name:  "gpio",
	Usage: "MCP23017 port expander",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "port a or b", Value: "a"},
		&cli.IntFlag{Name: "bank", Usage: "register layout the chip is in (IOCON.BANK)", Value: 0},
		&cli.IntFlag{Name: "retries", Usage: "attempts on a busy bus", Value: 1},
	},
	Subcommands: cli.Commands{
		&gpioStatusCmd,
		&gpioReadCmd,
		&gpioConfigureCmd,
		&gpioPullCmd,
		&gpioWriteCmd,
	},
}

// withExpander parses the expander address from the first argument and
// expects want further arguments.
func withExpander(c *cli.Context, want int, fn func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error) error {
	if c.NArg() != want+1 {
		return console.Exit(console.ExitFailure, "expected %d argument(s), got %d", want+1, c.NArg())
	}
	addr, err := parseAddress(c.Args().First())
	if err != nil {
		return console.Exit(console.ExitFailure, "could not decode address: %v", err)
	}
	var port gpio.Port
	switch strings.ToLower(c.String("port")) {
	case "a":
		port = gpio.PortA
	case "b":
		port = gpio.PortB
	default:
		return console.Exit(console.ExitFailure, "unknown port %q", c.String("port"))
	}
	return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
		exp := gpio.NewMCP23017(bus, addr, gpio.WithBank(c.Int("bank")), gpio.WithRetryLimit(c.Int("retries")))
		defer exp.Close()
		return fn(ctx, exp, port)
	})
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q: %w", s, err)
	}
	return byte(v), nil
}

var gpioReadCmd = cli.Command{
	Name:      "read",
	Usage:     "configure both ports as inputs and read them",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		return withExpander(c, 0, func(ctx context.Context, exp *gpio.MCP23017, _ gpio.Port) error {
			if err := exp.InitA(ctx, 0xFF); err != nil {
				return console.Fail("could not initialize gpio A", err)
			}
			if err := exp.InitB(ctx, 0xFF); err != nil {
				return console.Fail("could not initialize gpio B", err)
			}
			res, err := exp.Read(ctx)
			if err != nil {
				return console.Fail("could not read gpio", err)
			}
			console.PInfof(console.PictoPin, "I/O A: %s", console.White(fmt.Sprintf("%08b", res[0])))
			console.PInfof(console.PictoPin, "I/O B: %s", console.White(fmt.Sprintf("%08b", res[1])))
			return nil
		})
	},
}

var gpioStatusCmd = cli.Command{
	Name:      "status",
	Usage:     "print the IOCON register",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		return withExpander(c, 0, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			conf, err := exp.ReadSettings(ctx, port)
			if err != nil {
				return console.Fail("could not read settings", err)
			}
			console.Printf("IOCON%s: %+v\n", port, conf)
			flags, err := exp.InterruptFlags(ctx, port)
			if err != nil {
				return console.Fail("could not read interrupt flags", err)
			}
			console.Printf("INTF%s: %08b\n", port, flags)
			return nil
		})
	},
}

var gpioConfigureCmd = cli.Command{
	Name:      "configure",
	Usage:     "write IOCON from a raw byte",
	ArgsUsage: "<address> <iocon>",
	Action: func(c *cli.Context) error {
		return withExpander(c, 1, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			data, err := parseByte(c.Args().Get(1))
			if err != nil {
				return console.Exit(console.ExitFailure, "could not decode data: %v", err)
			}
			conf, err := gpio.DecodeIOCON(data)
			if err != nil {
				return console.Fail("could not decode settings", err)
			}
			if err := exp.WriteSettings(ctx, port, conf); err != nil {
				return console.Fail("could not write settings", err)
			}
			console.Printf("wrote IOCON%s: %#X\n", port, data)
			return nil
		})
	},
}

var gpioPullCmd = cli.Command{
	Name:      "pull",
	Usage:     "enable pull-ups, one bit per pin",
	ArgsUsage: "<address> <mask>",
	Action: func(c *cli.Context) error {
		return withExpander(c, 1, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			data, err := parseByte(c.Args().Get(1))
			if err != nil {
				return console.Exit(console.ExitFailure, "could not decode data: %v", err)
			}
			pull := exp.PullUpA
			if port == gpio.PortB {
				pull = exp.PullUpB
			}
			if err := pull(ctx, data); err != nil {
				return console.Fail("could not write pull up settings", err)
			}
			console.Printf("wrote GPPU%s: %#X\n", port, data)
			return nil
		})
	},
}

var gpioWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "configure a port as outputs and set its latch",
	ArgsUsage: "<address> <value>",
	Action: func(c *cli.Context) error {
		return withExpander(c, 1, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			data, err := parseByte(c.Args().Get(1))
			if err != nil {
				return console.Exit(console.ExitFailure, "could not decode data: %v", err)
			}
			init := exp.InitA
			if port == gpio.PortB {
				init = exp.InitB
			}
			if err := init(ctx, 0x00); err != nil {
				return console.Fail("could not configure outputs", err)
			}
			if err := exp.Write(ctx, port, data); err != nil {
				return console.Fail("could not write outputs", err)
			}
			console.Printf("wrote OLAT%s: %#X\n", port, data)
			return nil
		})
	},
}
