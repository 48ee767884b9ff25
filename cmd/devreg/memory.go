package main

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/memory"
)

var memoryCmd = cli.Command{
	Name:  "memory",
	Usage: "25AA1024 SPI EEPROM, nanopi adapter only",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "spi-bus", Usage: "spi bus number", Value: 0},
		&cli.IntFlag{Name: "chip", Usage: "spi chip select", Value: 0},
	},
	Subcommands: cli.Commands{
		&memoryReadCmd,
		&memoryWriteCmd,
		&memoryStatusCmd,
	},
}

func withEEPROM(c *cli.Context, fn func(ctx context.Context, e *memory.EEPROM25AA1024) error) error {
	bus, closeBus, err := openSPI(c, "25aa1024", c.Int("spi-bus"), c.Int("chip"))
	if err != nil {
		return console.Exit(console.ExitFailure, "adapter initialization error: %s", console.Red(err))
	}
	defer closeBus()
	ctx, cancel := commandContext(c)
	defer cancel()
	return fn(ctx, memory.New25AA1024(bus))
}

var memoryReadCmd = cli.Command{
	Name:  "read",
	Usage: "hex dump memory",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "address", Usage: "memory address to read", Required: true},
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 16},
	},
	Action: func(c *cli.Context) error {
		return withEEPROM(c, func(ctx context.Context, e *memory.EEPROM25AA1024) error {
			data, err := e.Read(ctx, uint32(c.Uint("address")), c.Int("length"))
			if err != nil {
				return console.Fail("read failed", err)
			}
			console.Printf("%s", hex.Dump(data))
			return nil
		})
	},
}

var memoryWriteCmd = cli.Command{
	Name:  "write",
	Usage: "write hex bytes",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "address", Usage: "memory address to write", Required: true},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')", Required: true},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		data, err := hex.DecodeString(strings.ReplaceAll(c.String("data"), " ", ""))
		if err != nil {
			return console.Exit(console.ExitFailure, "invalid data hex string: %s", err)
		}
		addr := uint32(c.Uint("address"))
		if !c.Bool("yes") {
			ok, err := console.Confirm("write " + hex.EncodeToString(data) + "?")
			if err != nil || !ok {
				console.Warnf("write aborted")
				return nil
			}
		}
		return withEEPROM(c, func(ctx context.Context, e *memory.EEPROM25AA1024) error {
			if err := e.Write(ctx, addr, data); err != nil {
				return console.Fail("write failed", err)
			}
			console.Infof("wrote %d bytes at %#05x", len(data), addr)
			return nil
		})
	},
}

var memoryStatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		return withEEPROM(c, func(ctx context.Context, e *memory.EEPROM25AA1024) error {
			st, err := e.Status(ctx)
			if err != nil {
				return console.Fail("status read failed", err)
			}
			console.Printf("%+v\n", st)
			return nil
		})
	},
}
