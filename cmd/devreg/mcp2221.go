package main

import (
	"context"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/devreg/adapter"
	"github.com/mklimuk/devreg/cmd/devreg/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 bridge I2C engine",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

func mcp2221Status(c *cli.Context, fn func(*adapter.MCP2221, context.Context) (adapter.MCP2221Status, error)) error {
	var opts []adapter.MCP2221Option
	if idx := c.Int("index"); idx >= 0 {
		opts = append(opts, adapter.WithDeviceIndex(idx))
	}
	ctx, cancel := commandContext(c)
	defer cancel()
	status, err := fn(adapter.NewMCP2221(opts...), ctx)
	if err != nil {
		return console.Exit(console.ExitBus, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(console.Output())
	defer enc.Close()
	if err := enc.Encode(status); err != nil {
		return console.Exit(console.ExitFailure, "encoding error: %s", console.Red(err))
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		return mcp2221Status(c, (*adapter.MCP2221).Status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Action: func(c *cli.Context) error {
		return mcp2221Status(c, (*adapter.MCP2221).ReleaseBus)
	},
}
