package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"
	gobotspi "gobot.io/x/gobot/v2/drivers/spi"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/adapter"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/i2c"
	"github.com/mklimuk/devreg/spi"
)

const (
	adapterMCP2221 = "mcp2221"
	adapterNanoPi  = "nanopi"
	adapterGeneric = "generic"
)

// commandContext carries the verbose flag and the global timeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
	return context.WithTimeout(ctx, c.Duration("timeout"))
}

// openI2C opens the bus selected by the global flags. The returned function
// releases it.
func openI2C(c *cli.Context) (devreg.I2CBus, func(), error) {
	switch name := c.String("adapter"); name {
	case adapterMCP2221:
		var opts []adapter.MCP2221Option
		if idx := c.Int("index"); idx >= 0 {
			opts = append(opts, adapter.WithDeviceIndex(idx))
		}
		return adapter.NewMCP2221(opts...), func() {}, nil
	case adapterNanoPi:
		busNr, err := strconv.Atoi(c.String("bus"))
		if err != nil {
			return nil, nil, fmt.Errorf("nanopi bus must be a bus number: %w", err)
		}
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, busNr)
		return bus, func() {
			if err := bus.Close(); err != nil {
				slog.Warn("could not close i2c connections", "error", err)
			}
			_ = npi.I2cBusAdaptor.Finalize()
		}, nil
	case adapterGeneric:
		bus, err := i2c.NewGenericBus(c.String("bus"))
		if err != nil {
			return nil, nil, err
		}
		return bus, func() {
			if err := bus.Close(); err != nil {
				console.Errorf("error closing bus: %s", console.Red(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", name)
	}
}

// openSPI opens an SPI device on the NanoPi; bus and chip select the port.
func openSPI(c *cli.Context, name string, busNr, chip int) (*spi.GobotBus, func(), error) {
	if a := c.String("adapter"); a != adapterNanoPi {
		return nil, nil, fmt.Errorf("spi devices need the %s adapter, got %s", adapterNanoPi, a)
	}
	npi := nanopi.NewNeoAdaptor()
	if err := npi.SpiBusAdaptor.Connect(); err != nil {
		return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	bus := spi.NewGobotBus(npi, name, gobotspi.WithBusNumber(busNr), gobotspi.WithChipNumber(chip))
	if err := bus.Start(); err != nil {
		_ = npi.SpiBusAdaptor.Finalize()
		return nil, nil, fmt.Errorf("spi device start error: %w", err)
	}
	return bus, func() {
		if err := bus.Close(); err != nil {
			slog.Warn("could not halt spi driver", "error", err)
		}
		_ = npi.SpiBusAdaptor.Finalize()
	}, nil
}

// withI2C runs fn with the selected bus and a command context.
func withI2C(c *cli.Context, fn func(ctx context.Context, bus devreg.I2CBus) error) error {
	bus, closeBus, err := openI2C(c)
	if err != nil {
		return console.Exit(console.ExitFailure, "adapter initialization error: %s", console.Red(err))
	}
	defer closeBus()
	ctx, cancel := commandContext(c)
	defer cancel()
	return fn(ctx, bus)
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}
