package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/register"
	"github.com/mklimuk/devreg/regmap"
)

var regCmd = cli.Command{
	Name:  "reg",
	Usage: "access registers through a register map",
	Subcommands: cli.Commands{
		&regMapsCmd,
		&regListCmd,
		&regReadCmd,
		&regWriteCmd,
		&regEncodeCmd,
		&regDumpCmd,
		&regDecodeCmd,
	},
}

func addressFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "address",
		Usage: "device address overriding the default one, e.g. behind an address translator",
	}
}

var regMapsCmd = cli.Command{
	Name:  "maps",
	Usage: "list builtin register maps",
	Action: func(c *cli.Context) error {
		for _, name := range regmap.BuiltinNames() {
			console.Printf("%s\n", name)
		}
		return nil
	},
}

var regListCmd = cli.Command{
	Name:      "list",
	Usage:     "list the registers of a map",
	ArgsUsage: "<map>",
	Action: func(c *cli.Context) error {
		m, err := openMap(c)
		if err != nil {
			return err
		}
		console.Printf("%s at %s, %v framing\n", console.Bold(m.Name), m.Address, m.Framing)
		listRegisters(console.Output(), m)
		return nil
	},
}

var regReadCmd = cli.Command{
	Name:      "read",
	Aliases:   []string{"rd"},
	Usage:     "read and decode registers, all readable ones by default",
	ArgsUsage: "<map> [register...]",
	Flags:     []cli.Flag{addressFlag()},
	Action: func(c *cli.Context) error {
		m, err := openMap(c)
		if err != nil {
			return err
		}
		regs, err := selectRegisters(m, c.Args().Tail())
		if err != nil {
			return console.Exit(console.ExitFailure, "%s", err)
		}
		return withMapDevice(c, m, func(ctx context.Context, dev *device.Device) error {
			for _, desc := range regs {
				if err := desc.CheckRead(); err != nil {
					if len(regs) == 1 {
						return console.Fail("could not read register", err)
					}
					continue
				}
				values, data, err := readRegister(ctx, dev, desc)
				if err != nil {
					return console.Fail("could not read "+desc.Name(), err)
				}
				layout, _ := m.Layout(desc.Name())
				printRegister(ctx, console.Output(), desc, layout, values, data)
			}
			return nil
		})
	},
}

var regWriteCmd = cli.Command{
	Name:      "write",
	Aliases:   []string{"wr"},
	Usage:     "update register fields; readable registers are read first so other fields keep their value",
	ArgsUsage: "<map> <register> field=value...",
	Flags: []cli.Flag{
		addressFlag(),
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
		&cli.BoolFlag{Name: "defaults", Usage: "start from the field defaults instead of the current value"},
	},
	Action: func(c *cli.Context) error {
		m, err := openMap(c)
		if err != nil {
			return err
		}
		if c.NArg() < 2 {
			return console.Exit(console.ExitFailure, "expected register name")
		}
		desc, layout, err := lookupRegister(m, c.Args().Get(1))
		if err != nil {
			return console.Exit(console.ExitFailure, "%s", err)
		}
		if err := desc.CheckWrite(); err != nil {
			return console.Fail("could not write register", err)
		}
		return withMapDevice(c, m, func(ctx context.Context, dev *device.Device) error {
			base := desc.Default()
			if desc.Access()&register.Read != 0 && !c.Bool("defaults") {
				base, err = device.Read[bitfield.Values](ctx, dev, desc)
				if err != nil {
					return console.Fail("could not read current value", err)
				}
			}
			values, err := regmap.ParseAssignments(layout, base, c.Args().Slice()[2:])
			if err != nil {
				return console.Exit(console.ExitFailure, "%s", err)
			}
			data, err := desc.Codec().Encode(values)
			if err != nil {
				return console.Fail("could not encode "+desc.Name(), err)
			}
			printRegister(ctx, console.Output(), desc, layout, values, data)
			if !c.Bool("yes") {
				ok, err := console.Confirm(fmt.Sprintf("write %s to %s?", hex.EncodeToString(data), desc.Name()))
				if err != nil {
					return console.Exit(console.ExitFailure, "%s", err)
				}
				if !ok {
					console.Warnf("write aborted")
					return nil
				}
			}
			if err := device.Write[bitfield.Values](ctx, dev, desc, values); err != nil {
				return console.Fail("could not write "+desc.Name(), err)
			}
			console.Infof("wrote %s", console.Cyan(desc.Name()))
			return nil
		})
	},
}

var regEncodeCmd = cli.Command{
	Name:      "encode",
	Usage:     "print the bytes of a register value without touching the bus",
	ArgsUsage: "<map> <register> field=value...",
	Action: func(c *cli.Context) error {
		m, err := openMap(c)
		if err != nil {
			return err
		}
		desc, layout, err := lookupRegister(m, c.Args().Get(1))
		if err != nil {
			return console.Exit(console.ExitFailure, "%s", err)
		}
		values, err := regmap.ParseAssignments(layout, desc.Default(), c.Args().Tail()[1:])
		if err != nil {
			return console.Exit(console.ExitFailure, "%s", err)
		}
		data, err := desc.Codec().Encode(values)
		if err != nil {
			return console.Fail("could not encode "+desc.Name(), err)
		}
		console.Printf("%s\n", hex.EncodeToString(data))
		return nil
	},
}

var regDumpCmd = cli.Command{
	Name:      "dump",
	Usage:     "read every readable register into a CBOR snapshot",
	ArgsUsage: "<map>",
	Flags: []cli.Flag{
		addressFlag(),
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "snapshot file, stdout by default"},
	},
	Action: func(c *cli.Context) error {
		m, err := openMap(c)
		if err != nil {
			return err
		}
		return withMapDevice(c, m, func(ctx context.Context, dev *device.Device) error {
			s, err := m.Dump(ctx, dev)
			if err != nil {
				return console.Fail("dump failed", err)
			}
			var w io.Writer = os.Stdout
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return console.Exit(console.ExitFailure, "could not create snapshot file: %s", console.Red(err))
				}
				defer f.Close()
				w = f
			}
			if err := regmap.WriteSnapshot(w, s); err != nil {
				return console.Exit(console.ExitFailure, "%s", console.Red(err))
			}
			if c.String("out") != "" {
				console.Infof("dumped %d registers of %s", len(s.Registers), s.Device)
			}
			return nil
		})
	},
}

var regDecodeCmd = cli.Command{
	Name:      "decode",
	Usage:     "decode a snapshot with a register map",
	ArgsUsage: "<map> <snapshot>",
	Action: func(c *cli.Context) error {
		m, err := openMap(c)
		if err != nil {
			return err
		}
		f, err := os.Open(c.Args().Get(1))
		if err != nil {
			return console.Exit(console.ExitFailure, "could not open snapshot: %s", console.Red(err))
		}
		defer f.Close()
		s, err := regmap.ReadSnapshot(f)
		if err != nil {
			return console.Exit(console.ExitCodec, "%s", console.Red(err))
		}
		console.Printf("%s at %#x, taken %s\n", console.Bold(s.Device), s.Address, s.Taken.Local().Format("2006-01-02 15:04:05"))
		for _, dec := range m.Decode(s) {
			if dec.Err != nil {
				console.Warnf("%s: %s", dec.Name, dec.Err)
				continue
			}
			printFields(console.Output(), dec.Name, dec.Layout, dec.Values)
		}
		return nil
	},
}

func openMap(c *cli.Context) (*regmap.Device, error) {
	if c.NArg() < 1 {
		return nil, console.Exit(console.ExitFailure, "expected register map name or file")
	}
	m, err := regmap.Open(c.Args().First())
	if err != nil {
		return nil, console.Exit(console.ExitFailure, "%s", console.Red(err))
	}
	return m, nil
}

func withMapDevice(c *cli.Context, m *regmap.Device, fn func(ctx context.Context, dev *device.Device) error) error {
	address := m.Address
	if s := c.String("address"); s != "" {
		v, err := parseAddress(s)
		if err != nil {
			return console.Exit(console.ExitFailure, "%s", err)
		}
		address = devreg.CustomAddress(v)
	}
	return withI2C(c, func(ctx context.Context, bus devreg.I2CBus) error {
		dev := device.NewI2C(bus, address, m.Framing)
		defer dev.Close()
		return fn(ctx, dev)
	})
}

func lookupRegister(m *regmap.Device, name string) (*regmap.Descriptor, *bitfield.Layout, error) {
	desc, ok := m.Register(name)
	if !ok {
		return nil, nil, fmt.Errorf("map %s has no register %q", m.Name, name)
	}
	layout, _ := m.Layout(name)
	return desc, layout, nil
}

func selectRegisters(m *regmap.Device, names []string) ([]*regmap.Descriptor, error) {
	if len(names) == 0 {
		return m.Registers, nil
	}
	res := make([]*regmap.Descriptor, 0, len(names))
	for _, name := range names {
		desc, _, err := lookupRegister(m, name)
		if err != nil {
			return nil, err
		}
		res = append(res, desc)
	}
	return res, nil
}

func listRegisters(out io.Writer, m *regmap.Device) {
	w := tabwriter.NewWriter(out, 8, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "NAME\tADDRESS\tWIDTH\tACCESS\tFIELDS\n")
	for _, desc := range m.Registers {
		layout, _ := m.Layout(desc.Name())
		var fields []string
		for _, f := range layout.DataFields() {
			fields = append(fields, fmt.Sprintf("%s:%d", f.Name, f.Width))
		}
		_, _ = fmt.Fprintf(w, "%s\t%#04x\t%d\t%v\t%s\n", desc.Name(), desc.Address(), desc.Width(), desc.Access(), strings.Join(fields, " "))
	}
	_ = w.Flush()
}

// readRegister decodes desc through the device and returns the field values
// with their encoding, which has the reserved bits cleared.
func readRegister(ctx context.Context, dev *device.Device, desc *regmap.Descriptor) (bitfield.Values, []byte, error) {
	values, err := device.Read[bitfield.Values](ctx, dev, desc)
	if err != nil {
		return nil, nil, err
	}
	raw, err := desc.Codec().Encode(values)
	if err != nil {
		return nil, nil, err
	}
	return values, raw, nil
}

func printRegister(ctx context.Context, out io.Writer, desc *regmap.Descriptor, layout *bitfield.Layout, values bitfield.Values, raw []byte) {
	name := desc.Name()
	if console.IsVerbose(ctx) {
		name = fmt.Sprintf("%s %s", name, console.Faint(hex.EncodeToString(raw)))
	}
	printFields(out, name, layout, values)
}

func printFields(out io.Writer, name string, layout *bitfield.Layout, values bitfield.Values) {
	_, _ = fmt.Fprintf(out, "%s\n", console.Cyan(name))
	w := tabwriter.NewWriter(out, 8, 0, 2, ' ', 0)
	for _, fv := range regmap.Describe(layout, values) {
		_, _ = fmt.Fprintf(w, "  %s\t%s\n", fv.Name, console.White(fv.Value))
	}
	_ = w.Flush()
}
