// Package regmap loads register maps of devices from YAML documents so tools
// can access registers without a compiled driver.
//
//	name: veml7700
//	address: 0x10
//	framing: i2c8
//	registers:
//	  - name: ALS_CONF
//	    address: 0x00
//	    width: 2
//	    access: rw
//	    order: msb0
//	    byte_order: le
//	    fields:
//	      - {bits: 3, kind: reserved}
//	      - name: gain
//	        bits: 2
//	        kind: enum
//	        default: 2
//	        variants:
//	          - {name: X_1, value: 0}
//	          - {name: X_2, value: 1}
package regmap

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

type Map struct {
	Name      string     `yaml:"name"`
	Address   uint16     `yaml:"address"`
	Framing   string     `yaml:"framing"`
	Registers []Register `yaml:"registers"`
}

type Register struct {
	Name      string  `yaml:"name"`
	Address   uint32  `yaml:"address"`
	Width     int     `yaml:"width"`
	Access    string  `yaml:"access"`
	Order     string  `yaml:"order,omitempty"`
	ByteOrder string  `yaml:"byte_order,omitempty"`
	Fields    []Field `yaml:"fields"`
}

type Field struct {
	Name     string    `yaml:"name,omitempty"`
	Bits     int       `yaml:"bits"`
	Kind     string    `yaml:"kind,omitempty"`
	Default  int64     `yaml:"default,omitempty"`
	Variants []Variant `yaml:"variants,omitempty"`
}

type Variant struct {
	Name  string `yaml:"name"`
	Value uint64 `yaml:"value"`
}

// Descriptor is a register described at run time.
type Descriptor = register.Descriptor[bitfield.Values]

// Device is a compiled register map.
type Device struct {
	Name      string
	Address   devreg.Address
	Framing   framing.Codec
	Registers []*Descriptor
	layouts   map[string]*bitfield.Layout
}

// Register finds a register by name.
func (d *Device) Register(name string) (*Descriptor, bool) {
	idx := slices.IndexFunc(d.Registers, func(r *Descriptor) bool { return r.Name() == name })
	if idx < 0 {
		return nil, false
	}
	return d.Registers[idx], true
}

// Layout returns the field layout of register name.
func (d *Device) Layout(name string) (*bitfield.Layout, bool) {
	l, ok := d.layouts[name]
	return l, ok
}

func LoadFile(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open register map: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Device, error) {
	var m Map
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("could not decode register map: %w", err)
	}
	return m.Compile()
}

// Parse is Load for in-memory documents.
func Parse(data []byte) (*Device, error) {
	return Load(bytes.NewReader(data))
}

// Compile validates the map and builds its descriptors.
func (m *Map) Compile() (*Device, error) {
	codec, err := ParseFraming(m.Framing)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	d := &Device{
		Name:    m.Name,
		Address: devreg.DefaultAddress(m.Address),
		Framing: codec,
		layouts: make(map[string]*bitfield.Layout, len(m.Registers)),
	}
	for _, r := range m.Registers {
		if _, ok := d.layouts[r.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate register %q", m.Name, r.Name)
		}
		layout, desc, err := r.compile()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		d.layouts[r.Name] = layout
		d.Registers = append(d.Registers, desc)
	}
	return d, nil
}

func (r Register) compile() (*bitfield.Layout, *Descriptor, error) {
	format, err := parseFormat(r.Order, r.ByteOrder)
	if err != nil {
		return nil, nil, fmt.Errorf("register %s: %w", r.Name, err)
	}
	access, err := register.ParseAccess(r.Access)
	if err != nil {
		return nil, nil, fmt.Errorf("register %s: %w", r.Name, err)
	}
	fields := make([]bitfield.Field, len(r.Fields))
	for i, f := range r.Fields {
		fields[i], err = f.compile()
		if err != nil {
			return nil, nil, fmt.Errorf("register %s: %w", r.Name, err)
		}
	}
	if len(fields) == 0 {
		// a register without fields is a plain unsigned value
		fields = []bitfield.Field{{Name: "value", Kind: bitfield.KindUint, Width: r.Width * 8}}
	}
	layout, err := bitfield.NewLayout(r.Name, r.Width, format, fields...)
	if err != nil {
		return nil, nil, err
	}
	desc, err := register.New[bitfield.Values](r.Name, r.Address, r.Width, access, layout)
	if err != nil {
		return nil, nil, err
	}
	return layout, desc, nil
}

func (f Field) compile() (bitfield.Field, error) {
	kind, err := parseKind(f.Kind, f.Name)
	if err != nil {
		return bitfield.Field{}, err
	}
	res := bitfield.Field{Name: f.Name, Kind: kind, Width: f.Bits, Default: uint64(f.Default)}
	for _, v := range f.Variants {
		res.Variants = append(res.Variants, bitfield.Variant{Name: v.Name, Value: v.Value})
	}
	if kind == bitfield.KindReserved {
		res.Name = ""
	}
	return res, nil
}

func parseKind(kind, name string) (bitfield.Kind, error) {
	switch kind {
	case "reserved":
		return bitfield.KindReserved, nil
	case "bool":
		return bitfield.KindBool, nil
	case "uint", "":
		if name == "" {
			return bitfield.KindReserved, nil
		}
		return bitfield.KindUint, nil
	case "int":
		return bitfield.KindInt, nil
	case "enum":
		return bitfield.KindEnum, nil
	}
	return 0, fmt.Errorf("field %s: unknown kind %q", name, kind)
}

func parseFormat(order, byteOrder string) (bitfield.Format, error) {
	var format bitfield.Format
	switch order {
	case "msb0", "":
		format.Order = bitfield.MSBFirst
	case "lsb0":
		format.Order = bitfield.LSBFirst
	default:
		return format, fmt.Errorf("unknown bit order %q", order)
	}
	switch byteOrder {
	case "be", "":
		format.ByteOrder = bitfield.BigEndian
	case "le":
		format.ByteOrder = bitfield.LittleEndian
	default:
		return format, fmt.Errorf("unknown byte order %q", byteOrder)
	}
	return format, nil
}

// ParseFraming maps framing names used in register maps and on the command
// line to codecs.
func ParseFraming(name string) (framing.Codec, error) {
	switch name {
	case "i2c8", "":
		return framing.I2C8, nil
	case "i2c16":
		return framing.I2C16, nil
	case "crc8":
		return framing.CRC8Words{}, nil
	case "spi":
		return framing.SPIReadBit7, nil
	}
	return nil, fmt.Errorf("unknown framing %q", name)
}
