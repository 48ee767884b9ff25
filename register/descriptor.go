// Package register binds a record codec to a register address, a wire width
// and an access mode.
//
// Drivers declare their registers once, as package level variables:
//
//	var Config = register.DefineRW[ConfigRecord]("CONF", 0x00, 2, bitfield.MSB0LittleEndian)
//
// The handle types ReadOnly, WriteOnly and ReadWrite make an access mode
// violation a compile error: device.Write only accepts Writable registers.
package register

import (
	"errors"
	"fmt"

	"github.com/mklimuk/devreg/bitfield"
)

var (
	ErrNotReadable = errors.New("register is write-only")
	ErrNotWritable = errors.New("register is read-only")
)

type Access uint8

const (
	Read Access = 1 << iota
	Write
	RW = Read | Write
)

func (a Access) String() string {
	switch a {
	case Read:
		return "r"
	case Write:
		return "w"
	case RW:
		return "rw"
	default:
		return fmt.Sprintf("access(%d)", uint8(a))
	}
}

// ParseAccess accepts the short forms used in register maps.
func ParseAccess(s string) (Access, error) {
	switch s {
	case "r", "ro", "read":
		return Read, nil
	case "w", "wo", "write":
		return Write, nil
	case "rw", "read-write":
		return RW, nil
	}
	return 0, fmt.Errorf("unknown access mode %q", s)
}

// Descriptor is the immutable metadata of one register.
type Descriptor[T any] struct {
	name    string
	address uint32
	width   int
	access  Access
	codec   bitfield.Codec[T]
}

// New validates that the declared width matches what the codec produces.
func New[T any](name string, address uint32, width int, access Access, codec bitfield.Codec[T]) (*Descriptor[T], error) {
	if access&RW == 0 || access&^RW != 0 {
		return nil, fmt.Errorf("register %s: invalid access mode %v", name, access)
	}
	if codec.Size() != width {
		return nil, fmt.Errorf("register %s: %w", name, &bitfield.CodecError{
			Err:    bitfield.ErrWidthMismatch,
			Layout: name,
			Want:   width,
			Got:    codec.Size(),
		})
	}
	return &Descriptor[T]{name: name, address: address, width: width, access: access, codec: codec}, nil
}

func (d *Descriptor[T]) Name() string             { return d.name }
func (d *Descriptor[T]) Address() uint32          { return d.address }
func (d *Descriptor[T]) Width() int               { return d.width }
func (d *Descriptor[T]) Access() Access           { return d.access }
func (d *Descriptor[T]) Codec() bitfield.Codec[T] { return d.codec }

// Default returns the record built from the declared field defaults.
func (d *Descriptor[T]) Default() T {
	return d.codec.Default()
}

// CheckRead reports a contract violation for registers that cannot be read.
func (d *Descriptor[T]) CheckRead() error {
	if d.access&Read == 0 {
		return fmt.Errorf("register %s (%#x): %w", d.name, d.address, ErrNotReadable)
	}
	return nil
}

// CheckWrite reports a contract violation for registers that cannot be written.
func (d *Descriptor[T]) CheckWrite() error {
	if d.access&Write == 0 {
		return fmt.Errorf("register %s (%#x): %w", d.name, d.address, ErrNotWritable)
	}
	return nil
}

func (d *Descriptor[T]) String() string {
	return fmt.Sprintf("%s@%#x[%d]%v", d.name, d.address, d.width, d.access)
}

// Descriptor lets a plain descriptor be used where a handle is expected.
// Its access mode is then only checked at run time.
func (d *Descriptor[T]) Descriptor() *Descriptor[T] { return d }

func (d *Descriptor[T]) readable() {}
func (d *Descriptor[T]) writable() {}
