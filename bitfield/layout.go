// Package bitfield packs typed register records into their wire bytes and
// back.
//
// A layout covers a whole number of bytes. The bytes form a single unsigned
// register value which is serialized most significant byte first
// (BigEndian) or least significant byte first (LittleEndian). Fields are
// placed in declaration order by cumulative bit offset:
//
//   - MSBFirst: offset 0 is the most significant bit of the register value,
//     so the first declared field holds the top bits (datasheet order,
//     equivalent to "msb0");
//   - LSBFirst: offset 0 is the least significant bit of the register value.
//
// Inside a field the value's most significant bit always sits on the higher
// register bit. Reserved ranges are written as zero and ignored on decode.
package bitfield

import (
	"fmt"
	"slices"
)

type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

func (o BitOrder) String() string {
	if o == LSBFirst {
		return "lsb0"
	}
	return "msb0"
}

type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "le"
	}
	return "be"
}

// Format selects the bit and byte order of a whole layout. A layout cannot
// mix orders.
type Format struct {
	Order     BitOrder
	ByteOrder ByteOrder
}

var (
	MSB0BigEndian    = Format{Order: MSBFirst, ByteOrder: BigEndian}
	MSB0LittleEndian = Format{Order: MSBFirst, ByteOrder: LittleEndian}
	LSB0BigEndian    = Format{Order: LSBFirst, ByteOrder: BigEndian}
	LSB0LittleEndian = Format{Order: LSBFirst, ByteOrder: LittleEndian}
)

type Kind uint8

const (
	KindReserved Kind = iota
	KindBool
	KindUint
	KindInt
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindReserved:
		return "reserved"
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Variant is one named value of an enum field.
type Variant struct {
	Name  string
	Value uint64
}

// Field describes one bit range of a layout. Int defaults and values are
// carried as sign-extended two's complement.
type Field struct {
	Name     string
	Kind     Kind
	Width    int
	Default  uint64
	Variants []Variant
}

// Variant looks up the variant matching raw.
func (f Field) Variant(raw uint64) (Variant, bool) {
	for _, v := range f.Variants {
		if v.Value == raw {
			return v, true
		}
	}
	return Variant{}, false
}

// Layout is a validated field table. It is immutable once built and safe for
// concurrent use.
type Layout struct {
	name   string
	size   int
	format Format
	fields []Field
	// lo holds the lowest register value bit of each field
	lo []int
	// data indexes the non-reserved fields
	data []int
}

// NewLayout validates the field table: widths must add up to size bytes,
// names of data fields must be unique and defaults and variants must fit
// their fields.
func NewLayout(name string, size int, format Format, fields ...Field) (*Layout, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s: size must be positive, got %d", ErrInvalidLayout, name, size)
	}
	l := &Layout{
		name:   name,
		size:   size,
		format: format,
		fields: slices.Clone(fields),
		lo:     make([]int, len(fields)),
	}
	total := size * 8
	names := make(map[string]struct{}, len(fields))
	offset := 0
	for i, f := range l.fields {
		if err := l.validateField(f); err != nil {
			return nil, err
		}
		if f.Kind != KindReserved {
			if _, dup := names[f.Name]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidLayout, name, f.Name)
			}
			names[f.Name] = struct{}{}
			l.data = append(l.data, i)
		}
		if format.Order == LSBFirst {
			l.lo[i] = offset
		} else {
			l.lo[i] = total - offset - f.Width
		}
		offset += f.Width
	}
	if offset != total {
		return nil, &CodecError{Err: ErrWidthMismatch, Layout: name, Want: total, Got: offset}
	}
	return l, nil
}

// MustLayout is like NewLayout but panics on a definition error. It is meant
// for package level layout tables.
func MustLayout(name string, size int, format Format, fields ...Field) *Layout {
	l, err := NewLayout(name, size, format, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) validateField(f Field) error {
	if f.Width <= 0 || f.Width > 64 {
		return fmt.Errorf("%w: %s.%s: width %d out of range 1..64", ErrInvalidLayout, l.name, f.Name, f.Width)
	}
	switch f.Kind {
	case KindReserved:
		return nil
	case KindBool:
		if f.Width != 1 {
			return fmt.Errorf("%w: %s.%s: bool must be 1 bit wide, got %d", ErrInvalidLayout, l.name, f.Name, f.Width)
		}
	case KindUint, KindInt:
	case KindEnum:
		if len(f.Variants) == 0 {
			return fmt.Errorf("%w: %s.%s: enum without variants", ErrInvalidLayout, l.name, f.Name)
		}
		seen := make(map[uint64]struct{}, len(f.Variants))
		for _, v := range f.Variants {
			if v.Value&^mask(f.Width) != 0 {
				return fieldTooWide(l.name, f.Name+"."+v.Name, v.Value, f.Width)
			}
			if _, dup := seen[v.Value]; dup {
				return fmt.Errorf("%w: %s.%s: duplicate variant value %#x", ErrInvalidLayout, l.name, f.Name, v.Value)
			}
			seen[v.Value] = struct{}{}
		}
	default:
		return fmt.Errorf("%w: %s.%s: unknown kind %v", ErrInvalidLayout, l.name, f.Name, f.Kind)
	}
	if f.Name == "" {
		return fmt.Errorf("%w: %s: data field without a name", ErrInvalidLayout, l.name)
	}
	if _, err := l.check(f, f.Default); err != nil {
		return fmt.Errorf("%w: default: %w", ErrInvalidLayout, err)
	}
	return nil
}

func (l *Layout) Name() string   { return l.name }
func (l *Layout) Size() int      { return l.size }
func (l *Layout) Format() Format { return l.format }

// Fields returns every field including reserved ranges, in declaration order.
func (l *Layout) Fields() []Field {
	return slices.Clone(l.fields)
}

// DataFields returns the fields that carry values, in the order Pack expects
// them.
func (l *Layout) DataFields() []Field {
	res := make([]Field, len(l.data))
	for i, idx := range l.data {
		res[i] = l.fields[idx]
	}
	return res
}

// Pack encodes one value per data field. Values of int fields are passed as
// sign-extended two's complement.
func (l *Layout) Pack(values []uint64) ([]byte, error) {
	if len(values) != len(l.data) {
		return nil, fmt.Errorf("%w: %s: expected %d values, got %d", ErrInvalidLayout, l.name, len(l.data), len(values))
	}
	buf := make([]byte, l.size)
	for i, idx := range l.data {
		f := l.fields[idx]
		raw, err := l.check(f, values[i])
		if err != nil {
			return nil, err
		}
		l.put(buf, l.lo[idx], f.Width, raw)
	}
	return buf, nil
}

// Unpack decodes one value per data field. Reserved bits are never looked at.
func (l *Layout) Unpack(buf []byte) ([]uint64, error) {
	if len(buf) != l.size {
		return nil, sizeMismatch(l.name, l.size, len(buf))
	}
	values := make([]uint64, len(l.data))
	for i, idx := range l.data {
		f := l.fields[idx]
		raw := l.get(buf, l.lo[idx], f.Width)
		switch f.Kind {
		case KindEnum:
			if _, ok := f.Variant(raw); !ok {
				return nil, unknownVariant(l.name, f.Name, raw)
			}
		case KindInt:
			raw = signExtend(raw, f.Width)
		}
		values[i] = raw
	}
	return values, nil
}

// DefaultValues returns the declared default of every data field.
func (l *Layout) DefaultValues() []uint64 {
	values := make([]uint64, len(l.data))
	for i, idx := range l.data {
		values[i] = l.fields[idx].Default
	}
	return values
}

// check validates a field value and returns the raw bits to store.
func (l *Layout) check(f Field, v uint64) (uint64, error) {
	if f.Kind == KindInt {
		s := int64(v)
		if f.Width < 64 {
			limit := int64(1) << (f.Width - 1)
			if s < -limit || s >= limit {
				return 0, fieldTooWide(l.name, f.Name, v, f.Width)
			}
		}
		return v & mask(f.Width), nil
	}
	if v&^mask(f.Width) != 0 {
		return 0, fieldTooWide(l.name, f.Name, v, f.Width)
	}
	if f.Kind == KindEnum {
		if _, ok := f.Variant(v); !ok {
			return 0, unknownVariant(l.name, f.Name, v)
		}
	}
	return v, nil
}

func (l *Layout) put(buf []byte, lo, width int, v uint64) {
	for j := 0; j < width; j++ {
		if v>>j&1 == 0 {
			continue
		}
		k := lo + j
		buf[l.byteIndex(k)] |= 1 << (k % 8)
	}
}

func (l *Layout) get(buf []byte, lo, width int) uint64 {
	var v uint64
	for j := 0; j < width; j++ {
		k := lo + j
		if buf[l.byteIndex(k)]>>(k%8)&1 == 1 {
			v |= 1 << j
		}
	}
	return v
}

// byteIndex maps a register value bit to the wire byte holding it.
func (l *Layout) byteIndex(bit int) int {
	if l.format.ByteOrder == LittleEndian {
		return bit / 8
	}
	return l.size - 1 - bit/8
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<width - 1
}

func signExtend(raw uint64, width int) uint64 {
	if width < 64 && raw>>(width-1)&1 == 1 {
		return raw | ^mask(width)
	}
	return raw
}
