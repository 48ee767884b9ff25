package bitfield

import (
	"fmt"
	"reflect"
	"strconv"
)

// Enum is implemented by named unsigned integer types holding a closed set of
// values. Variants lists every valid value; decoding any other bit pattern
// fails with ErrUnknownVariant. Implementing fmt.Stringer names the variants.
type Enum interface {
	Variants() []uint64
}

// VariantsOf is a helper for Enum implementations.
func VariantsOf[E ~uint8 | ~uint16 | ~uint32 | ~uint64](values ...E) []uint64 {
	res := make([]uint64, len(values))
	for i, v := range values {
		res[i] = uint64(v)
	}
	return res
}

var enumType = reflect.TypeFor[Enum]()

// StructCodec encodes plain Go structs. Fields map to bit ranges in
// declaration order:
//
//	type Config struct {
//		_        uint8 `bits:"3"`
//		Gain     Gain  `bits:"2" default:"0b10"`
//		_        uint8 `bits:"1"`
//		Shutdown bool
//	}
//
// Blank fields are reserved ranges and need a bits tag. bool fields take one
// bit, integer and enum fields default to the size of their Go type. Signed
// integer fields are two's complement.
type StructCodec[T any] struct {
	layout *Layout
	// index holds the struct field index of each data field
	index []int
}

var _ Codec[struct{}] = (*StructCodec[struct{}])(nil)

// Compile builds the codec for T once. The layout takes its name from T.
func Compile[T any](format Format) (*StructCodec[T], error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrInvalidLayout, t)
	}
	var (
		fields []Field
		index  []int
		bits   int
	)
	for i := range t.NumField() {
		sf := t.Field(i)
		f, err := structField(t, sf)
		if err != nil {
			return nil, err
		}
		if f.Kind != KindReserved {
			index = append(index, i)
		}
		fields = append(fields, f)
		bits += f.Width
	}
	if bits == 0 || bits%8 != 0 {
		return nil, &CodecError{Err: ErrWidthMismatch, Layout: t.Name(), Want: (bits + 7) / 8 * 8, Got: bits}
	}
	layout, err := NewLayout(t.Name(), bits/8, format, fields...)
	if err != nil {
		return nil, err
	}
	return &StructCodec[T]{layout: layout, index: index}, nil
}

// MustCompile is like Compile but panics on a definition error.
func MustCompile[T any](format Format) *StructCodec[T] {
	c, err := Compile[T](format)
	if err != nil {
		panic(err)
	}
	return c
}

func structField(t reflect.Type, sf reflect.StructField) (Field, error) {
	width := 0
	if tag, ok := sf.Tag.Lookup("bits"); ok {
		w, err := strconv.Atoi(tag)
		if err != nil {
			return Field{}, fmt.Errorf("%w: %v.%s: bad bits tag %q", ErrInvalidLayout, t, sf.Name, tag)
		}
		width = w
	}
	if sf.Name == "_" {
		if width == 0 {
			return Field{}, fmt.Errorf("%w: %v: reserved field without bits tag", ErrInvalidLayout, t)
		}
		return Field{Kind: KindReserved, Width: width}, nil
	}
	if !sf.IsExported() {
		return Field{}, fmt.Errorf("%w: %v.%s: unexported field", ErrInvalidLayout, t, sf.Name)
	}
	f := Field{Name: sf.Name, Width: width}
	switch ft := sf.Type; {
	case ft.Implements(enumType):
		if !isUnsigned(ft.Kind()) {
			return Field{}, fmt.Errorf("%w: %v.%s: enum %v must be an unsigned integer", ErrInvalidLayout, t, sf.Name, ft)
		}
		f.Kind = KindEnum
		f.Variants = enumVariants(ft)
	case ft.Kind() == reflect.Bool:
		f.Kind = KindBool
		if f.Width == 0 {
			f.Width = 1
		}
	case isUnsigned(ft.Kind()):
		f.Kind = KindUint
	case isSigned(ft.Kind()):
		f.Kind = KindInt
	default:
		return Field{}, fmt.Errorf("%w: %v.%s: unsupported type %v", ErrInvalidLayout, t, sf.Name, ft)
	}
	if f.Kind != KindBool {
		if f.Width == 0 {
			f.Width = sf.Type.Bits()
		}
		if f.Width > sf.Type.Bits() {
			return Field{}, fmt.Errorf("%w: %v.%s: %d bits do not fit %v", ErrInvalidLayout, t, sf.Name, f.Width, sf.Type)
		}
	}
	if tag, ok := sf.Tag.Lookup("default"); ok {
		def, err := parseDefault(f.Kind, tag)
		if err != nil {
			return Field{}, fmt.Errorf("%w: %v.%s: bad default %q: %w", ErrInvalidLayout, t, sf.Name, tag, err)
		}
		f.Default = def
	}
	return f, nil
}

func enumVariants(t reflect.Type) []Variant {
	values := reflect.Zero(t).Interface().(Enum).Variants()
	res := make([]Variant, len(values))
	for i, v := range values {
		rv := reflect.New(t).Elem()
		rv.SetUint(v)
		name := strconv.FormatUint(v, 10)
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			name = s.String()
		}
		res[i] = Variant{Name: name, Value: v}
	}
	return res
}

func parseDefault(kind Kind, s string) (uint64, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case KindInt:
		v, err := strconv.ParseInt(s, 0, 64)
		return uint64(v), err
	default:
		return strconv.ParseUint(s, 0, 64)
	}
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return true
	}
	return false
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return true
	}
	return false
}

// Layout exposes the compiled field table.
func (c *StructCodec[T]) Layout() *Layout {
	return c.layout
}

func (c *StructCodec[T]) Size() int {
	return c.layout.size
}

func (c *StructCodec[T]) Encode(v T) ([]byte, error) {
	rv := reflect.ValueOf(v)
	values := make([]uint64, len(c.index))
	for i, idx := range c.index {
		fv := rv.Field(idx)
		switch fv.Kind() {
		case reflect.Bool:
			if fv.Bool() {
				values[i] = 1
			}
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			values[i] = uint64(fv.Int())
		default:
			values[i] = fv.Uint()
		}
	}
	return c.layout.Pack(values)
}

func (c *StructCodec[T]) Decode(buf []byte) (T, error) {
	var v T
	values, err := c.layout.Unpack(buf)
	if err != nil {
		return v, err
	}
	c.fill(&v, values)
	return v, nil
}

func (c *StructCodec[T]) Default() T {
	var v T
	c.fill(&v, c.layout.DefaultValues())
	return v
}

func (c *StructCodec[T]) fill(v *T, values []uint64) {
	rv := reflect.ValueOf(v).Elem()
	for i, idx := range c.index {
		fv := rv.Field(idx)
		switch fv.Kind() {
		case reflect.Bool:
			fv.SetBool(values[i] == 1)
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			fv.SetInt(int64(values[i]))
		default:
			fv.SetUint(values[i])
		}
	}
}
