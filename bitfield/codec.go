package bitfield

import "fmt"

// Codec converts between a record type and its fixed size wire bytes.
type Codec[T any] interface {
	Size() int
	Encode(v T) ([]byte, error)
	Decode(buf []byte) (T, error)
	Default() T
}

// Values is a schema-driven record keyed by field name. Int fields hold
// sign-extended two's complement.
type Values map[string]uint64

var _ Codec[Values] = (*Layout)(nil)

// Encode packs v. Fields missing from v take their declared default.
func (l *Layout) Encode(v Values) ([]byte, error) {
	known := 0
	values := make([]uint64, len(l.data))
	for i, idx := range l.data {
		f := l.fields[idx]
		raw, ok := v[f.Name]
		if !ok {
			raw = f.Default
		} else {
			known++
		}
		values[i] = raw
	}
	if known != len(v) {
		for name := range v {
			if !l.hasField(name) {
				return nil, fmt.Errorf("%w: %s: no field %q", ErrInvalidLayout, l.name, name)
			}
		}
	}
	return l.Pack(values)
}

func (l *Layout) Decode(buf []byte) (Values, error) {
	values, err := l.Unpack(buf)
	if err != nil {
		return nil, err
	}
	return l.named(values), nil
}

func (l *Layout) Default() Values {
	return l.named(l.DefaultValues())
}

// Field returns the data field called name.
func (l *Layout) Field(name string) (Field, bool) {
	for _, idx := range l.data {
		if l.fields[idx].Name == name {
			return l.fields[idx], true
		}
	}
	return Field{}, false
}

func (l *Layout) hasField(name string) bool {
	_, ok := l.Field(name)
	return ok
}

func (l *Layout) named(values []uint64) Values {
	res := make(Values, len(values))
	for i, idx := range l.data {
		res[l.fields[idx].Name] = values[i]
	}
	return res
}
