package regmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mklimuk/devreg/bitfield"
)

// FieldValue is one decoded field ready for display.
type FieldValue struct {
	Name  string
	Raw   uint64
	Value string
}

// Describe renders the data fields of values in layout order. Enum fields
// show their variant name, int fields their signed value.
func Describe(layout *bitfield.Layout, values bitfield.Values) []FieldValue {
	fields := layout.DataFields()
	res := make([]FieldValue, 0, len(fields))
	for _, f := range fields {
		raw := values[f.Name]
		fv := FieldValue{Name: f.Name, Raw: raw}
		switch f.Kind {
		case bitfield.KindBool:
			fv.Value = strconv.FormatBool(raw == 1)
		case bitfield.KindInt:
			fv.Value = strconv.FormatInt(int64(raw), 10)
		case bitfield.KindEnum:
			if v, ok := f.Variant(raw); ok {
				fv.Value = v.Name
			} else {
				fv.Value = fmt.Sprintf("?%#x", raw)
			}
		default:
			fv.Value = fmt.Sprintf("%d (%#x)", raw, raw)
		}
		res = append(res, fv)
	}
	return res
}

// ParseAssignments builds values from "field=value" arguments. Enum values
// may be given by variant name, numbers in any Go integer literal base.
// Fields not assigned keep the value from base.
func ParseAssignments(layout *bitfield.Layout, base bitfield.Values, args []string) (bitfield.Values, error) {
	res := make(bitfield.Values, len(base))
	for k, v := range base {
		res[k] = v
	}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q, expected field=value", arg)
		}
		f, ok := layout.Field(name)
		if !ok {
			return nil, fmt.Errorf("register %s has no field %q", layout.Name(), name)
		}
		raw, err := parseFieldValue(f, value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		res[name] = raw
	}
	return res, nil
}

func parseFieldValue(f bitfield.Field, value string) (uint64, error) {
	switch f.Kind {
	case bitfield.KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case bitfield.KindInt:
		v, err := strconv.ParseInt(value, 0, 64)
		return uint64(v), err
	case bitfield.KindEnum:
		for _, v := range f.Variants {
			if strings.EqualFold(v.Name, value) {
				return v.Value, nil
			}
		}
	}
	return strconv.ParseUint(value, 0, 64)
}
