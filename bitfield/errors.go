package bitfield

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVariant = errors.New("unknown enum variant")
	ErrWidthMismatch  = errors.New("width mismatch")
	ErrInvalidLayout  = errors.New("invalid layout")
)

// CodecError reports an encode or decode failure together with the layout
// and field that caused it. Err is ErrUnknownVariant or ErrWidthMismatch.
type CodecError struct {
	Err    error
	Layout string
	Field  string
	// Raw is the offending field value (unknown variant, value too wide).
	Raw uint64
	// Want and Got are bit counts for field and layout errors and byte
	// counts for buffer size errors.
	Want int
	Got  int
}

func (e *CodecError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %v: want %d, got %d", e.Layout, e.Err, e.Want, e.Got)
	case errors.Is(e.Err, ErrUnknownVariant):
		return fmt.Sprintf("%s.%s: %v %#x", e.Layout, e.Field, e.Err, e.Raw)
	default:
		return fmt.Sprintf("%s.%s: %v: value %#x does not fit %d bits", e.Layout, e.Field, e.Err, e.Raw, e.Want)
	}
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func unknownVariant(layout, field string, raw uint64) error {
	return &CodecError{Err: ErrUnknownVariant, Layout: layout, Field: field, Raw: raw}
}

func fieldTooWide(layout, field string, raw uint64, width int) error {
	return &CodecError{Err: ErrWidthMismatch, Layout: layout, Field: field, Raw: raw, Want: width}
}

func sizeMismatch(layout string, want, got int) error {
	return &CodecError{Err: ErrWidthMismatch, Layout: layout, Want: want, Got: got}
}
