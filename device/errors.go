package device

import (
	"errors"
	"fmt"
)

var (
	ErrBus      = errors.New("bus error")
	ErrCodec    = errors.New("codec error")
	ErrInFlight = errors.New("transaction already in flight")
)

type Kind uint8

const (
	// KindBus is a failure reported by the transport.
	KindBus Kind = iota + 1
	// KindCodec covers encoding, decoding and framing failures.
	KindCodec
)

func (k Kind) sentinel() error {
	if k == KindBus {
		return ErrBus
	}
	return ErrCodec
}

func (k Kind) String() string {
	return k.sentinel().Error()
}

// Error is returned by register operations. It matches ErrBus or ErrCodec
// with errors.Is, as well as the underlying transport or codec error.
type Error struct {
	Kind     Kind
	Register string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("register %s: %v: %v", e.Register, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

func busError(register string, err error) error {
	return &Error{Kind: KindBus, Register: register, Err: err}
}

func codecError(register string, err error) error {
	return &Error{Kind: KindCodec, Register: register, Err: err}
}
