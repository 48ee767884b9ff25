package register

import "github.com/mklimuk/devreg/bitfield"

// Readable is satisfied by registers that may be read.
type Readable[T any] interface {
	Descriptor() *Descriptor[T]
	readable()
}

// Writable is satisfied by registers that may be written.
type Writable[T any] interface {
	Descriptor() *Descriptor[T]
	writable()
}

type ReadOnly[T any] struct{ d *Descriptor[T] }

func (r ReadOnly[T]) Descriptor() *Descriptor[T] { return r.d }
func (r ReadOnly[T]) readable()                  {}

type WriteOnly[T any] struct{ d *Descriptor[T] }

func (r WriteOnly[T]) Descriptor() *Descriptor[T] { return r.d }
func (r WriteOnly[T]) writable()                  {}

type ReadWrite[T any] struct{ d *Descriptor[T] }

func (r ReadWrite[T]) Descriptor() *Descriptor[T] { return r.d }
func (r ReadWrite[T]) readable()                  {}
func (r ReadWrite[T]) writable()                  {}

// DefineRO declares a read-only register whose record is the struct T. It
// panics on a definition error, so a broken register table fails at package
// initialisation rather than on first use.
func DefineRO[T any](name string, address uint32, width int, format bitfield.Format) ReadOnly[T] {
	return ReadOnly[T]{d: define[T](name, address, width, Read, format)}
}

// DefineWO declares a write-only register.
func DefineWO[T any](name string, address uint32, width int, format bitfield.Format) WriteOnly[T] {
	return WriteOnly[T]{d: define[T](name, address, width, Write, format)}
}

// DefineRW declares a read-write register.
func DefineRW[T any](name string, address uint32, width int, format bitfield.Format) ReadWrite[T] {
	return ReadWrite[T]{d: define[T](name, address, width, RW, format)}
}

func define[T any](name string, address uint32, width int, access Access, format bitfield.Format) *Descriptor[T] {
	codec, err := bitfield.Compile[T](format)
	if err != nil {
		panic("register " + name + ": " + err.Error())
	}
	d, err := New[T](name, address, width, access, codec)
	if err != nil {
		panic(err)
	}
	return d
}
