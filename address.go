package devreg

import "fmt"

// Address is the bus address of a device instance. It is either the vendor
// default or a caller supplied override, e.g. behind an address translator.
// Both forms resolve to the same integer.
type Address struct {
	value  uint16
	custom bool
}

// DefaultAddress returns the well-known address of a device family.
func DefaultAddress(value uint16) Address {
	return Address{value: value}
}

// CustomAddress returns an address that is not directly supported by the
// device but used on the bus, e.g. when a translator remaps it.
func CustomAddress(value uint16) Address {
	return Address{value: value, custom: true}
}

// Value resolves the address used in every transaction.
func (a Address) Value() uint16 {
	return a.value
}

func (a Address) IsCustom() bool {
	return a.custom
}

func (a Address) String() string {
	if a.custom {
		return fmt.Sprintf("custom(%#x)", a.value)
	}
	return fmt.Sprintf("%#x", a.value)
}
