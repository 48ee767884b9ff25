package regmap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/register"
)

var snapshotEncMode cbor.EncMode

var snapshotDecMode cbor.DecMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	snapshotEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	snapshotDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// Snapshot holds the raw contents of a device's readable registers at one
// point in time.
type Snapshot struct {
	Device    string         `cbor:"1,keyasint"`
	Address   uint16         `cbor:"2,keyasint"`
	Taken     time.Time      `cbor:"3,keyasint"`
	Registers []RegisterDump `cbor:"4,keyasint"`
}

type RegisterDump struct {
	Name    string `cbor:"1,keyasint"`
	Address uint32 `cbor:"2,keyasint"`
	Data    []byte `cbor:"3,keyasint"`
}

func WriteSnapshot(w io.Writer, s Snapshot) error {
	if err := snapshotEncMode.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("could not encode snapshot: %w", err)
	}
	return nil
}

func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := snapshotDecMode.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("could not decode snapshot: %w", err)
	}
	return s, nil
}

// Dump reads every readable register of the map from dev.
func (d *Device) Dump(ctx context.Context, dev *device.Device) (Snapshot, error) {
	s := Snapshot{Device: d.Name, Address: dev.Address().Value(), Taken: time.Now().UTC()}
	for _, desc := range d.Registers {
		if desc.Access()&register.Read == 0 {
			continue
		}
		data, err := dev.ReadBytes(ctx, desc.Address(), desc.Width())
		if err != nil {
			return s, fmt.Errorf("could not dump %s: %w", desc.Name(), err)
		}
		s.Registers = append(s.Registers, RegisterDump{Name: desc.Name(), Address: desc.Address(), Data: data})
	}
	return s, nil
}

// Decoded is one register of a snapshot decoded with a register map.
type Decoded struct {
	Name   string
	Layout *bitfield.Layout
	Values bitfield.Values
	Err    error
}

// Decode interprets the dumped registers with the map. Registers missing from
// the map or failing to decode carry an error and are still listed.
func (d *Device) Decode(s Snapshot) []Decoded {
	res := make([]Decoded, 0, len(s.Registers))
	for _, dump := range s.Registers {
		dec := Decoded{Name: dump.Name}
		desc, ok := d.Register(dump.Name)
		if !ok {
			dec.Err = fmt.Errorf("register %s is not in map %s", dump.Name, d.Name)
			res = append(res, dec)
			continue
		}
		dec.Layout = d.layouts[dump.Name]
		dec.Values, dec.Err = desc.Codec().Decode(dump.Data)
		res = append(res, dec)
	}
	return res
}
