package air

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/framing"
)

// AGS02MA default 7-bit I2C address is 0x1A.
// Datasheet also mentions write/read instructions 0x34/0x35 which are the
// 8-bit bus addresses (0x1A<<1 | 0 for write, | 1 for read) used on the wire.
const ags02maAddress = 0x1A

// Register/command map (per datasheet)
const (
	regTVOC       uint32 = 0x00
	regCalibrate  uint32 = 0x01
	regVersion    uint32 = 0x11
	regResistance uint32 = 0x20
)

var ErrNotReady = errors.New("ags02ma: data not ready or sensor in pre-heat stage")

const (
	TVOCModeDirectRead    byte = 0x00
	TVOCModeRegisterWrite byte = 0x01
)

// every response is a four byte word followed by its CRC
var frame = framing.CRC8Words{Prefix: framing.RegisterPrefix{Width: 1}, Word: 4}

// TVOC is the measurement word. After power-on DataType is 0, meaning ppb.
type TVOC struct {
	_        uint8  `bits:"4"`
	DataType uint8  `bits:"3"`
	NotReady bool   `default:"true"`
	PPB      uint32 `bits:"24"`
}

type Version struct {
	_       uint32 `bits:"24"`
	Version uint8
}

type Resistance struct {
	Value uint32
}

var (
	tvocCodec       = bitfield.MustCompile[TVOC](bitfield.MSB0BigEndian)
	versionCodec    = bitfield.MustCompile[Version](bitfield.MSB0BigEndian)
	resistanceCodec = bitfield.MustCompile[Resistance](bitfield.MSB0BigEndian)
)

type AGS02MAOpts struct {
	ConfigureDelay time.Duration
	ReadDelay      time.Duration
	TxDelay        time.Duration
	TVOCMode       byte
}

type AGS02MAOpt func(*AGS02MAOpts)

func WithConfigureDelay(delay time.Duration) AGS02MAOpt {
	return func(o *AGS02MAOpts) {
		o.ConfigureDelay = delay
	}
}

func WithReadDelay(delay time.Duration) AGS02MAOpt {
	return func(o *AGS02MAOpts) {
		o.ReadDelay = delay
	}
}

func WithTxDelay(delay time.Duration) AGS02MAOpt {
	return func(o *AGS02MAOpts) {
		o.TxDelay = delay
	}
}

func WithTVOCMode(mode byte) AGS02MAOpt {
	return func(o *AGS02MAOpts) {
		o.TVOCMode = mode
	}
}

// AGS02MA represents Aosong AGS02MA TVOC sensor.
// Typical usage:
//
//	s := NewAGS02MA(bus)
//	v, err := s.GetTVOC(ctx)
//
// Value is returned in parts-per-billion (ppb) as integer.
// Note: The sensor requires a slow I2C clock (<= 30 kHz). Ensure adapter supports it.
//
// The sensor needs a pause between selecting a register and reading it, so
// it drives the bus directly instead of going through device.Device.
type AGS02MA struct {
	mx        sync.Mutex
	delayDone chan struct{} // closed when delay after last operation completes
	delayMx   sync.Mutex    // protects delayDone channel

	config AGS02MAOpts

	transport devreg.I2CBus
	addr      uint16
}

func NewAGS02MA(transport devreg.I2CBus, opts ...AGS02MAOpt) *AGS02MA {
	config := AGS02MAOpts{
		ConfigureDelay: 2 * time.Second,
		ReadDelay:      1500 * time.Millisecond,
		TxDelay:        100 * time.Millisecond,
		TVOCMode:       TVOCModeRegisterWrite,
	}
	for _, opt := range opts {
		opt(&config)
	}
	// Create a closed channel so first operation can proceed immediately
	ch := make(chan struct{})
	close(ch)
	return &AGS02MA{
		config:    config,
		transport: transport,
		addr:      ags02maAddress,
		delayDone: ch,
	}
}

// waitForDelay waits for any pending delay from previous operations to complete.
func (s *AGS02MA) waitForDelay(ctx context.Context) error {
	s.delayMx.Lock()
	ch := s.delayDone
	s.delayMx.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scheduleDelay schedules a delay in a goroutine and updates delayDone channel when complete.
func (s *AGS02MA) scheduleDelay(ctx context.Context, duration time.Duration) {
	s.delayMx.Lock()
	ch := make(chan struct{})
	s.delayDone = ch
	s.delayMx.Unlock()

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			close(ch)
		case <-ctx.Done():
			close(ch)
		}
	}()
}

func (s *AGS02MA) Close(ctx context.Context) {
	_ = s.waitForDelay(ctx)
}

// Configure selects the TVOC ppb data type.
func (s *AGS02MA) Configure(ctx context.Context) error {
	if err := s.waitForDelay(ctx); err != nil {
		return err
	}
	tx, err := frame.FrameWrite(s.addr, regTVOC, []byte{0x00, 0xFF, 0x00, 0xFF})
	if err != nil {
		return fmt.Errorf("ags02ma: could not frame configuration: %w", err)
	}
	s.mx.Lock()
	err = s.transport.WriteToAddr(ctx, s.addr, tx.Write)
	s.mx.Unlock()
	if err != nil {
		return fmt.Errorf("ags02ma: configuration write failed: %w", err)
	}
	s.scheduleDelay(ctx, s.config.ConfigureDelay)
	return nil
}

// GetTVOC performs a "master direct read" or "register write" as described in the datasheet.
// The mode is determined by the TVOCMode configuration option.
func (s *AGS02MA) GetTVOC(ctx context.Context) (uint32, error) {
	if s.config.TVOCMode == TVOCModeDirectRead {
		return s.GetTVOCDirectRead(ctx)
	}
	return s.GetTVOCWithRegisterWrite(ctx)
}

// GetTVOCDirectRead reads the measurement without selecting the register
// first.
func (s *AGS02MA) GetTVOCDirectRead(ctx context.Context) (uint32, error) {
	if err := s.waitForDelay(ctx); err != nil {
		return 0, err
	}
	data, err := s.read(ctx, regTVOC, false)
	if err != nil {
		return 0, err
	}
	return s.tvoc(ctx, data)
}

// GetTVOCWithRegisterWrite explicitly writes register 0x00 and then reads.
func (s *AGS02MA) GetTVOCWithRegisterWrite(ctx context.Context) (uint32, error) {
	if err := s.waitForDelay(ctx); err != nil {
		return 0, err
	}
	data, err := s.read(ctx, regTVOC, true)
	if err != nil {
		return 0, err
	}
	return s.tvoc(ctx, data)
}

func (s *AGS02MA) tvoc(ctx context.Context, data []byte) (uint32, error) {
	m, err := tvocCodec.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("ags02ma: %w", err)
	}
	if m.NotReady {
		return 0, ErrNotReady
	}
	// Recommended 1.5 second delay after TVOC read (runs asynchronously)
	s.scheduleDelay(ctx, s.config.ReadDelay)
	return m.PPB, nil
}

func (s *AGS02MA) ReadVersion(ctx context.Context) (int, error) {
	if err := s.waitForDelay(ctx); err != nil {
		return 0, err
	}
	data, err := s.read(ctx, regVersion, true)
	if err != nil {
		return 0, err
	}
	v, err := versionCodec.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("ags02ma: %w", err)
	}
	return int(v.Version), nil
}

// ReadResistance returns the sensing resistance in units of 100 ohm.
func (s *AGS02MA) ReadResistance(ctx context.Context) (int, error) {
	if err := s.waitForDelay(ctx); err != nil {
		return 0, err
	}
	data, err := s.read(ctx, regResistance, true)
	if err != nil {
		return 0, err
	}
	r, err := resistanceCodec.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("ags02ma: %w", err)
	}
	s.scheduleDelay(ctx, s.config.ReadDelay)
	return int(r.Value), nil
}

func (s *AGS02MA) Calibrate(ctx context.Context) error {
	if err := s.waitForDelay(ctx); err != nil {
		return err
	}
	if _, err := s.read(ctx, regCalibrate, true); err != nil {
		return err
	}
	s.scheduleDelay(ctx, s.config.ReadDelay)
	return nil
}

// read fetches one CRC checked word of reg. selectReg writes the register
// address first and waits TxDelay before reading.
func (s *AGS02MA) read(ctx context.Context, reg uint32, selectReg bool) ([]byte, error) {
	tx, err := frame.FrameRead(s.addr, reg, 4)
	if err != nil {
		return nil, fmt.Errorf("ags02ma: %w", err)
	}
	if selectReg {
		s.mx.Lock()
		err = s.transport.WriteToAddr(ctx, s.addr, tx.Write)
		s.mx.Unlock()
		if err != nil {
			return nil, fmt.Errorf("ags02ma: write reg 0x%02x failed: %w", reg, err)
		}
		// Small guard delay; actual readiness is indicated by RDY bit.
		timer := time.NewTimer(s.config.TxDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mx.Lock()
	err = s.transport.ReadFromAddr(ctx, s.addr, tx.Read)
	s.mx.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ags02ma: read failed: %w", err)
	}
	data, err := frame.ParseRead(tx.Read)
	if err != nil {
		return nil, fmt.Errorf("ags02ma: %w", err)
	}
	return data, nil
}
