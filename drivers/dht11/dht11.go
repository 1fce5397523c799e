// Package dht11 provides a driver for the DHT11 temperature/humidity sensor.
// The sensor speaks a half-duplex single-wire protocol: the host issues a
// long low start pulse, the sensor answers with a fixed handshake and then
// clocks out 40 bits whose value is encoded in the high-pulse width.
//
//	d := dht11.New(pin, clk)
//	d.Configure()
//	err := d.Read()          // one full protocol cycle, ~25 ms
//
// Read performs exactly one attempt and has no internal rate limiting; the
// datasheet minimum spacing between cycles (2 s) and any retry policy belong
// to the caller. The cached Temperature/Humidity values only change on a
// successfully validated frame.
//
// All bus waits are busy-polled against a monotonic microsecond clock with an
// explicit timeout. The required granularity sits below practical scheduler
// resolution, so the waits must not yield.
package dht11

import (
	"time"

	"weatherstation-go/errcode"
)

// Errors returned by the driver. Both carry a stable code so callers can
// classify without string matching.
var (
	ErrTimeout  error = &errcode.E{C: errcode.Timeout, Op: "dht11", Msg: "bus timeout"}
	ErrChecksum error = &errcode.E{C: errcode.ChecksumMismatch, Op: "dht11", Msg: "frame checksum"}
)

// Pull selects the input bias of the bus pin.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Pin is the single-wire bus line. It must be wired open-drain with a
// pull-up so the line idles high when released.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// Clock is a monotonic microsecond source for pulse timing.
type Clock interface {
	Micros() int64
}

// Config controls protocol timing. All fields are optional.
type Config struct {
	// StartSignalLow is how long the host holds the line low to request a
	// frame. The sensor needs at least 18 ms; default 20 ms.
	StartSignalLow time.Duration
	// HandshakeTimeoutUs bounds each of the three acknowledgment edges.
	// Default 100 µs.
	HandshakeTimeoutUs int64
	// BitThresholdUs separates a 0 from a 1 by high-pulse width
	// (~28 µs vs ~70 µs). Default 40 µs.
	BitThresholdUs int64
}

// Device decodes one DHT11 on one bus line.
type Device struct {
	pin Pin
	clk Clock
	cfg Config

	temperature int // last validated reading, °C
	humidity    int // last validated reading, %RH
}

// New creates a connection to a sensor on the given line. This only creates
// the Device object; it does not touch the hardware.
func New(pin Pin, clk Clock) *Device {
	return &Device{pin: pin, clk: clk}
}

// Configure applies optional config and places the line in its idle state
// (released, pulled high).
func (d *Device) Configure(cfgs ...Config) error {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.StartSignalLow <= 0 {
		c.StartSignalLow = 20 * time.Millisecond
	}
	if c.HandshakeTimeoutUs <= 0 {
		c.HandshakeTimeoutUs = 100
	}
	if c.BitThresholdUs <= 0 {
		c.BitThresholdUs = 40
	}
	d.cfg = c
	return d.pin.ConfigureOutput(true)
}

// Temperature returns the last validated temperature. The conversion to
// Fahrenheit is pure; the cached value stays in Celsius.
func (d *Device) Temperature(fahrenheit bool) int {
	if fahrenheit {
		return CelsiusToFahrenheit(d.temperature)
	}
	return d.temperature
}

// Humidity returns the last validated relative humidity in percent.
func (d *Device) Humidity() int { return d.humidity }

// CelsiusToFahrenheit converts whole degrees: F = C*9/5 + 32.
func CelsiusToFahrenheit(celsius int) int {
	return celsius*9/5 + 32
}

// Read performs one full protocol cycle: start signal, handshake, 40-bit
// frame, checksum. On success the cached temperature/humidity are replaced;
// on any failure they are left untouched.
func (d *Device) Read() error {
	frame, err := d.readFrame()
	if err != nil {
		return err
	}
	if !checksumOK(frame) {
		return ErrChecksum
	}
	// The DHT11 carries no usable fractional bytes; commit integer parts.
	d.humidity = int(frame[0])
	d.temperature = int(frame[2])
	return nil
}

func (d *Device) readFrame() (frame [5]byte, err error) {
	// Start signal: drive low for the hold time, release, then listen.
	if err = d.pin.ConfigureOutput(true); err != nil {
		return
	}
	d.pin.Set(false)
	time.Sleep(d.cfg.StartSignalLow)
	d.pin.Set(true)
	d.delayUs(30)
	if err = d.pin.ConfigureInput(PullUp); err != nil {
		return
	}

	// Acknowledgment: low, high, low — each edge bounded by the timeout.
	if err = d.waitLevel(false, d.cfg.HandshakeTimeoutUs); err != nil {
		return
	}
	if err = d.waitLevel(true, d.cfg.HandshakeTimeoutUs); err != nil {
		return
	}
	if err = d.waitLevel(false, d.cfg.HandshakeTimeoutUs); err != nil {
		return
	}

	// 40 data bits, MSB first: humidity int/frac, temperature int/frac,
	// checksum.
	for i := 0; i < 40; i++ {
		if err = d.waitLevel(true, d.cfg.HandshakeTimeoutUs); err != nil {
			return
		}
		width := d.measureHigh(d.cfg.HandshakeTimeoutUs)
		frame[i/8] <<= 1
		if width > d.cfg.BitThresholdUs {
			frame[i/8] |= 1
		}
	}
	return frame, nil
}

// waitLevel busy-polls until the line reads level, failing closed after
// timeoutUs.
func (d *Device) waitLevel(level bool, timeoutUs int64) error {
	start := d.clk.Micros()
	for d.pin.Get() != level {
		if d.clk.Micros()-start > timeoutUs {
			return ErrTimeout
		}
	}
	return nil
}

// measureHigh returns the high-pulse width in microseconds, capped so a
// stuck line cannot spin forever.
func (d *Device) measureHigh(capUs int64) int64 {
	start := d.clk.Micros()
	for d.pin.Get() {
		if d.clk.Micros()-start > capUs {
			break
		}
	}
	return d.clk.Micros() - start
}

// delayUs busy-waits; the interval is far below sleep resolution.
func (d *Device) delayUs(us int64) {
	start := d.clk.Micros()
	for d.clk.Micros()-start < us {
	}
}

func checksumOK(frame [5]byte) bool {
	sum := frame[0] + frame[1] + frame[2] + frame[3]
	return frame[4] == sum
}
