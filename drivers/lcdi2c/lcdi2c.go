// Package lcdi2c drives a HD44780 character display behind a PCF8574 I²C
// backpack in 4-bit mode. One canonical method per operation; the usual
// Arduino-lineage alias names are deliberately not reproduced.
//
// The expander's bit assignment is the common backpack wiring:
// P0=RS, P1=RW, P2=EN, P3=backlight, P4..P7=data nibble.
package lcdi2c

import (
	"time"

	"tinygo.org/x/drivers"

	"weatherstation-go/x/strconvx"
)

// Default I2C address of the PCF8574 backpack.
const DefaultAddress = 0x27

// HD44780 command set.
const (
	cmdClearDisplay = 0x01
	cmdReturnHome   = 0x02
	cmdEntryMode    = 0x04
	cmdDisplayCtrl  = 0x08
	cmdFunctionSet  = 0x20
	cmdSetDDRAM     = 0x80

	entryLeft      = 0x02
	displayOn      = 0x04
	functionSet4it = 0x28 // 4-bit, 2 lines, 5x8 font
)

// Expander control bits.
const (
	bitRS        = 0x01
	bitEN        = 0x04
	bitBacklight = 0x08
)

// Config controls geometry and addressing. All fields are optional.
type Config struct {
	// Address defaults to 0x27 if zero.
	Address uint16
	// Cols/Rows default to 16x2.
	Cols int
	Rows int
}

// Device wraps an I2C connection to the display. The zero value is unusable;
// call Configure once before any other method.
type Device struct {
	bus        drivers.I2C
	addr       uint16
	cols, rows int
	backlight  bool
	configured bool
}

// New creates a connection to a display. The I2C bus must already be
// configured; this function does not touch the device.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, addr: DefaultAddress, backlight: true}
}

// Configure runs the HD44780 4-bit initialisation sequence. Calling it again
// is a no-op once the device has been brought up.
func (d *Device) Configure(cfgs ...Config) error {
	if d.configured {
		return nil
	}
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Address != 0 {
		d.addr = c.Address
	}
	d.cols, d.rows = c.Cols, c.Rows
	if d.cols <= 0 {
		d.cols = 16
	}
	if d.rows <= 0 {
		d.rows = 2
	}

	// Power-on settle, then the magic 8-bit/4-bit switch dance.
	time.Sleep(50 * time.Millisecond)
	for _, n := range []byte{0x03, 0x03, 0x03, 0x02} {
		if err := d.writeNibble(n << 4); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, cmd := range []byte{
		functionSet4it,
		cmdDisplayCtrl | displayOn,
		cmdClearDisplay,
		cmdEntryMode | entryLeft,
	} {
		if err := d.command(cmd); err != nil {
			return err
		}
	}
	time.Sleep(2 * time.Millisecond)
	d.configured = true
	return nil
}

// Clear blanks the display and homes the cursor.
func (d *Device) Clear() error {
	if err := d.command(cmdClearDisplay); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond) // clear needs >1.5 ms
	return nil
}

// Home returns the cursor to 0,0 without clearing.
func (d *Device) Home() error {
	if err := d.command(cmdReturnHome); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

// SetCursor positions the write cursor. Out-of-range values clamp to the
// last row/column.
func (d *Device) SetCursor(col, row int) error {
	if row >= d.rows {
		row = d.rows - 1
	}
	if col >= d.cols {
		col = d.cols - 1
	}
	// Row DDRAM offsets for up to 4 rows.
	offsets := [4]byte{0x00, 0x40, 0x14, 0x54}
	return d.command(cmdSetDDRAM | (offsets[row] + byte(col)))
}

// Print writes a string at the current cursor position.
func (d *Device) Print(s string) error {
	for i := 0; i < len(s); i++ {
		if err := d.data(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// PrintInt writes a decimal integer at the current cursor position.
func (d *Device) PrintInt(n int) error {
	return d.Print(strconvx.Itoa(n))
}

// SetBacklight switches the backpack's backlight output.
func (d *Device) SetBacklight(on bool) error {
	d.backlight = on
	return d.writeExpander(0)
}

// SetDisplay switches the display on or off without losing DDRAM content.
func (d *Device) SetDisplay(on bool) error {
	cmd := byte(cmdDisplayCtrl)
	if on {
		cmd |= displayOn
	}
	return d.command(cmd)
}

// --- low-level nibble protocol ---

func (d *Device) command(cmd byte) error { return d.writeByte(cmd, 0) }

func (d *Device) data(b byte) error { return d.writeByte(b, bitRS) }

func (d *Device) writeByte(b, mode byte) error {
	if err := d.writeNibble((b & 0xF0) | mode); err != nil {
		return err
	}
	return d.writeNibble((b << 4) | mode)
}

// writeNibble latches the high nibble of v with an enable pulse.
func (d *Device) writeNibble(v byte) error {
	if err := d.writeExpander(v | bitEN); err != nil {
		return err
	}
	time.Sleep(time.Millisecond) // EN pulse width; generous but safe
	if err := d.writeExpander(v &^ bitEN); err != nil {
		return err
	}
	time.Sleep(50 * time.Microsecond)
	return nil
}

func (d *Device) writeExpander(v byte) error {
	if d.backlight {
		v |= bitBacklight
	}
	return d.bus.Tx(d.addr, []byte{v}, nil)
}
