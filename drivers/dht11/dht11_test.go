// drivers/dht11/dht11_test.go
package dht11

import (
	"math/rand"
	"testing"

	"weatherstation-go/errcode"
)

func TestSentinelCodes(t *testing.T) {
	if got := errcode.Of(ErrTimeout); got != errcode.Timeout {
		t.Errorf("Of(ErrTimeout) = %q, want %q", got, errcode.Timeout)
	}
	if got := errcode.Of(ErrChecksum); got != errcode.ChecksumMismatch {
		t.Errorf("Of(ErrChecksum) = %q, want %q", got, errcode.ChecksumMismatch)
	}
}

// -----------------------------------------------------------------------------
// Bus simulation: a scripted line level driven by a virtual microsecond clock.
// Every Micros() call advances virtual time by a fixed step, so busy-polled
// waits terminate deterministically.
// -----------------------------------------------------------------------------

type seg struct {
	us    int64
	level bool
}

type simBus struct {
	now   int64
	step  int64
	segs  []seg
	t0    int64
	idle  bool // level after the script ends
	input bool
}

func (s *simBus) Micros() int64 {
	s.now += s.step
	return s.now
}

func (s *simBus) ConfigureOutput(initial bool) error { s.input = false; return nil }

func (s *simBus) ConfigureInput(pull Pull) error {
	// Script time starts when the host begins listening.
	s.input = true
	s.t0 = s.now
	return nil
}

func (s *simBus) Set(level bool) {}

func (s *simBus) Get() bool {
	off := s.now - s.t0
	for _, sg := range s.segs {
		if off < sg.us {
			return sg.level
		}
		off -= sg.us
	}
	return s.idle
}

// frameSegments builds the sensor's answer waveform for a 5-byte frame:
// acknowledgment low/high, then per bit a 50 µs low preamble followed by a
// high pulse whose width encodes the bit.
func frameSegments(frame [5]byte) []seg {
	segs := []seg{{80, false}, {80, true}}
	for i := 0; i < 40; i++ {
		bit := frame[i/8]>>(7-i%8)&1 == 1
		width := int64(26)
		if bit {
			width = 70
		}
		segs = append(segs, seg{50, false}, seg{width, true})
	}
	return append(segs, seg{50, false})
}

func newSim(frame [5]byte) *simBus {
	return &simBus{step: 2, segs: frameSegments(frame), idle: true}
}

func mustConfigure(t *testing.T, d *Device) {
	t.Helper()
	if err := d.Configure(Config{StartSignalLow: 1}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestReadValidFrame(t *testing.T) {
	frame := [5]byte{65, 0, 24, 0, 89}
	sim := newSim(frame)
	d := New(sim, sim)
	mustConfigure(t, d)

	if err := d.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if d.Humidity() != 65 {
		t.Errorf("humidity = %d, want 65", d.Humidity())
	}
	if d.Temperature(false) != 24 {
		t.Errorf("temperature = %d, want 24", d.Temperature(false))
	}
}

func TestReadRandomValidFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 25; i++ {
		var frame [5]byte
		frame[0] = byte(rng.Intn(100))
		frame[1] = byte(rng.Intn(10))
		frame[2] = byte(rng.Intn(50))
		frame[3] = byte(rng.Intn(10))
		frame[4] = frame[0] + frame[1] + frame[2] + frame[3]

		sim := newSim(frame)
		d := New(sim, sim)
		mustConfigure(t, d)
		if err := d.Read(); err != nil {
			t.Fatalf("frame %v: Read: %v", frame, err)
		}
		if d.Humidity() != int(frame[0]) || d.Temperature(false) != int(frame[2]) {
			t.Fatalf("frame %v: got h=%d t=%d", frame, d.Humidity(), d.Temperature(false))
		}
	}
}

func TestReadChecksumMismatch(t *testing.T) {
	frame := [5]byte{65, 0, 24, 0, 90} // sum is 89
	sim := newSim(frame)
	d := New(sim, sim)
	mustConfigure(t, d)

	// Seed cached values through a valid cycle first.
	good := newSim([5]byte{40, 0, 20, 0, 60})
	dg := New(good, good)
	mustConfigure(t, dg)
	if err := dg.Read(); err != nil {
		t.Fatalf("seed Read: %v", err)
	}
	dg.pin, dg.clk = sim, sim

	if err := dg.Read(); err != ErrChecksum {
		t.Fatalf("Read = %v, want ErrChecksum", err)
	}
	// A failed cycle must not mutate the cached reading.
	if dg.Humidity() != 40 || dg.Temperature(false) != 20 {
		t.Errorf("cached reading mutated by failed cycle: h=%d t=%d", dg.Humidity(), dg.Temperature(false))
	}
}

func TestReadDeadLineTimesOut(t *testing.T) {
	// Line stuck high: the handshake's first edge never arrives.
	sim := &simBus{step: 2, idle: true}
	d := New(sim, sim)
	mustConfigure(t, d)

	if err := d.Read(); err != ErrTimeout {
		t.Fatalf("Read = %v, want ErrTimeout", err)
	}
}

func TestReadStuckLowTimesOut(t *testing.T) {
	// Acknowledgment starts but the line never returns high.
	sim := &simBus{step: 2, segs: []seg{{80, false}}, idle: false}
	d := New(sim, sim)
	mustConfigure(t, d)

	if err := d.Read(); err != ErrTimeout {
		t.Fatalf("Read = %v, want ErrTimeout", err)
	}
}

func TestChecksum(t *testing.T) {
	if !checksumOK([5]byte{1, 2, 3, 4, 10}) {
		t.Error("valid checksum rejected")
	}
	// Sum wraps mod 256.
	if !checksumOK([5]byte{200, 100, 0, 0, 44}) {
		t.Error("wrapped checksum rejected")
	}
	if checksumOK([5]byte{1, 2, 3, 4, 11}) {
		t.Error("invalid checksum accepted")
	}
}

func TestCelsiusToFahrenheit(t *testing.T) {
	for _, c := range []struct{ in, want int }{
		{0, 32},
		{100, 212},
		{25, 77},
	} {
		if got := CelsiusToFahrenheit(c.in); got != c.want {
			t.Errorf("CelsiusToFahrenheit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
