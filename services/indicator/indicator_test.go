// services/indicator/indicator_test.go
package indicator

import (
	"sync"
	"testing"
	"time"
)

type fakeChannel struct {
	mu     sync.Mutex
	levels []uint8
}

func (f *fakeChannel) Set(level uint8) {
	f.mu.Lock()
	f.levels = append(f.levels, level)
	f.mu.Unlock()
}

func (f *fakeChannel) last() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.levels) == 0 {
		return 0
	}
	return f.levels[len(f.levels)-1]
}

func newFakes() (*Indicator, *fakeChannel, *fakeChannel, *fakeChannel) {
	r, g, b := &fakeChannel{}, &fakeChannel{}, &fakeChannel{}
	return New(Config{Red: r, Green: g, Blue: b}), r, g, b
}

func TestSolidColors(t *testing.T) {
	ind, r, g, b := newFakes()

	ind.Connected()
	if r.last() != 0 || g.last() != 255 || b.last() != 153 {
		t.Errorf("Connected -> (%d,%d,%d), want (0,255,153)", r.last(), g.last(), b.last())
	}

	ind.Reading()
	if r.last() != 147 || g.last() != 251 || b.last() != 255 {
		t.Errorf("Reading -> (%d,%d,%d), want (147,251,255)", r.last(), g.last(), b.last())
	}
}

func TestErrorBlinksUntilNextEvent(t *testing.T) {
	ind, r, _, _ := newFakes()

	ind.Error()
	// The blink goroutine toggles red; wait for at least one toggle.
	deadline := time.After(2 * time.Second)
	seen := map[uint8]bool{}
	for len(seen) < 2 {
		select {
		case <-deadline:
			t.Fatal("red channel never toggled")
		default:
		}
		seen[r.last()] = true
		time.Sleep(10 * time.Millisecond)
	}

	// A solid event stops the blink.
	ind.Connected()
	if ind.stopBlink != nil {
		t.Error("blink still armed after solid-color event")
	}
	if r.last() != 0 {
		t.Errorf("red = %d after Connected, want 0", r.last())
	}
}

func TestErrorIdempotentWhileBlinking(t *testing.T) {
	ind, _, _, _ := newFakes()
	ind.Error()
	first := ind.stopBlink
	ind.Error()
	if ind.stopBlink != first {
		t.Error("second Error() restarted the blink goroutine")
	}
	ind.Started() // cleanup
}
