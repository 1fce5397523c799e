// Package indicator renders semantic status events on a tri-color LED.
// Callers fire and forget; no method blocks beyond a peripheral write.
package indicator

import (
	"sync"
	"time"
)

// Channel is one PWM color channel with an 8-bit duty range.
type Channel interface {
	Set(level uint8)
}

// Blink timing for the error pattern.
const blinkPeriod = 500 * time.Millisecond

// Config carries the three channels. The channels must already be bound to
// their pins; Indicator owns them exclusively afterwards.
type Config struct {
	Red, Green, Blue Channel
}

// Indicator is the owned configuration object replacing the original
// process-wide channel table. Safe for use from any goroutine.
type Indicator struct {
	mu         sync.Mutex
	r, g, b    Channel
	configured bool
	stopBlink  chan struct{}
}

func New(cfg Config) *Indicator {
	return &Indicator{r: cfg.Red, g: cfg.Green, b: cfg.Blue}
}

// ensure applies initialisation-once semantics: the first event zeroes all
// channels before use. Callers hold i.mu.
func (i *Indicator) ensure() {
	if i.configured {
		return
	}
	i.r.Set(0)
	i.g.Set(0)
	i.b.Set(0)
	i.configured = true
}

// set stops any running blink and applies a solid color. Callers hold i.mu.
func (i *Indicator) set(r, g, b uint8) {
	i.ensure()
	if i.stopBlink != nil {
		close(i.stopBlink)
		i.stopBlink = nil
	}
	i.r.Set(r)
	i.g.Set(g)
	i.b.Set(b)
}

// Started signals that the connectivity layer is up (AP broadcasting).
func (i *Indicator) Started() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set(255, 102, 255)
}

// HTTPServerStarted signals that the request coordinator is listening.
func (i *Indicator) HTTPServerStarted() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set(204, 102, 51)
}

// Connected signals a station-role connection with an address lease.
func (i *Indicator) Connected() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set(0, 255, 153)
}

// SensorStarted signals sensor initialisation.
func (i *Indicator) SensorStarted() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set(32, 66, 63)
}

// Reading signals a successful decode cycle.
func (i *Indicator) Reading() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set(147, 251, 255)
}

// Error switches to a red blink until the next solid-color event. Repeated
// calls while already blinking are no-ops.
func (i *Indicator) Error() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensure()
	if i.stopBlink != nil {
		return
	}
	stop := make(chan struct{})
	i.stopBlink = stop
	i.g.Set(0)
	i.b.Set(0)
	go i.blinkRed(stop)
}

func (i *Indicator) blinkRed(stop chan struct{}) {
	on := true
	t := time.NewTicker(blinkPeriod)
	defer t.Stop()
	i.mu.Lock()
	if i.stopBlink == stop {
		i.r.Set(255)
	}
	i.mu.Unlock()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			on = !on
			// Re-check ownership under the lock so a concurrent solid-color
			// event cannot lose its write to a late toggle.
			i.mu.Lock()
			if i.stopBlink != stop {
				i.mu.Unlock()
				return
			}
			if on {
				i.r.Set(255)
			} else {
				i.r.Set(0)
			}
			i.mu.Unlock()
		}
	}
}
