// platform/platform_host_test.go
package platform

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"weatherstation-go/drivers/dht11"
	"weatherstation-go/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSimRadioDropsEventsWhenFull(t *testing.T) {
	r := newSimRadio(quietLogger())

	// No consumer: overflow the queue well past its capacity. Every emit
	// must drop rather than block the producer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(r.events)+4; i++ {
			if err := r.StartAP(types.APConfig{SSID: "x"}); err != nil {
				t.Errorf("StartAP: %v", err)
			}
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked on a full event queue instead of dropping")
	}
	if got := len(r.events); got != cap(r.events) {
		t.Errorf("queued events = %d, want full queue %d", got, cap(r.events))
	}
}

func TestSimSensorDecodes(t *testing.T) {
	sim := NewSimSensor()
	sim.SetEnvironment(23, 51)

	d := dht11.New(sim, sim)
	if err := d.Configure(dht11.Config{StartSignalLow: time.Millisecond}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := d.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := d.Temperature(false); got != 23 {
		t.Errorf("temperature = %d, want 23", got)
	}
	if got := d.Humidity(); got != 51 {
		t.Errorf("humidity = %d, want 51", got)
	}
}
