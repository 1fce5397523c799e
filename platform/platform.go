// Package platform binds the services to the resources of the build target.
// Device builds hand out real pins, the radio and flash-backed storage; host
// builds hand out simulated equivalents so the whole service graph runs on a
// workstation.
package platform

import (
	"log/slog"
	"net"

	"tinygo.org/x/drivers"

	"weatherstation-go/drivers/dht11"
	"weatherstation-go/services/config"
	"weatherstation-go/services/httpd"
	"weatherstation-go/services/indicator"
	"weatherstation-go/services/wifi"
	"weatherstation-go/x/timex"
)

// Hardware is the full resource set main composes the services from.
// Construct with New; fields are non-nil unless noted.
type Hardware struct {
	SensorPin dht11.Pin
	SensorClk dht11.Clock

	Red, Green, Blue indicator.Channel

	// LCDBus is the display's I2C bus.
	LCDBus drivers.I2C

	KV      config.KV
	Updater httpd.Updater
	Radio   wifi.Radio

	// Listen opens the HTTP listener on the build's network stack. On
	// device builds it is only usable after Radio.StartAP has brought the
	// stack up.
	Listen func(port int) (net.Listener, error)

	// Restart reboots the target. On host builds it terminates the process.
	Restart func()

	Logger *slog.Logger
}

// sysClock is the monotonic microsecond source used for bus pulse timing.
type sysClock struct{}

func (sysClock) Micros() int64 { return timex.Micros() }
