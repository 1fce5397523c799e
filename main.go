package main

import (
	"context"
	"log/slog"
	"time"

	"weatherstation-go/bus"
	"weatherstation-go/drivers/dht11"
	"weatherstation-go/drivers/lcdi2c"
	"weatherstation-go/platform"
	"weatherstation-go/services/config"
	"weatherstation-go/services/httpd"
	"weatherstation-go/services/indicator"
	"weatherstation-go/services/sensor"
	"weatherstation-go/services/wifi"
)

const deviceID = "weatherstation"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	cfg, err := config.Device(deviceID)
	if err != nil {
		println("boot failed:", err.Error())
		return
	}
	hw, err := platform.New(cfg)
	if err != nil {
		println("boot failed:", err.Error())
		return
	}
	log := hw.Logger
	slog.SetDefault(log)

	ctx := context.Background()
	b := bus.NewBus(8)
	store := config.NewStore(hw.KV)
	ind := indicator.New(indicator.Config{Red: hw.Red, Green: hw.Green, Blue: hw.Blue})

	// Display is optional equipment; a dead bus must not stop the station.
	var screen sensor.Screen
	lcd := lcdi2c.New(hw.LCDBus)
	if err := lcd.Configure(lcdi2c.Config{Address: cfg.LCDAddr, Cols: cfg.LCDCols, Rows: cfg.LCDRows}); err != nil {
		log.Warn("main: display unavailable", slog.Any("error", err))
	} else {
		_ = lcd.Print("Weather Station")
		_ = lcd.SetCursor(0, 1)
		_ = lcd.Print("starting...")
		screen = lcd
	}

	// Connectivity first, then the HTTP surface it starts.
	var srv *httpd.Server
	wifiSvc := wifi.New(wifi.Config{
		Radio:  hw.Radio,
		Creds:  store,
		Sink:   ind,
		Logger: log,
		StartHTTP: func() error {
			l, err := hw.Listen(cfg.HTTPPort)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(l); err != nil {
					log.Error("main: http server stopped", slog.Any("error", err))
				}
			}()
			ind.HTTPServerStarted()
			return nil
		},
	})
	srv = httpd.New(httpd.Config{
		Updater: hw.Updater,
		Restart: hw.Restart,
		Bus:     b,
		Connect: wifiSvc.RequestConnect,
		Logger:  log,
	})
	if err := wifiSvc.Start(ctx, b.NewConnection("wifi"), cfg.AP); err != nil {
		log.Error("main: wifi start failed", slog.Any("error", err))
		ind.Error()
		select {}
	}

	dht := dht11.New(hw.SensorPin, hw.SensorClk)
	if err := dht.Configure(); err != nil {
		log.Error("main: sensor init failed", slog.Any("error", err))
		ind.Error()
		select {}
	}
	ind.SensorStarted()

	loop := sensor.New(sensor.Config{
		Decoder:    dht,
		Screen:     screen,
		Status:     ind,
		Conn:       b.NewConnection("sensor"),
		Fahrenheit: cfg.Fahrenheit,
		Interval:   time.Duration(cfg.ReadIntervalS) * time.Second,
		Logger:     log,
	})
	_ = loop.Run(ctx)
}
