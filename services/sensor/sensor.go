// Package sensor runs the station's main measurement cycle: read the
// decoder with a bounded retry policy, commit the validated sample, render
// it on the display and publish it as a retained bus message. The cached
// sample is the single source of truth for "last good reading" and is only
// ever mutated from this loop.
package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"weatherstation-go/bus"
	"weatherstation-go/errcode"
	"weatherstation-go/types"
	"weatherstation-go/x/fmtx"
	"weatherstation-go/x/timex"
)

// TopicReading carries the retained types.Reading snapshot.
var TopicReading = bus.T("sensor", "reading")

// Decoder performs one full sensor protocol cycle per Read call. Cached
// values must only change on a successfully validated frame.
type Decoder interface {
	Read() error
	Temperature(fahrenheit bool) int
	Humidity() int
}

// Screen is the part of the character display the loop renders on.
type Screen interface {
	Clear() error
	SetCursor(col, row int) error
	Print(s string) error
}

// Status receives the loop's lifecycle events, typically an LED indicator.
type Status interface {
	Reading()
	Error()
}

// Config wires the loop's collaborators. Decoder is required; Screen,
// Status and Conn are optional.
type Config struct {
	Decoder Decoder
	Screen  Screen
	Status  Status

	// Conn publishes the retained reading on Topic.
	Conn  *bus.Connection
	Topic bus.Topic

	Fahrenheit bool

	// Interval between measurement cycles. Default 60 s.
	Interval time.Duration
	// SettleDelay before the first cycle; the sensor needs time to
	// stabilise after power-on. Default 2 s.
	SettleDelay time.Duration
	// Retries per cycle before the cycle is declared failed. Default 3.
	Retries int
	// RetryDelay between attempts within a cycle. Default 100 ms.
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Loop is the measurement cycle. Create with New, drive with Run.
type Loop struct {
	cfg   Config
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration)

	mu    sync.Mutex
	state types.Reading
	valid bool
}

func New(cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Topic == nil {
		cfg.Topic = TopicReading
	}
	return &Loop{cfg: cfg, log: cfg.Logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// State returns the last committed sample. ok is false until the first
// successful cycle.
func (l *Loop) State() (types.Reading, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.valid
}

// Run blocks until ctx is cancelled. One cycle runs every Interval; a
// failed cycle never touches the committed sample.
func (l *Loop) Run(ctx context.Context) error {
	l.sleep(ctx, l.cfg.SettleDelay)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.cycle(ctx)
		l.sleep(ctx, l.cfg.Interval)
	}
}

// cycle performs one measurement with the retry policy. Transient decode
// errors are expected on a single-wire bus; only a whole failed cycle is
// reported as an error.
func (l *Loop) cycle(ctx context.Context) {
	var err error
	for attempt := 1; attempt <= l.cfg.Retries; attempt++ {
		if err = l.cfg.Decoder.Read(); err == nil {
			break
		}
		l.log.Debug("sensor: read attempt failed",
			slog.Int("attempt", attempt), slog.Any("error", err))
		if attempt < l.cfg.Retries {
			l.sleep(ctx, l.cfg.RetryDelay)
		}
	}
	if err != nil {
		l.log.Warn("sensor: cycle failed",
			slog.String("code", string(errcode.Of(err))),
			slog.Any("error", err))
		if l.cfg.Status != nil {
			l.cfg.Status.Error()
		}
		l.renderError()
		return
	}

	unit := types.UnitCelsius
	if l.cfg.Fahrenheit {
		unit = types.UnitFahrenheit
	}
	r := types.Reading{
		Temperature: l.cfg.Decoder.Temperature(l.cfg.Fahrenheit),
		Humidity:    l.cfg.Decoder.Humidity(),
		Unit:        unit,
		TsMs:        timex.NowMs(),
	}

	l.mu.Lock()
	l.state, l.valid = r, true
	l.mu.Unlock()

	if l.cfg.Status != nil {
		l.cfg.Status.Reading()
	}
	l.render(r)
	if l.cfg.Conn != nil {
		l.cfg.Conn.Publish(l.cfg.Conn.NewMessage(l.cfg.Topic, r, true))
	}
	l.log.Info("sensor: reading",
		slog.Int("temperature", r.Temperature),
		slog.String("unit", string(r.Unit)),
		slog.Int("humidity", r.Humidity))
}

func (l *Loop) render(r types.Reading) {
	s := l.cfg.Screen
	if s == nil {
		return
	}
	_ = s.Clear()
	_ = s.SetCursor(0, 0)
	_ = s.Print(fmtx.Sprintf("Temp: %d %s", r.Temperature, string(r.Unit)))
	_ = s.SetCursor(0, 1)
	_ = s.Print(fmtx.Sprintf("Humidity: %d%%", r.Humidity))
}

func (l *Loop) renderError() {
	s := l.cfg.Screen
	if s == nil {
		return
	}
	_ = s.Clear()
	_ = s.SetCursor(0, 0)
	_ = s.Print("Sensor error")
}
