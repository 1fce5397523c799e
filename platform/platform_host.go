//go:build !rp2040 && !rp2350

package platform

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"weatherstation-go/drivers/dht11"
	"weatherstation-go/services/httpd"
	"weatherstation-go/types"
)

// New assembles a fully simulated resource set. The sensor line replays
// synthetic frames, the radio grants an immediate loopback lease and the
// upgrade slot lands in a local file.
func New(cfg types.DeviceConfig) (*Hardware, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sensor := NewSimSensor()
	kv, err := newFileKV("weatherstation-kv.json")
	if err != nil {
		return nil, err
	}
	return &Hardware{
		SensorPin: sensor,
		SensorClk: sensor,
		Red:       &simChannel{name: "red", log: logger},
		Green:     &simChannel{name: "green", log: logger},
		Blue:      &simChannel{name: "blue", log: logger},
		LCDBus:    nullI2C{},
		KV:        kv,
		Updater:   &fileUpdater{path: "firmware.bin"},
		Radio:     newSimRadio(logger),
		Listen: func(port int) (net.Listener, error) {
			if port < 1024 {
				// Privileged ports need root; the simulator listens on 8080.
				port = 8080
			}
			return net.Listen("tcp", ":"+strconv.Itoa(port))
		},
		Restart: func() {
			logger.Info("platform: restart requested, exiting")
			os.Exit(0)
		},
		Logger: logger,
	}, nil
}

// -----------------------------------------------------------------------------
// Simulated sensor line
// -----------------------------------------------------------------------------

type simSeg struct {
	durUs int64
	level bool
}

// SimSensor is a virtual single-wire line plus its clock. Each Micros call
// advances virtual time, so the decoder's busy-polls walk through a scripted
// waveform deterministically. Releasing the line starts a fresh frame built
// from the current environment values.
type SimSensor struct {
	mu    sync.Mutex
	now   int64 // virtual microseconds
	t0    int64 // virtual time the current frame started
	segs  []simSeg
	level bool

	temp, hum int
}

func NewSimSensor() *SimSensor {
	return &SimSensor{temp: 21, hum: 45, level: true}
}

// SetEnvironment changes the values encoded in subsequent frames.
func (s *SimSensor) SetEnvironment(tempC, humidity int) {
	s.mu.Lock()
	s.temp, s.hum = tempC, humidity
	s.mu.Unlock()
}

func (s *SimSensor) Micros() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += 2
	return s.now
}

func (s *SimSensor) ConfigureOutput(initial bool) error {
	s.mu.Lock()
	s.level = initial
	s.segs = nil
	s.mu.Unlock()
	return nil
}

func (s *SimSensor) Set(level bool) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

// ConfigureInput is the moment the host releases the line and listens; the
// simulated sensor answers with a full frame starting now.
func (s *SimSensor) ConfigureInput(pull dht11.Pull) error {
	s.mu.Lock()
	s.t0 = s.now
	s.segs = frameSegments(byte(s.hum), byte(s.temp))
	s.mu.Unlock()
	return nil
}

func (s *SimSensor) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segs == nil {
		return s.level
	}
	off := s.now - s.t0
	for _, seg := range s.segs {
		if off < seg.durUs {
			return seg.level
		}
		off -= seg.durUs
	}
	return true // idle high after the frame
}

// frameSegments scripts the sensor's answer: handshake, then 40 bits with
// the value in the high-pulse width, checksummed the sensor's way.
func frameSegments(hum, temp byte) []simSeg {
	frame := [5]byte{hum, 0, temp, 0, hum + temp}
	segs := []simSeg{
		{5, true}, // release settles high before the ack
		{80, false},
		{80, true},
	}
	for i := 0; i < 40; i++ {
		segs = append(segs, simSeg{50, false})
		if frame[i/8]&(1<<(7-i%8)) != 0 {
			segs = append(segs, simSeg{70, true})
		} else {
			segs = append(segs, simSeg{26, true})
		}
	}
	return append(segs, simSeg{50, false})
}

// -----------------------------------------------------------------------------
// Indicator channels, display bus
// -----------------------------------------------------------------------------

type simChannel struct {
	name string
	log  *slog.Logger

	mu    sync.Mutex
	level uint8
}

func (c *simChannel) Set(level uint8) {
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
	c.log.Debug("led", slog.String("channel", c.name), slog.Int("level", int(level)))
}

func (c *simChannel) Level() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// nullI2C accepts any transaction. The display driver still runs its full
// protocol against it.
type nullI2C struct{}

func (nullI2C) Tx(addr uint16, w, r []byte) error { return nil }

// -----------------------------------------------------------------------------
// Persistence
// -----------------------------------------------------------------------------

// fileKV persists the key-value store as a JSON file so credentials survive
// a simulated restart.
type fileKV struct {
	mu   sync.Mutex
	path string
	m    map[string][]byte
}

func newFileKV(path string) (*fileKV, error) {
	kv := &fileKV{path: path, m: make(map[string][]byte)}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kv, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &kv.m); err != nil {
		return nil, err
	}
	return kv, nil
}

func (kv *fileKV) Get(key string) ([]byte, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	return v, ok
}

func (kv *fileKV) Set(key string, val []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = val
	raw, err := json.Marshal(kv.m)
	if err != nil {
		return err
	}
	return os.WriteFile(kv.path, raw, 0o600)
}

// fileUpdater stages an uploaded image next to the final path and renames it
// into place on Commit, the host analogue of marking a flash slot bootable.
type fileUpdater struct {
	path string
}

func (u *fileUpdater) Begin() (httpd.Slot, error) {
	f, err := os.Create(u.path + ".part")
	if err != nil {
		return nil, err
	}
	return &fileSlot{f: f, final: u.path}, nil
}

type fileSlot struct {
	f     *os.File
	final string
}

func (s *fileSlot) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *fileSlot) Commit() error {
	if err := s.f.Close(); err != nil {
		return err
	}
	return os.Rename(s.f.Name(), s.final)
}

func (s *fileSlot) Abort() {
	_ = s.f.Close()
	_ = os.Remove(s.f.Name())
}

// -----------------------------------------------------------------------------
// Radio
// -----------------------------------------------------------------------------

// simRadio fakes the dual-role radio: the AP comes up instantly and any join
// resolves to a loopback lease after a short delay.
type simRadio struct {
	log    *slog.Logger
	events chan types.WifiEvent
}

func newSimRadio(log *slog.Logger) *simRadio {
	return &simRadio{log: log, events: make(chan types.WifiEvent, 8)}
}

// emit never blocks the producer; a full queue drops the event.
func (r *simRadio) emit(ev types.WifiEvent) {
	select {
	case r.events <- ev:
	default:
		r.log.Warn("simradio: event queue full, dropping",
			slog.String("kind", ev.Kind.String()))
	}
}

func (r *simRadio) StartAP(cfg types.APConfig) error {
	r.log.Info("simradio: ap up", slog.String("ssid", cfg.SSID))
	r.emit(types.WifiEvent{Kind: types.EventAPStarted})
	return nil
}

func (r *simRadio) Join(creds types.Credentials) error {
	go func() {
		r.emit(types.WifiEvent{Kind: types.EventStaConnecting})
		time.Sleep(200 * time.Millisecond)
		r.emit(types.WifiEvent{Kind: types.EventStaGotIP, Addr: "127.0.0.1"})
	}()
	return nil
}

func (r *simRadio) Events() <-chan types.WifiEvent { return r.events }
