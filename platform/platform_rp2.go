//go:build rp2040 || rp2350

package platform

import (
	"errors"
	"log/slog"
	"machine"
	"net"
	"net/netip"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"

	"weatherstation-go/drivers/dht11"
	"weatherstation-go/services/httpd"
	"weatherstation-go/types"
	"weatherstation-go/x/fmtx"
	"weatherstation-go/x/timex"
)

// Default pin assignment on the Pico W carrier board.
const (
	pinLEDRed   = machine.GP10
	pinLEDGreen = machine.GP11
	pinLEDBlue  = machine.GP12
)

// New brings up the board resources: UART console, PWM LED channels, the I2C
// display bus, the WiFi radio with its on-chip TCP/IP stack, and flash-backed
// persistence.
func New(cfg types.DeviceConfig) (*Hardware, error) {
	console := uartx.UART0
	_ = console.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	logger := slog.New(slog.NewTextHandler(console, nil))
	fmtx.DefaultOutput = console

	red, err := newLEDChannel(pinLEDRed)
	if err != nil {
		return nil, err
	}
	green, err := newLEDChannel(pinLEDGreen)
	if err != nil {
		return nil, err
	}
	blue, err := newLEDChannel(pinLEDBlue)
	if err != nil {
		return nil, err
	}

	if err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 100_000,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		return nil, err
	}

	kv, err := newFlashKV()
	if err != nil {
		return nil, err
	}

	radio := newPicoRadio(logger)
	return &Hardware{
		SensorPin: dhtPin{machine.Pin(cfg.SensorPin)},
		SensorClk: sysClock{},
		Red:       red,
		Green:     green,
		Blue:      blue,
		LCDBus:    machine.I2C0,
		KV:        kv,
		Updater:   &flashUpdater{},
		Radio:     radio,
		Listen:    radio.Listen,
		Restart:   machine.CPUReset,
		Logger:    logger,
	}, nil
}

// -----------------------------------------------------------------------------
// Sensor line
// -----------------------------------------------------------------------------

type dhtPin struct{ p machine.Pin }

func (d dhtPin) ConfigureInput(pull dht11.Pull) error {
	mode := machine.PinInput
	switch pull {
	case dht11.PullUp:
		mode = machine.PinInputPullup
	case dht11.PullDown:
		mode = machine.PinInputPulldown
	}
	d.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (d dhtPin) ConfigureOutput(initial bool) error {
	d.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.p.Set(initial)
	return nil
}

func (d dhtPin) Set(level bool) { d.p.Set(level) }
func (d dhtPin) Get() bool      { return d.p.Get() }

// -----------------------------------------------------------------------------
// PWM LED channels
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in
// machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

const ledPWMHz = 1000

type ledChannel struct {
	ctrl  pwmCtrl
	chIdx uint8 // channel within the slice: even pin => A(0), odd pin => B(1)
}

func newLEDChannel(pin machine.Pin) (*ledChannel, error) {
	slice, err := machine.PWMPeripheral(pin)
	if err != nil {
		return nil, err
	}
	ctrl := pwmGroupBySlice(slice)
	if err := ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(ledPWMHz)}); err != nil {
		return nil, err
	}
	pin.Configure(machine.PinConfig{Mode: machine.PinPWM})
	return &ledChannel{ctrl: ctrl, chIdx: uint8(pin) & 1}, nil
}

// Set scales the 8-bit duty onto the slice's counter range.
func (c *ledChannel) Set(level uint8) {
	c.ctrl.Set(c.chIdx, c.ctrl.Top()*uint32(level)/255)
}

// -----------------------------------------------------------------------------
// Flash persistence
// -----------------------------------------------------------------------------

// Flash layout: the last erase block of the data region holds the key-value
// store; everything before it is the staging area for uploaded images.
const kvMagic = 0x574B // "WK"

// flashKV keeps the whole store in RAM and rewrites its erase block on every
// Set. Record format: u8 keylen, key, u16 vallen, val; 0xFF terminates
// (erased flash reads all ones).
type flashKV struct {
	m map[string][]byte
}

func newFlashKV() (*flashKV, error) {
	kv := &flashKV{m: make(map[string][]byte)}
	blockSize := int64(machine.Flash.EraseBlockSize())
	buf := make([]byte, blockSize)
	if _, err := machine.Flash.ReadAt(buf, kv.offset()); err != nil {
		return nil, err
	}
	if len(buf) < 2 || uint16(buf[0])|uint16(buf[1])<<8 != kvMagic {
		return kv, nil // never written
	}
	i := 2
	for i < len(buf) && buf[i] != 0xFF {
		klen := int(buf[i])
		i++
		if i+klen+2 > len(buf) {
			break
		}
		key := string(buf[i : i+klen])
		i += klen
		vlen := int(buf[i]) | int(buf[i+1])<<8
		i += 2
		if i+vlen > len(buf) {
			break
		}
		kv.m[key] = append([]byte(nil), buf[i:i+vlen]...)
		i += vlen
	}
	return kv, nil
}

func (kv *flashKV) offset() int64 {
	return machine.Flash.Size() - int64(machine.Flash.EraseBlockSize())
}

func (kv *flashKV) Get(key string) ([]byte, bool) {
	v, ok := kv.m[key]
	return v, ok
}

func (kv *flashKV) Set(key string, val []byte) error {
	kv.m[key] = append([]byte(nil), val...)
	blockSize := int64(machine.Flash.EraseBlockSize())
	buf := make([]byte, blockSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	buf[0] = byte(kvMagic)
	buf[1] = byte(kvMagic >> 8)
	i := 2
	for k, v := range kv.m {
		need := 1 + len(k) + 2 + len(v)
		if i+need >= len(buf) {
			return errors.New("platform: kv block full")
		}
		buf[i] = byte(len(k))
		i++
		copy(buf[i:], k)
		i += len(k)
		buf[i] = byte(len(v))
		buf[i+1] = byte(len(v) >> 8)
		i += 2
		copy(buf[i:], v)
		i += len(v)
	}
	off := kv.offset()
	if err := machine.Flash.EraseBlocks(off/blockSize, 1); err != nil {
		return err
	}
	_, err := machine.Flash.WriteAt(buf, off)
	return err
}

// flashUpdater stages an image in the flash region below the kv block. The
// boot stage picks a committed image up on the next reset.
type flashUpdater struct{}

// Image staging region: everything from the midpoint of flash up to the kv
// block. The running image lives below the midpoint.
func (u *flashUpdater) region() (start, end int64) {
	size := machine.Flash.Size()
	return size / 2, size - int64(machine.Flash.EraseBlockSize())
}

func (u *flashUpdater) Begin() (httpd.Slot, error) {
	start, end := u.region()
	blockSize := int64(machine.Flash.EraseBlockSize())
	if err := machine.Flash.EraseBlocks(start/blockSize, (end-start)/blockSize); err != nil {
		return nil, err
	}
	return &flashSlot{cursor: start, end: end}, nil
}

type flashSlot struct {
	cursor int64
	end    int64
	done   bool
}

func (s *flashSlot) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New("platform: slot closed")
	}
	if s.cursor+int64(len(p)) > s.end {
		return 0, errors.New("platform: image exceeds slot")
	}
	n, err := machine.Flash.WriteAt(p, s.cursor)
	s.cursor += int64(n)
	return n, err
}

func (s *flashSlot) Commit() error {
	s.done = true
	return nil
}

func (s *flashSlot) Abort() { s.done = true }

// -----------------------------------------------------------------------------
// Radio
// -----------------------------------------------------------------------------

// picoRadio adapts the CYW43439 and the seqs userspace TCP/IP stack to the
// connectivity coordinator's Radio contract. StartAP initialises the chip and
// the port stack; Join resolves asynchronously through the event channel.
type picoRadio struct {
	dev    *cyw43439.Device
	stack  *stacks.PortStack
	log    *slog.Logger
	events chan types.WifiEvent
}

func newPicoRadio(log *slog.Logger) *picoRadio {
	return &picoRadio{
		dev:    cyw43439.NewPicoWDevice(),
		log:    log,
		events: make(chan types.WifiEvent, 8),
	}
}

func (r *picoRadio) Events() <-chan types.WifiEvent { return r.events }

// emit never blocks the producer; a full queue drops the event.
func (r *picoRadio) emit(ev types.WifiEvent) {
	select {
	case r.events <- ev:
	default:
		r.log.Warn("radio: event queue full, dropping",
			slog.String("kind", ev.Kind.String()))
	}
}

func (r *picoRadio) StartAP(cfg types.APConfig) error {
	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = r.log
	if err := r.dev.Init(wificfg); err != nil {
		return err
	}
	mac, err := r.dev.HardwareAddr6()
	if err != nil {
		return err
	}
	r.stack = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac,
		MaxOpenPortsUDP: 2, // DHCP client needs one
		MaxOpenPortsTCP: 2,
		MTU:             cyw43439.MTU,
		Logger:          r.log,
	})
	r.dev.RecvEthHandle(r.stack.RecvEth)
	go r.nicLoop()

	if cfg.Addr != "" {
		addr, err := netip.ParseAddr(cfg.Addr)
		if err != nil {
			return err
		}
		r.stack.SetAddr(addr)
	}
	r.emit(types.WifiEvent{Kind: types.EventAPStarted, Addr: cfg.Addr})
	return nil
}

// Join runs the WPA2 association and the DHCP exchange off the caller's
// goroutine; resolution arrives as events.
func (r *picoRadio) Join(creds types.Credentials) error {
	if r.stack == nil {
		return errors.New("platform: radio not started")
	}
	go func() {
		r.emit(types.WifiEvent{Kind: types.EventStaConnecting})
		var err error
		for attempt := 0; attempt < 5; attempt++ {
			if err = r.dev.JoinWPA2(creds.SSID, creds.Passphrase); err == nil {
				break
			}
			r.log.Error("radio: join failed", slog.String("err", err.Error()))
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			r.emit(types.WifiEvent{Kind: types.EventStaDisconnected})
			return
		}
		addr, err := r.acquireLease()
		if err != nil {
			r.log.Error("radio: dhcp failed", slog.String("err", err.Error()))
			r.emit(types.WifiEvent{Kind: types.EventStaDisconnected})
			return
		}
		r.emit(types.WifiEvent{Kind: types.EventStaGotIP, Addr: addr.String()})
	}()
	return nil
}

func (r *picoRadio) acquireLease() (netip.Addr, error) {
	client := stacks.NewDHCPClient(r.stack, dhcp.DefaultClientPort)
	err := client.BeginRequest(stacks.DHCPRequestConfig{
		Xid:      uint32(time.Now().Nanosecond()),
		Hostname: "weatherstation",
	})
	if err != nil {
		return netip.Addr{}, err
	}
	for i := 0; client.State() != dhcp.StateBound; i++ {
		if i > 30 {
			return netip.Addr{}, errors.New("platform: dhcp timed out")
		}
		time.Sleep(time.Second / 2)
	}
	ip := client.Offer()
	r.stack.SetAddr(ip)
	return ip, nil
}

func (r *picoRadio) Listen(port int) (net.Listener, error) {
	listener, err := stacks.NewTCPListener(r.stack, stacks.TCPListenerConfig{
		MaxConnections: 3,
		ConnTxBufSize:  2048,
		ConnRxBufSize:  2048,
	})
	if err != nil {
		return nil, err
	}
	if err := listener.StartListening(uint16(port)); err != nil {
		return nil, err
	}
	return listener, nil
}

// nicLoop shuttles frames between the chip and the port stack.
func (r *picoRadio) nicLoop() {
	var buf [cyw43439.MTU]byte
	for {
		gotPacket, err := r.dev.PollOne()
		if err != nil {
			r.log.Debug("radio: poll", slog.String("err", err.Error()))
		}
		n, err := r.stack.HandleEth(buf[:])
		if err != nil {
			r.log.Debug("radio: stack", slog.String("err", err.Error()))
			continue
		}
		if n == 0 {
			if !gotPacket {
				time.Sleep(50 * time.Millisecond)
			}
			continue
		}
		if err := r.dev.SendEth(buf[:n]); err != nil {
			r.log.Debug("radio: send", slog.String("err", err.Error()))
		}
	}
}
