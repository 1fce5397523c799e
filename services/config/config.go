package config

import (
	"errors"

	"github.com/andreyvit/tinyjson"

	"weatherstation-go/types"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	keySSID = "sta.ssid"
	keyPass = "sta.pass"
)

// KV is the persistent key-value collaborator (NVS analogue). Implementations
// must survive restarts; an unreadable store is the one startup failure class
// that may halt boot.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte) error
}

// EmbeddedConfigLookup allows overriding how embedded configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Store exposes the device configuration and persisted station credentials.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store { return &Store{kv: kv} }

// Credentials returns the persisted station credentials, or ok=false when the
// device has never been configured for the client role.
func (s *Store) Credentials() (types.Credentials, bool) {
	ssid, ok := s.kv.Get(keySSID)
	if !ok || len(ssid) == 0 {
		return types.Credentials{}, false
	}
	pass, _ := s.kv.Get(keyPass)
	return types.Credentials{SSID: string(ssid), Passphrase: string(pass)}, true
}

// SaveCredentials persists station credentials across restarts.
func (s *Store) SaveCredentials(c types.Credentials) error {
	if c.SSID == "" {
		return errors.New("config: empty SSID")
	}
	if err := s.kv.Set(keySSID, []byte(c.SSID)); err != nil {
		return err
	}
	return s.kv.Set(keyPass, []byte(c.Passphrase))
}

// Device reads the embedded config for a device ID into a DeviceConfig.
func Device(device string) (types.DeviceConfig, error) {
	var cfg types.DeviceConfig

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return cfg, errors.New("config: no embedded config for device: " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value() // should be a map[string]any
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return cfg, errors.New("config: embedded config is not a JSON object")
	}

	if ap, ok := m["ap"].(map[string]any); ok {
		cfg.AP = types.APConfig{
			SSID:     str(ap, "ssid"),
			Password: str(ap, "password"),
			Channel:  num(ap, "channel"),
			Hidden:   boolean(ap, "hidden"),
			MaxConns: num(ap, "max_conns"),
			Addr:     str(ap, "addr"),
			Gateway:  str(ap, "gateway"),
			Netmask:  str(ap, "netmask"),
		}
	}
	cfg.SensorPin = num(m, "sensor_pin")
	cfg.ReadIntervalS = num(m, "read_interval_s")
	cfg.Fahrenheit = boolean(m, "fahrenheit")
	cfg.HTTPPort = num(m, "http_port")
	cfg.LCDAddr = uint16(num(m, "lcd_addr"))
	cfg.LCDCols = num(m, "lcd_cols")
	cfg.LCDRows = num(m, "lcd_rows")

	// The sensor floor is part of the protocol, not taste.
	if cfg.ReadIntervalS < 2 {
		cfg.ReadIntervalS = 2
	}
	return cfg, nil
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func num(m map[string]any, k string) int {
	if f, ok := m[k].(float64); ok {
		return int(f)
	}
	if i, ok := m[k].(int); ok {
		return i
	}
	return 0
}

func boolean(m map[string]any, k string) bool {
	b, _ := m[k].(bool)
	return b
}
