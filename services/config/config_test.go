// services/config/config_test.go
package config

import (
	"testing"

	"weatherstation-go/types"
)

type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (kv *memKV) Get(key string) ([]byte, bool) {
	v, ok := kv.m[key]
	return v, ok
}

func (kv *memKV) Set(key string, val []byte) error {
	kv.m[key] = append([]byte(nil), val...)
	return nil
}

func TestDeviceConfig(t *testing.T) {
	cfg, err := Device("weatherstation")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if cfg.AP.SSID != "WeatherStation" {
		t.Errorf("AP SSID = %q", cfg.AP.SSID)
	}
	if cfg.AP.Addr != "192.168.0.1" || cfg.AP.Netmask != "255.255.255.0" {
		t.Errorf("AP address block = %q/%q", cfg.AP.Addr, cfg.AP.Netmask)
	}
	if cfg.SensorPin != 4 {
		t.Errorf("sensor pin = %d", cfg.SensorPin)
	}
	if cfg.ReadIntervalS != 60 {
		t.Errorf("read interval = %d", cfg.ReadIntervalS)
	}
	if !cfg.Fahrenheit {
		t.Error("fahrenheit flag not set")
	}
}

func TestDeviceConfigUnknown(t *testing.T) {
	if _, err := Device("nope"); err == nil {
		t.Fatal("expected error for unknown device")
	}
}

func TestReadIntervalFloor(t *testing.T) {
	old := EmbeddedConfigLookup
	defer func() { EmbeddedConfigLookup = old }()
	EmbeddedConfigLookup = func(string) ([]byte, bool) {
		return []byte(`{"read_interval_s": 1}`), true
	}
	cfg, err := Device("any")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if cfg.ReadIntervalS != 2 {
		t.Errorf("interval = %d, want floor 2", cfg.ReadIntervalS)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := NewStore(newMemKV())

	if _, ok := s.Credentials(); ok {
		t.Fatal("fresh store should have no credentials")
	}
	want := types.Credentials{SSID: "home", Passphrase: "hunter2"}
	if err := s.SaveCredentials(want); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	got, ok := s.Credentials()
	if !ok || got != want {
		t.Fatalf("Credentials = %+v ok=%v, want %+v", got, ok, want)
	}
}

func TestSaveCredentialsEmptySSID(t *testing.T) {
	s := NewStore(newMemKV())
	if err := s.SaveCredentials(types.Credentials{}); err == nil {
		t.Fatal("expected error for empty SSID")
	}
}
