package types

// DeviceConfig is the embedded per-device configuration shape.
// Values mirror the deployment defaults; persisted station credentials
// override the embedded ones at boot.
type DeviceConfig struct {
	AP            APConfig `json:"ap"`
	SensorPin     int      `json:"sensor_pin"`
	ReadIntervalS int      `json:"read_interval_s"` // >=2, deployment default 60
	Fahrenheit    bool     `json:"fahrenheit"`
	HTTPPort      int      `json:"http_port"`
	LCDAddr       uint16   `json:"lcd_addr"`
	LCDCols       int      `json:"lcd_cols"`
	LCDRows       int      `json:"lcd_rows"`
}
