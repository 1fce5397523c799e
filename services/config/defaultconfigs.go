package config

// Embedded per-device configuration. Keep these small; they are parsed once
// at boot.
var embeddedConfigs = map[string][]byte{
	"weatherstation": []byte(`{
		"ap": {
			"ssid": "WeatherStation",
			"password": "password",
			"channel": 1,
			"hidden": false,
			"max_conns": 5,
			"addr": "192.168.0.1",
			"gateway": "192.168.0.1",
			"netmask": "255.255.255.0"
		},
		"sensor_pin": 4,
		"read_interval_s": 60,
		"fahrenheit": true,
		"http_port": 80,
		"lcd_addr": 39,
		"lcd_cols": 16,
		"lcd_rows": 2
	}`),
}
