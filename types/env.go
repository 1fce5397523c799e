package types

// ------------------------
// Temperature & humidity
// ------------------------

// TempUnit selects the reported temperature scale.
type TempUnit string

const (
	UnitCelsius    TempUnit = "C"
	UnitFahrenheit TempUnit = "F"
)

// Reading is the last successfully validated sensor sample.
// Integer degrees/percent; the DHT11 has no usable fractional part.
type Reading struct {
	Temperature int      `json:"temperature"`
	Humidity    int      `json:"humidity"`
	Unit        TempUnit `json:"unit"`
	TsMs        int64    `json:"ts_ms"` // producer timestamp
}
