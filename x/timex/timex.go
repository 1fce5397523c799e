package timex

import "time"

var epoch = time.Now()

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Micros returns monotonic microseconds since process start. Suitable for
// pulse-width timing; wall-clock adjustments do not affect it.
func Micros() int64 { return int64(time.Since(epoch) / time.Microsecond) }

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}
