// Package period converts the wire period strings to millisecond durations.
package period

import "vegasstrategy/internal/corerr"

// Period is one of the fixed wire-format strings the core understands.
type Period string

const (
	OneMinute      Period = "1m"
	FiveMinutes    Period = "5m"
	FifteenMinutes Period = "15m"
	OneHour        Period = "1H"
	FourHours      Period = "4H"
	OneDayUTC      Period = "1Dutc"
)

var millis = map[Period]int64{
	OneMinute:      60_000,
	FiveMinutes:    300_000,
	FifteenMinutes: 900_000,
	OneHour:        3_600_000,
	FourHours:      14_400_000,
	OneDayUTC:      86_400_000,
}

// Millis returns the period's duration in milliseconds.
func Millis(p Period) (int64, error) {
	ms, ok := millis[p]
	if !ok {
		return 0, corerr.New(corerr.Configuration, "unknown period: "+string(p))
	}
	return ms, nil
}

// MustMillis panics on an unknown period; only use with literal constants.
func MustMillis(p Period) int64 {
	ms, err := Millis(p)
	if err != nil {
		panic(err)
	}
	return ms
}

// IsUTCDayAligned reports whether the period requires UTC-midnight alignment.
func IsUTCDayAligned(p Period) bool {
	return p == OneDayUTC
}
