package marketdata

import "time"

// ErrorBackoff is the wait after a failed poll cycle.
const ErrorBackoff = 60 * time.Second

// PollInterval returns the wait between successful polls for a kline
// interval. Short bars are polled faster than they close.
func PollInterval(interval string) time.Duration {
	switch interval {
	case "1s":
		return 2 * time.Second
	case "1m":
		return 15 * time.Second
	case "5m":
		return 30 * time.Second
	case "15m":
		return 60 * time.Second
	default:
		return 120 * time.Second
	}
}

// bybitIntervals maps interval names to Bybit's kline interval codes.
var bybitIntervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
	"1M":  "M",
}

// ValidInterval reports whether the named exchange serves the interval.
func ValidInterval(exchange, interval string) bool {
	if exchange == ExchangeBybit {
		_, ok := bybitIntervals[interval]
		return ok
	}
	switch interval {
	case "1s", "1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M":
		return true
	}
	return false
}
