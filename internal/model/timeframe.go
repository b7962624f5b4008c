package model

import "fmt"

// Timeframe tags a price series by its resolution.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
)

// DerivedTimeframes lists every timeframe computed from the 1m base series,
// shortest first.
var DerivedTimeframes = []Timeframe{TF5m, TF15m, TF30m, TF1h}

// AllTimeframes is the base timeframe followed by the derived ones.
var AllTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h}

// Minutes returns the number of base samples making up one period.
func (tf Timeframe) Minutes() int {
	switch tf {
	case TF1m:
		return 1
	case TF5m:
		return 5
	case TF15m:
		return 15
	case TF30m:
		return 30
	case TF1h:
		return 60
	default:
		return 0
	}
}

// ParseTimeframe validates a timeframe tag.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if tf.Minutes() == 0 {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}
