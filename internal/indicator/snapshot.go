package indicator

import "alphabot/internal/model"

// Snapshot is the immutable set of indicator readings one evaluation cycle
// decides on. It is built once per cycle from copies of the series and is
// safe to share.
type Snapshot struct {
	LastPrice      float64 `json:"last_price"`      // newest 1m price
	ReferencePrice float64 `json:"reference_price"` // newest 15m price
	PercentChange  float64 `json:"percent_change"`  // 1m vs 15m, percent
	CrossRefPrice  float64 `json:"cross_ref_price"` // external reference, 0 if unavailable

	MACD      MACDResult `json:"macd"`       // over 15m
	RSI       float64    `json:"rsi"`        // newest value of the cumulative 15m RSI record
	RSIRecent []float64  `json:"rsi_recent"` // tail of the cumulative record, oldest first
	ShortRSI  []float64  `json:"short_rsi"`  // 5m RSI series

	SMA float64 `json:"sma"` // SMA(15) of 15m
	EMA float64 `json:"ema"` // EMA(15) of 15m

	PSAR       PSARResult `json:"psar"`        // over the newest 15m bars
	PSARCloses []float64  `json:"psar_closes"` // closes the SAR was computed on, index-aligned

	Top       Extreme `json:"top"`        // 5m price
	Bottom    Extreme `json:"bottom"`     // 5m price
	RSITop    Extreme `json:"rsi_top"`    // 5m RSI
	RSIBottom Extreme `json:"rsi_bottom"` // 5m RSI

	Directions map[model.Timeframe]Direction `json:"directions"`

	BullishTrend bool    `json:"bullish_trend"` // SAR below both SMA and EMA
	BearishTrend bool    `json:"bearish_trend"` // SAR above both SMA and EMA
	Support      float64 `json:"support"`
	Resistance   float64 `json:"resistance"`
}

// ShortRSILast returns the newest 5m RSI.
func (s Snapshot) ShortRSILast() float64 { return last(s.ShortRSI) }

// SAR returns the newest SAR value and trend.
func (s Snapshot) SAR() (float64, Trend) { return s.PSAR.Last() }

// Direction returns the direction of tf, Stable if unknown.
func (s Snapshot) Direction(tf model.Timeframe) Direction {
	if d, ok := s.Directions[tf]; ok {
		return d
	}
	return Stable
}
