// Package models defines the core value types of the vault: candles,
// intervals, and date ranges.
//
// All monetary values use decimal.Decimal to avoid floating-point rounding
// errors accumulating across aggregation and storage round-trips.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is the time quantum used throughout the vault: 100 nanoseconds.
// Close times of aligned candles end one tick before the next period, and
// range adjacency tolerates a gap of at most one tick.
const Tick = 100 * time.Nanosecond

// TicksOf converts an instant to ticks since the Unix epoch.
// The zero time maps to zero ticks.
func TicksOf(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / 100
}

// TimeOfTicks converts ticks since the Unix epoch back to an instant in UTC.
// Zero ticks map to the zero time.
func TimeOfTicks(ticks int64) time.Time {
	if ticks == 0 {
		return time.Time{}
	}
	return time.Unix(0, ticks*100).UTC()
}

// Candle is one OHLCV bar. It covers [OpenTime, CloseTime]; for aligned
// candles CloseTime = OpenTime + interval duration - 1 tick.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Equal reports field-by-field equality including full decimal precision.
func (c Candle) Equal(o Candle) bool {
	return c.OpenTime.Equal(o.OpenTime) &&
		c.CloseTime.Equal(o.CloseTime) &&
		c.Open.Equal(o.Open) &&
		c.High.Equal(o.High) &&
		c.Low.Equal(o.Low) &&
		c.Close.Equal(o.Close) &&
		c.Volume.Equal(o.Volume)
}

// TimeframeData pairs an interval with its candles, ordered by OpenTime.
type TimeframeData struct {
	Interval Interval
	Candles  []Candle
}

// SymbolData is a symbol plus zero or more timeframe bundles. Multiple
// bundles for the same interval are allowed; they are concatenated during
// the month-group phase of a save.
type SymbolData struct {
	Symbol     string
	Timeframes []TimeframeData
}

// Timeframe returns the bundle for iv, if present.
func (s *SymbolData) Timeframe(iv Interval) (TimeframeData, bool) {
	for _, tf := range s.Timeframes {
		if tf.Interval == iv {
			return tf, true
		}
	}
	return TimeframeData{}, false
}
