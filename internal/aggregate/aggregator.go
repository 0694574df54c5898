// Package aggregate reduces fine-grained candle sequences into coarser
// aligned periods: first open, last close, max high, min low, summed volume.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"historyvault/internal/domain/models"
)

// ErrIncompatible is returned when the source interval cannot be aggregated
// into the target.
var ErrIncompatible = errors.New("aggregation incompatible")

// ErrEmptyInput is returned by AggregateToSingle for an empty sequence.
var ErrEmptyInput = errors.New("no candles to aggregate")

// Aggregate groups candles (sorted by OpenTime, in source interval) into
// target-aligned periods. A partial trailing period still yields one output
// candle.
func Aggregate(candles []models.Candle, source, target models.Interval) ([]models.Candle, error) {
	if !models.CanAggregate(source, target) {
		return nil, fmt.Errorf("%w: %s into %s", ErrIncompatible, source, target)
	}
	if len(candles) == 0 {
		return nil, nil
	}
	targetDur, err := target.Duration()
	if err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(candles)/2+1)
	var group []models.Candle
	var period time.Time

	flush := func() {
		if len(group) > 0 {
			out = append(out, reduce(group, targetDur))
			group = group[:0]
		}
	}

	for _, c := range candles {
		p, err := target.Align(c.OpenTime)
		if err != nil {
			return nil, err
		}
		if len(group) > 0 && !p.Equal(period) {
			flush()
		}
		period = p
		group = append(group, c)
	}
	flush()
	return out, nil
}

// reduce collapses one period's candles into a single bar. The close time
// is the first open time plus one target period minus a tick, except when the last input closes within one second
// of it; then the input close time is preserved verbatim, which keeps
// real-data jitter intact.
func reduce(group []models.Candle, targetDur time.Duration) models.Candle {
	first, last := group[0], group[len(group)-1]

	closeTime := first.OpenTime.Add(targetDur - models.Tick)
	if d := closeTime.Sub(last.CloseTime); d >= -time.Second && d <= time.Second {
		closeTime = last.CloseTime
	}

	bar := models.Candle{
		OpenTime:  first.OpenTime,
		CloseTime: closeTime,
		Open:      first.Open,
		High:      first.High,
		Low:       first.Low,
		Close:     last.Close,
		Volume:    first.Volume,
	}
	for _, c := range group[1:] {
		if c.High.GreaterThan(bar.High) {
			bar.High = c.High
		}
		if c.Low.LessThan(bar.Low) {
			bar.Low = c.Low
		}
		bar.Volume = bar.Volume.Add(c.Volume)
	}
	return bar
}

// AggregateToSingle collapses any non-empty sequence into exactly one
// candle: open from the first, close from the last, min/max/sum for the
// rest.
func AggregateToSingle(candles []models.Candle) (models.Candle, error) {
	if len(candles) == 0 {
		return models.Candle{}, ErrEmptyInput
	}
	first, last := candles[0], candles[len(candles)-1]
	bar := models.Candle{
		OpenTime:  first.OpenTime,
		CloseTime: last.CloseTime,
		Open:      first.Open,
		High:      first.High,
		Low:       first.Low,
		Close:     last.Close,
		Volume:    first.Volume,
	}
	for _, c := range candles[1:] {
		if c.High.GreaterThan(bar.High) {
			bar.High = c.High
		}
		if c.Low.LessThan(bar.Low) {
			bar.Low = c.Low
		}
		bar.Volume = bar.Volume.Add(c.Volume)
	}
	return bar, nil
}

// AggregateToMultiple aggregates one source sequence into several targets.
// Targets are processed smallest first and each step reuses the previous
// intermediate result when compatible, falling back to the source
// otherwise. Results are identical to aggregating each target directly
// from the source.
func AggregateToMultiple(candles []models.Candle, source models.Interval, targets []models.Interval) ([]models.TimeframeData, error) {
	ordered := make([]models.Interval, len(targets))
	copy(ordered, targets)
	sort.Slice(ordered, func(i, j int) bool {
		si, _ := ordered[i].Seconds()
		sj, _ := ordered[j].Seconds()
		return si < sj
	})

	out := make([]models.TimeframeData, 0, len(ordered))
	prevInterval := source
	prevCandles := candles
	for _, target := range ordered {
		var (
			bars []models.Candle
			err  error
		)
		if models.CanAggregate(prevInterval, target) {
			bars, err = Aggregate(prevCandles, prevInterval, target)
		} else {
			bars, err = Aggregate(candles, source, target)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.TimeframeData{Interval: target, Candles: bars})
		prevInterval = target
		prevCandles = bars
	}
	return out, nil
}

// ValidateSequence checks that candles are sorted by non-decreasing
// OpenTime and that every non-terminal candle spans the expected interval
// duration within a one-second tolerance.
func ValidateSequence(candles []models.Candle, expected models.Interval) bool {
	dur, err := expected.Duration()
	if err != nil {
		return false
	}
	for i, c := range candles {
		if i > 0 && c.OpenTime.Before(candles[i-1].OpenTime) {
			return false
		}
		if i == len(candles)-1 {
			break
		}
		span := c.CloseTime.Sub(c.OpenTime) + models.Tick
		if d := span - dur; d < -time.Second || d > time.Second {
			return false
		}
	}
	return true
}
