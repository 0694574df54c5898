package models

import (
	"fmt"
	"time"
)

// Interval is a candle timeframe. Tick and Custom carry no duration and
// reject duration-based operations.
type Interval int

const (
	IntervalTick Interval = iota
	Interval1s
	Interval1m
	Interval3m
	Interval5m
	Interval10m
	Interval15m
	Interval30m
	Interval1h
	Interval2h
	Interval4h
	Interval6h
	Interval8h
	Interval12h
	Interval1d
	Interval3d
	Interval1w
	Interval1M
	IntervalCustom
)

// ErrNoDuration is returned for duration-based operations on Tick or Custom.
var ErrNoDuration = fmt.Errorf("interval has no fixed duration")

var intervalSeconds = map[Interval]int64{
	Interval1s:  1,
	Interval1m:  60,
	Interval3m:  180,
	Interval5m:  300,
	Interval10m: 600,
	Interval15m: 900,
	Interval30m: 1800,
	Interval1h:  3600,
	Interval2h:  7200,
	Interval4h:  14400,
	Interval6h:  21600,
	Interval8h:  28800,
	Interval12h: 43200,
	Interval1d:  86400,
	Interval3d:  259200,
	Interval1w:  604800,
	Interval1M:  2592000,
}

// Note the collision hazard: "1m" is the minute and "1M" is the month.
// Parsing is case-sensitive on purpose.
var intervalCodes = map[Interval]string{
	IntervalTick:   "tick",
	Interval1s:     "1s",
	Interval1m:     "1m",
	Interval3m:     "3m",
	Interval5m:     "5m",
	Interval10m:    "10m",
	Interval15m:    "15m",
	Interval30m:    "30m",
	Interval1h:     "1h",
	Interval2h:     "2h",
	Interval4h:     "4h",
	Interval6h:     "6h",
	Interval8h:     "8h",
	Interval12h:    "12h",
	Interval1d:     "1d",
	Interval3d:     "3d",
	Interval1w:     "1w",
	Interval1M:     "1M",
	IntervalCustom: "custom",
}

var codeIntervals = func() map[string]Interval {
	m := make(map[string]Interval, len(intervalCodes))
	for iv, code := range intervalCodes {
		m[code] = iv
	}
	return m
}()

// Code returns the stable short textual code used as a directory name.
func (iv Interval) Code() string {
	if c, ok := intervalCodes[iv]; ok {
		return c
	}
	return "custom"
}

func (iv Interval) String() string { return iv.Code() }

// ParseInterval maps a short code back to its interval. Matching is
// case-sensitive: "1m" is the minute, "1M" is the month.
func ParseInterval(code string) (Interval, bool) {
	iv, ok := codeIntervals[code]
	return iv, ok
}

// IsStandard reports whether iv has a fixed duration.
func (iv Interval) IsStandard() bool {
	_, ok := intervalSeconds[iv]
	return ok
}

// Seconds returns the interval duration in seconds.
func (iv Interval) Seconds() (int64, error) {
	s, ok := intervalSeconds[iv]
	if !ok {
		return 0, fmt.Errorf("interval %s: %w", iv, ErrNoDuration)
	}
	return s, nil
}

// Duration returns the interval duration.
func (iv Interval) Duration() (time.Duration, error) {
	s, err := iv.Seconds()
	if err != nil {
		return 0, err
	}
	return time.Duration(s) * time.Second, nil
}

// Align rounds t down to the nearest multiple of the interval duration
// counted from the Unix epoch.
func (iv Interval) Align(t time.Time) (time.Time, error) {
	s, err := iv.Seconds()
	if err != nil {
		return time.Time{}, err
	}
	sec := t.Unix()
	aligned := sec - ((sec%s)+s)%s
	return time.Unix(aligned, 0).UTC(), nil
}

// CanAggregate reports whether candles in interval a can be aggregated into
// interval b: both standard, a strictly finer, and b an exact multiple of a.
func CanAggregate(a, b Interval) bool {
	as, aok := intervalSeconds[a]
	bs, bok := intervalSeconds[b]
	return aok && bok && as < bs && bs%as == 0
}

// AggregationFactor returns how many candles of a make one candle of b.
func AggregationFactor(a, b Interval) (int64, error) {
	if !CanAggregate(a, b) {
		return 0, fmt.Errorf("cannot aggregate %s into %s", a, b)
	}
	as, _ := intervalSeconds[a]
	bs, _ := intervalSeconds[b]
	return bs / as, nil
}

// ExpectedCount returns the number of candles needed to cover [start, end],
// i.e. the span in seconds divided by the interval duration, rounded up.
func (iv Interval) ExpectedCount(start, end time.Time) (int64, error) {
	s, err := iv.Seconds()
	if err != nil {
		return 0, err
	}
	if !end.After(start) {
		return 0, nil
	}
	span := end.Sub(start)
	dur := time.Duration(s) * time.Second
	return int64((span + dur - 1) / dur), nil
}

// StandardIntervals returns every fixed-duration interval, smallest first.
func StandardIntervals() []Interval {
	return []Interval{
		Interval1s, Interval1m, Interval3m, Interval5m, Interval10m,
		Interval15m, Interval30m, Interval1h, Interval2h, Interval4h,
		Interval6h, Interval8h, Interval12h, Interval1d, Interval3d,
		Interval1w, Interval1M,
	}
}
