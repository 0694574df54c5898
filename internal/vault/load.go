package vault

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"historyvault/internal/aggregate"
	"historyvault/internal/domain/models"
	"historyvault/internal/storage"
	"historyvault/pkg/logger"
	"historyvault/pkg/util"
)

// Load returns the first symbol matching the options, or nil when nothing
// matched or every matched timeframe came back empty.
func (e *Engine) Load(ctx context.Context, opts LoadOptions) (*models.SymbolData, error) {
	results, err := e.LoadMultiple(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// LoadMultiple expands the symbol pattern and loads every match with a
// bounded parallel fanout. Result order follows the expanded symbol order;
// symbols with no data are dropped.
func (e *Engine) LoadMultiple(ctx context.Context, opts LoadOptions) ([]models.SymbolData, error) {
	started := time.Now()
	if err := opts.normalize(&e.opts); err != nil {
		return nil, err
	}
	scope := *opts.Scope

	symbols, err := e.symbols.Matching(opts.Symbol, scope)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, nil
	}
	sort.Strings(symbols)

	results := make([]*models.SymbolData, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallelism)
	for i, symbol := range symbols {
		g.Go(func() error {
			data, err := e.loadSymbolData(gctx, symbol, scope, &opts)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.recordError("load")
		return nil, err
	}

	out := make([]models.SymbolData, 0, len(results))
	total := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		out = append(out, *r)
		for _, tf := range r.Timeframes {
			total += len(tf.Candles)
		}
	}

	e.log.Debug("symbols loaded",
		logger.String("pattern", opts.Symbol),
		logger.String("scope", scope.String()),
		logger.Int("symbols", len(out)),
		logger.Int("candles", total),
		logger.Duration("took", time.Since(started)),
	)
	if m := e.opts.Metrics; m != nil {
		m.RecordLoad(scope.String(), total)
		m.ObserveDuration("load", time.Since(started))
	}
	return out, nil
}

// loadSymbolData reduces one symbol: each requested timeframe is loaded
// from disk, falling back to on-the-fly aggregation when allowed. Nil means
// every timeframe came back empty.
func (e *Engine) loadSymbolData(ctx context.Context, symbol string, scope storage.Scope, opts *LoadOptions) (*models.SymbolData, error) {
	requested := opts.Timeframes
	if len(requested) == 0 {
		var err error
		requested, err = e.symbols.AvailableTimeframes(symbol, scope)
		if err != nil {
			return nil, err
		}
	}

	data := &models.SymbolData{Symbol: symbol}
	for _, iv := range requested {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load cancelled: %w", err)
		}
		candles, err := e.loadTimeframeData(ctx, symbol, scope, iv, opts.WarmupCount, opts)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 && opts.AllowAggregation {
			candles, err = e.tryAggregateTimeframe(ctx, symbol, scope, iv, opts)
			if err != nil {
				return nil, err
			}
		}
		if len(candles) > 0 {
			data.Timeframes = append(data.Timeframes, models.TimeframeData{Interval: iv, Candles: candles})
		}
	}
	if len(data.Timeframes) == 0 {
		return nil, nil
	}
	return data, nil
}

// loadTimeframeData reads the monthly files intersecting the effective
// range, then concatenates, filters, and sorts.
func (e *Engine) loadTimeframeData(ctx context.Context, symbol string, scope storage.Scope, iv models.Interval, warmup int, opts *LoadOptions) ([]models.Candle, error) {
	effStart, effEnd, bounded := effectiveRange(iv, warmup, opts)

	var (
		files []storage.MonthFile
		err   error
	)
	if bounded {
		files, err = e.paths.ListMonthFilesInRange(scope, symbol, iv, effStart, effEnd)
	} else {
		files, err = e.paths.ListMonthFiles(scope, symbol, iv)
	}
	if err != nil {
		return nil, err
	}

	var candles []models.Candle
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load cancelled: %w", err)
		}
		part, _, err := e.readFile(f)
		if err != nil {
			return nil, err
		}
		candles = append(candles, part...)
	}

	filtered := candles[:0]
	for _, c := range candles {
		if opts.Start != nil && c.OpenTime.Before(effStart) {
			continue
		}
		if opts.End != nil && c.OpenTime.After(effEnd) {
			continue
		}
		filtered = append(filtered, c)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].OpenTime.Before(filtered[j].OpenTime)
	})
	return filtered, nil
}

// effectiveRange applies warmup to the caller's start and extends the
// caller's end to the end of its calendar day. bounded is false when the
// caller gave neither bound, in which case every file qualifies.
func effectiveRange(iv models.Interval, warmup int, opts *LoadOptions) (start, end time.Time, bounded bool) {
	start = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

	if opts.Start != nil {
		start = opts.Start.UTC()
		if warmup > 0 {
			if dur, err := iv.Duration(); err == nil {
				start = start.Add(-time.Duration(warmup) * dur)
			}
		}
	}
	if opts.End != nil {
		end = util.EndOfDay(*opts.End)
	}
	return start, end, opts.Start != nil || opts.End != nil
}

// tryAggregateTimeframe derives a missing timeframe from the smallest
// stored interval that can aggregate into it. The warmup count scales by
// the aggregation factor so indicators still see the same lookback in
// target periods.
func (e *Engine) tryAggregateTimeframe(ctx context.Context, symbol string, scope storage.Scope, target models.Interval, opts *LoadOptions) ([]models.Candle, error) {
	available, err := e.symbols.AvailableTimeframes(symbol, scope)
	if err != nil {
		return nil, err
	}

	for _, source := range available {
		if !models.CanAggregate(source, target) {
			continue
		}
		factor, err := models.AggregationFactor(source, target)
		if err != nil {
			return nil, err
		}
		sourceCandles, err := e.loadTimeframeData(ctx, symbol, scope, source, opts.WarmupCount*int(factor), opts)
		if err != nil {
			return nil, err
		}
		if len(sourceCandles) == 0 {
			continue
		}
		bars, err := aggregate.Aggregate(sourceCandles, source, target)
		if err != nil {
			return nil, err
		}
		if !opts.IncludePartialCandles {
			bars = dropTrailingPartial(bars, sourceCandles[len(sourceCandles)-1])
		}
		e.log.Debug("timeframe aggregated on load",
			logger.String("symbol", symbol),
			logger.String("source", source.Code()),
			logger.String("target", target.Code()),
			logger.Int("candles", len(bars)),
		)
		return bars, nil
	}
	return nil, nil
}

// dropTrailingPartial removes a final bar whose last source candle closes
// more than one second before the end of that bar's target period.
func dropTrailingPartial(bars []models.Candle, lastSource models.Candle) []models.Candle {
	if len(bars) == 0 {
		return bars
	}
	last := bars[len(bars)-1]
	if lastSource.CloseTime.Before(last.CloseTime.Add(-time.Second)) {
		return bars[:len(bars)-1]
	}
	return bars
}
