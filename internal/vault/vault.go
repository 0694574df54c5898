// Package vault orchestrates saving, loading, merging, and deleting
// month-partitioned candle history on the local filesystem.
package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"historyvault/internal/aggregate"
	"historyvault/internal/codec"
	"historyvault/internal/compress"
	"historyvault/internal/domain/models"
	"historyvault/internal/index"
	"historyvault/internal/storage"
	"historyvault/pkg/logger"
)

// Engine is the vault. All public operations are safe for concurrent use;
// writes serialize per symbol, reads run unlocked against atomic file
// replacement.
type Engine struct {
	opts    Options
	paths   *storage.Resolver
	symbols *index.SymbolIndex
	avail   *index.Availability
	locks   symbolLocks
	log     *logger.Logger
}

// New composes an engine from options. Components are composed directly;
// there is no container.
func New(opts Options) (*Engine, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	paths := storage.NewResolver(opts.BasePathOverride)
	return &Engine{
		opts:    opts,
		paths:   paths,
		symbols: index.NewSymbolIndex(paths),
		avail:   index.NewAvailability(paths, opts.Logger),
		log:     opts.Logger,
	}, nil
}

// Close releases the per-symbol write semaphores. Operations on a closed
// engine are undefined.
func (e *Engine) Close() {
	e.locks.reset()
}

// Save persists every timeframe bundle of data, deriving additional target
// timeframes per the options. Writes for the same symbol serialize on a
// per-symbol semaphore; concurrent saves for different symbols are
// independent.
func (e *Engine) Save(ctx context.Context, data models.SymbolData, opts SaveOptions) error {
	started := time.Now()
	if data.Symbol == "" {
		return fmt.Errorf("invalid argument: empty symbol")
	}
	if err := opts.normalize(&e.opts); err != nil {
		return err
	}
	scope := *opts.Scope

	release, err := e.locks.acquire(ctx, data.Symbol)
	if err != nil {
		return err
	}
	defer release()

	// Bundles with the same interval concatenate before the month-group
	// phase.
	bySource := make(map[models.Interval][]models.Candle)
	var sources []models.Interval
	for _, tf := range data.Timeframes {
		if _, seen := bySource[tf.Interval]; !seen {
			sources = append(sources, tf.Interval)
		}
		bySource[tf.Interval] = append(bySource[tf.Interval], tf.Candles...)
	}

	total := 0
	for _, source := range sources {
		candles := bySource[source]
		sort.SliceStable(candles, func(i, j int) bool {
			return candles[i].OpenTime.Before(candles[j].OpenTime)
		})

		for _, target := range e.deriveTargets(source, &opts) {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("save cancelled: %w", err)
			}
			out := candles
			if target != source {
				out, err = aggregate.Aggregate(candles, source, target)
				if err != nil {
					e.recordError("save")
					return fmt.Errorf("derive %s from %s: %w", target, source, err)
				}
			}
			n, err := e.saveTimeframe(ctx, scope, data.Symbol, target, out, &opts)
			if err != nil {
				e.recordError("save")
				return err
			}
			total += n
		}
	}

	e.symbols.AddToCache(data.Symbol, scope)
	e.log.Debug("symbol saved",
		logger.String("symbol", data.Symbol),
		logger.String("scope", scope.String()),
		logger.Int("candles", total),
		logger.Duration("took", time.Since(started)),
	)
	if m := e.opts.Metrics; m != nil {
		m.RecordSave(scope.String(), total)
		m.ObserveDuration("save", time.Since(started))
	}
	return nil
}

// deriveTargets applies the target-timeframe rules for one source bundle.
func (e *Engine) deriveTargets(source models.Interval, opts *SaveOptions) []models.Interval {
	if len(opts.TargetTimeframes) > 0 {
		if !opts.AggregateFromSmallest {
			return dedupeIntervals(opts.TargetTimeframes)
		}
		out := []models.Interval{source}
		for _, t := range opts.TargetTimeframes {
			if models.CanAggregate(source, t) {
				out = append(out, t)
			}
		}
		return dedupeIntervals(out)
	}
	if len(e.opts.DefaultTimeframes) > 0 {
		return dedupeIntervals(e.opts.DefaultTimeframes)
	}
	return []models.Interval{source}
}

func dedupeIntervals(in []models.Interval) []models.Interval {
	seen := make(map[models.Interval]struct{}, len(in))
	out := make([]models.Interval, 0, len(in))
	for _, iv := range in {
		if _, ok := seen[iv]; ok {
			continue
		}
		seen[iv] = struct{}{}
		out = append(out, iv)
	}
	return out
}

// saveTimeframe writes one timeframe's candles month by month and returns
// how many candles went to disk.
func (e *Engine) saveTimeframe(ctx context.Context, scope storage.Scope, symbol string, iv models.Interval, candles []models.Candle, opts *SaveOptions) (int, error) {
	groups := groupByMonth(candles)
	written := 0
	for _, key := range sortedMonthKeys(groups) {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("save cancelled: %w", err)
		}
		group := groups[key]

		if opts.AllowPartialOverwrite {
			existing, err := e.readExistingMonth(scope, symbol, iv, key)
			if err != nil {
				return written, err
			}
			if len(existing) > 0 {
				group = mergeCandles(existing, group)
			}
		}

		if err := e.writeMonthFile(scope, symbol, iv, key, group, opts); err != nil {
			return written, err
		}
		written += len(group)
	}
	return written, nil
}

// readExistingMonth loads the current on-disk candles for one month,
// preferring the compressed file when both variants exist.
func (e *Engine) readExistingMonth(scope storage.Scope, symbol string, iv models.Interval, key monthKey) ([]models.Candle, error) {
	for _, compressed := range []bool{true, false} {
		path := e.paths.MonthFilePath(scope, symbol, iv, key.year, int(key.month), compressed)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		candles, _, err := e.readFile(storage.MonthFile{
			Path:       path,
			Year:       key.year,
			Month:      int(key.month),
			Compressed: compressed,
		})
		if err != nil {
			return nil, fmt.Errorf("read existing month %04d-%02d: %w", key.year, key.month, err)
		}
		return candles, nil
	}
	return nil, nil
}

// writeMonthFile encodes, optionally compresses, and atomically replaces
// one monthly file, then removes the alternative-compression variant so a
// month is stored exactly once.
func (e *Engine) writeMonthFile(scope storage.Scope, symbol string, iv models.Interval, key monthKey, candles []models.Candle, opts *SaveOptions) error {
	buf, err := codec.Encode(candles, iv, opts.UseCompression)
	if err != nil {
		return fmt.Errorf("encode month %04d-%02d: %w", key.year, key.month, err)
	}
	defer codec.ReturnBuffer(buf)

	payload := buf
	if opts.UseCompression {
		payload, err = compress.Compress(buf, opts.CompressionLevel)
		if err != nil {
			return fmt.Errorf("compress month %04d-%02d: %w", key.year, key.month, err)
		}
	}

	path := e.paths.MonthFilePath(scope, symbol, iv, key.year, int(key.month), opts.UseCompression)
	if e.opts.AutoCreateDirectories {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	if m := e.opts.Metrics; m != nil {
		m.RecordBytesWritten(len(payload))
	}

	// The other compression variant must not survive a write.
	alt := e.paths.MonthFilePath(scope, symbol, iv, key.year, int(key.month), !opts.UseCompression)
	if err := os.Remove(alt); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale %s: %w", alt, err)
	}

	e.log.Debug("month file written",
		logger.String("path", path),
		logger.Int("candles", len(candles)),
		logger.Bool("compressed", opts.UseCompression),
	)
	return nil
}

// readFile reads and decodes one monthly file, decompressing when needed.
func (e *Engine) readFile(f storage.MonthFile) ([]models.Candle, codec.Header, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, codec.Header{}, fmt.Errorf("read %s: %w", f.Path, err)
	}
	if m := e.opts.Metrics; m != nil {
		m.RecordBytesRead(len(b))
	}
	if f.Compressed || compress.IsCompressed(b) {
		raw, err := compress.DecompressPooled(b, e.opts.BufferSize)
		if err != nil {
			return nil, codec.Header{}, fmt.Errorf("decompress %s: %w", f.Path, err)
		}
		defer compress.ReturnBuffer(raw)
		candles, h, err := codec.Decode(raw)
		if err != nil {
			return nil, codec.Header{}, fmt.Errorf("decode %s: %w", f.Path, err)
		}
		return candles, h, nil
	}
	candles, h, err := codec.Decode(b)
	if err != nil {
		return nil, codec.Header{}, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return candles, h, nil
}

func (e *Engine) recordError(operation string) {
	if m := e.opts.Metrics; m != nil {
		m.RecordError(operation)
	}
}

// --- thin delegations ---

// CheckAvailability reports covered and missing sub-ranges of [start, end].
func (e *Engine) CheckAvailability(ctx context.Context, symbol string, iv models.Interval, start, end time.Time, scope storage.Scope) (*index.AvailabilityReport, error) {
	return e.avail.CheckAvailability(ctx, symbol, iv, start, end, scope)
}

// DataBounds returns the stored range for (symbol, interval), if any.
func (e *Engine) DataBounds(symbol string, iv models.Interval, scope storage.Scope) (models.DateRange, bool, error) {
	return e.avail.DataBounds(symbol, iv, scope)
}

// HasData reports whether any candles are stored for (symbol, interval).
func (e *Engine) HasData(symbol string, iv models.Interval, scope storage.Scope) (bool, error) {
	_, ok, err := e.avail.DataBounds(symbol, iv, scope)
	return ok, err
}

// MatchingSymbols expands a glob pattern against the stored symbols.
func (e *Engine) MatchingSymbols(pattern string, scope storage.Scope) ([]string, error) {
	return e.symbols.Matching(pattern, scope)
}

// AvailableTimeframes lists the intervals stored for a symbol.
func (e *Engine) AvailableTimeframes(symbol string, scope storage.Scope) ([]models.Interval, error) {
	return e.symbols.AvailableTimeframes(symbol, scope)
}

// Stats reports per-symbol file counts and byte totals for a scope.
func (e *Engine) Stats(scope storage.Scope) ([]storage.SymbolStats, error) {
	return e.paths.Stats(scope)
}

// DeleteSymbol removes every file stored for a symbol and reports whether
// anything existed.
func (e *Engine) DeleteSymbol(symbol string, scope storage.Scope) (bool, error) {
	if symbol == "" {
		return false, fmt.Errorf("invalid argument: empty symbol")
	}
	dir := e.paths.SymbolDir(scope, symbol)
	return e.removeDir(dir, scope)
}

// DeleteTimeframe removes one interval's files for a symbol.
func (e *Engine) DeleteTimeframe(symbol string, iv models.Interval, scope storage.Scope) (bool, error) {
	if symbol == "" {
		return false, fmt.Errorf("invalid argument: empty symbol")
	}
	dir := e.paths.TimeframeDir(scope, symbol, iv)
	return e.removeDir(dir, scope)
}

func (e *Engine) removeDir(dir string, scope storage.Scope) (bool, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove %s: %w", dir, err)
	}
	e.symbols.Invalidate(scope)
	e.log.Debug("vault directory removed", logger.String("path", dir))
	return true, nil
}
