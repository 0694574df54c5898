package vault

import (
	"fmt"
	"runtime"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"historyvault/internal/compress"
	"historyvault/internal/domain/models"
	"historyvault/internal/storage"
	"historyvault/pkg/logger"
	"historyvault/pkg/metrics"
)

var validate = validator.New()

// Options configures an Engine. Build with NewOptions so defaults are
// applied, then adjust fields before passing to New.
type Options struct {
	// DefaultScope is used by save and load calls that do not override it.
	DefaultScope storage.Scope
	// BasePathOverride supersedes both scope base directories. Tests must
	// set this.
	BasePathOverride string
	// MaxParallelism bounds the read fanout of LoadMultiple.
	MaxParallelism int `default:"0" validate:"min=0"`
	// BufferSize is the advisory I/O buffer size in bytes.
	BufferSize int `default:"81920" validate:"min=1"`
	// AutoCreateDirectories creates missing directories on save.
	AutoCreateDirectories bool `default:"true"`
	// DefaultTimeframes, when set, are the save targets used when a save
	// call names none.
	DefaultTimeframes []models.Interval

	// Logger receives debug events; nil means silent.
	Logger *logger.Logger
	// Metrics receives operation counters and durations; nil disables.
	Metrics *metrics.Recorder
}

// NewOptions returns Options with defaults applied.
func NewOptions() Options {
	var o Options
	_ = defaults.Set(&o)
	return o
}

func (o *Options) normalize() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid engine options: %w", err)
	}
	if o.MaxParallelism <= 0 {
		o.MaxParallelism = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return nil
}

// SaveOptions configures one save call. Build with NewSaveOptions.
type SaveOptions struct {
	// UseCompression writes .bin.gz files instead of .bin.
	UseCompression bool `default:"true"`
	// CompressionLevel applies when UseCompression is set.
	CompressionLevel compress.Level `default:"1"`
	// AllowPartialOverwrite merges incoming candles with existing monthly
	// data instead of replacing the file wholesale.
	AllowPartialOverwrite bool
	// Scope overrides the engine's default scope when non-nil.
	Scope *storage.Scope
	// TargetTimeframes, when set, are the timeframes written for each
	// input bundle.
	TargetTimeframes []models.Interval
	// AggregateFromSmallest derives every compatible target from the
	// source bundle in addition to writing the source itself.
	AggregateFromSmallest bool
	// BatchSize is advisory.
	BatchSize int `default:"5000" validate:"min=1"`
}

// NewSaveOptions returns SaveOptions with defaults applied: compression on
// at Optimal level.
func NewSaveOptions() SaveOptions {
	var o SaveOptions
	_ = defaults.Set(&o)
	return o
}

func (o *SaveOptions) normalize(engine *Options) error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid save options: %w", err)
	}
	if o.Scope == nil {
		scope := engine.DefaultScope
		o.Scope = &scope
	}
	return nil
}

// LoadOptions configures a load call.
type LoadOptions struct {
	// Symbol is an exact name or a glob pattern ('*', '?').
	Symbol string `validate:"required"`
	// Start and End bound the candles returned; nil means unbounded. End
	// is extended to the end of its calendar day.
	Start *time.Time
	End   *time.Time
	// Timeframes requested; empty means every stored timeframe.
	Timeframes []models.Interval
	// WarmupCount loads extra candles before Start for indicator
	// initialization. Scaled by the aggregation factor when aggregation
	// kicks in.
	WarmupCount int `validate:"min=0"`
	// Scope overrides the engine's default scope when non-nil.
	Scope *storage.Scope
	// AllowAggregation derives a missing timeframe from the smallest
	// compatible stored one.
	AllowAggregation bool
	// IncludePartialCandles keeps a trailing aggregated bar built from
	// fewer source candles than a full period.
	IncludePartialCandles bool `default:"true"`
}

// NewLoadOptions returns LoadOptions for a symbol with defaults applied.
func NewLoadOptions(symbol string) LoadOptions {
	o := LoadOptions{Symbol: symbol}
	_ = defaults.Set(&o)
	return o
}

func (o *LoadOptions) normalize(engine *Options) error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid load options: %w", err)
	}
	if o.Start != nil && o.End != nil && o.End.Before(*o.Start) {
		return fmt.Errorf("invalid load options: end %s before start %s", *o.End, *o.Start)
	}
	if o.Scope == nil {
		scope := engine.DefaultScope
		o.Scope = &scope
	}
	return nil
}
