package index

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"historyvault/internal/codec"
	"historyvault/internal/compress"
	"historyvault/internal/domain/models"
	"historyvault/internal/storage"
	"historyvault/pkg/logger"
)

// AvailabilityReport describes what part of a query range is covered by
// stored data.
type AvailabilityReport struct {
	Symbol         string
	Interval       models.Interval
	Start          time.Time
	End            time.Time
	Available      []models.DateRange
	Missing        []models.DateRange
	EstimatedCount int64
	ExpectedCount  int64
	Coverage       float64
}

// Availability computes covered ranges, gaps, and data bounds by reading
// only file headers.
type Availability struct {
	paths *storage.Resolver
	log   *logger.Logger
}

func NewAvailability(paths *storage.Resolver, log *logger.Logger) *Availability {
	if log == nil {
		log = logger.Nop()
	}
	return &Availability{paths: paths, log: log}
}

// DataBounds returns the earliest first timestamp and latest last timestamp
// by reading the headers of the chronologically first and last files only.
// The second return is false when no files exist or both headers are empty.
func (a *Availability) DataBounds(symbol string, iv models.Interval, scope storage.Scope) (models.DateRange, bool, error) {
	files, err := a.paths.ListMonthFiles(scope, symbol, iv)
	if err != nil {
		return models.DateRange{}, false, err
	}
	if len(files) == 0 {
		return models.DateRange{}, false, nil
	}

	first, firstOK := a.readHeader(files[0])
	last, lastOK := first, firstOK
	if len(files) > 1 {
		last, lastOK = a.readHeader(files[len(files)-1])
	}

	var start, end time.Time
	if firstOK && first.RecordCount > 0 {
		start = models.TimeOfTicks(first.FirstTimestamp)
		end = models.TimeOfTicks(first.LastTimestamp)
	}
	if lastOK && last.RecordCount > 0 {
		if start.IsZero() {
			start = models.TimeOfTicks(last.FirstTimestamp)
		}
		end = models.TimeOfTicks(last.LastTimestamp)
	}
	if start.IsZero() || end.IsZero() {
		return models.DateRange{}, false, nil
	}
	return models.DateRange{Start: start, End: end}, true, nil
}

// CheckAvailability scans the headers of candidate monthly files and
// reports merged available ranges, the missing complement, and coverage
// for [start, end].
func (a *Availability) CheckAvailability(ctx context.Context, symbol string, iv models.Interval, start, end time.Time, scope storage.Scope) (*AvailabilityReport, error) {
	report := &AvailabilityReport{
		Symbol:   symbol,
		Interval: iv,
		Start:    start,
		End:      end,
	}
	query := models.DateRange{Start: start, End: end}

	files, err := a.paths.ListMonthFilesInRange(scope, symbol, iv, start, end)
	if err != nil {
		return nil, err
	}

	var available []models.DateRange
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("availability scan cancelled: %w", err)
		}
		h, ok := a.readHeader(f)
		if !ok || h.RecordCount == 0 {
			continue
		}
		span := models.DateRange{
			Start: models.TimeOfTicks(h.FirstTimestamp),
			End:   models.TimeOfTicks(h.LastTimestamp),
		}
		clamped, ok := span.Intersect(query)
		if !ok {
			continue
		}
		available = append(available, clamped)

		if orig := span.Duration().Milliseconds(); orig > 0 {
			part := clamped.Duration().Milliseconds()
			report.EstimatedCount += (h.RecordCount*part + orig - 1) / orig
		} else {
			report.EstimatedCount += h.RecordCount
		}
	}

	report.Available = mergeRanges(available)
	report.Missing = complement(query, report.Available)

	if iv.IsStandard() {
		if n, err := iv.ExpectedCount(start, end); err == nil {
			report.ExpectedCount = n
		}
	}

	if span := query.Duration(); span > 0 {
		var covered time.Duration
		for _, r := range report.Available {
			covered += r.Duration()
		}
		c := float64(covered) / float64(span)
		if c > 1 {
			c = 1
		}
		if c < 0 {
			c = 0
		}
		report.Coverage = c
	}
	return report, nil
}

// readHeader reads only a file's header, fully decompressing first when the
// file is gzipped. Any failure is swallowed: a broken file reads as having
// no usable header and the scan continues.
func (a *Availability) readHeader(f storage.MonthFile) (codec.Header, bool) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		a.log.Debug("skip unreadable vault file",
			logger.String("path", f.Path),
			logger.Error(err),
		)
		return codec.Header{}, false
	}
	if f.Compressed || compress.IsCompressed(b) {
		b, err = compress.Decompress(b)
		if err != nil {
			a.log.Debug("skip undecompressable vault file",
				logger.String("path", f.Path),
				logger.Error(err),
			)
			return codec.Header{}, false
		}
	}
	h, err := codec.DecodeHeader(b)
	if err != nil {
		a.log.Debug("skip vault file with bad header",
			logger.String("path", f.Path),
			logger.Error(err),
		)
		return codec.Header{}, false
	}
	return h, true
}

// mergeRanges sorts by start and folds overlapping or tick-adjacent ranges
// into single runs.
func mergeRanges(ranges []models.DateRange) []models.DateRange {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })

	out := []models.DateRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if merged, err := last.Merge(r); err == nil {
			*last = merged
		} else {
			out = append(out, r)
		}
	}
	return out
}

// complement returns the parts of query not covered by the merged, sorted
// runs: a prefix gap, inter-run gaps wider than one tick, and a suffix gap.
func complement(query models.DateRange, covered []models.DateRange) []models.DateRange {
	if len(covered) == 0 {
		return []models.DateRange{query}
	}

	var out []models.DateRange
	if gap := covered[0].Start.Sub(query.Start); gap > models.Tick {
		out = append(out, models.DateRange{Start: query.Start, End: covered[0].Start.Add(-models.Tick)})
	}
	for i := 1; i < len(covered); i++ {
		prev, next := covered[i-1], covered[i]
		if next.Start.Sub(prev.End) > models.Tick {
			out = append(out, models.DateRange{
				Start: prev.End.Add(models.Tick),
				End:   next.Start.Add(-models.Tick),
			})
		}
	}
	if gap := query.End.Sub(covered[len(covered)-1].End); gap > models.Tick {
		out = append(out, models.DateRange{Start: covered[len(covered)-1].End.Add(models.Tick), End: query.End})
	}
	return out
}
