// Package storage maps (scope, symbol, interval, year, month) onto the
// vault's on-disk layout and enumerates existing files:
//
//	<base>/<sanitized-symbol>/<short-code>/<YYYY>/<MM>.bin
//	<base>/<sanitized-symbol>/<short-code>/<YYYY>/<MM>.bin.gz
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"historyvault/internal/domain/models"
)

// Scope selects the base directory family.
type Scope int

const (
	// ScopeLocal stores under ./data/history-vault relative to the process
	// working directory.
	ScopeLocal Scope = iota
	// ScopeGlobal stores under <os-temp>/HistoryVault, shared per machine.
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

// ParseScope maps a configuration string to a Scope.
func ParseScope(s string) (Scope, bool) {
	switch strings.ToLower(s) {
	case "local", "":
		return ScopeLocal, true
	case "global":
		return ScopeGlobal, true
	}
	return ScopeLocal, false
}

const (
	extPlain      = ".bin"
	extCompressed = ".bin.gz"
)

// Resolver composes vault paths. A non-empty override supersedes both scope
// bases.
type Resolver struct {
	override string
}

func NewResolver(basePathOverride string) *Resolver {
	return &Resolver{override: basePathOverride}
}

// Base resolves the root directory for a scope.
func (r *Resolver) Base(scope Scope) string {
	if r.override != "" {
		return r.override
	}
	if scope == ScopeGlobal {
		return filepath.Join(os.TempDir(), "HistoryVault")
	}
	return filepath.Join(".", "data", "history-vault")
}

// SanitizeSymbol replaces filesystem-illegal filename characters with '_'.
// Everything else passes through verbatim, so the caller keeps seeing the
// original symbol string.
func SanitizeSymbol(symbol string) string {
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range symbol {
		switch {
		case r < 0x20:
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SymbolDir is <base>/<sanitized-symbol>.
func (r *Resolver) SymbolDir(scope Scope, symbol string) string {
	return filepath.Join(r.Base(scope), SanitizeSymbol(symbol))
}

// TimeframeDir is <base>/<sanitized-symbol>/<short-code>.
func (r *Resolver) TimeframeDir(scope Scope, symbol string, iv models.Interval) string {
	return filepath.Join(r.SymbolDir(scope, symbol), iv.Code())
}

// MonthFilePath composes the full path of one monthly file.
func (r *Resolver) MonthFilePath(scope Scope, symbol string, iv models.Interval, year, month int, compressed bool) string {
	ext := extPlain
	if compressed {
		ext = extCompressed
	}
	return filepath.Join(
		r.TimeframeDir(scope, symbol, iv),
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d%s", month, ext),
	)
}

// MonthFile describes one existing monthly file.
type MonthFile struct {
	Path       string
	Year       int
	Month      int
	Compressed bool
}

// ListMonthFiles returns every monthly file for (symbol, interval) sorted
// chronologically by (year, month). When both the compressed and the plain
// file exist for a month, the compressed one wins.
func (r *Resolver) ListMonthFiles(scope Scope, symbol string, iv models.Interval) ([]MonthFile, error) {
	return r.listMonthFiles(scope, symbol, iv, func(int, int) bool { return true })
}

// ListMonthFilesInRange restricts enumeration to months intersecting
// [start, end].
func (r *Resolver) ListMonthFilesInRange(scope Scope, symbol string, iv models.Interval, start, end time.Time) ([]MonthFile, error) {
	sy, sm := start.UTC().Year(), int(start.UTC().Month())
	ey, em := end.UTC().Year(), int(end.UTC().Month())
	return r.listMonthFiles(scope, symbol, iv, func(year, month int) bool {
		if year < sy || year > ey {
			return false
		}
		if year == sy && month < sm {
			return false
		}
		if year == ey && month > em {
			return false
		}
		return true
	})
}

func (r *Resolver) listMonthFiles(scope Scope, symbol string, iv models.Interval, keep func(year, month int) bool) ([]MonthFile, error) {
	dir := r.TimeframeDir(scope, symbol, iv)
	years, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list years in %s: %w", dir, err)
	}

	var out []MonthFile
	for _, ye := range years {
		if !ye.IsDir() {
			continue
		}
		year, err := strconv.Atoi(ye.Name())
		if err != nil || len(ye.Name()) != 4 {
			continue
		}
		yearDir := filepath.Join(dir, ye.Name())
		entries, err := os.ReadDir(yearDir)
		if err != nil {
			return nil, fmt.Errorf("list months in %s: %w", yearDir, err)
		}
		// Month -> file, compressed preferred.
		months := make(map[int]MonthFile)
		for _, me := range entries {
			if me.IsDir() {
				continue
			}
			name := me.Name()
			var compressed bool
			var stem string
			switch {
			case strings.HasSuffix(name, extCompressed):
				compressed = true
				stem = strings.TrimSuffix(name, extCompressed)
			case strings.HasSuffix(name, extPlain):
				stem = strings.TrimSuffix(name, extPlain)
			default:
				continue
			}
			month, err := strconv.Atoi(stem)
			if err != nil || month < 1 || month > 12 {
				continue
			}
			if !keep(year, month) {
				continue
			}
			if existing, ok := months[month]; ok && existing.Compressed && !compressed {
				continue
			}
			months[month] = MonthFile{
				Path:       filepath.Join(yearDir, name),
				Year:       year,
				Month:      month,
				Compressed: compressed,
			}
		}
		for _, mf := range months {
			out = append(out, mf)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// ListSymbols returns the top-level symbol directory names under a scope.
func (r *Resolver) ListSymbols(scope Scope) ([]string, error) {
	base := r.Base(scope)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list symbols in %s: %w", base, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// ListIntervals returns the intervals stored for a symbol, i.e. the child
// directory names that parse as a short code. Unknown names are ignored.
func (r *Resolver) ListIntervals(scope Scope, symbol string) ([]models.Interval, error) {
	dir := r.SymbolDir(scope, symbol)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list intervals in %s: %w", dir, err)
	}
	var out []models.Interval
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if iv, ok := models.ParseInterval(e.Name()); ok {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SymbolStats is the directory accounting for one symbol.
type SymbolStats struct {
	Symbol    string
	FileCount int
	Bytes     int64
}

// Stats walks a scope's tree and reports per-symbol file counts and byte
// totals.
func (r *Resolver) Stats(scope Scope) ([]SymbolStats, error) {
	symbols, err := r.ListSymbols(scope)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolStats, 0, len(symbols))
	for _, sym := range symbols {
		st := SymbolStats{Symbol: sym}
		err := filepath.Walk(r.SymbolDir(scope, sym), func(_ string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				st.FileCount++
				st.Bytes += info.Size()
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", sym, err)
		}
		out = append(out, st)
	}
	return out, nil
}
