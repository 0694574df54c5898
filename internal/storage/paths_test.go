package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"historyvault/internal/domain/models"
)

func TestSanitizeSymbol(t *testing.T) {
	assert.Equal(t, "BTC.USD", SanitizeSymbol("BTC.USD"))
	assert.Equal(t, "BTC_USD", SanitizeSymbol("BTC/USD"))
	assert.Equal(t, "a_b_c_d", SanitizeSymbol(`a\b:c*d`))
	assert.Equal(t, "q_w", SanitizeSymbol("q?w"))
}

func TestMonthFilePath(t *testing.T) {
	r := NewResolver("/vault")

	plain := r.MonthFilePath(ScopeLocal, "BTC.USD", models.Interval1h, 2025, 3, false)
	assert.Equal(t, filepath.Join("/vault", "BTC.USD", "1h", "2025", "03.bin"), plain)

	gz := r.MonthFilePath(ScopeLocal, "BTC.USD", models.Interval1M, 2025, 11, true)
	assert.Equal(t, filepath.Join("/vault", "BTC.USD", "1M", "2025", "11.bin.gz"), gz)
}

func TestBaseOverride(t *testing.T) {
	r := NewResolver("/override")
	assert.Equal(t, "/override", r.Base(ScopeLocal))
	assert.Equal(t, "/override", r.Base(ScopeGlobal))

	def := NewResolver("")
	assert.Equal(t, filepath.Join(".", "data", "history-vault"), def.Base(ScopeLocal))
	assert.Equal(t, filepath.Join(os.TempDir(), "HistoryVault"), def.Base(ScopeGlobal))
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestListMonthFiles(t *testing.T) {
	base := t.TempDir()
	r := NewResolver(base)

	touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2024, 12, false))
	touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2025, 1, true))
	touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2025, 2, false))
	// Both variants: the compressed one must win.
	touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2025, 3, false))
	touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2025, 3, true))
	// Noise that must be ignored.
	touch(t, filepath.Join(base, "SYM", "1h", "2025", "notes.txt"))
	touch(t, filepath.Join(base, "SYM", "1h", "25", "04.bin"))

	files, err := r.ListMonthFiles(ScopeLocal, "SYM", models.Interval1h)
	require.NoError(t, err)
	require.Len(t, files, 4)

	assert.Equal(t, 2024, files[0].Year)
	assert.Equal(t, 12, files[0].Month)
	assert.Equal(t, 2025, files[3].Year)
	assert.Equal(t, 3, files[3].Month)
	assert.True(t, files[3].Compressed)
}

func TestListMonthFilesInRange(t *testing.T) {
	base := t.TempDir()
	r := NewResolver(base)

	for m := 1; m <= 12; m++ {
		touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2025, m, false))
	}
	touch(t, r.MonthFilePath(ScopeLocal, "SYM", models.Interval1h, 2024, 11, false))

	start := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	files, err := r.ListMonthFilesInRange(ScopeLocal, "SYM", models.Interval1h, start, end)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, 11, files[0].Month)
	assert.Equal(t, 2024, files[0].Year)
	assert.Equal(t, 2, files[2].Month)
}

func TestListSymbolsAndIntervals(t *testing.T) {
	base := t.TempDir()
	r := NewResolver(base)

	touch(t, r.MonthFilePath(ScopeLocal, "BTC.USD", models.Interval1m, 2025, 1, false))
	touch(t, r.MonthFilePath(ScopeLocal, "BTC.USD", models.Interval1h, 2025, 1, false))
	touch(t, r.MonthFilePath(ScopeLocal, "ETH.USD", models.Interval1m, 2025, 1, false))
	// Unknown interval directory names are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "BTC.USD", "7q"), 0o755))

	symbols, err := r.ListSymbols(ScopeLocal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC.USD", "ETH.USD"}, symbols)

	intervals, err := r.ListIntervals(ScopeLocal, "BTC.USD")
	require.NoError(t, err)
	assert.Equal(t, []models.Interval{models.Interval1m, models.Interval1h}, intervals)
}

func TestListOnMissingDirectories(t *testing.T) {
	r := NewResolver(t.TempDir())

	files, err := r.ListMonthFiles(ScopeLocal, "NONE", models.Interval1h)
	require.NoError(t, err)
	assert.Empty(t, files)

	symbols, err := NewResolver(filepath.Join(t.TempDir(), "missing")).ListSymbols(ScopeLocal)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestStats(t *testing.T) {
	base := t.TempDir()
	r := NewResolver(base)

	touch(t, r.MonthFilePath(ScopeLocal, "A", models.Interval1m, 2025, 1, false))
	touch(t, r.MonthFilePath(ScopeLocal, "A", models.Interval1m, 2025, 2, false))
	touch(t, r.MonthFilePath(ScopeLocal, "B", models.Interval1h, 2025, 1, false))

	stats, err := r.Stats(ScopeLocal)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	byName := map[string]SymbolStats{}
	for _, s := range stats {
		byName[s.Symbol] = s
	}
	assert.Equal(t, 2, byName["A"].FileCount)
	assert.Equal(t, 1, byName["B"].FileCount)
	assert.Equal(t, int64(2), byName["A"].Bytes)
}
