package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"historyvault/internal/storage"
)

func newSymbolFixture(t *testing.T, symbols ...string) (*SymbolIndex, string) {
	t.Helper()
	base := t.TempDir()
	for _, s := range symbols {
		require.NoError(t, os.MkdirAll(filepath.Join(base, s, "1m"), 0o755))
	}
	return NewSymbolIndex(storage.NewResolver(base)), base
}

func TestMatchingStar(t *testing.T) {
	idx, _ := newSymbolFixture(t, "BTC.USD", "BTC.EUR", "ETH.USD")

	got, err := idx.Matching("*", storage.ScopeLocal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC.USD", "BTC.EUR", "ETH.USD"}, got)

	got, err = idx.Matching("", storage.ScopeLocal)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMatchingExact(t *testing.T) {
	idx, _ := newSymbolFixture(t, "BTC.USD", "ETH.USD")

	got, err := idx.Matching("btc.usd", storage.ScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC.USD"}, got)

	got, err = idx.Matching("XRP.USD", storage.ScopeLocal)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchingGlob(t *testing.T) {
	idx, _ := newSymbolFixture(t, "BTC.USD", "BTC.EUR", "ETH.USD", "SYM1", "SYM12")

	got, err := idx.Matching("BTC.*", storage.ScopeLocal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC.USD", "BTC.EUR"}, got)

	// '?' covers exactly one character.
	got, err = idx.Matching("SYM?", storage.ScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, []string{"SYM1"}, got)

	got, err = idx.Matching("*.usd", storage.ScopeLocal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC.USD", "ETH.USD"}, got)
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("a*c", "abc"))
	assert.True(t, globMatch("a*c", "ac"))
	assert.True(t, globMatch("*", ""))
	assert.True(t, globMatch("a?c", "abc"))
	assert.False(t, globMatch("a?c", "ac"))
	assert.False(t, globMatch("abc", "abcd"))
	assert.False(t, globMatch("abc", "ab"))
	assert.True(t, globMatch("*b*", "abc"))
	assert.False(t, globMatch("*x*", "abc"))
	// Backtracking across repeated prefixes.
	assert.True(t, globMatch("a*bc", "aXbXbc"))
}

func TestAddToCachePopulated(t *testing.T) {
	idx, base := newSymbolFixture(t, "BTC.USD")

	// Populate the cache, then create the directory and insert.
	_, err := idx.Matching("*", storage.ScopeLocal)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "ETH.USD", "1m"), 0o755))
	idx.AddToCache("ETH.USD", storage.ScopeLocal)

	got, err := idx.Matching("*", storage.ScopeLocal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC.USD", "ETH.USD"}, got)
}

func TestInvalidateForcesRescan(t *testing.T) {
	idx, base := newSymbolFixture(t, "BTC.USD")

	_, err := idx.Matching("*", storage.ScopeLocal)
	require.NoError(t, err)

	// New directory invisible through the warm cache.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "ETH.USD", "1m"), 0o755))
	got, err := idx.Matching("*", storage.ScopeLocal)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	idx.Invalidate(storage.ScopeLocal)
	got, err = idx.Matching("*", storage.ScopeLocal)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAvailableTimeframes(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "SYM", "1m"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "SYM", "1h"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "SYM", "bogus"), 0o755))
	idx := NewSymbolIndex(storage.NewResolver(base))

	got, err := idx.AvailableTimeframes("SYM", storage.ScopeLocal)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1m", got[0].Code())
	assert.Equal(t, "1h", got[1].Code())
}
