// Package index provides the vault's metadata views: the symbol index with
// its time-bounded cache and glob matching, and the header-only
// availability scan.
package index

import (
	"strings"
	"sync"
	"time"

	"historyvault/internal/domain/models"
	"historyvault/internal/storage"
)

// symbolCacheTTL bounds how stale a directory scan may get before the next
// read repopulates it.
const symbolCacheTTL = 5 * time.Minute

type scopeCache struct {
	symbols  map[string]string // lowercased -> stored directory name
	loadedAt time.Time
}

func (c *scopeCache) expired() bool {
	return c == nil || time.Since(c.loadedAt) > symbolCacheTTL
}

// SymbolIndex caches the set of stored symbols per scope and resolves glob
// patterns against it. Matching is case-insensitive.
type SymbolIndex struct {
	paths *storage.Resolver

	mu     sync.RWMutex
	scopes map[storage.Scope]*scopeCache
}

func NewSymbolIndex(paths *storage.Resolver) *SymbolIndex {
	return &SymbolIndex{
		paths:  paths,
		scopes: make(map[storage.Scope]*scopeCache),
	}
}

// Matching resolves a pattern against the cached symbol set. An empty
// pattern or "*" returns every symbol; a pattern without wildcards is a
// direct membership probe.
func (s *SymbolIndex) Matching(pattern string, scope storage.Scope) ([]string, error) {
	symbols, err := s.snapshot(scope)
	if err != nil {
		return nil, err
	}

	if pattern == "" || pattern == "*" {
		out := make([]string, 0, len(symbols))
		for _, name := range symbols {
			out = append(out, name)
		}
		return out, nil
	}

	if !strings.ContainsAny(pattern, "*?") {
		if name, ok := symbols[strings.ToLower(pattern)]; ok {
			return []string{name}, nil
		}
		return nil, nil
	}

	var out []string
	for lower, name := range symbols {
		if globMatch(strings.ToLower(pattern), lower) {
			out = append(out, name)
		}
	}
	return out, nil
}

// AddToCache inserts a symbol into an already populated cache. If the cache
// is empty it stays empty and the next read repopulates from disk.
func (s *SymbolIndex) AddToCache(symbol string, scope storage.Scope) {
	stored := storage.SanitizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.scopes[scope]
	if c.expired() {
		return
	}
	c.symbols[strings.ToLower(stored)] = stored
}

// Invalidate drops the cache for a scope; the next read rescans the
// directory tree.
func (s *SymbolIndex) Invalidate(scope storage.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, scope)
}

// AvailableTimeframes lists the intervals stored for a symbol, skipping
// directory names that do not parse as a short code.
func (s *SymbolIndex) AvailableTimeframes(symbol string, scope storage.Scope) ([]models.Interval, error) {
	return s.paths.ListIntervals(scope, symbol)
}

// snapshot returns a copy of the scope's symbol set so callers can iterate
// without holding the lock while saves insert into the cache.
func (s *SymbolIndex) snapshot(scope storage.Scope) (map[string]string, error) {
	s.mu.RLock()
	c := s.scopes[scope]
	if !c.expired() {
		out := make(map[string]string, len(c.symbols))
		for k, v := range c.symbols {
			out[k] = v
		}
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	names, err := s.paths.ListSymbols(scope)
	if err != nil {
		return nil, err
	}
	symbols := make(map[string]string, len(names))
	for _, name := range names {
		symbols[strings.ToLower(name)] = name
	}

	cached := make(map[string]string, len(symbols))
	for k, v := range symbols {
		cached[k] = v
	}
	s.mu.Lock()
	s.scopes[scope] = &scopeCache{symbols: cached, loadedAt: time.Now()}
	s.mu.Unlock()
	return symbols, nil
}

// globMatch applies '*' (zero or more characters) and '?' (exactly one)
// with standard backtracking-on-star semantics. Both arguments are assumed
// lowercased by the caller.
func globMatch(pattern, name string) bool {
	var pi, ni int
	star, starNi := -1, 0
	for ni < len(name) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == name[ni]):
			pi++
			ni++
		case pi < len(pattern) && pattern[pi] == '*':
			star, starNi = pi, ni
			pi++
		case star >= 0:
			pi = star + 1
			starNi++
			ni = starNi
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
