package vault

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// symbolLocks serializes writes per symbol. Lookup is lock-free with an
// atomic insert-if-absent; each symbol holds a weight-1 semaphore so
// acquisition honors context cancellation.
type symbolLocks struct {
	m sync.Map // symbol -> *semaphore.Weighted
}

func (l *symbolLocks) acquire(ctx context.Context, symbol string) (release func(), err error) {
	v, _ := l.m.LoadOrStore(symbol, semaphore.NewWeighted(1))
	sem := v.(*semaphore.Weighted)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire write lock for %s: %w", symbol, err)
	}
	return func() { sem.Release(1) }, nil
}

func (l *symbolLocks) reset() {
	l.m.Range(func(key, _ any) bool {
		l.m.Delete(key)
		return true
	})
}
