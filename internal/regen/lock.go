package regen

import (
	"context"
	"sync"
)

// keyedLock serializes passes per business. Waiting honors ctx.
type keyedLock struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[int64]chan struct{})}
}

func (l *keyedLock) acquire(ctx context.Context, key int64) (func(), error) {
	l.mu.Lock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
