package lock

import (
	"context"
	"sync"
)

// LocalProductLocker serialises keys within one process. It is used when
// Redis is disabled; row locks still protect a database shared by
// several processes.
type LocalProductLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalProductLocker creates an empty LocalProductLocker
func NewLocalProductLocker() *LocalProductLocker {
	return &LocalProductLocker{slots: make(map[string]*slot)}
}

// Lock acquires every key in sorted order, giving up when ctx is done
func (l *LocalProductLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedKeys(keys)
	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}

	for _, key := range keys {
		s := l.acquireSlot(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.dropSlot(key)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (l *LocalProductLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalProductLocker) dropSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *LocalProductLocker) release(key string) {
	l.mu.Lock()
	s := l.slots[key]
	l.mu.Unlock()
	<-s.ch
	l.dropSlot(key)
}

// held reports how many keys are currently tracked
func (l *LocalProductLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
