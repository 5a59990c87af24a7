package memory

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
)

// rwWeight is the weight of an exclusive holder; shared holders take 1.
const rwWeight = 1 << 30

// rwLock is a context-aware reader/writer lock. The semaphore is FIFO, so a
// waiting writer is not starved by a stream of readers.
type rwLock struct {
	sem *semaphore.Weighted
}

func newRWLock() *rwLock {
	return &rwLock{sem: semaphore.NewWeighted(rwWeight)}
}

// acquire takes the lock in mode and returns its release func.
func (l *rwLock) acquire(ctx context.Context, mode ledger.LockMode) (func(), error) {
	var n int64
	switch mode {
	case ledger.LockShared:
		n = 1
	case ledger.LockExclusive:
		n = rwWeight
	default:
		return func() {}, nil
	}

	if err := l.sem.Acquire(ctx, n); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(n) }, nil
}

// keyLocks serializes work per key. Entries are dropped once no holder or
// waiter references them, so the map stays bounded by live contention.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (k *keyLocks) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{sem: semaphore.NewWeighted(1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		k.unref(key, l)
		return nil, err
	}

	return func() {
		l.sem.Release(1)
		k.unref(key, l)
	}, nil
}

func (k *keyLocks) unref(key string, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// size is the number of tracked keys.
func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// releaser collects release funcs and runs them in reverse order.
type releaser []func()

func (r *releaser) add(fn func()) { *r = append(*r, fn) }

func (r releaser) release() {
	for i := len(r) - 1; i >= 0; i-- {
		r[i]()
	}
}
