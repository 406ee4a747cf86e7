package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giovaniif/e-commerce/inventory/domain"
)

// KeyedLockMemory serializes work per key inside one process. Entries are
// reference counted and dropped once nobody holds or waits on them.
type KeyedLockMemory struct {
	mutex   sync.Mutex
	entries map[string]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	slot chan struct{}
	refs int
}

type heldLock struct {
	key   string
	entry *lockEntry
}

func NewKeyedLockMemory(timeout time.Duration) *KeyedLockMemory {
	return &KeyedLockMemory{
		entries: make(map[string]*lockEntry),
		timeout: timeout,
	}
}

func (l *KeyedLockMemory) Acquire(ctx context.Context, keys ...string) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	ordered := orderKeys(keys)
	held := make([]heldLock, 0, len(ordered))
	for _, key := range ordered {
		entry := l.ref(key)
		select {
		case entry.slot <- struct{}{}:
			held = append(held, heldLock{key: key, entry: entry})
		case <-ctx.Done():
			l.unref(key)
			l.release(held)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, domain.NewBusyError(fmt.Sprintf("lock %s not acquired", key))
			}
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *KeyedLockMemory) ref(key string) *lockEntry {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *KeyedLockMemory) unref(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *KeyedLockMemory) release(held []heldLock) {
	for i := len(held) - 1; i >= 0; i-- {
		<-held[i].entry.slot
		l.unref(held[i].key)
	}
}

func (l *KeyedLockMemory) size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.entries)
}
