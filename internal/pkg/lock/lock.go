// Package lock provides per-key locking for flows that must not interleave across an await,
// such as starting a word round while another start for the same chat is mid-flight.
// Callers that must not queue use TryLock.
package lock

import "sync"

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock hands out one mutex per int64 key (a chat or user ID).
type KeyLock struct {
	locks sync.Map // map[int64]*keyMutex
	pool  sync.Pool
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

func (kl *KeyLock) getLock(key int64) *keyMutex {
	if v, ok := kl.locks.Load(key); ok {
		return v.(*keyMutex)
	}

	fresh := kl.pool.Get().(*keyMutex)
	fresh.refCount = 0

	// Another goroutine may have stored one first.
	actual, loaded := kl.locks.LoadOrStore(key, fresh)
	if loaded {
		kl.pool.Put(fresh)
	}
	return actual.(*keyMutex)
}

// Lock acquires the lock for key.
func (kl *KeyLock) Lock(key int64) {
	l := kl.getLock(key)
	l.mu.Lock()
	l.refCount++
}

// Unlock releases the lock for key.
func (kl *KeyLock) Unlock(key int64) {
	if v, ok := kl.locks.Load(key); ok {
		l := v.(*keyMutex)
		l.refCount--
		l.mu.Unlock()
	}
}

// TryLock acquires the lock without blocking and reports whether it succeeded.
func (kl *KeyLock) TryLock(key int64) bool {
	l := kl.getLock(key)
	if l.mu.TryLock() {
		l.refCount++
		return true
	}
	return false
}
