package performance

import "sync"

// KeyLock hands out one mutex per cache key so the background warmer never
// serializes rebuilds for unrelated users behind a single global lock.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyLock creates an empty key lock set.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyLock) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// Lock acquires the lock for key and returns the unlock function.
func (k *KeyLock) Lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return l.Unlock
}

// TryLock acquires the lock for key without blocking. On success the unlock
// function and true are returned; a held lock returns false.
func (k *KeyLock) TryLock(key string) (func(), bool) {
	l := k.get(key)
	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}
