package svc

import "sync"

// keyLocker serializes the operations on the same promotion.
type keyLocker struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{keys: make(map[string]*keyLock)}
}

// lock blocks until the key is free and returns the release function.
func (l *keyLocker) lock(key string) func() {
	l.mu.Lock()
	k, exists := l.keys[key]
	if !exists {
		k = &keyLock{}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.keys, key)
		}
		l.mu.Unlock()
	}
}
