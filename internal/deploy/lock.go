package deploy

import "sync"

// LockManager manages per-name locks so that operations on the same server
// serialize while unrelated servers proceed independently.
//
// This uses a two-level locking strategy:
// 1. The outer mutex (mu) protects the locks map itself from concurrent access
// 2. Each name has its own mutex for the actual operation lock
type LockManager struct {
	mu    sync.Mutex             // Protects the locks map
	locks map[string]*sync.Mutex // Per-name locks
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (lm *LockManager) lockFor(name string) *sync.Mutex {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lock, exists := lm.locks[name]
	if !exists {
		lock = &sync.Mutex{}
		lm.locks[name] = lock
	}
	return lock
}

// Lock blocks until the lock for name is acquired. Operations for other
// names are unaffected.
func (lm *LockManager) Lock(name string) {
	lm.lockFor(name).Lock()
}

// TryLock attempts to acquire the lock for name without blocking.
// Returns true if the lock was acquired.
func (lm *LockManager) TryLock(name string) bool {
	return lm.lockFor(name).TryLock()
}

// Unlock releases the lock for the given name.
// Typically used with defer: defer lm.Unlock(name)
func (lm *LockManager) Unlock(name string) {
	lm.mu.Lock()
	lock := lm.locks[name]
	lm.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}
