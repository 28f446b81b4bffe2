package ingest

import (
	"sync"
	"sync/atomic"
)

// Lock provides non-blocking lock semantics using atomic operations.
type Lock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *Lock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *Lock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently acquired.
func (l *Lock) Held() bool {
	return l.state.Load() == 1
}

// Locks hands out one Lock per playlist id. Locks are created on first use
// and kept for the life of the process.
type Locks struct {
	m sync.Map // playlist id -> *Lock
}

// For returns the lock for key.
func (ls *Locks) For(key string) *Lock {
	l, _ := ls.m.LoadOrStore(key, &Lock{})
	return l.(*Lock)
}
