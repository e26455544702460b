package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrLockTimeout is returned when acquiring a per-call lock times out.
	ErrLockTimeout = errors.New("session: lock acquisition timeout")
)

// LockManager serializes event processing per call ID. Exactly one
// event handler may hold a call's lock at a time, and the lock is held
// across the whole pipeline invocation so a racing event for the same
// call cannot enter the pipeline mid-flight. Events for different
// calls never contend.
//
// Thread Safety: LockManager is safe for concurrent use.
type LockManager struct {
	mu             sync.Mutex
	locks          map[string]chan struct{}
	defaultTimeout time.Duration
}

// DefaultLockTimeout bounds how long an event waits for a busy call.
const DefaultLockTimeout = 30 * time.Second

// NewLockManager creates a per-call lock manager.
func NewLockManager(defaultTimeout time.Duration) *LockManager {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultLockTimeout
	}
	return &LockManager{
		locks:          make(map[string]chan struct{}),
		defaultTimeout: defaultTimeout,
	}
}

func (m *LockManager) lockChan(callID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.locks[callID]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[callID] = ch
	}
	return ch
}

// Acquire obtains the lock for callID, waiting up to the default
// timeout. It returns a release function that must be called exactly
// once when the critical section ends.
func (m *LockManager) Acquire(ctx context.Context, callID string) (func(), error) {
	ch := m.lockChan(callID)

	timer := time.NewTimer(m.defaultTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire obtains the lock for callID only if it is immediately
// free. The idle sweeper uses this to skip calls with in-flight work
// rather than blocking the sweep loop.
func (m *LockManager) TryAcquire(callID string) (func(), bool) {
	ch := m.lockChan(callID)

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}

// Forget drops lock state for a call that has left the registry. Safe
// to call while the lock is held; a holder's release still works on
// the forgotten channel.
func (m *LockManager) Forget(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, callID)
}
