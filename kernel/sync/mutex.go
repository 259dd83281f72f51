package sync

import "sync/atomic"

// Mutex is a recursive mutex backed by a Semaphore, modeling the AML Mutex
// object (spec.md 4.6): it wraps a semaphore initialized to (1,1), tracks a
// lock count and an owning thread id for recursive acquisition, and requires
// the releasing thread id to match the owner before it actually signals the
// underlying semaphore.
type Mutex struct {
	sem *Semaphore

	ownerID   uint64
	lockCount uint32

	// SyncLevel is the AML sync level associated with this mutex (0-15).
	// Acquire and Release do not consult it, and the AML interpreter
	// neither sets nor checks it.
	SyncLevel uint8
}

// NewMutex creates a new, unlocked recursive mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: NewSemaphore(1, 1)}
}

// noOwner is never a valid thread id (thread ids are allocated starting at 1).
const noOwner = 0

// Acquire attempts to acquire the mutex on behalf of threadID, blocking for
// up to timeoutMs milliseconds (semantics match Semaphore.Wait). Recursive
// acquisition by the same threadID succeeds immediately and bumps the lock
// count.
func (m *Mutex) Acquire(threadID uint64, timeoutMs int64) WaitResult {
	if atomic.LoadUint64(&m.ownerID) == threadID && m.lockCount > 0 {
		m.lockCount++
		return WaitOK
	}

	if res := m.sem.Wait(timeoutMs); res != WaitOK {
		return res
	}

	m.ownerID = threadID
	m.lockCount = 1
	return WaitOK
}

// Release releases one level of recursive acquisition held by threadID. It
// is a programmer error (reported via ok=false) to release a mutex that
// threadID does not currently hold.
func (m *Mutex) Release(threadID uint64) (ok bool) {
	if m.lockCount == 0 || m.ownerID != threadID {
		return false
	}

	m.lockCount--
	if m.lockCount == 0 {
		m.ownerID = noOwner
		m.sem.Signal(1)
	}
	return true
}

// OwnerID returns the thread id currently holding the mutex, or noOwner (0)
// if it is unlocked.
func (m *Mutex) OwnerID() uint64 { return atomic.LoadUint64(&m.ownerID) }

// IsLocked reports whether the mutex is currently held by any thread.
func (m *Mutex) IsLocked() bool { return atomic.LoadUint64(&m.ownerID) != noOwner }
