// Package sync provides the synchronization primitives used by every kernel
// subsystem: spinlocks, counting semaphores and a recursive mutex built on
// top of them.
package sync

import (
	"runtime"
	"sync/atomic"
)

var (
	// yieldFn is invoked after a bounded number of failed acquire attempts
	// to give other goroutines a chance to make progress. Tests may swap
	// it out; production code leaves it as runtime.Gosched.
	yieldFn = runtime.Gosched
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// spinAttemptsBeforeYield bounds how many bare CAS attempts Acquire makes
// before calling yieldFn, to avoid starving the scheduler on a single core.
const spinAttemptsBeforeYield = 1000

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := uint32(0); !l.TryToAcquire(); attempt++ {
		if attempt != 0 && attempt%spinAttemptsBeforeYield == 0 {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
