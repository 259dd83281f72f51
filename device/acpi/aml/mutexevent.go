package aml

import ksync "acpicore/kernel/sync"

// mutexFor returns (creating on first touch) the kernel mutex backing a
// Mutex() declaration. The declared SyncLevel is not read: the mutex's
// SyncLevel stays 0 and no sync-level ordering is checked on Acquire.
func (vm *VM) mutexFor(obj *Object) *ksync.Mutex {
	if m, ok := vm.mutexes[obj]; ok {
		return m
	}
	m := ksync.NewMutex()
	vm.mutexes[obj] = m
	return m
}

// eventFor returns (creating on first touch) the kernel semaphore backing
// an Event() declaration. Events start with zero units signalled, matching
// ACPI's "event is not signalled" initial state.
func (vm *VM) eventFor(obj *Object) *ksync.Semaphore {
	if s, ok := vm.events[obj]; ok {
		return s
	}
	s := ksync.NewSemaphore(1<<16, 0)
	vm.events[obj] = s
	return s
}

// execSyncOp implements Acquire, Release, Signal, Wait and Reset.
func (vm *VM) execSyncOp(ws *WalkState, stmt *Object) *Error {
	target := vm.resolveTarget(vm.objTree.ArgAt(stmt, 0))

	switch stmt.opcode {
	case pOpAcquire:
		if target.opcode != pOpMutex {
			return &Error{message: "aml: Acquire requires a Mutex"}
		}
		timeout, _ := vm.objTree.ArgAt(stmt, 1).value.(uint64)
		if vm.mutexFor(target).Acquire(ws.threadID, int64(timeout)) != ksync.WaitOK {
			return &Error{message: "aml: Acquire timed out"}
		}
		return nil

	case pOpRelease:
		if target.opcode != pOpMutex {
			return &Error{message: "aml: Release requires a Mutex"}
		}
		if !vm.mutexFor(target).Release(ws.threadID) {
			return &Error{message: "aml: Release of a Mutex not held by the caller"}
		}
		return nil

	case pOpSignal:
		if target.opcode != pOpEvent {
			return &Error{message: "aml: Signal requires an Event"}
		}
		vm.eventFor(target).Signal(1)
		return nil

	case pOpWait:
		if target.opcode != pOpEvent {
			return &Error{message: "aml: Wait requires an Event"}
		}
		timeoutVal, err := vm.evalArgAt(ws, stmt, 1)
		if err != nil {
			return err
		}
		timeout, _ := timeoutVal.asInteger()
		if vm.eventFor(target).Wait(int64(timeout)) != ksync.WaitOK {
			return &Error{message: "aml: Wait timed out"}
		}
		return nil

	case pOpReset:
		if target.opcode != pOpEvent {
			return &Error{message: "aml: Reset requires an Event"}
		}
		delete(vm.events, target)
		return nil

	default:
		return &Error{message: "aml: unsupported sync opcode"}
	}
}
