// Package osadapter specifies the contract the ACPI core expects from its
// host: memory mapping, port I/O, semaphores, interrupt registration and
// allocation. spec.md 1 places concrete implementations of these out of
// scope ("the host OS primitives ... Provided; the core depends only on its
// contract") — this package is exactly that contract, plus a Fake backing
// implementation used by every test in this tree.
package osadapter

import "acpicore/kernel"

// MemoryMapper maps and unmaps physical memory ranges into the address space
// the core can dereference, and identity-maps ranges used while the core is
// still scanning for firmware tables (before a general-purpose mapper is
// available).
type MemoryMapper interface {
	// Map establishes a mapping for the physical range [phys, phys+len)
	// and returns the virtual address it was mapped at.
	Map(phys uintptr, len uintptr) (virt uintptr, err *kernel.Error)

	// IdentityMap maps the physical range [phys, phys+len) to the same
	// virtual address, expanding any existing identity mapping that
	// already covers part of the range.
	IdentityMap(phys uintptr, len uintptr) (virt uintptr, err *kernel.Error)

	// Unmap releases the mapping that starts at virt.
	Unmap(virt uintptr)
}

// PortIO performs byte/word/dword reads and writes against the host's I/O
// port space (used by the SystemIO address-space handler).
type PortIO interface {
	In8(port uint16) uint8
	In16(port uint16) uint16
	In32(port uint16) uint32
	Out8(port uint16, value uint8)
	Out16(port uint16, value uint16)
	Out32(port uint16, value uint32)
}

// InterruptHandler is invoked when the registered IRQ fires. context is the
// opaque value supplied at registration time.
type InterruptHandler func(irq uint8, context interface{})

// InterruptRegistrar installs and removes interrupt handlers, used to wire
// up the System Control Interrupt (SCI) that dispatches fixed-event and GPE
// notifications.
type InterruptRegistrar interface {
	Install(irq uint8, handler InterruptHandler, context interface{}) *kernel.Error
	Remove(irq uint8) *kernel.Error
}

// Allocator provides the host's memory allocation primitives.
type Allocator interface {
	Allocate(size uintptr) (uintptr, *kernel.Error)
	Callocate(size uintptr) (uintptr, *kernel.Error)
	Free(ptr uintptr)
}

// SemaphoreFactory creates counting semaphores for a host. The AML
// interpreter does not use it: its Mutex/Event objects, method-concurrency
// ceilings and global lock are created with kernel/sync directly.
type SemaphoreFactory interface {
	CreateSemaphore(max, initial uint32) Semaphore
}

// Semaphore is the minimal semaphore surface the core needs: wait with a
// millisecond timeout (negative = block forever, 0 = don't block), signal,
// and delete. kernel/sync.Semaphore does not satisfy it directly (its Wait
// returns a WaitResult); FakeSemaphores wraps it in an adapter.
type Semaphore interface {
	Wait(timeoutMs int64) (ok bool)
	Signal(units uint32)
	Delete()
}

// Host bundles the full OS adapter contract the ACPI core depends on.
type Host struct {
	Memory      MemoryMapper
	Ports       PortIO
	Interrupts  InterruptRegistrar
	Alloc       Allocator
	Semaphores  SemaphoreFactory
}
