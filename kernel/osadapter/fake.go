package osadapter

import (
	"acpicore/kernel"
	ksync "acpicore/kernel/sync"
	"unsafe"
)

// Fake is an in-memory implementation of Host used by tests: physical
// addresses are simply byte offsets into a backing slice, port I/O reads and
// writes a map keyed by port number, and semaphores/allocation are backed by
// kernel/sync and the Go heap respectively. Nothing here is meant to run on
// real hardware; it exists so the ACPI core can be exercised without it.
type Fake struct {
	mem   []byte
	ports map[uint16]uint32
}

// NewFake creates a Fake OS adapter with a backing memory region of the
// given size. Physical address 0 corresponds to the first byte.
func NewFake(memSize int) *Fake {
	return &Fake{
		mem:   make([]byte, memSize),
		ports: make(map[uint16]uint32),
	}
}

// Mem exposes the backing slice so tests can seed table contents at a given
// physical offset.
func (f *Fake) Mem() []byte { return f.mem }

// Map implements MemoryMapper by treating physical addresses as offsets into
// the backing slice; the returned "virtual" address is the real address of
// that offset within the slice, so callers may safely dereference it through
// unsafe.Pointer.
func (f *Fake) Map(phys uintptr, length uintptr) (uintptr, *kernel.Error) {
	if int(phys)+int(length) > len(f.mem) {
		return 0, &kernel.Error{Module: "osadapter", Message: "mapping exceeds backing memory"}
	}
	return uintptr(unsafe.Pointer(&f.mem[phys])), nil
}

// IdentityMap implements MemoryMapper.
func (f *Fake) IdentityMap(phys uintptr, length uintptr) (uintptr, *kernel.Error) {
	return f.Map(phys, length)
}

// Unmap implements MemoryMapper; the fake never actually unmaps anything.
func (f *Fake) Unmap(uintptr) {}

// In8/16/32 and Out8/16/32 implement PortIO against an in-memory map.
func (f *Fake) In8(port uint16) uint8   { return uint8(f.ports[port]) }
func (f *Fake) In16(port uint16) uint16 { return uint16(f.ports[port]) }
func (f *Fake) In32(port uint16) uint32 { return f.ports[port] }
func (f *Fake) Out8(port uint16, value uint8)   { f.ports[port] = uint32(value) }
func (f *Fake) Out16(port uint16, value uint16) { f.ports[port] = uint32(value) }
func (f *Fake) Out32(port uint16, value uint32) { f.ports[port] = value }

// Allocate/Callocate/Free implement Allocator using the Go heap; returned
// addresses are not meaningful physical addresses, only opaque handles.
func (f *Fake) Allocate(size uintptr) (uintptr, *kernel.Error) {
	buf := make([]byte, size)
	return uintptr(uintptrFromSlice(buf)), nil
}

func (f *Fake) Callocate(size uintptr) (uintptr, *kernel.Error) {
	return f.Allocate(size)
}

func (f *Fake) Free(uintptr) {}

// uintptrFromSlice is a small helper kept separate so the unsafe-free parts
// of this file stay readable; it returns the slice's length (0 for an empty
// slice), which neither is a real address nor identifies the backing array.
func uintptrFromSlice(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(len(b)) // fakes never dereference this value
}

// semaphoreAdapter adapts kernel/sync.Semaphore's WaitResult-returning Wait
// to the bool-returning Semaphore interface expected by the ACPI core.
type semaphoreAdapter struct {
	sem *ksync.Semaphore
}

func (s *semaphoreAdapter) Wait(timeoutMs int64) bool {
	return s.sem.Wait(timeoutMs) == ksync.WaitOK
}

func (s *semaphoreAdapter) Signal(units uint32) { s.sem.Signal(units) }
func (s *semaphoreAdapter) Delete()             { s.sem.Delete() }

// FakeSemaphores implements SemaphoreFactory on top of kernel/sync.Semaphore.
type FakeSemaphores struct{}

// CreateSemaphore implements SemaphoreFactory.
func (FakeSemaphores) CreateSemaphore(max, initial uint32) Semaphore {
	return &semaphoreAdapter{sem: ksync.NewSemaphore(max, initial)}
}

// NewFakeHost builds a Host whose Memory, Ports, Alloc and Semaphores are
// in-memory fakes (Interrupts is left nil), for use in tests with
// acpi.BindHost or the table and VM constructors.
func NewFakeHost(memSize int) (*Fake, *Host) {
	f := NewFake(memSize)
	return f, &Host{
		Memory:     f,
		Ports:      f,
		Alloc:      f,
		Semaphores: FakeSemaphores{},
	}
}
