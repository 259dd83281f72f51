package aml

import (
	"acpicore/device/acpi/table"
	"acpicore/kernel"
	"acpicore/kernel/osadapter"
)

// addressSpaceHandler reads and writes a granularity-aligned span of an
// operation region. offset and width are expressed in bytes; width is
// always 1, 2, 4 or 8 (spec.md's field access granularity rules already
// round a sub-byte field request up to one of these before calling in).
type addressSpaceHandler interface {
	read(offset uint64, width int) (uint64, *Error)
	write(offset uint64, width int, value uint64) *Error
}

// addrSpaceHandler returns the handler responsible for space, or an error if
// the VM has no host bound for it (spec.md 6: SystemMemory/SystemIO are the
// two spaces every core ACPI implementation must support; the others are
// platform specific and require a handler registered by the caller).
func (vm *VM) addrSpaceHandler(space table.AddressSpace) (addressSpaceHandler, *Error) {
	if h, ok := vm.customHandlers[space]; ok {
		return h, nil
	}

	if vm.host == nil {
		return nil, &Error{message: "aml: no host bound for address space access"}
	}

	switch space {
	case table.AddressSpaceSysMemory:
		return sysMemoryHandler{host: vm.host}, nil
	case table.AddressSpaceSysIO:
		return sysIOHandler{host: vm.host}, nil
	default:
		return nil, &Error{message: "aml: unsupported address space"}
	}
}

// RegisterAddressSpaceHandler lets a driver plug in a handler for an
// address space the core has no built-in support for (PCI config space,
// embedded controller, SMBus, ...), matching how ACPICA lets the host
// register AcpiInstallAddressSpaceHandler.
func (vm *VM) RegisterAddressSpaceHandler(space table.AddressSpace, h addressSpaceHandler) {
	if vm.customHandlers == nil {
		vm.customHandlers = make(map[table.AddressSpace]addressSpaceHandler)
	}
	vm.customHandlers[space] = h
}

// sysMemoryHandler reads/writes the SystemMemory address space by mapping
// the requested physical range through osadapter.MemoryMapper and overlaying
// a byte slice on the returned virtual address, the same technique
// kernel.Memset/Memcopy use.
type sysMemoryHandler struct{ host *osadapter.Host }

func (h sysMemoryHandler) read(offset uint64, width int) (uint64, *Error) {
	virt, kerr := h.host.Memory.Map(uintptr(offset), uintptr(width))
	if kerr != nil {
		return 0, &Error{message: "aml: SystemMemory map failed: " + kerr.Error()}
	}

	var buf [8]byte
	kernel.Memcopy(virt, uintptrOfSlice(buf[:width]), uintptr(width))

	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(buf[i]) << (8 * uint(i))
	}
	return v, nil
}

func (h sysMemoryHandler) write(offset uint64, width int, value uint64) *Error {
	virt, kerr := h.host.Memory.Map(uintptr(offset), uintptr(width))
	if kerr != nil {
		return &Error{message: "aml: SystemMemory map failed: " + kerr.Error()}
	}

	var buf [8]byte
	for i := 0; i < width; i++ {
		buf[i] = byte(value >> (8 * uint(i)))
	}
	kernel.Memcopy(uintptrOfSlice(buf[:width]), virt, uintptr(width))
	return nil
}

// sysIOHandler reads/writes the SystemIO address space via osadapter.PortIO.
type sysIOHandler struct{ host *osadapter.Host }

func (h sysIOHandler) read(offset uint64, width int) (uint64, *Error) {
	port := uint16(offset)
	switch width {
	case 1:
		return uint64(h.host.Ports.In8(port)), nil
	case 2:
		return uint64(h.host.Ports.In16(port)), nil
	default:
		return uint64(h.host.Ports.In32(port)), nil
	}
}

func (h sysIOHandler) write(offset uint64, width int, value uint64) *Error {
	port := uint16(offset)
	switch width {
	case 1:
		h.host.Ports.Out8(port, uint8(value))
	case 2:
		h.host.Ports.Out16(port, uint16(value))
	default:
		h.host.Ports.Out32(port, uint32(value))
	}
	return nil
}
