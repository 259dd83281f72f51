package acpi

import (
	"acpicore/device"
	"acpicore/device/acpi/aml"
	"acpicore/device/acpi/table"
	"acpicore/kernel"
	"acpicore/kernel/kfmt"
	"acpicore/kernel/osadapter"
	"io"
	"unsafe"
)

const (
	acpiRev1     uint8 = 0
	acpiRev2Plus uint8 = 2
)

var (
	errMissingRSDP = &kernel.Error{Module: "acpi", Message: "could not locate ACPI RSDP"}

	// activeHost is the OS adapter contract the boot sequence must supply
	// via BindHost before probeForACPI runs; spec.md 1 places concrete host
	// primitives out of scope for this tree, so this package only ever sees
	// them through the osadapter.Host interface.
	activeHost *osadapter.Host

	// RDSP must be located in the physical memory region 0xe0000 to 0xfffff
	rsdpLocationLow uintptr = 0xe0000
	rsdpLocationHi  uintptr = 0xfffff
	rsdpAlignment   uintptr = 16

	rsdpSignature = [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '}
)

// BindHost supplies the OS adapter used to scan for the RSDP and map ACPI
// tables. It must be called before the boot sequence probes registered
// drivers.
func BindHost(h *osadapter.Host) { activeHost = h }

type acpiDriver struct {
	// rsdtAddr holds the address to the root system descriptor table.
	rsdtAddr uintptr

	// useXSDT specifies if the driver must use the XSDT or the RSDT table.
	useXSDT bool

	host *osadapter.Host

	tables *table.Manager
	vm     *aml.VM
}

// DriverInit initializes this driver: it maps every reachable ACPI table and
// then parses the DSDT/SSDTs into an aml.VM's namespace.
func (drv *acpiDriver) DriverInit(w io.Writer) *kernel.Error {
	drv.tables = table.NewManager(drv.host)
	if err := drv.tables.Enumerate(drv.rsdtAddr, drv.useXSDT); err != nil {
		return err
	}
	drv.printTableInfo(w)

	drv.vm = aml.NewVM(w, drv.tables)
	drv.vm.BindHost(drv.host)
	if err := drv.vm.Init(); err != nil {
		return &kernel.Error{Module: "acpi", Message: err.Error()}
	}

	return nil
}

// VM exposes the driver's AML interpreter once DriverInit has succeeded, so
// other drivers can evaluate control methods (_PRT, _CRS, device _HID/_STA,
// ...) against the live namespace.
func (drv *acpiDriver) VM() *aml.VM { return drv.vm }

// DriverName returns the name of this driver.
func (*acpiDriver) DriverName() string {
	return "ACPI"
}

// DriverVersion returns the version of this driver.
func (*acpiDriver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

func (drv *acpiDriver) printTableInfo(w io.Writer) {
	for name, header := range drv.tables.Tables() {
		kfmt.Fprintf(w, "%s at 0x%16x %6x (%6s %8s)\n",
			name,
			uintptr(unsafe.Pointer(header)),
			header.Length,
			string(header.OEMID[:]),
			string(header.OEMTableID[:]),
		)
	}
}

// locateRSDT scans the memory region [rsdpLocationLow, rsdpLocationHi] looking
// for the signature of the root system descriptor pointer (RSDP). If the RSDP
// is found and is valid, locateRSDT returns the physical address of the root
// system descriptor table (RSDT) or the extended system descriptor table (XSDT)
// if the system supports ACPI 2.0+.
func locateRSDT(host *osadapter.Host) (uintptr, bool, *kernel.Error) {
	length := rsdpLocationHi - rsdpLocationLow

	virt, err := host.Memory.IdentityMap(rsdpLocationLow, length)
	if err != nil {
		return 0, false, err
	}
	defer host.Memory.Unmap(virt)

	var (
		rsdp  *table.RSDPDescriptor
		rsdp2 *table.ExtRSDPDescriptor
	)

	// The RSDP should be aligned on a 16-byte boundary
checkNextBlock:
	for curPtr := virt; curPtr < virt+length; curPtr += rsdpAlignment {
		rsdp = (*table.RSDPDescriptor)(unsafe.Pointer(curPtr))
		for i, b := range rsdpSignature {
			if rsdp.Signature[i] != b {
				continue checkNextBlock
			}
		}

		if rsdp.Revision == acpiRev1 {
			if !validTable(curPtr, uint32(unsafe.Sizeof(*rsdp))) {
				continue
			}

			return uintptr(rsdp.RSDTAddr), false, nil
		}

		// System uses ACPI revision > 1 and provides an extended RSDP
		// which can be accessed at the same place.
		rsdp2 = (*table.ExtRSDPDescriptor)(unsafe.Pointer(curPtr))
		if !validTable(curPtr, uint32(unsafe.Sizeof(*rsdp2))) {
			continue
		}

		return uintptr(rsdp2.XSDTAddr), true, nil
	}

	return 0, false, errMissingRSDP
}

// validTable calculates the checksum for an ACPI table of length tableLength
// that starts at tablePtr and returns true if the table is valid.
func validTable(tablePtr uintptr, tableLength uint32) bool {
	var (
		i   uint32
		sum uint8
	)

	for i = 0; i < tableLength; i++ {
		sum += *(*uint8)(unsafe.Pointer(tablePtr + uintptr(i)))
	}

	return sum == 0
}

func probeForACPI() device.Driver {
	if activeHost == nil {
		return nil
	}

	if rsdtAddr, useXSDT, err := locateRSDT(activeHost); err == nil {
		return &acpiDriver{
			rsdtAddr: rsdtAddr,
			useXSDT:  useXSDT,
			host:     activeHost,
		}
	}

	return nil
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderBeforeACPI,
		Probe: probeForACPI,
	})
}
