package table

import (
	"acpicore/kernel"
	"acpicore/kernel/osadapter"
	"unsafe"
)

const (
	acpiRev1     uint8 = 0
	acpiRev2Plus uint8 = 2

	dsdtSignature = "DSDT"
	fadtSignature = "FACP"
	ssdtSignature = "SSDT"
)

// ErrTableChecksumMismatch is reported for any table whose checksum doesn't
// sum to zero. Manager.Enumerate skips a referenced table with a bad
// checksum rather than failing, matching ACPICA's tolerance for a single
// malformed SSDT not taking down the whole platform; it returns this error
// only when the root RSDT/XSDT itself fails the check.
var ErrTableChecksumMismatch = &kernel.Error{Module: "acpi", Message: "detected checksum mismatch while parsing ACPI table header"}

// Manager discovers and maps every ACPI table reachable from the RSDT/XSDT,
// and implements Resolver so it can be handed directly to an aml.VM. It also
// tracks every secondary definition table (SSDT) found, satisfying the
// optional SSDTs() interface aml.VM.Init looks for.
type Manager struct {
	host *osadapter.Host

	tableMap map[string]*SDTHeader
	ssdts    []*SDTHeader
}

// NewManager creates a Manager that maps tables through host.
func NewManager(host *osadapter.Host) *Manager {
	return &Manager{host: host, tableMap: make(map[string]*SDTHeader)}
}

// LookupTable implements Resolver.
func (m *Manager) LookupTable(name string) *SDTHeader {
	return m.tableMap[name]
}

// SSDTs returns every secondary definition table discovered by Enumerate, in
// RSDT/XSDT order.
func (m *Manager) SSDTs() []*SDTHeader {
	return m.ssdts
}

// Tables returns the full signature-to-header map discovered by Enumerate.
func (m *Manager) Tables() map[string]*SDTHeader {
	return m.tableMap
}

// Enumerate walks the root table pointed to by rsdtAddr (an RSDT if useXSDT
// is false, an XSDT otherwise), mapping and checksum-verifying every table it
// references, and additionally follows the FADT's Dsdt/Ext.Dsdt pointer to
// pick up the DSDT, which is never listed in the RSDT/XSDT itself.
func (m *Manager) Enumerate(rsdtAddr uintptr, useXSDT bool) *kernel.Error {
	header, sizeofHeader, err := m.mapTable(rsdtAddr)
	if err != nil {
		return err
	}

	var (
		acpiRev      = header.Revision
		payloadLen   = header.Length - uint32(sizeofHeader)
		sdtAddresses []uintptr
	)

	switch useXSDT {
	case true:
		sdtAddresses = make([]uintptr, payloadLen>>3)
		for curPtr, i := uintptr(unsafe.Pointer(header))+sizeofHeader, 0; i < len(sdtAddresses); curPtr, i = curPtr+8, i+1 {
			sdtAddresses[i] = uintptr(*(*uint64)(unsafe.Pointer(curPtr)))
		}
	default:
		sdtAddresses = make([]uintptr, payloadLen>>2)
		for curPtr, i := uintptr(unsafe.Pointer(header))+sizeofHeader, 0; i < len(sdtAddresses); curPtr, i = curPtr+4, i+1 {
			sdtAddresses[i] = uintptr(*(*uint32)(unsafe.Pointer(curPtr)))
		}
	}

	for _, addr := range sdtAddresses {
		header, _, err = m.mapTable(addr)
		if err != nil {
			if err == ErrTableChecksumMismatch {
				continue
			}
			return err
		}

		m.adopt(header)

		if string(header.Signature[:]) == fadtSignature {
			fadt := (*FADT)(unsafe.Pointer(header))

			dsdtAddr := uintptr(fadt.Dsdt)
			if acpiRev >= acpiRev2Plus {
				dsdtAddr = uintptr(fadt.Ext.Dsdt)
			}

			if header, _, err = m.mapTable(dsdtAddr); err != nil {
				if err == ErrTableChecksumMismatch {
					continue
				}
				return err
			}
			m.adopt(header)
		}
	}

	return nil
}

// adopt records header in the table map, and additionally in the SSDT list
// when it is a secondary definition table.
func (m *Manager) adopt(header *SDTHeader) {
	signature := string(header.Signature[:])
	m.tableMap[signature] = header
	if signature == ssdtSignature {
		m.ssdts = append(m.ssdts, header)
	}
}

// mapTable identity-maps the ACPI table starting at tableAddr, first mapping
// just its header to discover the table's length and then expanding the
// mapping to cover its full contents, verifying the checksum before
// returning.
func (m *Manager) mapTable(tableAddr uintptr) (header *SDTHeader, sizeofHeader uintptr, err *kernel.Error) {
	sizeofHeader = unsafe.Sizeof(SDTHeader{})

	virt, kerr := m.host.Memory.IdentityMap(tableAddr, sizeofHeader)
	if kerr != nil {
		return nil, sizeofHeader, kerr
	}
	header = (*SDTHeader)(unsafe.Pointer(virt))

	if _, kerr = m.host.Memory.IdentityMap(tableAddr, uintptr(header.Length)); kerr != nil {
		return nil, sizeofHeader, kerr
	}

	if !validTable(virt, header.Length) {
		err = ErrTableChecksumMismatch
	}

	return header, sizeofHeader, err
}

// validTable reports whether the byte sum of a tableLength-byte ACPI table
// starting at tablePtr is zero, per the ACPI spec's checksum rule.
func validTable(tablePtr uintptr, tableLength uint32) bool {
	var sum uint8
	for i := uint32(0); i < tableLength; i++ {
		sum += *(*uint8)(unsafe.Pointer(tablePtr + uintptr(i)))
	}
	return sum == 0
}
