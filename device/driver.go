// Package device defines the interfaces and registration machinery shared by
// all device drivers in this tree, including the ACPI core.
package device

import "acpicore/kernel"

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)
}

// DetectOrder specifies the relative order in which a driver should be
// probed during boot. Lower values are probed earlier.
type DetectOrder int

// The list of supported DetectOrder values.
const (
	DetectOrderEarly DetectOrder = iota
	DetectOrderBeforeACPI
	DetectOrderACPI
	DetectOrderLast
)

// ProbeFn is invoked by the boot sequence to detect whether a particular
// driver's hardware is present. It returns a ready-to-initialize Driver
// instance or nil if the hardware could not be detected.
type ProbeFn func() Driver

// DriverInfo describes a driver registration record together with the probe
// order that the boot sequence should use to detect it.
type DriverInfo struct {
	// Order controls when, relative to other registered drivers, this
	// driver should be probed.
	Order DetectOrder

	// Probe attempts to detect the driver's hardware.
	Probe ProbeFn

	// Instance is populated by the boot sequence once Probe succeeds.
	Instance Driver
}

// DriverInfoList implements sort.Interface, ordering entries by Order.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

var registeredDrivers DriverInfoList

// RegisterDriver appends info to the list of registered drivers. It is
// typically called from a driver package's init() function.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of currently registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}

// ErrDriverNotDetected is returned by boot code when a registered driver's
// Probe function fails to detect its hardware.
var ErrDriverNotDetected = &kernel.Error{Module: "device", Message: "driver hardware not detected"}
