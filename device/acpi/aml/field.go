package aml

import "acpicore/device/acpi/table"

// regionInfo is the resolved, static description of an OpRegion: which
// address space it lives in and its base offset (length is only used for
// bounds checking against firmware mistakes, which ACPICA itself tolerates,
// so it is not enforced here).
type regionInfo struct {
	space table.AddressSpace
	base  uint64
}

// regionOf evaluates the OpRegion a Field/IndexField/BankField container
// refers to. The region's offset TermArg is evaluated again on every field
// access (nothing is cached); its length TermArg is not evaluated. No _REG
// method is looked up or invoked. A container whose first argument is not
// an OpRegion (an IndexField, whose first argument names its index
// register) is reported as an error.
func (vm *VM) regionOf(ws *WalkState, container *Object) (*Object, regionInfo, *Error) {
	regionRef := vm.resolveTarget(vm.objTree.ArgAt(container, 0))
	if regionRef.opcode != pOpOpRegion {
		return nil, regionInfo{}, &Error{message: "aml: Field does not reference an OpRegion"}
	}

	space, _ := vm.objTree.ArgAt(regionRef, 0).value.(uint64)
	baseVal, err := vm.evalArgAt(ws, regionRef, 1)
	if err != nil {
		return nil, regionInfo{}, err
	}
	base, err := baseVal.asInteger()
	if err != nil {
		return nil, regionInfo{}, err
	}

	return regionRef, regionInfo{space: table.AddressSpace(space), base: base}, nil
}

// accessWidth returns the byte width implied by a FieldElement's AccessType,
// falling back to the smallest width that covers the field if AnyAcc (0) was
// requested, matching ACPI 6.3 19.6.53's AccessType table.
func accessWidth(fe *fieldElement) int {
	switch fe.accessType {
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 4
	case 4:
		return 8
	default:
		width := (int(fe.width) + 7) / 8
		switch {
		case width <= 1:
			return 1
		case width <= 2:
			return 2
		case width <= 4:
			return 4
		default:
			return 8
		}
	}
}

// fieldUpdateRule describes how the bits of an access unit outside the
// target field are preserved when writing a field narrower than the access
// granularity (ACPI 6.3 19.6.53 UpdateRule).
const (
	updateRulePreserve = 0
	updateRuleOnes     = 1
	updateRuleZeros    = 2
)

// readField implements reading a plain or Bank- field element: locate its
// backing address-space handler, read one granularity-aligned unit covering
// the field's bit range, then shift/mask out just the field's own bits.
// Elements of an IndexField are not supported: regionOf reports an error
// for them.
func (vm *VM) readField(ws *WalkState, obj *Object) (*amlValue, *Error) {
	fe, ok := obj.value.(*fieldElement)
	if !ok {
		return nil, &Error{message: "aml: malformed field element"}
	}
	container := vm.objTree.ObjectAt(fe.fieldIndex)

	if container.opcode == pOpBankField {
		if err := vm.selectBank(ws, container); err != nil {
			return nil, err
		}
	}

	_, info, err := vm.regionOf(ws, container)
	if err != nil {
		return nil, err
	}
	handler, err := vm.addrSpaceHandler(info.space)
	if err != nil {
		return nil, err
	}

	width := accessWidth(fe)
	unitBitOffset := (fe.offset / uint32(width*8)) * uint32(width*8)

	if vm.globalLockRequired(fe) {
		owner := vm.newThreadID()
		vm.globalLock.Acquire(owner, -1)
		defer vm.globalLock.Release(owner)
	}

	raw, err := handler.read(info.base+uint64(unitBitOffset/8), width)
	if err != nil {
		return nil, err
	}

	shift := fe.offset - unitBitOffset
	mask := uint64(1)<<uint(fe.width) - 1
	if fe.width >= 64 {
		mask = ^uint64(0)
	}
	return intValue((raw >> shift) & mask), nil
}

// writeField implements writing a field element. For width-aligned fields
// that exactly cover the access unit, the value is written directly;
// otherwise the unit is first read back so bits outside the field can be
// preserved, forced to all ones, or forced to all zeros per UpdateRule.
// When the global lock is required it is held across both the read-back
// and the write. As with readField, IndexField elements are not supported.
func (vm *VM) writeField(ws *WalkState, obj *Object, val *amlValue) *Error {
	fe, ok := obj.value.(*fieldElement)
	if !ok {
		return &Error{message: "aml: malformed field element"}
	}
	container := vm.objTree.ObjectAt(fe.fieldIndex)

	if container.opcode == pOpBankField {
		if err := vm.selectBank(ws, container); err != nil {
			return err
		}
	}

	n, err := val.asInteger()
	if err != nil {
		return err
	}

	_, info, err := vm.regionOf(ws, container)
	if err != nil {
		return err
	}
	handler, err := vm.addrSpaceHandler(info.space)
	if err != nil {
		return err
	}

	width := accessWidth(fe)
	unitBitOffset := (fe.offset / uint32(width*8)) * uint32(width*8)
	unitByteOffset := info.base + uint64(unitBitOffset/8)

	shift := fe.offset - unitBitOffset
	mask := uint64(1)<<uint(fe.width) - 1
	if fe.width >= 64 {
		mask = ^uint64(0)
	}

	if vm.globalLockRequired(fe) {
		owner := vm.newThreadID()
		vm.globalLock.Acquire(owner, -1)
		defer vm.globalLock.Release(owner)
	}

	if shift == 0 && fe.width == uint32(width*8) {
		return handler.write(unitByteOffset, width, n&mask)
	}

	var unit uint64
	switch fe.updateType {
	case updateRuleOnes:
		unit = ^uint64(0)
	case updateRuleZeros:
		unit = 0
	default:
		var rerr *Error
		unit, rerr = handler.read(unitByteOffset, width)
		if rerr != nil {
			return rerr
		}
	}

	unit = (unit &^ (mask << shift)) | ((n & mask) << shift)

	return handler.write(unitByteOffset, width, unit)
}

// globalLockRequired reports whether the firmware's global lock must be
// held while accessing this field element (ACPI 6.3 19.6.53 LockRule).
func (vm *VM) globalLockRequired(fe *fieldElement) bool {
	return fe.lockType != 0
}

// selectBank evaluates and writes a BankField container's bank selector
// field before any of its named fields are accessed (ACPI 6.3 19.6.10).
func (vm *VM) selectBank(ws *WalkState, container *Object) *Error {
	bankValObj := vm.objTree.ArgAt(container, 2)
	if bankValObj == nil {
		return nil
	}
	bankSelector := vm.resolveTarget(vm.objTree.ArgAt(container, 1))
	n, _ := bankValObj.value.(uint64)
	return vm.writeFieldByContainer(ws, bankSelector, intValue(n))
}

// writeFieldByContainer writes directly to the named field representing a
// BankField's selector register, identified by its own container Object.
func (vm *VM) writeFieldByContainer(ws *WalkState, fieldContainer *Object, val *amlValue) *Error {
	for idx := fieldContainer.nextSiblingIndex; idx != InvalidIndex; {
		sibling := vm.objTree.ObjectAt(idx)
		idx = sibling.nextSiblingIndex
		if sibling.opcode != pOpIntNamedField {
			continue
		}
		if fe, ok := sibling.value.(*fieldElement); ok && fe.fieldIndex == fieldContainer.index {
			return vm.writeField(ws, sibling, val)
		}
	}
	return &Error{message: "aml: bank selector field not found"}
}
