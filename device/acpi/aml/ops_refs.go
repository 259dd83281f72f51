package aml

// storeInto writes val into whatever target refers to: NullName (0x00, a
// "don't care" target emitted for an omitted optional Target operand),
// Local/Arg/Name, a field, or the cell an Index/RefOf expression resolved
// to. Values are always cloned on the way in so two names never alias the
// same Buffer/Package storage (spec.md 4.4).
func (vm *VM) storeInto(ws *WalkState, target *Object, val *amlValue) *Error {
	if target == nil || target.opcode == pOpZero {
		return nil
	}

	resolved := vm.resolveTarget(target)
	if resolved.opcode == pOpIntNamedField {
		return vm.writeField(ws, resolved, val)
	}

	b, err := vm.resolveBox(ws, target)
	if err != nil {
		return err
	}
	if b.v != nil && b.v.kind == valueKindReference {
		vm.refs.decRef(b.v.ref)
	}
	b.v = val.clone()
	return nil
}

// evalStore implements Store(Source, Target) and CopyObject(Source, Target);
// both copy Source's value into Target, but Store additionally performs
// implicit conversion toward Target's existing type while CopyObject always
// overwrites Target with an exact copy (ACPI 6.3 19.6.136 vs 19.6.19).
func (vm *VM) evalStore(ws *WalkState, obj *Object) (*amlValue, *Error) {
	src, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	target := vm.objTree.ArgAt(obj, 1)

	val := src
	if obj.opcode == pOpStore {
		if b, berr := vm.resolveBox(ws, target); berr == nil && b.v != nil {
			val = convertLike(src, b.v)
		}
	}

	if err := vm.storeInto(ws, target, val); err != nil {
		return nil, err
	}
	return val, nil
}

// convertLike coerces src toward dst's dynamic type when dst already holds
// an Integer, String or Buffer value; Package/Reference/Uninitialized
// targets accept whatever type Store produces, matching the ACPI "implicit
// result object conversion" rules.
func convertLike(src, dst *amlValue) *amlValue {
	switch dst.kind {
	case valueKindInteger:
		if n, err := src.asInteger(); err == nil {
			return intValue(n)
		}
	case valueKindString:
		if s, err := src.asString(); err == nil {
			return strValue(s)
		}
	case valueKindBuffer:
		if b, err := src.asBuffer(); err == nil {
			return bufValue(b)
		}
	}
	return src
}

// evalIndex implements Index(Source, Index, Target): Source must be a
// Buffer, String or Package; the result is a Reference to the element,
// which Index also stores into the optional Target so callers can both use
// and alias the returned reference.
func (vm *VM) evalIndex(ws *WalkState, obj *Object) (*amlValue, *Error) {
	src, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	idxVal, err := vm.evalArgAt(ws, obj, 1)
	if err != nil {
		return nil, err
	}
	idx, err := idxVal.asInteger()
	if err != nil {
		return nil, err
	}

	var elemBox *box
	switch src.kind {
	case valueKindPackage:
		if int(idx) >= len(src.pkg) {
			return nil, &Error{message: "aml: Index out of bounds of Package"}
		}
		elemBox = src.pkg[idx]
	case valueKindBuffer, valueKindString:
		buf, _ := src.asBuffer()
		if int(idx) >= len(buf) {
			return nil, &Error{message: "aml: Index out of bounds of Buffer"}
		}
		elemBox = newBox(intValue(uint64(buf[idx])))
	default:
		return nil, &Error{message: "aml: Index requires a Buffer, String or Package"}
	}

	result := refValue(elemBox)
	vm.refs.incRef(elemBox)
	if target := vm.objTree.ArgAt(obj, 2); target != nil {
		if err := vm.storeInto(ws, target, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// evalRefOf implements RefOf(Source), producing an object reference to the
// storage cell backing Source.
func (vm *VM) evalRefOf(ws *WalkState, obj *Object) (*amlValue, *Error) {
	b, err := vm.resolveBox(ws, vm.objTree.ArgAt(obj, 0))
	if err != nil {
		return nil, err
	}
	vm.refs.incRef(b)
	return refValue(b), nil
}

// evalCondRefOf implements CondRefOf(Source, Target): like RefOf but never
// fails — it stores a boolean result indicating whether Source actually
// resolved to an existing object.
func (vm *VM) evalCondRefOf(ws *WalkState, obj *Object) (*amlValue, *Error) {
	b, err := vm.resolveBox(ws, vm.objTree.ArgAt(obj, 0))
	ok := err == nil
	if ok {
		vm.refs.incRef(b)
		if target := vm.objTree.ArgAt(obj, 1); target != nil {
			if err := vm.storeInto(ws, target, refValue(b)); err != nil {
				return nil, err
			}
		}
	}
	return boolValue(ok), nil
}

// evalDerefOf implements DerefOf(Source), dereferencing a Reference or
// resolving an Index/RefOf object-name string.
func (vm *VM) evalDerefOf(ws *WalkState, obj *Object) (*amlValue, *Error) {
	v, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	if v.kind != valueKindReference {
		return nil, &Error{message: "aml: DerefOf requires an object reference"}
	}
	return v.ref.v, nil
}

// evalSizeOf implements SizeOf(Source): element count for Buffer/String,
// entry count for Package; any other type, Integer included, is reported as
// an error.
func (vm *VM) evalSizeOf(ws *WalkState, obj *Object) (*amlValue, *Error) {
	v, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	switch v.kind {
	case valueKindBuffer:
		return intValue(uint64(len(v.buf))), nil
	case valueKindString:
		return intValue(uint64(len(v.str))), nil
	case valueKindPackage:
		return intValue(uint64(len(v.pkg))), nil
	default:
		return nil, &Error{message: "aml: SizeOf requires a Buffer, String or Package"}
	}
}

// evalObjectType implements ObjectType(Source), returning the ACPI object
// type code for the object Source names (not its current dynamic value,
// for named objects that aren't plain data, e.g. Device/Mutex/Event).
func (vm *VM) evalObjectType(ws *WalkState, obj *Object) (*amlValue, *Error) {
	arg := vm.objTree.ArgAt(obj, 0)
	target := vm.resolveTarget(arg)

	switch target.opcode {
	case pOpDevice:
		return intValue(6), nil
	case pOpProcessor:
		return intValue(7), nil
	case pOpThermalZone:
		return intValue(9), nil
	case pOpPowerRes:
		return intValue(8), nil
	case pOpMutex:
		return intValue(5), nil
	case pOpEvent:
		return intValue(10), nil
	case pOpMethod:
		return intValue(4), nil
	case pOpOpRegion:
		return intValue(11), nil
	}

	v, err := vm.evalTermArg(ws, arg)
	if err != nil {
		return nil, err
	}
	switch v.kind {
	case valueKindInteger:
		return intValue(1), nil
	case valueKindString:
		return intValue(2), nil
	case valueKindBuffer:
		return intValue(3), nil
	case valueKindPackage:
		return intValue(4), nil
	case valueKindReference:
		return intValue(14), nil
	default:
		return intValue(0), nil
	}
}
