package aml

import (
	"reflect"
	"unsafe"
)

// readConst returns the literal value of a Zero/One/Ones/Byte/Word/Dword/
// Qword/String prefix object. The parser (parseObjectArgs/parseSimpleArg)
// already decodes these directly into obj.value as a uint64 or string, so
// this just type-asserts it back out.
func (vm *VM) readConst(obj *Object) (*amlValue, *Error) {
	switch obj.opcode {
	case pOpZero:
		return intValue(0), nil
	case pOpOne:
		return intValue(1), nil
	case pOpOnes:
		return intValue(vm.onesValue()), nil
	case pOpStringPrefix:
		s, _ := obj.value.(string)
		return strValue(s), nil
	default:
		n, _ := obj.value.(uint64)
		return intValue(n), nil
	}
}

// onesValue returns the all-bits-set integer for the table's bit width.
func (vm *VM) onesValue() uint64 {
	if vm.sizeOfIntInBits <= 32 {
		return 0xffffffff
	}
	return 0xffffffffffffffff
}

// localBox returns the box backing a Local0-7 reference, creating it with an
// uninitialized value on first use.
func (ws *WalkState) localBox(idx int) *box {
	if ws.locals[idx] == nil {
		ws.locals[idx] = newBox(&amlValue{kind: valueKindUninitialized})
	}
	return ws.locals[idx]
}

// argBox returns the box backing an Arg0-6 reference.
func (ws *WalkState) argBox(idx int) *box {
	if ws.args[idx] == nil {
		ws.args[idx] = newBox(&amlValue{kind: valueKindUninitialized})
	}
	return ws.args[idx]
}

// resolveTarget follows a resolved/unresolved namepath reference node down
// to the Object it actually refers to; any other opcode is returned as-is.
func (vm *VM) resolveTarget(obj *Object) *Object {
	switch obj.opcode {
	case pOpIntResolvedNamePath:
		return vm.objTree.ObjectAt(obj.value.(uint32))
	case pOpIntNamePath:
		if idx := vm.objTree.Find(obj.parentIndex, obj.value.([]byte)); idx != InvalidIndex {
			return vm.objTree.ObjectAt(idx)
		}
		return obj
	default:
		return obj
	}
}

// resolveBox returns the addressable storage cell a TermArg refers to, for
// opcodes that need to write through it (Store, RefOf, Increment, ...). Named
// objects get a single persistent box the first time they are touched,
// mirroring how the tree's static Name/Method entries become dynamic once
// the interpreter runs (spec.md 4.3).
func (vm *VM) resolveBox(ws *WalkState, obj *Object) (*box, *Error) {
	obj = vm.resolveTarget(obj)

	switch {
	case pOpIsLocalArg(obj.opcode):
		return ws.localBox(int(obj.opcode - pOpLocal0)), nil
	case pOpIsMethodArg(obj.opcode):
		return ws.argBox(int(obj.opcode - pOpArg0)), nil
	case obj.opcode == pOpName:
		return vm.namedBox(obj), nil
	case obj.opcode == pOpIntNamedField:
		return nil, &Error{message: "aml: field targets must go through field.go, not a box"}
	case obj.opcode == pOpIndex:
		val, err := vm.evalIndex(ws, obj)
		if err != nil {
			return nil, err
		}
		return val.ref, nil
	default:
		return nil, &Error{message: "aml: expression is not addressable"}
	}
}

// namedBox returns (creating on first use) the persistent box holding a
// named object's dynamic value.
func (vm *VM) namedBox(obj *Object) *box {
	if b, ok := vm.namedValues[obj]; ok {
		return b
	}
	b := newBox(&amlValue{kind: valueKindUninitialized})
	vm.namedValues[obj] = b
	return b
}

// evalTermArg evaluates obj, an arbitrary TermArg/expression subtree, to a
// runtime value.
func (vm *VM) evalTermArg(ws *WalkState, obj *Object) (*amlValue, *Error) {
	if obj == nil {
		return &amlValue{kind: valueKindUninitialized}, nil
	}

	switch {
	case pOpIsLocalArg(obj.opcode), pOpIsMethodArg(obj.opcode):
		b, err := vm.resolveBox(ws, obj)
		if err != nil {
			return nil, err
		}
		return b.v, nil
	}

	switch obj.opcode {
	case pOpZero, pOpOne, pOpOnes, pOpBytePrefix, pOpWordPrefix, pOpDwordPrefix, pOpQwordPrefix, pOpStringPrefix:
		return vm.readConst(obj)

	case pOpIntResolvedNamePath, pOpIntNamePath:
		return vm.evalTermArg(ws, vm.resolveTarget(obj))

	case pOpName:
		return vm.namedBox(obj).v, nil
	case pOpIntNamedField:
		return vm.readField(ws, obj)

	case pOpBuffer:
		return vm.evalBuffer(ws, obj)
	case pOpPackage, pOpVarPackage:
		return vm.evalPackage(ws, obj)

	case pOpAdd, pOpSubtract, pOpMultiply, pOpDivide, pOpMod,
		pOpShiftLeft, pOpShiftRight, pOpAnd, pOpNand, pOpOr, pOpNor, pOpXor:
		return vm.evalArith(ws, obj)
	case pOpIncrement, pOpDecrement:
		return vm.evalIncDec(ws, obj)
	case pOpNot, pOpFindSetLeftBit, pOpFindSetRightBit:
		return vm.evalUnary(ws, obj)

	case pOpLand, pOpLor, pOpLnot, pOpLEqual, pOpLGreater, pOpLLess:
		return vm.evalLogic(ws, obj)

	case pOpConcat, pOpConcatRes, pOpMid:
		return vm.evalStringOp(ws, obj)
	case pOpToBuffer, pOpToDecimalString, pOpToHexString, pOpToInteger, pOpToString:
		return vm.evalConvert(ws, obj)

	case pOpIndex:
		return vm.evalIndex(ws, obj)
	case pOpRefOf:
		return vm.evalRefOf(ws, obj)
	case pOpCondRefOf:
		return vm.evalCondRefOf(ws, obj)
	case pOpDerefOf:
		return vm.evalDerefOf(ws, obj)
	case pOpSizeOf:
		return vm.evalSizeOf(ws, obj)
	case pOpObjectType:
		return vm.evalObjectType(ws, obj)
	case pOpStore, pOpCopyObject:
		return vm.evalStore(ws, obj)

	case pOpIntMethodCall:
		return vm.evalMethodCall(ws, obj)
	case pOpDebug:
		return &amlValue{kind: valueKindUninitialized}, nil
	case pOpRevision:
		return intValue(2), nil
	case pOpTimer:
		return intValue(0), nil

	default:
		return nil, &Error{message: "aml: unsupported expression opcode 0x" + formatHex(uint64(obj.opcode))}
	}
}

// args returns the already-parsed child arguments of obj, in order.
func (vm *VM) args(obj *Object) []*Object {
	n := vm.objTree.NumArgs(obj)
	out := make([]*Object, 0, n)
	for i := uint32(0); i < n; i++ {
		out = append(out, vm.objTree.ArgAt(obj, i))
	}
	return out
}

func (vm *VM) evalArgAt(ws *WalkState, obj *Object, idx uint32) (*amlValue, *Error) {
	return vm.evalTermArg(ws, vm.objTree.ArgAt(obj, idx))
}

// execStatement executes a single TermList entry (an executable opcode or a
// named-object declaration that has already been fully resolved by the
// parser) and reports the control flow it produced.
func (vm *VM) execStatement(ws *WalkState, stmt *Object) (ctrlFlowType, *Error) {
	switch stmt.opcode {
	case pOpIf:
		return vm.execIf(ws, stmt)
	case pOpWhile:
		return vm.execWhile(ws, stmt)
	case pOpReturn:
		val, err := vm.evalArgAt(ws, stmt, 0)
		if err != nil {
			return ctrlFlowNext, err
		}
		ws.retVal = val
		ws.ctrlFlow = ctrlFlowReturn
		return ctrlFlowReturn, nil
	case pOpBreak:
		ws.ctrlFlow = ctrlFlowBreak
		return ctrlFlowBreak, nil
	case pOpContinue:
		ws.ctrlFlow = ctrlFlowContinue
		return ctrlFlowContinue, nil
	case pOpNoop, pOpBreakPoint:
		return ctrlFlowNext, nil
	case pOpNotify:
		return ctrlFlowNext, vm.execNotify(ws, stmt)
	case pOpAcquire, pOpRelease, pOpSignal, pOpWait, pOpReset:
		return ctrlFlowNext, vm.execSyncOp(ws, stmt)
	case pOpSleep, pOpStall:
		return ctrlFlowNext, nil // no real timer source is wired to this VM
	case pOpFatal:
		return ctrlFlowNext, &Error{message: "aml: Fatal opcode executed"}
	default:
		_, err := vm.evalTermArg(ws, stmt)
		return ctrlFlowNext, err
	}
}

// execIf evaluates an If/Else pair; the parser records the Else block (when
// present) as the If object's second argument.
func (vm *VM) execIf(ws *WalkState, stmt *Object) (ctrlFlowType, *Error) {
	cond, err := vm.evalArgAt(ws, stmt, 0)
	if err != nil {
		return ctrlFlowNext, err
	}
	n, err := cond.asInteger()
	if err != nil {
		return ctrlFlowNext, err
	}

	var branch *Object
	if n != 0 {
		branch = vm.objTree.ArgAt(stmt, 1)
	} else if vm.objTree.NumArgs(stmt) > 2 {
		branch = vm.objTree.ArgAt(stmt, 2)
	}
	if branch == nil {
		return ctrlFlowNext, nil
	}
	if err := vm.execTermList(ws, branch); err != nil {
		return ctrlFlowNext, err
	}
	return ws.ctrlFlow, nil
}

func (vm *VM) execWhile(ws *WalkState, stmt *Object) (ctrlFlowType, *Error) {
	body := vm.objTree.ArgAt(stmt, 1)
	for {
		cond, err := vm.evalArgAt(ws, stmt, 0)
		if err != nil {
			return ctrlFlowNext, err
		}
		n, err := cond.asInteger()
		if err != nil {
			return ctrlFlowNext, err
		}
		if n == 0 {
			break
		}
		if body != nil {
			if err := vm.execTermList(ws, body); err != nil {
				return ctrlFlowNext, err
			}
		}
		switch ws.ctrlFlow {
		case ctrlFlowBreak:
			ws.ctrlFlow = ctrlFlowNext
			return ctrlFlowNext, nil
		case ctrlFlowReturn:
			return ctrlFlowReturn, nil
		case ctrlFlowContinue:
			ws.ctrlFlow = ctrlFlowNext
		}
	}
	return ctrlFlowNext, nil
}

func (vm *VM) evalMethodCall(ws *WalkState, obj *Object) (*amlValue, *Error) {
	target := vm.objTree.ObjectAt(obj.value.(uint32))
	args := vm.args(obj)
	argVals := make([]*amlValue, len(args))
	for i, a := range args {
		v, err := vm.evalTermArg(ws, a)
		if err != nil {
			return nil, err
		}
		argVals[i] = v
	}
	return vm.invokeMethod(ws, target, argVals)
}

// uintptrOfSlice returns the address of b's backing array, the same
// reflect.SliceHeader trick kernel.Memcopy and the parser use to bridge
// between Go slices and raw addresses.
func uintptrOfSlice(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return (*reflect.SliceHeader)(unsafe.Pointer(&b)).Data
}
