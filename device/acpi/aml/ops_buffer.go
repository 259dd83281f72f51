package aml

// evalBuffer implements Buffer(BufferSize){ByteList}: the declared size is
// the minimum length; a shorter ByteList is zero-padded the rest of the way.
func (vm *VM) evalBuffer(ws *WalkState, obj *Object) (*amlValue, *Error) {
	sizeVal, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	size, err := sizeVal.asInteger()
	if err != nil {
		return nil, err
	}

	var data []byte
	if bytesObj := vm.objTree.ArgAt(obj, 1); bytesObj != nil {
		data, _ = bytesObj.value.([]byte)
	}

	buf := make([]byte, size)
	copy(buf, data)
	return bufValue(buf), nil
}

// evalPackage implements Package/VarPackage: the element count is the
// object's first arg (decoded as a byte constant by the parser even for
// VarPackage); the remaining args are the element TermArgs, evaluated
// eagerly and boxed individually so Index() can hand out stable references.
func (vm *VM) evalPackage(ws *WalkState, obj *Object) (*amlValue, *Error) {
	declared, _ := vm.objTree.ArgAt(obj, 0).value.(uint64)

	n := vm.objTree.NumArgs(obj)
	elems := make([]*box, 0, declared)
	for i := uint32(1); i < n; i++ {
		v, err := vm.evalTermArg(ws, vm.objTree.ArgAt(obj, i))
		if err != nil {
			return nil, err
		}
		elems = append(elems, newBox(v))
	}
	for uint64(len(elems)) < declared {
		elems = append(elems, newBox(&amlValue{kind: valueKindUninitialized}))
	}
	return pkgValue(elems), nil
}

// evalStringOp implements Concat, ConcatRes and Mid.
func (vm *VM) evalStringOp(ws *WalkState, obj *Object) (*amlValue, *Error) {
	switch obj.opcode {
	case pOpConcat:
		return vm.evalConcat(ws, obj)
	case pOpConcatRes:
		a, err := vm.evalArgAt(ws, obj, 0)
		if err != nil {
			return nil, err
		}
		b, err := vm.evalArgAt(ws, obj, 1)
		if err != nil {
			return nil, err
		}
		ab, _ := a.asBuffer()
		bb, _ := b.asBuffer()
		result := bufValue(concatResourceBuffers(ab, bb))
		if target := vm.objTree.ArgAt(obj, 2); target != nil {
			if err := vm.storeInto(ws, target, result); err != nil {
				return nil, err
			}
		}
		return result, nil
	case pOpMid:
		return vm.evalMid(ws, obj)
	default:
		return nil, &Error{message: "aml: unsupported string opcode"}
	}
}

func (vm *VM) evalConcat(ws *WalkState, obj *Object) (*amlValue, *Error) {
	a, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	b, err := vm.evalArgAt(ws, obj, 1)
	if err != nil {
		return nil, err
	}

	var result *amlValue
	switch a.kind {
	case valueKindString:
		bs, _ := b.asString()
		result = strValue(a.str + bs)
	case valueKindBuffer:
		bb, _ := b.asBuffer()
		result = bufValue(append(append([]byte(nil), a.buf...), bb...))
	default:
		an, _ := a.asInteger()
		bn, _ := b.asInteger()
		width := 8
		if vm.sizeOfIntInBits <= 32 {
			width = 4
		}
		buf := make([]byte, 2*width)
		putLE(buf[:width], an)
		putLE(buf[width:], bn)
		result = bufValue(buf)
	}

	if target := vm.objTree.ArgAt(obj, 2); target != nil {
		if err := vm.storeInto(ws, target, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func putLE(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
}

func (vm *VM) evalMid(ws *WalkState, obj *Object) (*amlValue, *Error) {
	src, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}
	idxVal, err := vm.evalArgAt(ws, obj, 1)
	if err != nil {
		return nil, err
	}
	lenVal, err := vm.evalArgAt(ws, obj, 2)
	if err != nil {
		return nil, err
	}
	idx, _ := idxVal.asInteger()
	length, _ := lenVal.asInteger()

	var result *amlValue
	if src.kind == valueKindString {
		s := src.str
		result = strValue(sliceString(s, idx, length))
	} else {
		buf, _ := src.asBuffer()
		result = bufValue([]byte(sliceString(string(buf), idx, length)))
	}

	if target := vm.objTree.ArgAt(obj, 3); target != nil {
		if err := vm.storeInto(ws, target, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func sliceString(s string, idx, length uint64) string {
	if idx >= uint64(len(s)) {
		return ""
	}
	end := idx + length
	if end > uint64(len(s)) {
		end = uint64(len(s))
	}
	return s[idx:end]
}

// concatResourceBuffers splices two resource descriptor streams, dropping
// the terminating End Tag (0x79) of the first so the result is a single
// well-formed stream (spec.md's resource descriptor conversion helpers).
func concatResourceBuffers(a, b []byte) []byte {
	if n := len(a); n >= 2 && a[n-2] == 0x79 {
		a = a[:n-2]
	}
	return append(append([]byte(nil), a...), b...)
}

// evalConvert implements the explicit data-conversion opcodes.
func (vm *VM) evalConvert(ws *WalkState, obj *Object) (*amlValue, *Error) {
	src, err := vm.evalArgAt(ws, obj, 0)
	if err != nil {
		return nil, err
	}

	var result *amlValue
	switch obj.opcode {
	case pOpToBuffer:
		b, cerr := src.asBuffer()
		if cerr != nil {
			return nil, cerr
		}
		result = bufValue(b)
	case pOpToInteger:
		n, cerr := src.asInteger()
		if cerr != nil {
			return nil, cerr
		}
		result = intValue(n)
	case pOpToString:
		s, cerr := src.asString()
		if cerr != nil {
			return nil, cerr
		}
		result = strValue(s)
	case pOpToHexString:
		n, _ := src.asInteger()
		result = strValue(formatHex(n))
	case pOpToDecimalString:
		n, _ := src.asInteger()
		result = strValue(formatDecimal(n))
	default:
		return nil, &Error{message: "aml: unsupported conversion opcode"}
	}

	if target := vm.objTree.ArgAt(obj, 1); target != nil {
		if err := vm.storeInto(ws, target, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func formatDecimal(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// execNotify dispatches a Notify(Object, Value) statement to any handlers
// registered for the target device/thermal zone/processor.
func (vm *VM) execNotify(ws *WalkState, stmt *Object) *Error {
	target := vm.resolveTarget(vm.objTree.ArgAt(stmt, 0))
	val, err := vm.evalArgAt(ws, stmt, 1)
	if err != nil {
		return err
	}
	n, err := val.asInteger()
	if err != nil {
		return err
	}
	for _, h := range vm.notifyHandlers[target] {
		h(target, n)
	}
	return nil
}
