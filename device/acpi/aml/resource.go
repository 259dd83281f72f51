package aml

// ResourceDescriptor is a single decoded entry of a _CRS/_PRS/_SRS resource
// buffer. Kind identifies the small- or large-item tag (ACPI 6.3 Table
// 6.33/6.37); Data holds the tag's own payload bytes, unparsed further, since
// a field consumer (an interrupt allocator, a PCI bridge driver, ...) knows
// how to interpret its own descriptor shapes better than a generic decoder
// could.
type ResourceDescriptor struct {
	Kind uint8
	Data []byte
}

const (
	resourceEndTag    = 0x79
	resourceLargeItem = 0x80
)

// DecodeResources walks a raw _CRS/_PRS-style byte buffer into its component
// descriptors, stopping at (and not including) the terminating End Tag.
// Small resource items (tag bit 7 clear) carry their length in the low 3
// bits of the tag byte; large items (tag bit 7 set) carry a 16-bit
// little-endian length following the tag byte, per ACPI 6.3 19.6.114's
// byte-stream encoding.
func DecodeResources(buf []byte) ([]ResourceDescriptor, *Error) {
	var out []ResourceDescriptor

	for i := 0; i < len(buf); {
		tag := buf[i]
		if tag&resourceLargeItem == 0 {
			if tag>>3 == resourceEndTag>>3 {
				return out, nil
			}
			length := int(tag & 0x7)
			i++
			if i+length > len(buf) {
				return nil, &Error{message: "aml: truncated small resource item"}
			}
			out = append(out, ResourceDescriptor{Kind: tag >> 3, Data: append([]byte(nil), buf[i:i+length]...)})
			i += length
			continue
		}

		if i+3 > len(buf) {
			return nil, &Error{message: "aml: truncated large resource item header"}
		}
		length := int(buf[i+1]) | int(buf[i+2])<<8
		i += 3
		if i+length > len(buf) {
			return nil, &Error{message: "aml: truncated large resource item"}
		}
		out = append(out, ResourceDescriptor{Kind: tag, Data: append([]byte(nil), buf[i:i+length]...)})
		i += length
	}

	return out, nil
}

// EncodeResources reassembles descriptors back into a byte stream terminated
// by an End Tag with a zero checksum, the form _SRS expects as its input
// buffer (ACPI 6.3 6.4.2.9).
func EncodeResources(descs []ResourceDescriptor) []byte {
	var buf []byte
	for _, d := range descs {
		if d.Kind&resourceLargeItem == 0 {
			buf = append(buf, d.Kind<<3|uint8(len(d.Data)&0x7))
			buf = append(buf, d.Data...)
		} else {
			buf = append(buf, d.Kind, byte(len(d.Data)), byte(len(d.Data)>>8))
			buf = append(buf, d.Data...)
		}
	}
	buf = append(buf, resourceEndTag, 0)
	return buf
}

// evalResourceMethod invokes a no-argument resource method (_CRS/_PRS/_PRT)
// on device and decodes its Buffer result.
func (vm *VM) evalResourceMethod(ws *WalkState, device *Object, name string) ([]ResourceDescriptor, *Error) {
	method := directChild(vm.objTree, device, name)
	if method == nil {
		return nil, &Error{message: "aml: " + name + " not present"}
	}

	var v *amlValue
	var err *Error
	if method.opcode == pOpMethod {
		v, err = vm.invokeMethod(ws, method, nil)
	} else {
		v, err = vm.evalTermArg(ws, method)
	}
	if err != nil {
		return nil, err
	}

	buf, cerr := v.asBuffer()
	if cerr != nil {
		return nil, cerr
	}
	return DecodeResources(buf)
}

// CurrentResources evaluates a device's _CRS method (ACPI 6.3 6.2.2),
// returning its currently configured resource settings.
func (vm *VM) CurrentResources(ws *WalkState, device *Object) ([]ResourceDescriptor, *Error) {
	return vm.evalResourceMethod(ws, device, "_CRS")
}

// PossibleResources evaluates a device's _PRS method (ACPI 6.3 6.2.8),
// returning the resource settings the device could be configured with.
func (vm *VM) PossibleResources(ws *WalkState, device *Object) ([]ResourceDescriptor, *Error) {
	return vm.evalResourceMethod(ws, device, "_PRS")
}

// SetCurrentResources evaluates a device's _SRS method (ACPI 6.3 6.2.13),
// passing descs back as the method's single Buffer argument.
func (vm *VM) SetCurrentResources(ws *WalkState, device *Object, descs []ResourceDescriptor) *Error {
	method := directChild(vm.objTree, device, "_SRS")
	if method == nil {
		return &Error{message: "aml: _SRS not present"}
	}
	_, err := vm.invokeMethod(ws, method, []*amlValue{bufValue(EncodeResources(descs))})
	return err
}
