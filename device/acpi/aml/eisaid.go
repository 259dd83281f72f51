package aml

// DecodeEISAID renders a 32-bit compressed EISA device id as the seven
// character PNP-style string (e.g. "PNP0A03"), matching
// acpi_aml_eisa_id_to_string's bit layout (common/cmeval.c): the first three
// characters are five-bit letter codes packed into the top two bytes, the
// remaining four are the hex digits of the low 16 bits, all byte-swapped
// because EISA ids are stored little-endian.
func DecodeEISAID(id uint32) string {
	swapped := (id>>24)&0xff | (id>>8)&0xff00 | (id<<8)&0xff0000 | (id<<24)&0xff000000

	var out [7]byte
	out[0] = byte('@' + (swapped>>26)&0x1f)
	out[1] = byte('@' + (swapped>>21)&0x1f)
	out[2] = byte('@' + (swapped>>16)&0x1f)

	const hex = "0123456789ABCDEF"
	out[3] = hex[(swapped>>12)&0xf]
	out[4] = hex[(swapped>>8)&0xf]
	out[5] = hex[(swapped>>4)&0xf]
	out[6] = hex[swapped&0xf]

	return string(out[:])
}

// EncodeEISAID packs a seven character PNP-style id (e.g. "PNP0A03") back
// into its 32-bit compressed form; ok is false if s isn't a well-formed id.
func EncodeEISAID(s string) (id uint32, ok bool) {
	if len(s) != 7 {
		return 0, false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return 0, false
		}
	}

	var swapped uint32
	swapped |= uint32(s[0]-'@') << 26
	swapped |= uint32(s[1]-'@') << 21
	swapped |= uint32(s[2]-'@') << 16

	for i := 0; i < 4; i++ {
		d, valid := hexDigit(s[3+i])
		if !valid {
			return 0, false
		}
		swapped |= uint32(d) << uint(12-4*i)
	}

	id = (swapped>>24)&0xff | (swapped>>8)&0xff00 | (swapped<<8)&0xff0000 | (swapped<<24)&0xff000000
	return id, true
}

// directChild returns parent's immediate named child matching name, without
// falling back to the ancestor-search rules ObjectTree.Find applies to
// simple names (a device's well-known methods must be its own, not
// inherited from an enclosing scope).
func directChild(tree *ObjectTree, parent *Object, name string) *Object {
	n := tree.NumArgs(parent)
	for i := uint32(0); i < n; i++ {
		cand := tree.ArgAt(parent, i)
		if string(cand.name[:]) == name {
			return cand
		}
	}
	return nil
}

func hexDigit(c byte) (uint32, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint32(c - '0'), true
	case c >= 'A' && c <= 'F':
		return uint32(c-'A') + 10, true
	default:
		return 0, false
	}
}

// hardwareID reads a Device's _HID/_CID-shaped child (a Name or Method
// returning either a Number or a String) and normalizes it to its PNP-style
// string form, matching cmeval.c's acpi_cm_resolve_hid_mid_uid dual-type
// handling.
func (vm *VM) hardwareID(ws *WalkState, device *Object, name string) (string, *Error) {
	child := directChild(vm.objTree, device, name)
	if child == nil {
		return "", &Error{message: "aml: " + name + " not present"}
	}

	var v *amlValue
	var err *Error
	if child.opcode == pOpMethod {
		v, err = vm.invokeMethod(ws, child, nil)
	} else {
		v, err = vm.evalTermArg(ws, child)
	}
	if err != nil {
		return "", err
	}

	switch v.kind {
	case valueKindString:
		return v.str, nil
	case valueKindInteger:
		return DecodeEISAID(uint32(v.num)), nil
	default:
		return "", &Error{message: "aml: " + name + " must be a Number or String"}
	}
}
