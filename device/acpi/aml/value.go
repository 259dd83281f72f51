package aml


// valueKind identifies the dynamic type carried by an amlValue, mirroring
// the small set of object types the AML grammar's DataObject production can
// produce (spec.md's "Internal object" data model).
type valueKind uint8

// The list of supported valueKind values.
const (
	valueKindUninitialized valueKind = iota
	valueKindInteger
	valueKindString
	valueKindBuffer
	valueKindPackage
	valueKindReference
)

func (k valueKind) String() string {
	switch k {
	case valueKindInteger:
		return "Integer"
	case valueKindString:
		return "String"
	case valueKindBuffer:
		return "Buffer"
	case valueKindPackage:
		return "Package"
	case valueKindReference:
		return "Reference"
	default:
		return "Uninitialized"
	}
}

// box is an addressable storage cell for an amlValue. Locals, method args,
// named objects and package elements are all represented as a *box so that
// RefOf/Index can hand out a Reference that observes later Store operations
// to the same cell, without requiring host-language pointer aliasing tricks.
type box struct {
	v *amlValue
}

func newBox(v *amlValue) *box { return &box{v: v} }

// amlValue is the boxed runtime value produced by evaluating a TermArg.
type amlValue struct {
	kind valueKind

	num uint64
	str string
	buf []byte
	pkg []*box

	// ref is populated when kind == valueKindReference; it points at the
	// cell a RefOf/Index/CondRefOf expression resolved to.
	ref *box
}

func intValue(v uint64) *amlValue    { return &amlValue{kind: valueKindInteger, num: v} }
func strValue(v string) *amlValue    { return &amlValue{kind: valueKindString, str: v} }
func bufValue(v []byte) *amlValue    { return &amlValue{kind: valueKindBuffer, buf: v} }
func refValue(b *box) *amlValue      { return &amlValue{kind: valueKindReference, ref: b} }
func pkgValue(elems []*box) *amlValue { return &amlValue{kind: valueKindPackage, pkg: elems} }

// clone returns a value copy of v, detaching it from whatever box currently
// holds it. Store()/CopyObject() always clone so that two names never
// secretly alias the same buffer/package storage (spec.md 4.4).
func (v *amlValue) clone() *amlValue {
	if v == nil {
		return nil
	}
	cp := *v
	if v.kind == valueKindBuffer {
		cp.buf = append([]byte(nil), v.buf...)
	}
	if v.kind == valueKindPackage {
		cp.pkg = make([]*box, len(v.pkg))
		for i, elem := range v.pkg {
			var ev *amlValue
			if elem != nil {
				ev = elem.v
			}
			cp.pkg[i] = newBox(ev)
		}
	}
	return &cp
}

// asInteger coerces v to an integer following the implicit conversion rules
// used by arithmetic/logic opcodes (spec.md's ALU evaluation): strings parse
// as hex, buffers are read little-endian.
func (v *amlValue) asInteger() (uint64, *Error) {
	if v == nil {
		return 0, errNilOperand
	}
	switch v.kind {
	case valueKindInteger:
		return v.num, nil
	case valueKindString:
		return parseHexOrDecimal(v.str)
	case valueKindBuffer:
		var n uint64
		for i := 0; i < len(v.buf) && i < 8; i++ {
			n |= uint64(v.buf[i]) << (8 * uint(i))
		}
		return n, nil
	case valueKindReference:
		return v.ref.v.asInteger()
	default:
		return 0, errInvalidConversion
	}
}

func parseHexOrDecimal(s string) (uint64, *Error) {
	var n uint64
	for _, c := range []byte(s) {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return n, nil
		}
		n = n*16 + d
	}
	return n, nil
}

// asBuffer coerces v to a byte buffer.
func (v *amlValue) asBuffer() ([]byte, *Error) {
	if v == nil {
		return nil, errNilOperand
	}
	switch v.kind {
	case valueKindBuffer:
		return v.buf, nil
	case valueKindInteger:
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(v.num >> (8 * uint(i)))
		}
		return buf, nil
	case valueKindString:
		return []byte(v.str), nil
	case valueKindReference:
		return v.ref.v.asBuffer()
	default:
		return nil, errInvalidConversion
	}
}

// asString coerces v to a string.
func (v *amlValue) asString() (string, *Error) {
	if v == nil {
		return "", errNilOperand
	}
	switch v.kind {
	case valueKindString:
		return v.str, nil
	case valueKindInteger:
		return formatHex(v.num), nil
	case valueKindBuffer:
		return string(v.buf), nil
	case valueKindReference:
		return v.ref.v.asString()
	default:
		return "", errInvalidConversion
	}
}

var (
	errNilOperand        = &Error{message: "aml: operand is nil"}
	errInvalidConversion = &Error{message: "aml: value cannot be converted to the requested type"}
)

// formatHex renders v as a lower-case hex string with no leading zeroes,
// matching the %x verb used by ToHexString conversions (spec.md's data
// conversion helpers). kfmt.Printf's freestanding formatter has no Sprintf
// variant, so integer-to-string conversions format locally instead.
func formatHex(v uint64) string {
	if v == 0 {
		return "0"
	}
	const digits = "0123456789abcdef"
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}
