package aml

import "bytes"

// ObjectKind is the public, stable classification of a namespace Object
// returned by GetType, distinct from the AML opcode (an implementation
// detail) backing it.
type ObjectKind uint8

// The list of object kinds a caller outside this package can observe.
const (
	KindUninitialized ObjectKind = iota
	KindInteger
	KindString
	KindBuffer
	KindPackage
	KindDevice
	KindEvent
	KindMethod
	KindMutex
	KindRegion
	KindPower
	KindProcessor
	KindThermalZone
	KindScope
	KindFieldUnit
	KindReference
)

var opcodeToKind = map[uint16]ObjectKind{
	pOpDevice:        KindDevice,
	pOpEvent:         KindEvent,
	pOpMethod:        KindMethod,
	pOpMutex:         KindMutex,
	pOpOpRegion:      KindRegion,
	pOpPowerRes:      KindPower,
	pOpProcessor:     KindProcessor,
	pOpThermalZone:   KindThermalZone,
	pOpIntScopeBlock: KindScope,
	pOpIntNamedField: KindFieldUnit,
}

// Evaluate resolves absPath to its namespace Object and returns its current
// value: a Method is invoked with args, a Name/Field is read, and the
// well-known `_HID`/`_CID` names are additionally normalized from their
// compressed EISA ID Number form into their PNP-style string (spec.md S3)
// since almost every caller wants the string form and only the AML
// interpreter itself cares about the packed encoding.
func (vm *VM) Evaluate(absPath string, args ...*amlValue) (*amlValue, *Error) {
	obj := vm.Lookup(absPath)
	if obj == nil {
		return nil, &Error{message: "aml: " + absPath + " not found"}
	}

	if name := nameOf(obj); name == "_HID" || name == "_CID" {
		if parent := vm.objTree.ObjectAt(obj.parentIndex); parent != nil {
			if s, err := vm.hardwareID(nil, parent, name); err == nil {
				return strValue(s), nil
			}
		}
	}

	if obj.opcode == pOpMethod {
		return vm.invokeMethod(nil, obj, args)
	}
	return vm.evalTermArg(nil, obj)
}

// GetType classifies absPath's namespace Object, or KindUninitialized if it
// doesn't exist.
func (vm *VM) GetType(absPath string) ObjectKind {
	obj := vm.Lookup(absPath)
	if obj == nil {
		return KindUninitialized
	}
	if kind, ok := opcodeToKind[obj.opcode]; ok {
		return kind
	}

	v, err := vm.evalTermArg(nil, obj)
	if err != nil {
		return KindUninitialized
	}
	switch v.kind {
	case valueKindInteger:
		return KindInteger
	case valueKindString:
		return KindString
	case valueKindBuffer:
		return KindBuffer
	case valueKindPackage:
		return KindPackage
	case valueKindReference:
		return KindReference
	default:
		return KindUninitialized
	}
}

// GetParent returns the absolute path of absPath's enclosing named scope, or
// "" if absPath names the root or doesn't exist.
func (vm *VM) GetParent(absPath string) string {
	obj := vm.Lookup(absPath)
	if obj == nil {
		return ""
	}
	parentIdx := vm.objTree.ClosestNamedAncestor(obj)
	if parentIdx == InvalidIndex {
		return ""
	}
	return vm.absPathOf(vm.objTree.ObjectAt(parentIdx))
}

// GetNextObject returns the next named child of parentPath following
// afterPath in declaration order, or the first child if afterPath is "".
// It returns ok=false once the children are exhausted, mirroring ACPICA's
// acpi_get_next_object iterator contract.
func (vm *VM) GetNextObject(parentPath, afterPath string) (absPath string, ok bool) {
	parent := vm.Lookup(parentPath)
	if parent == nil {
		return "", false
	}

	var after *Object
	if afterPath != "" {
		after = vm.Lookup(afterPath)
		if after == nil {
			return "", false
		}
	}

	n := vm.objTree.NumArgs(parent)
	found := after == nil
	for i := uint32(0); i < n; i++ {
		child := vm.objTree.ArgAt(parent, i)
		if found {
			return vm.absPathOf(child), true
		}
		if child == after {
			found = true
		}
	}
	return "", false
}

// WalkNamespace visits every named Object reachable from rootPath (rootPath
// itself first, depth-first, declaration order), calling visit with each
// object's absolute path and kind. Returning false from visit stops the
// walk early, matching acpi_walk_namespace's early-termination contract.
func (vm *VM) WalkNamespace(rootPath string, visit func(absPath string, kind ObjectKind) bool) {
	root := vm.Lookup(rootPath)
	if root == nil {
		return
	}
	vm.walkSubtree(root, visit)
}

func (vm *VM) walkSubtree(obj *Object, visit func(absPath string, kind ObjectKind) bool) bool {
	kind := KindUninitialized
	if k, ok := opcodeToKind[obj.opcode]; ok {
		kind = k
	}
	if !visit(vm.absPathOf(obj), kind) {
		return false
	}

	n := vm.objTree.NumArgs(obj)
	for i := uint32(0); i < n; i++ {
		child := vm.objTree.ArgAt(obj, i)
		if child.name == ([amlNameLen]byte{}) {
			continue // unnamed TermArg, not a namespace entry
		}
		if !vm.walkSubtree(child, visit) {
			return false
		}
	}
	return true
}

// absPathOf renders obj's fully-qualified namespace path by walking up
// through ClosestNamedAncestor and concatenating each 4-byte NameSeg, the
// reverse of Find's namepath resolution (Find expects concatenated
// NameSegs with no separators, e.g. `\_SB_PCI0IDE0_ADR`, not dotted
// notation).
func (vm *VM) absPathOf(obj *Object) string {
	var segments [][amlNameLen]byte
	// The root scope object itself carries the named flag (so nested scopes
	// resolve through it) but contributes no NameSeg of its own; stop the
	// walk once it's reached rather than emitting its raw, null-padded name.
	for cur := obj; cur != nil && cur.parentIndex != InvalidIndex; {
		segments = append(segments, cur.name)
		parentIdx := vm.objTree.ClosestNamedAncestor(cur)
		if parentIdx == InvalidIndex {
			break
		}
		cur = vm.objTree.ObjectAt(parentIdx)
	}

	var buf bytes.Buffer
	buf.WriteByte('\\')
	for i := len(segments) - 1; i >= 0; i-- {
		buf.Write(segments[i][:])
	}
	return buf.String()
}
