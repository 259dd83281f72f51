package aml

import (
	"bytes"
	"testing"
)

func newLiteral(tree *ObjectTree, opcode uint16, value interface{}) *Object {
	obj := tree.newNamedObject(opcode, 0, [amlNameLen]byte{})
	obj.value = value
	return obj
}

func TestReadConst(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree

	specs := []struct {
		name string
		obj  *Object
		want *amlValue
	}{
		{"Zero", newLiteral(tree, pOpZero, nil), intValue(0)},
		{"One", newLiteral(tree, pOpOne, nil), intValue(1)},
		{"Ones 32-bit", newLiteral(tree, pOpOnes, nil), intValue(0xffffffff)},
		{"Byte", newLiteral(tree, pOpBytePrefix, uint64(42)), intValue(42)},
		{"String", newLiteral(tree, pOpStringPrefix, "hi"), strValue("hi")},
	}

	for _, spec := range specs {
		got, err := vm.readConst(spec.obj)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", spec.name, err)
			continue
		}
		if got.kind != spec.want.kind {
			t.Errorf("%s: expected kind %v; got %v", spec.name, spec.want.kind, got.kind)
			continue
		}
		switch got.kind {
		case valueKindInteger:
			if got.num != spec.want.num {
				t.Errorf("%s: expected %d; got %d", spec.name, spec.want.num, got.num)
			}
		case valueKindString:
			if got.str != spec.want.str {
				t.Errorf("%s: expected %q; got %q", spec.name, spec.want.str, got.str)
			}
		}
	}
}

func TestOnesValue(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)

	vm.sizeOfIntInBits = 32
	if got := vm.onesValue(); got != 0xffffffff {
		t.Errorf("expected 32-bit Ones; got %#x", got)
	}

	vm.sizeOfIntInBits = 64
	if got := vm.onesValue(); got != 0xffffffffffffffff {
		t.Errorf("expected 64-bit Ones; got %#x", got)
	}
}

func TestLocalAndArgBoxes(t *testing.T) {
	ws := &WalkState{}

	b1 := ws.localBox(3)
	b2 := ws.localBox(3)
	if b1 != b2 {
		t.Error("expected localBox to return the same box across calls for the same index")
	}
	if b1.v.kind != valueKindUninitialized {
		t.Error("expected a freshly created local to be Uninitialized")
	}

	a1 := ws.argBox(2)
	a2 := ws.argBox(2)
	if a1 != a2 {
		t.Error("expected argBox to return the same box across calls for the same index")
	}
}

func TestResolveTarget(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)

	named := tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'F', 'O', 'O', '_'})
	tree.append(root, named)

	resolved := newLiteral(tree, pOpIntResolvedNamePath, uint32(named.index))
	if got := vm.resolveTarget(resolved); got != named {
		t.Error("expected a ResolvedNamePath to resolve directly via its stored index")
	}

	unresolved := newLiteral(tree, pOpIntNamePath, []byte("FOO_"))
	unresolved.parentIndex = 0
	if got := vm.resolveTarget(unresolved); got != named {
		t.Error("expected an unresolved NamePath to be looked up relative to its parent")
	}

	plain := newLiteral(tree, pOpBytePrefix, uint64(1))
	if got := vm.resolveTarget(plain); got != plain {
		t.Error("expected a non-namepath object to be returned unchanged")
	}
}

func TestResolveBox(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)
	ws := &WalkState{vm: vm}

	local := newLiteral(tree, pOpLocal0, nil)
	if b, err := vm.resolveBox(ws, local); err != nil || b != ws.localBox(0) {
		t.Errorf("expected resolveBox(Local0) to return ws.localBox(0); got %v, %v", b, err)
	}

	arg := newLiteral(tree, pOpArg0, nil)
	if b, err := vm.resolveBox(ws, arg); err != nil || b != ws.argBox(0) {
		t.Errorf("expected resolveBox(Arg0) to return ws.argBox(0); got %v, %v", b, err)
	}

	named := tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'F', 'O', 'O', '_'})
	tree.append(root, named)
	if b, err := vm.resolveBox(ws, named); err != nil || b != vm.namedBox(named) {
		t.Errorf("expected resolveBox(Name) to return the named box; got %v, %v", b, err)
	}

	field := tree.newNamedObject(pOpIntNamedField, 0, [amlNameLen]byte{'F', 'L', 'D', '_'})
	if _, err := vm.resolveBox(ws, field); err == nil {
		t.Error("expected resolveBox on a field to fail; fields are not addressable as boxes")
	}
}

func TestExecIf(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)
	ws := &WalkState{vm: vm}

	// If (cond) { THEN } Else { ELSE }: each branch body evaluates one of two
	// Names declared at the root; both branches must run without error.
	thenTarget := tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'T', 'H', 'E', 'N'})
	tree.append(root, thenTarget)
	elseTarget := tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'E', 'L', 'S', 'E'})
	tree.append(root, elseTarget)

	buildIf := func(cond uint64) *Object {
		stmt := tree.newNamedObject(pOpIf, 0, [amlNameLen]byte{})
		condObj := newLiteral(tree, pOpBytePrefix, cond)
		tree.append(stmt, condObj)

		thenBlock := tree.newNamedObject(pOpIntScopeBlock, 0, [amlNameLen]byte{})
		thenStmt := tree.newNamedObject(pOpIntNamePath, 0, [amlNameLen]byte{})
		thenStmt.value = []byte("THEN")
		thenStmt.parentIndex = 0
		tree.append(thenBlock, thenStmt)
		tree.append(stmt, thenBlock)

		elseBlock := tree.newNamedObject(pOpIntScopeBlock, 0, [amlNameLen]byte{})
		elseStmt := tree.newNamedObject(pOpIntNamePath, 0, [amlNameLen]byte{})
		elseStmt.value = []byte("ELSE")
		elseStmt.parentIndex = 0
		tree.append(elseBlock, elseStmt)
		tree.append(stmt, elseBlock)
		tree.append(root, stmt)

		return stmt
	}

	if _, err := vm.execIf(ws, buildIf(1)); err != nil {
		t.Fatalf("unexpected error (true branch): %v", err)
	}
	if _, err := vm.execIf(ws, buildIf(0)); err != nil {
		t.Fatalf("unexpected error (false branch): %v", err)
	}
}

func TestExecWhileBreak(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	ws := &WalkState{vm: vm}

	// While (1) { Break }
	stmt := tree.newNamedObject(pOpWhile, 0, [amlNameLen]byte{})
	cond := newLiteral(tree, pOpOne, nil)
	tree.append(stmt, cond)
	body := tree.newNamedObject(pOpIntScopeBlock, 0, [amlNameLen]byte{})
	brk := tree.newNamedObject(pOpBreak, 0, [amlNameLen]byte{})
	tree.append(body, brk)
	tree.append(stmt, body)

	flow, err := vm.execWhile(ws, stmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow != ctrlFlowNext {
		t.Errorf("expected execWhile to report ctrlFlowNext after a Break; got %v", flow)
	}
	if ws.ctrlFlow != ctrlFlowNext {
		t.Errorf("expected the WalkState's ctrlFlow to be reset to Next after a Break; got %v", ws.ctrlFlow)
	}
}

func TestExecWhileNeverRuns(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	ws := &WalkState{vm: vm}

	// While (0) { Fatal } -- the body must never execute.
	stmt := tree.newNamedObject(pOpWhile, 0, [amlNameLen]byte{})
	cond := newLiteral(tree, pOpZero, nil)
	tree.append(stmt, cond)
	body := tree.newNamedObject(pOpIntScopeBlock, 0, [amlNameLen]byte{})
	fatal := tree.newNamedObject(pOpFatal, 0, [amlNameLen]byte{})
	tree.append(body, fatal)
	tree.append(stmt, body)

	if _, err := vm.execWhile(ws, stmt); err != nil {
		t.Fatalf("expected a false condition to skip the body entirely; got error: %v", err)
	}
}

func TestEvalMethodCall(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)

	method := tree.newNamedObject(pOpMethod, 0, [amlNameLen]byte{'F', 'O', 'O', '_'})
	tree.append(root, method)
	ret := tree.newNamedObject(pOpReturn, 0, [amlNameLen]byte{})
	tree.append(method, ret)
	lit := newLiteral(tree, pOpBytePrefix, uint64(5))
	tree.append(ret, lit)

	call := newLiteral(tree, pOpIntMethodCall, uint32(method.index))

	v, err := vm.evalMethodCall(nil, call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, convErr := v.asInteger()
	if convErr != nil || got != 5 {
		t.Fatalf("expected method call to return 5; got %v (err %v)", got, convErr)
	}
}
