package aml

import (
	"bytes"
	"testing"
)

// genTestNamespace builds:
//
//	\
//	 _SB_
//	      DEV0 (Device)
//	           _HID (Name, packed EISA ID for "PNP0A03")
//	           _STA (Method)
//	      CNT0 (Name, Integer 42)
//
// returning the VM plus each node's Object for direct inspection.
func genTestNamespace() (vm *VM, sb, dev, hid, sta, cnt *Object) {
	vm = NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree

	sb = tree.ObjectAt(tree.Find(0, []byte(`\_SB_`)))

	dev = tree.newNamedObject(pOpDevice, 0, [amlNameLen]byte{'D', 'E', 'V', '0'})
	tree.append(sb, dev)

	hid = tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'_', 'H', 'I', 'D'})
	tree.append(dev, hid)
	eisaID, _ := EncodeEISAID("PNP0A03")
	vm.namedBox(hid).v = intValue(uint64(eisaID))

	sta = tree.newNamedObject(pOpMethod, 0, [amlNameLen]byte{'_', 'S', 'T', 'A'})
	tree.append(dev, sta)

	cnt = tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'C', 'N', 'T', '0'})
	tree.append(sb, cnt)
	vm.namedBox(cnt).v = intValue(42)

	return vm, sb, dev, hid, sta, cnt
}

func TestEvaluate(t *testing.T) {
	vm, _, dev, _, _, _ := genTestNamespace()

	t.Run("plain name", func(t *testing.T) {
		v, err := vm.Evaluate(`\_SB_CNT0`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, convErr := v.asInteger()
		if convErr != nil || got != 42 {
			t.Fatalf("expected 42; got %v (err: %v)", got, convErr)
		}
	})

	t.Run("_HID normalized to PNP string", func(t *testing.T) {
		v, err := vm.Evaluate(`\_SB_DEV0_HID`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.kind != valueKindString || v.str != "PNP0A03" {
			t.Fatalf("expected PNP0A03; got %#v", v)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		if _, err := vm.Evaluate(`\_SB_NOPE`); err == nil {
			t.Fatal("expected an error for an unresolvable path")
		}
	})

	_ = dev
}

func TestGetType(t *testing.T) {
	vm, sb, dev, hid, sta, cnt := genTestNamespace()

	specs := []struct {
		path string
		want ObjectKind
	}{
		{`\_SB_`, KindScope},
		{`\_SB_DEV0`, KindDevice},
		{`\_SB_DEV0_STA`, KindMethod},
		{`\_SB_CNT0`, KindInteger},
		{`\_SB_NOPE`, KindUninitialized},
	}

	for _, spec := range specs {
		if got := vm.GetType(spec.path); got != spec.want {
			t.Errorf("GetType(%q): expected %v; got %v", spec.path, spec.want, got)
		}
	}

	_ = sb
	_ = dev
	_ = hid
	_ = sta
	_ = cnt
}

func TestGetParent(t *testing.T) {
	vm, _, _, _, _, _ := genTestNamespace()

	if got, want := vm.GetParent(`\_SB_DEV0_STA`), `\_SB_DEV0`; got != want {
		t.Errorf("expected parent %q; got %q", want, got)
	}
	if got, want := vm.GetParent(`\_SB_`), `\`; got != want {
		t.Errorf("expected parent %q; got %q", want, got)
	}
	if got := vm.GetParent(`\_SB_NOPE`); got != "" {
		t.Errorf("expected empty parent for an unresolvable path; got %q", got)
	}
}

func TestGetNextObject(t *testing.T) {
	vm, _, _, _, _, _ := genTestNamespace()

	first, ok := vm.GetNextObject(`\_SB_DEV0`, "")
	if !ok || first != `\_SB_DEV0_HID` {
		t.Fatalf("expected first child _HID; got %q, ok=%v", first, ok)
	}

	second, ok := vm.GetNextObject(`\_SB_DEV0`, first)
	if !ok || second != `\_SB_DEV0_STA` {
		t.Fatalf("expected second child _STA; got %q, ok=%v", second, ok)
	}

	if _, ok := vm.GetNextObject(`\_SB_DEV0`, second); ok {
		t.Fatal("expected no further children after _STA")
	}

	if _, ok := vm.GetNextObject(`\_SB_NOPE`, ""); ok {
		t.Fatal("expected ok=false for an unresolvable parent")
	}
}

func TestWalkNamespace(t *testing.T) {
	vm, _, _, _, _, _ := genTestNamespace()

	var visited []string
	vm.WalkNamespace(`\_SB_`, func(absPath string, kind ObjectKind) bool {
		visited = append(visited, absPath)
		return true
	})

	want := []string{`\_SB_`, `\_SB_DEV0`, `\_SB_DEV0_HID`, `\_SB_DEV0_STA`, `\_SB_CNT0`}
	if len(visited) != len(want) {
		t.Fatalf("expected %d visits; got %d (%v)", len(want), len(visited), visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit %d: expected %q; got %q", i, want[i], visited[i])
		}
	}
}

func TestWalkNamespaceEarlyStop(t *testing.T) {
	vm, _, _, _, _, _ := genTestNamespace()

	var visited []string
	vm.WalkNamespace(`\_SB_`, func(absPath string, kind ObjectKind) bool {
		visited = append(visited, absPath)
		return absPath != `\_SB_DEV0`
	})

	want := []string{`\_SB_`, `\_SB_DEV0`}
	if len(visited) != len(want) {
		t.Fatalf("expected walk to stop after %d visits; got %d (%v)", len(want), len(visited), visited)
	}
}
