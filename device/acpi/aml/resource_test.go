package aml

import (
	"bytes"
	"testing"
)

func TestDecodeResourcesSmallItem(t *testing.T) {
	// small item tag 0x22 (IRQ descriptor, length 2), two bytes of payload,
	// followed by the End Tag.
	buf := []byte{0x22, 0x01, 0x02, resourceEndTag, 0x00}
	descs, err := DecodeResources(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected exactly one descriptor; got %d", len(descs))
	}
	if descs[0].Kind != 0x22>>3 {
		t.Errorf("expected kind %d; got %d", 0x22>>3, descs[0].Kind)
	}
	if !bytes.Equal(descs[0].Data, []byte{0x01, 0x02}) {
		t.Errorf("expected payload [1 2]; got %v", descs[0].Data)
	}
}

func TestDecodeResourcesLargeItem(t *testing.T) {
	// large item tag 0x8a, 3-byte payload.
	buf := []byte{0x8a, 0x03, 0x00, 0x01, 0x02, 0x03, resourceEndTag, 0x00}
	descs, err := DecodeResources(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) != 1 || descs[0].Kind != 0x8a {
		t.Fatalf("expected a single large item of kind 0x8a; got %+v", descs)
	}
	if !bytes.Equal(descs[0].Data, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("expected payload [1 2 3]; got %v", descs[0].Data)
	}
}

func TestDecodeResourcesTruncated(t *testing.T) {
	if _, err := DecodeResources([]byte{0x22, 0x01}); err == nil {
		t.Error("expected a truncated small item to fail")
	}
	if _, err := DecodeResources([]byte{0x8a, 0x05, 0x00}); err == nil {
		t.Error("expected a truncated large item to fail")
	}
}

func TestEncodeResourcesRoundTrip(t *testing.T) {
	descs := []ResourceDescriptor{
		{Kind: 0x22 >> 3, Data: []byte{0x01, 0x02}},
		{Kind: 0x8a, Data: []byte{0x01, 0x02, 0x03}},
	}
	buf := EncodeResources(descs)
	got, err := DecodeResources(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(descs) {
		t.Fatalf("expected %d descriptors back; got %d", len(descs), len(got))
	}
	for i := range descs {
		if got[i].Kind != descs[i].Kind || !bytes.Equal(got[i].Data, descs[i].Data) {
			t.Errorf("descriptor %d: expected %+v; got %+v", i, descs[i], got[i])
		}
	}
}

func TestCurrentResources(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)

	dev := tree.newNamedObject(pOpDevice, 0, [amlNameLen]byte{'D', 'E', 'V', '0'})
	tree.append(root, dev)
	crs := tree.newNamedObject(pOpName, 0, [amlNameLen]byte{'_', 'C', 'R', 'S'})
	tree.append(dev, crs)
	vm.namedBox(crs).v = bufValue([]byte{0x22, 0x01, 0x02, resourceEndTag, 0x00})

	descs, err := vm.CurrentResources(nil, dev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected one decoded descriptor; got %d", len(descs))
	}
}

func TestPossibleResourcesMissing(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)

	dev := tree.newNamedObject(pOpDevice, 0, [amlNameLen]byte{'D', 'E', 'V', '0'})
	tree.append(root, dev)

	if _, err := vm.PossibleResources(nil, dev); err == nil {
		t.Fatal("expected a missing _PRS to fail")
	}
}

func TestSetCurrentResourcesMissing(t *testing.T) {
	vm := NewVM(&bytes.Buffer{}, nil)
	tree := vm.objTree
	root := tree.ObjectAt(0)

	dev := tree.newNamedObject(pOpDevice, 0, [amlNameLen]byte{'D', 'E', 'V', '0'})
	tree.append(root, dev)

	if err := vm.SetCurrentResources(nil, dev, nil); err == nil {
		t.Fatal("expected a missing _SRS to fail")
	}
}
