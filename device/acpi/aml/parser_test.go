package aml

import (
	"acpicore/device/acpi/table"
	"io/ioutil"
	"testing"
	"unsafe"
)

func TestParser(t *testing.T) {
	// Name(CNT0, 42)
	nameStmt := []byte{byte(pOpName), 'C', 'N', 'T', '0', byte(pOpBytePrefix), 42}

	// Device(DEV0) { Name(_HID, 42) }
	innerName := []byte{byte(pOpName), '_', 'H', 'I', 'D', byte(pOpBytePrefix), 42}
	devBody := append([]byte{'D', 'E', 'V', '0'}, innerName...)
	devPkgLen := byte(len(devBody) + 1) // +1 for the pkgLen lead byte itself
	devStmt := append([]byte{extOpPrefix, byte(pOpDevice - 0xff), devPkgLen}, devBody...)

	payload := append(append([]byte{}, nameStmt...), devStmt...)

	tree, header := mockParserPayload(payload)
	tree.CreateDefaultScopes(0)

	p := NewParser(ioutil.Discard, tree)
	if err := p.ParseAML(0, "DSDT", header); err != nil {
		t.Fatalf("unexpected error parsing AML: %v", err)
	}

	cnt := tree.ObjectAt(tree.Find(0, []byte("CNT0")))
	if cnt == nil {
		t.Fatal("expected to find CNT0 in the namespace")
	}
	// Arg 0 of a named object is its name path; arg 1 is the declared data.
	if v, ok := tree.ArgAt(cnt, 1).value.(uint64); !ok || v != 42 {
		t.Fatalf("expected CNT0 to hold 42; got %#v", tree.ArgAt(cnt, 1).value)
	}

	dev := tree.ObjectAt(tree.Find(0, []byte("DEV0")))
	if dev == nil || dev.opcode != pOpDevice {
		t.Fatal("expected to find a Device named DEV0 in the namespace")
	}

	hid := tree.ObjectAt(tree.Find(0, []byte("DEV0_HID")))
	if hid == nil {
		t.Fatal("expected to find _HID nested under DEV0")
	}
	if v, ok := tree.ArgAt(hid, 1).value.(uint64); !ok || v != 42 {
		t.Fatalf("expected _HID to hold 42; got %#v", tree.ArgAt(hid, 1).value)
	}
}

func TestParsePkgLength(t *testing.T) {
	specs := []struct {
		payload []byte
		exp     uint32
	}{
		// lead byte bits (6:7) indicate 1 extra byte for the len. The
		// parsed length will use bits 0:3 from the lead byte plus
		// the full 8 bits of the following byte.
		{
			[]byte{1<<6 | 7, 255},
			4087,
		},
		// lead byte bits (6:7) indicate 2 extra bytes for the len.
		{
			[]byte{2<<6 | 8, 255, 128},
			528376,
		},
		// lead byte bits (6:7) indicate 3 extra bytes for the len.
		{
			[]byte{3<<6 | 6, 255, 128, 42},
			44568566,
		},
	}

	p := &Parser{errWriter: ioutil.Discard}

	for specIndex, spec := range specs {
		mockReaderPayload(&p.r, spec.payload)
		got, res := p.parsePkgLength()
		if res != parseResultOk {
			t.Errorf("[spec %d] parsePkgLength returned a failure result", specIndex)
			continue
		}

		if got != spec.exp {
			t.Errorf("[spec %d] expected parsePkgLength to return %d; got %d", specIndex, spec.exp, got)
		}
	}
}

func TestParsePkgLengthErrors(t *testing.T) {
	specs := [][]byte{
		// lead byte bits (6:7) indicate 1 extra byte that is missing
		{1 << 6},
		// lead byte bits (6:7) indicate 2 extra bytes, 1st then 2nd missing
		{2 << 6},
		{2 << 6, 0x1},
		// lead byte bits (6:7) indicate 3 extra bytes, each missing in turn
		{3 << 6},
		{3 << 6, 0x1},
		{3 << 6, 0x1, 0x2},
	}

	p := &Parser{errWriter: ioutil.Discard}

	for specIndex, spec := range specs {
		mockReaderPayload(&p.r, spec)
		if _, res := p.parsePkgLength(); res == parseResultOk {
			t.Errorf("[spec %d] expected parsePkgLength to fail", specIndex)
		}
	}
}

func TestParserErrorHandling(t *testing.T) {
	t.Run("invalid opcode", func(t *testing.T) {
		tree, header := mockParserPayload([]byte{0x5b, 0x00})
		tree.CreateDefaultScopes(0)

		p := NewParser(ioutil.Discard, tree)
		if err := p.ParseAML(42, "DSDT", header); err == nil {
			t.Fatal("expected ParseAML to return an error for an invalid extended opcode")
		}
	})

	t.Run("incomplete extended opcode", func(t *testing.T) {
		tree, header := mockParserPayload([]byte{0x5b})
		tree.CreateDefaultScopes(0)

		p := NewParser(ioutil.Discard, tree)
		if err := p.ParseAML(42, "DSDT", header); err == nil {
			t.Fatal("expected ParseAML to return an error for a truncated extended opcode")
		}
	})

	t.Run("incomplete buffer arg list", func(t *testing.T) {
		tree, header := mockParserPayload([]byte{byte(pOpBuffer), 0x10})
		tree.CreateDefaultScopes(0)

		p := NewParser(ioutil.Discard, tree)
		if err := p.ParseAML(42, "DSDT", header); err == nil {
			t.Fatal("expected ParseAML to return an error for an incomplete Buffer arg list")
		}
	})

	t.Run("unknown scope target", func(t *testing.T) {
		payload := []byte{
			byte(pOpScope),
			0x06, // pkglen
			'F', 'O', 'O', 'F',
		}
		tree, header := mockParserPayload(payload)
		tree.CreateDefaultScopes(0)

		p := NewParser(ioutil.Discard, tree)
		if err := p.ParseAML(42, "DSDT", header); err == nil {
			t.Fatal("expected ParseAML to return an error for a scope referencing an unknown target")
		}
	})
}

// mockParserPayload builds a fresh ObjectTree plus a synthetic in-memory
// SDTHeader whose bytes immediately following the header are payload, ready
// to be handed to Parser.ParseAML.
func mockParserPayload(payload []byte) (*ObjectTree, *table.SDTHeader) {
	hdrLen := int(unsafe.Sizeof(table.SDTHeader{}))
	buf := make([]byte, hdrLen+len(payload))
	copy(buf[hdrLen:], payload)

	hdr := (*table.SDTHeader)(unsafe.Pointer(&buf[0]))
	hdr.Length = uint32(len(buf))

	return NewObjectTree(), hdr
}

// mockReaderPayload points r directly at a copy of payload, bypassing the
// SDTHeader prefix ParseAML normally skips over; used by tests that exercise
// a single Parser method in isolation.
func mockReaderPayload(r *amlStreamReader, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	r.Init(uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 0)
}
