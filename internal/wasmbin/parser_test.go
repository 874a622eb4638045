package wasmbin

import (
	"errors"
	"testing"
)

// --- binary-builder helpers, shared with validate_test.go ---

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), []byte(s)...)
}

func wasmSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
}

// validUserProgram builds a minimal user program: one function
// user_entrypoint(i32) -> i32 that returns its argument, plus an exported
// memory, satisfying RequiredExports and DefaultUserLimits.
func validUserProgram() []byte {
	typeSec := wasmSection(1, []byte{0x01, 0x60, 0x01, byte(ValI32), 0x01, byte(ValI32)})
	funcSec := wasmSection(3, []byte{0x01, 0x00})
	memSec := wasmSection(5, []byte{0x01, 0x00, 0x01})

	exportPayload := uleb(2)
	exportPayload = append(exportPayload, wasmName("user_entrypoint")...)
	exportPayload = append(exportPayload, 0x00)
	exportPayload = append(exportPayload, uleb(0)...)
	exportPayload = append(exportPayload, wasmName("memory")...)
	exportPayload = append(exportPayload, 0x02)
	exportPayload = append(exportPayload, uleb(0)...)
	exportSec := wasmSection(7, exportPayload)

	body := []byte{0x00, byte(OpLocalGet), 0x00, byte(OpEnd)}
	codePayload := uleb(1)
	codePayload = append(codePayload, uleb(uint32(len(body)))...)
	codePayload = append(codePayload, body...)
	codeSec := wasmSection(10, codePayload)

	var out []byte
	out = append(out, wasmHeader()...)
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, memSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

func TestParseRejectsBadMagic(t *testing.T) {
	b := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, wasmHeader()[4:]...)
	if _, err := Parse(b); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	b := append(append([]byte{}, wasmHeader()[:4]...), 0x02, 0x00, 0x00, 0x00)
	if _, err := Parse(b); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("err = %v, want ErrBadVersion", err)
	}
}

func TestParseRejectsTruncatedInput(t *testing.T) {
	if _, err := Parse(wasmHeader()[:4]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestParseEmptyModuleHeaderOnly(t *testing.T) {
	m, err := Parse(wasmHeader())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Functions) != 0 || len(m.Types) != 0 {
		t.Fatalf("expected an empty module, got %+v", m)
	}
}

func TestParseValidUserProgram(t *testing.T) {
	m, err := Parse(validUserProgram())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Types) != 1 {
		t.Fatalf("expected 1 type, got %d", len(m.Types))
	}
	if len(m.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(m.Functions))
	}
	if len(m.Functions[0].Body) != 2 {
		t.Fatalf("expected local.get + end, got %d ops", len(m.Functions[0].Body))
	}
	if len(m.Exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(m.Exports))
	}
}

func TestParseRejectsDuplicateSection(t *testing.T) {
	typeSec := wasmSection(1, []byte{0x00})
	b := append(append([]byte{}, wasmHeader()...), typeSec...)
	b = append(b, typeSec...)
	if _, err := Parse(b); !errors.Is(err, ErrDuplicateSection) {
		t.Fatalf("err = %v, want ErrDuplicateSection", err)
	}
}

func TestParseRejectsOutOfOrderSections(t *testing.T) {
	funcSec := wasmSection(3, []byte{0x00})
	typeSec := wasmSection(1, []byte{0x00})
	b := append(append([]byte{}, wasmHeader()...), funcSec...)
	b = append(b, typeSec...)
	if _, err := Parse(b); !errors.Is(err, ErrSectionOrder) {
		t.Fatalf("err = %v, want ErrSectionOrder", err)
	}
}

func TestParseRejectsDisallowedOpcode(t *testing.T) {
	typeSec := wasmSection(1, []byte{0x01, 0x60, 0x00, 0x00})
	funcSec := wasmSection(3, []byte{0x01, 0x00})
	body := []byte{0x00, 0xFD, byte(OpEnd)} // SIMD prefix, disallowed
	codePayload := uleb(1)
	codePayload = append(codePayload, uleb(uint32(len(body)))...)
	codePayload = append(codePayload, body...)
	codeSec := wasmSection(10, codePayload)

	b := append(append([]byte{}, wasmHeader()...), typeSec...)
	b = append(b, funcSec...)
	b = append(b, codeSec...)
	if _, err := Parse(b); !errors.Is(err, ErrBadOpcode) {
		t.Fatalf("err = %v, want ErrBadOpcode", err)
	}
}
