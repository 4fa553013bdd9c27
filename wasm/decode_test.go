package wasm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/wippyai/wasm-interp/wasm"
)

// addModule is the binary form of
//
//	(module (func (export "add") (param i32 i32) (result i32)
//	  local.get 0 local.get 1 i32.add))
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestParseMinimalModule(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if m.Types != nil {
		t.Errorf("Types = %v, want nil for absent section", m.Types)
	}
	if len(m.Code) != 0 || len(m.Funcs) != 0 {
		t.Errorf("expected no functions, got %d funcs %d bodies", len(m.Funcs), len(m.Code))
	}
}

func TestParseAddModule(t *testing.T) {
	m, err := wasm.ParseModule(addModule)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	if len(m.Types) != 1 {
		t.Fatalf("expected 1 type, got %d", len(m.Types))
	}
	if got := m.Types[0].String(); got != "(i32, i32) -> i32" {
		t.Errorf("type = %s, want (i32, i32) -> i32", got)
	}
	if len(m.Funcs) != 1 || m.Funcs[0] != 0 {
		t.Errorf("Funcs = %v, want [0]", m.Funcs)
	}
	if len(m.Exports) != 1 || m.Exports[0].Name != "add" || m.Exports[0].Kind != wasm.KindFunc {
		t.Errorf("Exports = %+v", m.Exports)
	}

	code := m.Code[0].Code
	want := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	}
	if len(code) != len(want) {
		t.Fatalf("decoded %d instructions, want %d", len(code), len(want))
	}
	for i := range want {
		if code[i].Opcode != want[i].Opcode || code[i].Imm != want[i].Imm {
			t.Errorf("instruction %d = %v, want %v", i, code[i], want[i])
		}
	}
}

func TestParseEmptyTypeSection(t *testing.T) {
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x01, 0x00,
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if m.Types == nil || len(m.Types) != 0 {
		t.Errorf("Types = %#v, want non-nil empty slice", m.Types)
	}
}

func TestParseLocals(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{{
			Locals: []wasm.LocalEntry{{Count: 2, ValType: wasm.ValI32}, {Count: 1, ValType: wasm.ValI64}},
			Code:   []wasm.Instruction{{Opcode: wasm.OpEnd}},
		}},
	}

	parsed, err := wasm.ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	locals := parsed.Code[0].Locals
	if len(locals) != 2 {
		t.Fatalf("expected 2 local groups, got %d", len(locals))
	}
	if locals[0].Count != 2 || locals[0].ValType != wasm.ValI32 {
		t.Errorf("locals[0] = %+v", locals[0])
	}
	if locals[1].Count != 1 || locals[1].ValType != wasm.ValI64 {
		t.Errorf("locals[1] = %+v", locals[1])
	}
}

func TestParseErrors(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	withHeader := func(b ...byte) []byte {
		return append(append([]byte{}, header...), b...)
	}

	tests := []struct {
		name    string
		data    []byte
		target  error
		message string
	}{
		{name: "invalid magic", data: []byte{0, 0, 0, 0, 1, 0, 0, 0}, target: wasm.ErrInvalidMagic},
		{name: "invalid version", data: []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}, target: wasm.ErrInvalidVersion},
		{name: "truncated header", data: []byte{0x00, 0x61, 0x73}, message: "header"},
		{name: "out of order", data: withHeader(0x03, 0x01, 0x00, 0x01, 0x01, 0x00), message: "out of order"},
		{name: "unknown section", data: withHeader(0x0e, 0x00), message: "unknown section"},
		{name: "trailing bytes", data: withHeader(0x01, 0x02, 0x00, 0x00), message: "trailing"},
		{name: "section too long", data: withHeader(0x01, 0x05, 0x00), message: "section data"},
		{name: "bad func form", data: withHeader(0x01, 0x04, 0x01, 0x61, 0x00, 0x00), message: "expected func type"},
		{name: "body without end", data: withHeader(0x01, 0x04, 0x01, 0x60, 0x00, 0x00, 0x03, 0x02, 0x01, 0x00, 0x0a, 0x04, 0x01, 0x02, 0x00, 0x01), message: "does not end"},
		{name: "unknown opcode", data: withHeader(0x01, 0x04, 0x01, 0x60, 0x00, 0x00, 0x03, 0x02, 0x01, 0x00, 0x0a, 0x05, 0x01, 0x03, 0x00, 0x06, 0x0b), message: "unknown opcode: 0x06"},
		{name: "bad export kind", data: withHeader(0x07, 0x05, 0x01, 0x01, 0x61, 0x09, 0x00), message: "invalid export kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.ParseModule(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error = %v, want %v", err, tt.target)
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not contain %q", err, tt.message)
			}
		})
	}
}

func TestParseKeepsRawSections(t *testing.T) {
	// memory section: one memory, min 1
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x00, 0x05, 0x04, 'n', 'a', 'm', 'e',
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(m.Sections) != 1 || m.Sections[0].ID != wasm.SectionMemory {
		t.Fatalf("Sections = %+v", m.Sections)
	}
	if len(m.CustomSections) != 1 || m.CustomSections[0].Name != "name" {
		t.Errorf("CustomSections = %+v", m.CustomSections)
	}

	again, err := wasm.ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again.Sections) != 1 || string(again.Sections[0].Data) != string(m.Sections[0].Data) {
		t.Errorf("raw section not preserved: %+v", again.Sections)
	}
}
