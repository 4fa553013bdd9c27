package wasm_test

import (
	"strings"
	"testing"

	"github.com/wippyai/wasm-interp/wasm"
)

func ptrTo[T any](v T) *T { return &v }

func endBody() wasm.FuncBody {
	return wasm.FuncBody{Code: []wasm.Instruction{{Opcode: wasm.OpEnd}}}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		module  *wasm.Module
		wantErr string
	}{
		{
			name:   "empty module",
			module: &wasm.Module{},
		},
		{
			name: "functions without code section",
			module: &wasm.Module{
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{0, 0},
			},
		},
		{
			name: "code count mismatch",
			module: &wasm.Module{
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{0, 0},
				Code:  []wasm.FuncBody{endBody()},
			},
			wantErr: "code section has 1 entries",
		},
		{
			name: "duplicate export",
			module: &wasm.Module{
				Types:   []wasm.FuncType{{}},
				Funcs:   []uint32{0},
				Code:    []wasm.FuncBody{endBody()},
				Exports: []wasm.Export{{Name: "f", Idx: 0}, {Name: "f", Idx: 0}},
			},
			wantErr: "duplicate export",
		},
		{
			name: "export index left to instantiation",
			module: &wasm.Module{
				Exports: []wasm.Export{{Name: "f", Idx: 9}},
			},
		},
		{
			name: "start out of range",
			module: &wasm.Module{
				Start: ptrTo(uint32(1)),
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{endBody()},
			},
			wantErr: "start function 1 out of range",
		},
		{
			name: "start with params",
			module: &wasm.Module{
				Start: ptrTo(uint32(0)),
				Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{endBody()},
			},
			wantErr: "start function must have signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.module.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseModuleValidate(t *testing.T) {
	if _, err := wasm.ParseModuleValidate(addModule); err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}

	m := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Funcs:   []uint32{0},
		Code:    []wasm.FuncBody{endBody()},
		Exports: []wasm.Export{{Name: "x"}, {Name: "x"}},
	}
	if _, err := wasm.ParseModuleValidate(m.Encode()); err == nil {
		t.Error("expected duplicate export error")
	}
}
