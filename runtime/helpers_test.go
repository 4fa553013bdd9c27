package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-interp/wasm"
)

type testFunc struct {
	export  string
	params  []wasm.ValType
	results []wasm.ValType
	locals  []wasm.LocalEntry
	body    []wasm.Instruction
}

func buildModule(funcs ...testFunc) *wasm.Module {
	m := &wasm.Module{}
	for i, f := range funcs {
		ti := m.AddType(wasm.FuncType{Params: f.params, Results: f.results})
		m.Funcs = append(m.Funcs, ti)
		m.Code = append(m.Code, wasm.FuncBody{Locals: f.locals, Code: f.body})
		if f.export != "" {
			m.Exports = append(m.Exports, wasm.Export{Name: f.export, Kind: wasm.KindFunc, Idx: uint32(i)})
		}
	}
	return m
}

// instantiate round-trips the module through the binary encoder and decoder.
func instantiate(t *testing.T, cfg Config, funcs ...testFunc) *Runtime {
	t.Helper()
	r, err := InstantiateWithConfig(buildModule(funcs...).Encode(), cfg)
	require.NoError(t, err)
	return r
}

func i32s(n int) []wasm.ValType {
	out := make([]wasm.ValType, n)
	for i := range out {
		out[i] = wasm.ValI32
	}
	return out
}

func op(code byte) wasm.Instruction { return wasm.Instruction{Opcode: code} }
func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}
func i64c(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
}
func localGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: idx}}
}
func localSet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: idx}}
}
func localTee(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: idx}}
}
func call(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}
}

var end = op(wasm.OpEnd)

var addFunc = testFunc{
	export:  "add",
	params:  i32s(2),
	results: i32s(1),
	body:    []wasm.Instruction{localGet(0), localGet(1), op(wasm.OpI32Add), end},
}
