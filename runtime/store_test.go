package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

func TestNewStoreFlattensLocals(t *testing.T) {
	m := buildModule(testFunc{
		params: i32s(1),
		locals: []wasm.LocalEntry{
			{Count: 2, ValType: wasm.ValI32},
			{Count: 0, ValType: wasm.ValI64},
			{Count: 1, ValType: wasm.ValI64},
		},
		body: []wasm.Instruction{end},
	})

	s, err := NewStore(m)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	fn, ok := s.Func(0)
	require.True(t, ok)
	internal, ok := fn.(*InternalFunc)
	require.True(t, ok)
	assert.Equal(t, []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI64}, internal.Code.Locals)
	assert.Equal(t, i32s(1), internal.Type.Params)
	assert.Len(t, internal.Code.Body, 1)

	_, ok = s.Func(1)
	assert.False(t, ok)
}

func TestNewStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		module *wasm.Module
		kind   errors.Kind
	}{
		{
			name: "missing type section",
			module: &wasm.Module{
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{{Code: []wasm.Instruction{end}}},
			},
			kind: errors.KindMissingSection,
		},
		{
			name: "type index out of range",
			module: &wasm.Module{
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{3},
				Code:  []wasm.FuncBody{{Code: []wasm.Instruction{end}}},
			},
			kind: errors.KindInvalidTypeIndex,
		},
		{
			name: "float param",
			module: &wasm.Module{
				Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValF32}}},
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{{Code: []wasm.Instruction{end}}},
			},
			kind: errors.KindUnsupported,
		},
		{
			name: "multi value",
			module: &wasm.Module{
				Types: []wasm.FuncType{{Results: i32s(2)}},
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{{Code: []wasm.Instruction{end}}},
			},
			kind: errors.KindUnsupported,
		},
		{
			name: "float local",
			module: &wasm.Module{
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{0},
				Code: []wasm.FuncBody{{
					Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValF64}},
					Code:   []wasm.Instruction{end},
				}},
			},
			kind: errors.KindUnsupported,
		},
		{
			name: "imported function with bad type index",
			module: &wasm.Module{
				Types:   []wasm.FuncType{{}},
				Imports: []wasm.Import{{Module: "env", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}}},
			},
			kind: errors.KindInvalidTypeIndex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.module)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}

func TestNewStoreInvalidTypeIndexPath(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 7},
		Code:  []wasm.FuncBody{{Code: []wasm.Instruction{end}}, {Code: []wasm.Instruction{end}}},
	}
	_, err := NewStore(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "func[1]")
}

func TestNewStoreWithoutCode(t *testing.T) {
	s, err := NewStore(&wasm.Module{Types: []wasm.FuncType{{}}, Funcs: []uint32{0}})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	s, err = NewStore(&wasm.Module{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestNewStoreImportsFirst(t *testing.T) {
	m := buildModule(addFunc)
	m.Imports = []wasm.Import{
		{Module: "env", Name: "mem", Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.Limits{Min: 1}}},
		{Module: "env", Name: "log", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
	}

	s, err := NewStore(m)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	fn, _ := s.Func(0)
	host, ok := fn.(*HostFunc)
	require.True(t, ok)
	assert.Equal(t, "env", host.Module)
	assert.Equal(t, "log", host.Name)
	assert.Equal(t, "(i32, i32) -> i32", host.FuncType().String())

	fn, _ = s.Func(1)
	assert.IsType(t, &InternalFunc{}, fn)
}
