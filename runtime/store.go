package runtime

import (
	"fmt"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// FuncInst is a function instance held by the store.
// Implemented by *InternalFunc and *HostFunc only.
type FuncInst interface {
	FuncType() wasm.FuncType
	funcInst()
}

// Func is the executable part of a defined function.
// Locals holds one entry per declared local slot, params excluded.
type Func struct {
	Locals []wasm.ValType
	Body   []wasm.Instruction
}

// InternalFunc is a function defined by the module.
type InternalFunc struct {
	Code Func
	Type wasm.FuncType
}

func (f *InternalFunc) FuncType() wasm.FuncType { return f.Type }
func (*InternalFunc) funcInst()                 {}

// HostFunc is an imported function. Imports are not linked, so it only
// records what the module asked for; invoking it fails.
type HostFunc struct {
	Module string
	Name   string
	Type   wasm.FuncType
}

func (f *HostFunc) FuncType() wasm.FuncType { return f.Type }
func (*HostFunc) funcInst()                 {}

// Store owns every function instance of one module, indexed by function index.
type Store struct {
	funcs []FuncInst
}

// NewStore builds function instances from a decoded module.
// Imported functions take the lowest indices, followed by defined
// functions paired positionally with their code entries.
func NewStore(m *wasm.Module) (*Store, error) {
	s := &Store{}

	funcIdx := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		ft, err := resolveType(m, funcIdx, imp.Desc.TypeIdx)
		if err != nil {
			return nil, err
		}
		s.funcs = append(s.funcs, &HostFunc{Module: imp.Module, Name: imp.Name, Type: ft})
		funcIdx++
	}

	if len(m.Code) == 0 {
		return s, nil
	}

	for i, body := range m.Code {
		if i >= len(m.Funcs) {
			return nil, errors.InvalidData(errors.PhaseInstantiate, []string{fmt.Sprintf("code[%d]", i)},
				"code entry without a function declaration")
		}
		ft, err := resolveType(m, funcIdx, m.Funcs[i])
		if err != nil {
			return nil, err
		}
		locals, err := flattenLocals(funcIdx, body.Locals)
		if err != nil {
			return nil, err
		}
		s.funcs = append(s.funcs, &InternalFunc{
			Type: ft,
			Code: Func{Locals: locals, Body: body.Code},
		})
		funcIdx++
	}

	return s, nil
}

func resolveType(m *wasm.Module, funcIdx int, typeIdx uint32) (wasm.FuncType, error) {
	if m.Types == nil {
		return wasm.FuncType{}, errors.MissingSection("type")
	}
	if int(typeIdx) >= len(m.Types) {
		return wasm.FuncType{}, errors.InvalidTypeIndex(funcIdx, typeIdx, len(m.Types))
	}
	ft := m.Types[typeIdx]
	if len(ft.Results) > 1 {
		return wasm.FuncType{}, errors.Unsupported(errors.PhaseInstantiate,
			fmt.Sprintf("func[%d]: %d results", funcIdx, len(ft.Results)))
	}
	for _, t := range ft.Params {
		if !isNumeric(t) {
			return wasm.FuncType{}, errors.Unsupported(errors.PhaseInstantiate,
				fmt.Sprintf("func[%d]: param type %s", funcIdx, t))
		}
	}
	for _, t := range ft.Results {
		if !isNumeric(t) {
			return wasm.FuncType{}, errors.Unsupported(errors.PhaseInstantiate,
				fmt.Sprintf("func[%d]: result type %s", funcIdx, t))
		}
	}
	return ft, nil
}

// flattenLocals expands run-length local groups into one type per slot.
func flattenLocals(funcIdx int, entries []wasm.LocalEntry) ([]wasm.ValType, error) {
	var n int
	for _, e := range entries {
		n += int(e.Count)
	}
	locals := make([]wasm.ValType, 0, n)
	for _, e := range entries {
		if !isNumeric(e.ValType) {
			return nil, errors.Unsupported(errors.PhaseInstantiate,
				fmt.Sprintf("func[%d]: local type %s", funcIdx, e.ValType))
		}
		for j := uint32(0); j < e.Count; j++ {
			locals = append(locals, e.ValType)
		}
	}
	return locals, nil
}

func isNumeric(t wasm.ValType) bool {
	return t == wasm.ValI32 || t == wasm.ValI64
}

// Func returns the function instance at idx.
func (s *Store) Func(idx uint32) (FuncInst, bool) {
	if int(idx) >= len(s.funcs) {
		return nil, false
	}
	return s.funcs[idx], true
}

// Len returns the number of function instances.
func (s *Store) Len() int {
	return len(s.funcs)
}
