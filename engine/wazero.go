package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// WazeroEngine runs modules on wazero. It is the reference the interpreter
// in package runtime is checked against.
type WazeroEngine struct {
	runtime wazero.Runtime
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// Compiler selects wazero's compiler backend instead of its interpreter.
	Compiler bool
}

// NewWazeroEngine creates an engine on wazero's interpreter.
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfigInterpreter()

	if cfg != nil {
		if cfg.Compiler {
			runtimeCfg = wazero.NewRuntimeConfigCompiler()
		}
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}

	return &WazeroEngine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}, nil
}

// LoadModule compiles a module binary.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "wazero compile")
	}
	Logger().Debug("compiled reference module",
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// WazeroModule is a compiled module that can be instantiated any number of times.
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// ExportNames returns the exported function names in sorted order.
func (m *WazeroModule) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates an anonymous instance. The module's start section runs;
// no _start export is called.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInvalidData, err, "wazero instantiate")
	}
	return &WazeroInstance{instance: mod}, nil
}

func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is a running module. It is not safe for concurrent use.
type WazeroInstance struct {
	instance api.Module
}

// Call invokes an exported function with interpreter values and converts the
// results back.
func (i *WazeroInstance) Call(ctx context.Context, name string, args ...runtime.Value) ([]runtime.Value, error) {
	fn := i.instance.ExportedFunction(name)
	if fn == nil {
		return nil, errors.ExportNotFound(name)
	}
	def := fn.Definition()

	params := def.ParamTypes()
	if len(args) != len(params) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("%s takes %d arguments, got %d", name, len(params), len(args)))
	}
	raw := make([]uint64, len(args))
	for j, arg := range args {
		if want := valType(params[j]); arg.Type() != want {
			return nil, errors.TypeMismatch(name,
				fmt.Sprintf("argument %d is %s, want %s", j, arg.Type(), want))
		}
		raw[j] = arg.Raw()
	}

	out, err := fn.Call(ctx, raw...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExecute, errors.KindInvalidData, err, "wazero call "+name)
	}

	results := def.ResultTypes()
	if len(results) == 0 {
		return nil, nil
	}
	values := make([]runtime.Value, len(results))
	for j, t := range results {
		v, err := runtime.FromRaw(valType(t), out[j])
		if err != nil {
			return nil, err
		}
		values[j] = v
	}
	return values, nil
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	err := i.instance.Close(ctx)
	i.instance = nil
	return err
}

func valType(t api.ValueType) wasm.ValType {
	switch t {
	case api.ValueTypeI32:
		return wasm.ValI32
	case api.ValueTypeI64:
		return wasm.ValI64
	case api.ValueTypeF32:
		return wasm.ValF32
	case api.ValueTypeF64:
		return wasm.ValF64
	case api.ValueTypeExternref:
		return wasm.ValExtern
	default:
		return wasm.ValType(t)
	}
}
