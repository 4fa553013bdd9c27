package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// Runtime executes the exported functions of one instantiated module.
// A Runtime is not safe for concurrent use.
type Runtime struct {
	ctx       context.Context
	module    *wasm.Module
	store     *Store
	exports   map[string]wasm.Export
	log       *zap.Logger
	stack     []Value
	callStack []*Frame
	cfg       Config
	steps     uint64
}

// ExportInfo describes one exported function.
type ExportInfo struct {
	Name  string
	Type  wasm.FuncType
	Index uint32
}

// Instantiate decodes a module binary and instantiates it with DefaultConfig.
func Instantiate(wasmBytes []byte) (*Runtime, error) {
	return InstantiateWithConfig(wasmBytes, DefaultConfig())
}

// InstantiateWithConfig decodes a module binary and instantiates it.
func InstantiateWithConfig(wasmBytes []byte, cfg Config) (*Runtime, error) {
	m, err := wasm.ParseModule(wasmBytes)
	if err != nil {
		return nil, errors.Decode(err)
	}
	return New(m, cfg)
}

// New instantiates an already decoded module. If the module declares a
// start function it runs before New returns.
func New(m *wasm.Module, cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.SkipValidation {
		if err := m.Validate(); err != nil {
			return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "validate module")
		}
	}

	store, err := NewStore(m)
	if err != nil {
		return nil, err
	}

	exports := make(map[string]wasm.Export, len(m.Exports))
	for _, exp := range m.Exports {
		exports[exp.Name] = exp
	}

	r := &Runtime{
		ctx:     context.Background(),
		module:  m,
		store:   store,
		exports: exports,
		cfg:     cfg,
		log:     cfg.logger(),
	}
	r.log.Debug("instantiated module",
		zap.Int("functions", store.Len()),
		zap.Int("exports", len(exports)))

	if m.Start != nil {
		if err := r.runStart(*m.Start); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Runtime) runStart(idx uint32) error {
	fn, ok := r.store.Func(idx)
	if !ok {
		return errors.FunctionNotFound(errors.PhaseInstantiate, idx, r.store.Len())
	}
	r.log.Debug("running start function", zap.Uint32("index", idx))
	r.steps = 0
	if _, err := r.invoke(idx, fn); err != nil {
		return errors.Wrap(errors.PhaseInstantiate, errors.KindOf(err), err, "start function")
	}
	return nil
}

// Call invokes the exported function name with args. It returns no values
// for a function without results and exactly one value otherwise.
func (r *Runtime) Call(name string, args ...Value) ([]Value, error) {
	return r.CallContext(context.Background(), name, args...)
}

// CallContext is Call with a context that can interrupt execution.
func (r *Runtime) CallContext(ctx context.Context, name string, args ...Value) ([]Value, error) {
	exp, ok := r.exports[name]
	if !ok {
		return nil, errors.ExportNotFound(name)
	}
	if exp.Kind != wasm.KindFunc {
		return nil, errors.UnsupportedExportKind(name, exp.Kind)
	}
	fn, ok := r.store.Func(exp.Idx)
	if !ok {
		return nil, errors.FunctionNotFound(errors.PhaseRuntime, exp.Idx, r.store.Len())
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}

	r.log.Debug("call", zap.String("export", name), zap.Int("args", len(args)))

	// Arguments go on the operand stack as given; the callee's frame takes them as locals.
	base := len(r.stack)
	r.stack = append(r.stack, args...)

	r.ctx = ctx
	r.steps = 0
	defer func() { r.ctx = context.Background() }()

	out, err := r.invoke(exp.Idx, fn)
	if err != nil {
		return nil, err
	}
	// Surplus arguments sit below the callee's frame and are never consumed.
	if extra := len(r.stack) - base; extra != 0 {
		r.reset()
		return nil, errors.StackUnderflow("%s: %d operands left on the stack after return", name, extra)
	}
	return out, nil
}

func (r *Runtime) invoke(idx uint32, fn FuncInst) ([]Value, error) {
	switch f := fn.(type) {
	case *InternalFunc:
		return r.invokeInternal(idx, f)
	case *HostFunc:
		r.reset()
		return nil, errors.Unsupported(errors.PhaseRuntime,
			fmt.Sprintf("host function %s.%s is not linked", f.Module, f.Name))
	default:
		panic(fmt.Sprintf("unknown function instance %T", fn))
	}
}

func (r *Runtime) invokeInternal(idx uint32, f *InternalFunc) ([]Value, error) {
	if err := r.pushFrame(idx, f); err != nil {
		r.reset()
		return nil, err
	}

	if err := r.execute(); err != nil {
		fields := []zap.Field{zap.Error(err)}
		if n := len(r.callStack); n > 0 {
			fields = append(fields, zap.Uint32("func", r.callStack[n-1].idx), zap.Int("depth", n))
		}
		r.log.Warn("execution failed, resetting stacks", fields...)
		r.reset()
		return nil, errors.Execution(err)
	}

	if len(f.Type.Results) == 0 {
		return nil, nil
	}
	if len(r.stack) == 0 {
		return nil, errors.MissingReturnValue()
	}
	v := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return []Value{v}, nil
}

// pushFrame moves the callee's params from the operand stack into a new
// frame's locals, zero-fills the declared locals and pushes the frame.
func (r *Runtime) pushFrame(idx uint32, f *InternalFunc) error {
	if r.cfg.MaxCallDepth > 0 && len(r.callStack) >= r.cfg.MaxCallDepth {
		return errors.CallStackExhausted(r.cfg.MaxCallDepth)
	}

	base := 0
	if n := len(r.callStack); n > 0 {
		base = r.callStack[n-1].sp
	}
	nparams := len(f.Type.Params)
	if len(r.stack)-nparams < base {
		return errors.StackUnderflow("function needs %d params, %d operands available", nparams, len(r.stack)-base)
	}

	split := len(r.stack) - nparams
	locals := make([]Value, nparams, nparams+len(f.Code.Locals))
	copy(locals, r.stack[split:])
	r.stack = r.stack[:split]

	for _, t := range f.Code.Locals {
		v, err := ZeroValue(t)
		if err != nil {
			return err
		}
		locals = append(locals, v)
	}

	r.callStack = append(r.callStack, &Frame{
		idx:    idx,
		insts:  f.Code.Body,
		locals: locals,
		pc:     -1,
		sp:     len(r.stack),
		arity:  len(f.Type.Results),
	})
	return nil
}

func (r *Runtime) reset() {
	r.stack = r.stack[:0]
	r.callStack = r.callStack[:0]
}

// Exports lists the exported functions in declaration order.
func (r *Runtime) Exports() []ExportInfo {
	var out []ExportInfo
	for _, exp := range r.module.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		fn, ok := r.store.Func(exp.Idx)
		if !ok {
			continue
		}
		out = append(out, ExportInfo{Name: exp.Name, Index: exp.Idx, Type: fn.FuncType()})
	}
	return out
}

// Store returns the runtime's function store.
func (r *Runtime) Store() *Store {
	return r.store
}
