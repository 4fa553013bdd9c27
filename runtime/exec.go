package runtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// cancelCheckInterval is how many instructions run between context checks.
const cancelCheckInterval = 1024

// execute runs the dispatch loop until the call stack is empty.
func (r *Runtime) execute() error {
	for len(r.callStack) > 0 {
		frame := r.callStack[len(r.callStack)-1]

		inst, ok := frame.fetch()
		if !ok {
			// Ran off the end of the body: only this frame returns.
			if err := r.popFrame(); err != nil {
				return err
			}
			continue
		}

		if err := r.tick(); err != nil {
			return err
		}
		if r.cfg.Trace {
			r.log.Debug("exec",
				zap.Int("depth", len(r.callStack)),
				zap.Uint32("func", frame.idx),
				zap.Int("pc", frame.pc),
				zap.Stringer("instr", inst),
				zap.Int("stack", len(r.stack)))
		}

		if err := r.step(frame, inst); err != nil {
			return err
		}
	}
	return nil
}

// tick charges one instruction against fuel and polls the context.
func (r *Runtime) tick() error {
	r.steps++
	if r.cfg.Fuel > 0 && r.steps > r.cfg.Fuel {
		return errors.FuelExhausted(r.cfg.Fuel)
	}
	if r.steps%cancelCheckInterval == 0 {
		if err := r.ctx.Err(); err != nil {
			return errors.Canceled(err)
		}
	}
	return nil
}

func (r *Runtime) step(frame *Frame, inst wasm.Instruction) error {
	switch inst.Opcode {
	case wasm.OpNop:

	case wasm.OpEnd, wasm.OpReturn:
		return r.popFrame()

	case wasm.OpLocalGet:
		imm, err := immediate[wasm.LocalImm](inst)
		if err != nil {
			return err
		}
		idx := imm.LocalIdx
		if int(idx) >= len(frame.locals) {
			return errors.LocalIndexOutOfRange(idx, len(frame.locals))
		}
		r.push(frame.locals[idx])

	case wasm.OpLocalSet, wasm.OpLocalTee:
		name := wasm.OpcodeName(inst.Opcode)
		imm, err := immediate[wasm.LocalImm](inst)
		if err != nil {
			return err
		}
		idx := imm.LocalIdx
		if int(idx) >= len(frame.locals) {
			return errors.LocalIndexOutOfRange(idx, len(frame.locals))
		}
		v, ok := r.pop(frame)
		if !ok {
			return errors.StackUnderflow("%s: no operand", name)
		}
		if v.Type() != frame.locals[idx].Type() {
			return errors.TypeMismatch(name,
				fmt.Sprintf("local %d is %s, got %s", idx, frame.locals[idx].Type(), v.Type()))
		}
		frame.locals[idx] = v
		if inst.Opcode == wasm.OpLocalTee {
			r.push(v)
		}

	case wasm.OpDrop:
		if _, ok := r.pop(frame); !ok {
			return errors.StackUnderflow("drop: no operand")
		}

	case wasm.OpI32Const:
		imm, err := immediate[wasm.I32Imm](inst)
		if err != nil {
			return err
		}
		r.push(I32(imm.Value))

	case wasm.OpI64Const:
		imm, err := immediate[wasm.I64Imm](inst)
		if err != nil {
			return err
		}
		r.push(I64(imm.Value))

	case wasm.OpI32Add:
		return r.binaryI32(frame, inst.Opcode, func(a, b int32) int32 { return a + b })
	case wasm.OpI32Sub:
		return r.binaryI32(frame, inst.Opcode, func(a, b int32) int32 { return a - b })
	case wasm.OpI32Mul:
		return r.binaryI32(frame, inst.Opcode, func(a, b int32) int32 { return a * b })

	case wasm.OpI64Add:
		return r.binaryI64(frame, inst.Opcode, func(a, b int64) int64 { return a + b })
	case wasm.OpI64Sub:
		return r.binaryI64(frame, inst.Opcode, func(a, b int64) int64 { return a - b })
	case wasm.OpI64Mul:
		return r.binaryI64(frame, inst.Opcode, func(a, b int64) int64 { return a * b })

	case wasm.OpCall:
		imm, err := immediate[wasm.CallImm](inst)
		if err != nil {
			return err
		}
		return r.call(imm.FuncIdx)

	default:
		return errors.UnsupportedInstruction(wasm.OpcodeName(inst.Opcode), inst.Opcode)
	}
	return nil
}

// popFrame removes the current frame and unwinds the operand stack to its base,
// keeping the result when the frame has one.
func (r *Runtime) popFrame() error {
	frame := r.callStack[len(r.callStack)-1]
	r.callStack = r.callStack[:len(r.callStack)-1]

	stack, err := stackUnwind(r.stack, frame.sp, frame.arity)
	if err != nil {
		return err
	}
	r.stack = stack
	return nil
}

func (r *Runtime) call(idx uint32) error {
	fn, ok := r.store.Func(idx)
	if !ok {
		return errors.FunctionNotFound(errors.PhaseExecute, idx, r.store.Len())
	}
	switch f := fn.(type) {
	case *InternalFunc:
		return r.pushFrame(idx, f)
	case *HostFunc:
		return errors.Unsupported(errors.PhaseExecute,
			fmt.Sprintf("call to host function %s.%s", f.Module, f.Name))
	default:
		panic(fmt.Sprintf("unknown function instance %T", fn))
	}
}

func immediate[T any](inst wasm.Instruction) (T, error) {
	imm, ok := inst.Imm.(T)
	if !ok {
		var zero T
		return zero, errors.InvalidData(errors.PhaseExecute, nil,
			fmt.Sprintf("%s: malformed immediate %T", wasm.OpcodeName(inst.Opcode), inst.Imm))
	}
	return imm, nil
}

func (r *Runtime) push(v Value) {
	r.stack = append(r.stack, v)
}

// pop removes the top operand unless that would cross the frame's base.
func (r *Runtime) pop(frame *Frame) (Value, bool) {
	if len(r.stack) <= frame.sp {
		return Value{}, false
	}
	v := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return v, true
}

// operands pops right then left, both of type t.
func (r *Runtime) operands(frame *Frame, op byte, t wasm.ValType) (Value, Value, error) {
	name := wasm.OpcodeName(op)
	if len(r.stack)-frame.sp < 2 {
		return Value{}, Value{}, errors.TypeMismatch(name,
			fmt.Sprintf("need 2 operands, have %d", len(r.stack)-frame.sp))
	}
	rhs, _ := r.pop(frame)
	lhs, _ := r.pop(frame)
	if lhs.Type() != t || rhs.Type() != t {
		return Value{}, Value{}, errors.TypeMismatch(name,
			fmt.Sprintf("operands %s and %s, want %s", lhs.Type(), rhs.Type(), t))
	}
	return lhs, rhs, nil
}

func (r *Runtime) binaryI32(frame *Frame, op byte, fn func(a, b int32) int32) error {
	lhs, rhs, err := r.operands(frame, op, wasm.ValI32)
	if err != nil {
		return err
	}
	r.push(I32(fn(lhs.I32(), rhs.I32())))
	return nil
}

func (r *Runtime) binaryI64(frame *Frame, op byte, fn func(a, b int64) int64) error {
	lhs, rhs, err := r.operands(frame, op, wasm.ValI64)
	if err != nil {
		return err
	}
	r.push(I64(fn(lhs.I64(), rhs.I64())))
	return nil
}
