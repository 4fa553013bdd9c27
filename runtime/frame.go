package runtime

import (
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// Frame is the activation record of one internal function call.
type Frame struct {
	insts  []wasm.Instruction
	locals []Value

	// idx is the callee's index in the store.
	idx uint32

	// pc is the index of the last executed instruction; -1 before the first fetch.
	pc int

	// sp is the operand stack height at frame entry, after params were taken.
	sp int

	arity int
}

// fetch advances pc and returns the next instruction.
func (f *Frame) fetch() (wasm.Instruction, bool) {
	f.pc++
	if f.pc >= len(f.insts) {
		return wasm.Instruction{}, false
	}
	return f.insts[f.pc], true
}

// stackUnwind discards everything a finished frame left above sp.
// With arity 0 the stack is truncated to sp; otherwise the top value
// is kept as the result and pushed back on the truncated stack.
func stackUnwind(stack []Value, sp, arity int) ([]Value, error) {
	if arity == 0 {
		if len(stack) < sp {
			return stack, errors.StackUnderflow("stack height %d below frame base %d", len(stack), sp)
		}
		return stack[:sp], nil
	}

	if len(stack) == 0 {
		return stack, errors.StackUnderflow("no result on the stack")
	}
	result := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	if len(stack) < sp {
		return stack, errors.StackUnderflow("stack height %d below frame base %d", len(stack), sp)
	}
	return append(stack[:sp], result), nil
}
