// Package runtime is a small stack-machine interpreter for WebAssembly core
// functions over i32 and i64 values.
//
// A Runtime owns one instantiated module: a Store of function instances, a
// shared operand stack and a call stack of frames. Each frame records the
// operand stack height at entry (sp); operand pops never reach below it, and
// when a frame finishes the stack is unwound back to sp, keeping the frame's
// result if it has one.
//
//	r, err := runtime.Instantiate(wasmBytes)
//	if err != nil {
//		return err
//	}
//	out, err := r.Call("add", runtime.I32(1), runtime.I32(2))
//
// A failed call resets both stacks, so the Runtime can be called again.
package runtime
