// Package wasminterp is a small stack-machine interpreter for core WebAssembly
// modules restricted to i32 and i64 functions.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasminterp/
//	├── runtime/         Store, frames, dispatch loop and the Runtime call API
//	├── wasm/            Core WASM binary decoding, encoding and validation
//	├── wat/             WAT text format to WASM binary compiler
//	├── engine/          wazero reference engine and result cross-checking
//	├── errors/          Structured error types for debugging
//	└── cmd/run/         Command line runner with an interactive mode
//
// # Quick Start
//
// Instantiate a module and call an export:
//
//	rt, err := runtime.Instantiate(wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := rt.Call("add", runtime.I32(2), runtime.I32(3))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out[0]) // i32:5
//
// A call returns no values for functions without a result and exactly one
// otherwise. Arithmetic wraps on overflow.
//
// # Errors
//
// Every failure is an *errors.Error carrying a phase and a kind. Errors raised
// while executing instructions are wrapped as "failed to execute instructions"
// and keep the kind of their cause:
//
//	if errors.IsKind(err, errors.KindUnsupportedInstruction) { ... }
//
// After a failed call both stacks are reset and the Runtime can be called again.
//
// # Thread Safety
//
// A Runtime is NOT thread-safe. Use one per goroutine or synchronize access.
package wasminterp
