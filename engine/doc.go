// Package engine runs modules on wazero as a reference for the interpreter in
// package runtime.
//
// The engine package provides three main types:
//
//	WazeroEngine   - owns a wazero runtime (interpreter backend by default)
//	WazeroModule   - a compiled module, can create instances
//	WazeroInstance - a running module with Call over runtime.Value
//
// Verify runs one call on both engines and reports any disagreement as a
// *MismatchError:
//
//	eng, _ := engine.NewWazeroEngine(ctx)
//	defer eng.Close(ctx)
//	mod, _ := eng.LoadModule(ctx, wasmBytes)
//	ref, _ := mod.Instantiate(ctx)
//	interp, _ := runtime.Instantiate(wasmBytes)
//	out, err := engine.Verify(ctx, interp, ref, "add", runtime.I32(1), runtime.I32(2))
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
package engine
