// Package wat compiles the WebAssembly text format into binary modules.
//
// Basic usage:
//
//	bin, err := wat.Compile(`(module
//		(func (export "add") (param i32 i32) (result i32)
//			(i32.add (local.get 0) (local.get 1)))
//	)`)
//
// Supported:
//   - type, import (functions), func, export (functions) and start fields
//   - named and indexed params, locals, functions, types and labels
//   - plain and folded instructions, block/loop/if with an optional single result
//   - every instruction without immediates, plus local.*, global.*, i32.const,
//     i64.const, call, br and br_if
//   - line (;;) and block (; ;) comments
//
// Memory, table, global, data and elem fields and instructions with memory
// or table immediates are rejected as unsupported.
package wat
