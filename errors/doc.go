// Package errors provides structured error types for the interpreter.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The engine's error taxonomy maps one-to-one onto Kind constants: export lookup,
// store construction, operand shape, local access, unsupported instructions and
// stack bookkeeping each have their own kind.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseExecute, errors.KindTypeMismatch).
//		Path("func[0]", "pc[2]").
//		Detail("i32.add: operand is i64").
//		Build()
//
// Or use convenience constructors:
//
//	err := errors.ExportNotFound("fooooo")
//	err := errors.LocalIndexOutOfRange(3, 2)
//
// Kinds survive wrapping, so callers test with IsKind or errors.Is:
//
//	if errors.IsKind(err, errors.KindExportNotFound) { ... }
package errors
