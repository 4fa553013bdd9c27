package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode      Phase = "decode"      // binary to module
	PhaseValidate    Phase = "validate"    // structural module checks
	PhaseInstantiate Phase = "instantiate" // store construction
	PhaseRuntime     Phase = "runtime"     // call entry, export resolution
	PhaseExecute     Phase = "execute"     // dispatch loop
	PhaseLoad        Phase = "load"        // reading module files
	PhaseParse       Phase = "parse"       // argument parsing
)

// Kind categorizes the error
type Kind string

const (
	KindExportNotFound         Kind = "export_not_found"
	KindUnsupportedExportKind  Kind = "unsupported_export_kind"
	KindFunctionNotFound       Kind = "function_not_found"
	KindMissingSection         Kind = "missing_section"
	KindInvalidTypeIndex       Kind = "invalid_type_index"
	KindTypeMismatch           Kind = "type_mismatch"
	KindLocalIndexOutOfRange   Kind = "local_index_out_of_range"
	KindUnsupportedInstruction Kind = "unsupported_instruction"
	KindMissingReturnValue     Kind = "missing_return_value"
	KindStackUnderflow         Kind = "stack_underflow"
	KindCallStackExhausted     Kind = "call_stack_exhausted"
	KindFuelExhausted          Kind = "fuel_exhausted"
	KindCanceled               Kind = "canceled"
	KindUnsupported            Kind = "unsupported"
	KindInvalidData            Kind = "invalid_data"
	KindInvalidInput           Kind = "invalid_input"
)

// Error is the structured error type used throughout the interpreter
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is forwards to the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As forwards to the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path, e.g. "func[2]", "pc[7]"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors, one per engine error kind

// ExportNotFound reports a call target missing from the export table.
func ExportNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindExportNotFound,
		Detail: fmt.Sprintf("export %q not found", name),
		Value:  name,
	}
}

// UnsupportedExportKind reports an export that does not describe a function.
func UnsupportedExportKind(name string, kind byte) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUnsupportedExportKind,
		Detail: fmt.Sprintf("export %q has kind %d, want func", name, kind),
		Value:  kind,
	}
}

// FunctionNotFound reports a function index outside the store.
func FunctionNotFound(phase Phase, idx uint32, count int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFunctionNotFound,
		Detail: fmt.Sprintf("function index %d out of range (%d functions)", idx, count),
		Value:  idx,
	}
}

// MissingSection reports a section required to resolve a function.
func MissingSection(section string) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindMissingSection,
		Detail: fmt.Sprintf("not found %s section", section),
	}
}

// InvalidTypeIndex reports a function whose type index is out of range.
func InvalidTypeIndex(funcIdx int, typeIdx uint32, count int) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInvalidTypeIndex,
		Path:   []string{fmt.Sprintf("func[%d]", funcIdx)},
		Detail: fmt.Sprintf("type index %d out of range (%d types)", typeIdx, count),
		Value:  typeIdx,
	}
}

// TypeMismatch reports operands of an instruction that are absent or of the wrong kind.
func TypeMismatch(op, detail string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindTypeMismatch,
		Detail: op + ": " + detail,
	}
}

// LocalIndexOutOfRange reports access to a non-existent local slot.
func LocalIndexOutOfRange(idx uint32, count int) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindLocalIndexOutOfRange,
		Detail: fmt.Sprintf("local index %d out of range (%d locals)", idx, count),
		Value:  idx,
	}
}

// UnsupportedInstruction reports an instruction the interpreter cannot execute.
func UnsupportedInstruction(name string, opcode byte) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindUnsupportedInstruction,
		Detail: fmt.Sprintf("%s (0x%02x)", name, opcode),
		Value:  opcode,
	}
}

// MissingReturnValue reports an empty operand stack where a result was due.
func MissingReturnValue() *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindMissingReturnValue,
		Detail: "not found return value",
	}
}

// StackUnderflow reports an operand stack shorter than frame bookkeeping expects.
func StackUnderflow(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindStackUnderflow,
		Detail: detail,
	}
}

// CallStackExhausted reports a call depth beyond the configured limit.
func CallStackExhausted(limit int) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindCallStackExhausted,
		Detail: fmt.Sprintf("call stack exhausted (limit %d)", limit),
		Value:  limit,
	}
}

// FuelExhausted reports that the instruction budget ran out.
func FuelExhausted(limit uint64) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindFuelExhausted,
		Detail: fmt.Sprintf("fuel exhausted after %d instructions", limit),
		Value:  limit,
	}
}

// Canceled reports execution interrupted by its context.
func Canceled(cause error) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindCanceled,
		Detail: "execution interrupted",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Execution wraps a dispatch failure, keeping the cause's kind.
func Execution(cause error) *Error {
	kind := KindOf(cause)
	if kind == "" {
		kind = KindInvalidData
	}
	return Wrap(PhaseExecute, kind, cause, "failed to execute instructions")
}

// Decode wraps a binary decoding failure.
func Decode(cause error) *Error {
	return Wrap(PhaseDecode, KindInvalidData, cause, "decode module")
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
