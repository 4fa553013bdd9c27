package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/runtime"
)

// MismatchError reports a call whose outcome differs between the interpreter
// and the reference engine.
type MismatchError struct {
	InterpErr error
	RefErr    error
	Export    string
	Args      []runtime.Value
	Interp    []runtime.Value
	Reference []runtime.Value
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s(%s): interpreter %s, reference %s",
		e.Export, formatValues(e.Args),
		outcome(e.Interp, e.InterpErr), outcome(e.Reference, e.RefErr))
}

// Verify calls name on both engines with the same arguments. It returns the
// interpreter's results when both agree. When both fail the interpreter's
// error is returned; any other disagreement is a *MismatchError.
func Verify(ctx context.Context, interp *runtime.Runtime, ref *WazeroInstance, name string, args ...runtime.Value) ([]runtime.Value, error) {
	got, gotErr := interp.CallContext(ctx, name, args...)
	want, wantErr := ref.Call(ctx, name, args...)

	switch {
	case gotErr != nil && wantErr != nil:
		return nil, gotErr
	case gotErr == nil && wantErr == nil && equalValues(got, want):
		Logger().Debug("verified call", zap.String("export", name), zap.String("result", formatValues(got)))
		return got, nil
	}

	mismatch := &MismatchError{
		Export:    name,
		Args:      args,
		Interp:    got,
		InterpErr: gotErr,
		Reference: want,
		RefErr:    wantErr,
	}
	Logger().Warn("reference mismatch", zap.Error(mismatch))
	return nil, mismatch
}

func equalValues(a, b []runtime.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatValues(vs []runtime.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func outcome(vs []runtime.Value, err error) string {
	if err != nil {
		return "failed: " + err.Error()
	}
	if len(vs) == 0 {
		return "returned nothing"
	}
	return "returned " + formatValues(vs)
}
