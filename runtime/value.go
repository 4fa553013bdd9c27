package runtime

import (
	"fmt"
	"strconv"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// Value is a tagged runtime value: an i32 or an i64.
// It is copied by value on every push and pop.
type Value struct {
	bits uint64
	typ  wasm.ValType
}

// I32 returns an i32 value.
func I32(v int32) Value {
	return Value{typ: wasm.ValI32, bits: uint64(uint32(v))}
}

// I64 returns an i64 value.
func I64(v int64) Value {
	return Value{typ: wasm.ValI64, bits: uint64(v)}
}

// ZeroValue returns the zero value of t.
func ZeroValue(t wasm.ValType) (Value, error) {
	switch t {
	case wasm.ValI32:
		return I32(0), nil
	case wasm.ValI64:
		return I64(0), nil
	default:
		return Value{}, errors.Unsupported(errors.PhaseInstantiate, "value type "+t.String())
	}
}

// Type returns the value's type tag.
func (v Value) Type() wasm.ValType { return v.typ }

// I32 returns the value as int32. Only meaningful when Type is i32.
func (v Value) I32() int32 { return int32(uint32(v.bits)) }

// I64 returns the value as int64. Only meaningful when Type is i64.
func (v Value) I64() int64 { return int64(v.bits) }

// Raw returns the uint64 encoding used by wazero's api package.
func (v Value) Raw() uint64 { return v.bits }

// FromRaw decodes a wazero-style uint64 into a Value of type t.
func FromRaw(t wasm.ValType, raw uint64) (Value, error) {
	switch t {
	case wasm.ValI32:
		return I32(int32(uint32(raw))), nil
	case wasm.ValI64:
		return I64(int64(raw)), nil
	default:
		return Value{}, errors.Unsupported(errors.PhaseRuntime, "value type "+t.String())
	}
}

// ParseValue parses a decimal literal as a value of type t.
func ParseValue(t wasm.ValType, text string) (Value, error) {
	switch t {
	case wasm.ValI32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, errors.ParseFailed("i32 "+strconv.Quote(text), err)
		}
		return I32(int32(n)), nil
	case wasm.ValI64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, errors.ParseFailed("i64 "+strconv.Quote(text), err)
		}
		return I64(n), nil
	default:
		return Value{}, errors.Unsupported(errors.PhaseParse, "value type "+t.String())
	}
}

func (v Value) String() string {
	switch v.typ {
	case wasm.ValI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case wasm.ValI64:
		return fmt.Sprintf("i64:%d", v.I64())
	default:
		return "invalid"
	}
}
