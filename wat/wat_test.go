package wat

import (
	"context"
	"strings"
	"testing"

	"github.com/wippyai/wasm-interp/engine"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

func TestTokenize(t *testing.T) {
	toks := tokenize(`(func $f ;; line comment
	(; block (; nested ;) ;) (i32.const -7) "s\"x")`)

	want := []struct {
		value string
		typ   tokenType
	}{
		{"(", tokLParen},
		{"func", tokIdent},
		{"$f", tokIdent},
		{"(", tokLParen},
		{"i32.const", tokIdent},
		{"-7", tokNumber},
		{")", tokRParen},
		{`s\"x`, tokString},
		{")", tokRParen},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].value != w.value || toks[i].typ != w.typ {
			t.Errorf("token %d = %q (%v), want %q (%v)", i, toks[i].value, toks[i].typ, w.value, w.typ)
		}
	}
	if toks[3].line != 2 {
		t.Errorf("line = %d, want 2", toks[3].line)
	}
}

func TestParseSignature(t *testing.T) {
	m, err := Parse(`(module
		(type $bin (func (param i32 i32) (result i32)))
		(func $add (export "add") (type $bin) (param $a i32) (param $b i32)
			local.get $a
			local.get $b
			i32.add)
		(func (export "also") (type $bin)
			local.get 0
			local.get 1
			i32.sub)
	)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Types) != 1 {
		t.Fatalf("types = %d, want 1", len(m.Types))
	}
	if len(m.Funcs) != 2 || m.Funcs[0] != 0 || m.Funcs[1] != 0 {
		t.Errorf("funcs = %v", m.Funcs)
	}
	if len(m.Exports) != 2 || m.Exports[1].Idx != 1 {
		t.Errorf("exports = %+v", m.Exports)
	}
	body := m.Code[0].Code
	if len(body) != 4 || body[3].Opcode != wasm.OpEnd {
		t.Errorf("body = %v", body)
	}
	if imm := body[1].Imm.(wasm.LocalImm); imm.LocalIdx != 1 {
		t.Errorf("$b resolved to %d", imm.LocalIdx)
	}
}

func TestParseFolded(t *testing.T) {
	m, err := Parse(`(module
		(func (param i32) (result i32) (local $t i32) (local i64 i64)
			(local.set $t (i32.mul (local.get 0) (i32.const 3)))
			(block $out (result i32)
				(br_if $out (local.get $t) (i32.const 0))
				(local.get 0))))`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	locals := m.Code[0].Locals
	if len(locals) != 2 || locals[0].Count != 1 || locals[1].Count != 2 || locals[1].ValType != wasm.ValI64 {
		t.Errorf("locals = %+v", locals)
	}

	var got []string
	for _, inst := range m.Code[0].Code {
		got = append(got, wasm.OpcodeName(inst.Opcode))
	}
	want := "local.get i32.const i32.mul local.set block local.get i32.const br_if local.get end end"
	if strings.Join(got, " ") != want {
		t.Errorf("got  %s\nwant %s", strings.Join(got, " "), want)
	}
}

func TestParseIf(t *testing.T) {
	m, err := Parse(`(module
		(func (param i32) (result i32)
			(if (result i32) (local.get 0)
				(then (i32.const 1))
				(else (i32.const 2)))))`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var got []string
	for _, inst := range m.Code[0].Code {
		got = append(got, wasm.OpcodeName(inst.Opcode))
	}
	want := "local.get if i32.const else i32.const end end"
	if strings.Join(got, " ") != want {
		t.Errorf("got  %s\nwant %s", strings.Join(got, " "), want)
	}
	if imm := m.Code[0].Code[1].Imm.(wasm.BlockImm); imm.Type != wasm.BlockTypeI32 {
		t.Errorf("block type = %d, want %d", imm.Type, wasm.BlockTypeI32)
	}
}

func TestCompileTypedBlocks(t *testing.T) {
	bin, err := Compile(`(module
		(func (export "blk") (result i32)
			(block (result i32) (i32.const 7)))
		(func (export "lp") (result i64)
			(loop (result i64) (i64.const 9)))
		(func (export "pick") (param i32) (result i32)
			(if (result i32) (local.get 0)
				(then (i32.const 1))
				(else (i32.const 2)))))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	m, err := wasm.ParseModule(bin)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	wantTypes := []int32{wasm.BlockTypeI32, wasm.BlockTypeI64, wasm.BlockTypeI32}
	for i, want := range wantTypes {
		var got *wasm.BlockImm
		for _, inst := range m.Code[i].Code {
			if imm, ok := inst.Imm.(wasm.BlockImm); ok {
				got = &imm
				break
			}
		}
		if got == nil || got.Type != want {
			t.Errorf("func %d block type = %v, want %d", i, got, want)
		}
	}

	ctx := context.Background()
	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)
	mod, err := eng.LoadModule(ctx, bin)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	calls := []struct {
		name string
		args []runtime.Value
		want runtime.Value
	}{
		{"blk", nil, runtime.I32(7)},
		{"lp", nil, runtime.I64(9)},
		{"pick", []runtime.Value{runtime.I32(1)}, runtime.I32(1)},
		{"pick", []runtime.Value{runtime.I32(0)}, runtime.I32(2)},
	}
	for _, c := range calls {
		out, err := inst.Call(ctx, c.name, c.args...)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if len(out) != 1 || out[0] != c.want {
			t.Errorf("%s(%v) = %v, want %v", c.name, c.args, out, c.want)
		}
	}
}

func TestParseImportsAndStart(t *testing.T) {
	m, err := Parse(`(module
		(import "env" "log" (func $log (param i32)))
		(func $init (import "env" "init"))
		(func $main (call $helper) drop)
		(func $helper (result i32) i32.const 1)
		(export "main" (func $main))
		(start $main))`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Imports) != 2 || m.Imports[1].Name != "init" {
		t.Fatalf("imports = %+v", m.Imports)
	}
	if m.Start == nil || *m.Start != 2 {
		t.Errorf("start = %v, want 2", m.Start)
	}
	if imm := m.Code[0].Code[0].Imm.(wasm.CallImm); imm.FuncIdx != 3 {
		t.Errorf("forward call resolved to %d, want 3", imm.FuncIdx)
	}
	if m.Exports[0].Idx != 2 {
		t.Errorf("export idx = %d, want 2", m.Exports[0].Idx)
	}
}

func TestParseConstants(t *testing.T) {
	m, err := Parse(`(module (func
		i32.const 0xffffffff drop
		i32.const -2147483648 drop
		i64.const 0x8000_0000_0000_0000 drop))`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	code := m.Code[0].Code
	if v := code[0].Imm.(wasm.I32Imm).Value; v != -1 {
		t.Errorf("0xffffffff = %d, want -1", v)
	}
	if v := code[2].Imm.(wasm.I32Imm).Value; v != -2147483648 {
		t.Errorf("min i32 = %d", v)
	}
	if v := code[4].Imm.(wasm.I64Imm).Value; v != -9223372036854775808 {
		t.Errorf("min i64 = %d", v)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
		want string
	}{
		{"not a module", `(func)`, errors.KindInvalidInput, "expected 'module'"},
		{"unknown field", `(module (bogus))`, errors.KindInvalidInput, "unknown module field"},
		{"memory", `(module (memory 1))`, errors.KindUnsupported, "memory"},
		{"unknown instruction", `(module (func i32.frob))`, errors.KindInvalidInput, "unknown instruction i32.frob"},
		{"memory instruction", `(module (func i32.const 0 i32.load drop))`, errors.KindUnsupported, "i32.load"},
		{"unknown local", `(module (func local.get $x drop))`, errors.KindInvalidInput, "unknown local $x"},
		{"unknown label", `(module (func (block br $nope)))`, errors.KindInvalidInput, "unknown label"},
		{"unclosed block", `(module (func block))`, errors.KindInvalidInput, "unclosed"},
		{"stray end", `(module (func end))`, errors.KindInvalidInput, "end without matching block"},
		{"bad constant", `(module (func i32.const 99999999999 drop))`, errors.KindInvalidInput, "invalid i32 constant"},
		{"type out of range", `(module (func (type 3)))`, errors.KindInvalidInput, "type index 3 out of range"},
		{"late import", `(module (func) (import "a" "b" (func)))`, errors.KindInvalidInput, "after function definitions"},
		{"truncated", `(module (func`, errors.KindInvalidInput, "end of input"},
		{"trailing", `(module) (module)`, errors.KindInvalidInput, "after module"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: tt.kind}) {
				t.Errorf("error %v is not %s/%s", err, errors.PhaseParse, tt.kind)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestCompileAndRun(t *testing.T) {
	bin, err := Compile(`(module
		(func $sq (param i64) (result i64)
			(i64.mul (local.get 0) (local.get 0)))
		(func (export "sumsq") (param $a i64) (param $b i64) (result i64)
			(i64.add (call $sq (local.get $a)) (call $sq (local.get $b))))
		(func (export "wrap") (result i32)
			(i32.add (i32.const 2147483647) (i32.const 1))))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	rt, err := runtime.Instantiate(bin)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	out, err := rt.Call("sumsq", runtime.I64(3), runtime.I64(4))
	if err != nil {
		t.Fatalf("sumsq: %v", err)
	}
	if len(out) != 1 || out[0] != runtime.I64(25) {
		t.Errorf("sumsq(3, 4) = %v, want [i64:25]", out)
	}

	out, err = rt.Call("wrap")
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if len(out) != 1 || out[0] != runtime.I32(-2147483648) {
		t.Errorf("wrap() = %v", out)
	}
}
