package wat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

type parser struct {
	mod     *wasm.Module
	typeMap map[string]uint32
	funcMap map[string]uint32
	locals  map[string]uint32
	tokens  []token
	labels  []string
	pos     int
}

func newParser(tokens []token) *parser {
	return &parser{
		tokens:  tokens,
		typeMap: make(map[string]uint32),
		funcMap: make(map[string]uint32),
	}
}

func (p *parser) errorf(format string, args ...any) *errors.Error {
	line := 0
	switch {
	case p.pos < len(p.tokens):
		line = p.tokens[p.pos].line
	case len(p.tokens) > 0:
		line = p.tokens[len(p.tokens)-1].line
	}
	return errors.New(errors.PhaseParse, errors.KindInvalidInput).
		Detail("line %d: %s", line, fmt.Sprintf(format, args...)).
		Build()
}

func (p *parser) unsupported(what string) *errors.Error {
	return errors.Unsupported(errors.PhaseParse, what+" is not supported in text form")
}

func (p *parser) peek() *token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

// peekKeyword returns the keyword after an opening paren, or "".
func (p *parser) peekKeyword() string {
	if p.pos+1 >= len(p.tokens) || p.tokens[p.pos].typ != tokLParen || p.tokens[p.pos+1].typ != tokIdent {
		return ""
	}
	return p.tokens[p.pos+1].value
}

func (p *parser) next() *token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(typ tokenType) (*token, error) {
	t := p.peek()
	if t == nil {
		return nil, p.errorf("unexpected end of input, expected %v", typ)
	}
	if t.typ != typ {
		return nil, p.errorf("expected %v, got %q", typ, t.value)
	}
	p.pos++
	return t, nil
}

func (p *parser) expectKeyword(kw string) error {
	t, err := p.expect(tokIdent)
	if err != nil {
		return err
	}
	if t.value != kw {
		p.pos--
		return p.errorf("expected '%s', got %q", kw, t.value)
	}
	return nil
}

// optionalName consumes a $identifier if one is next.
func (p *parser) optionalName() string {
	if t := p.peek(); t != nil && t.typ == tokIdent && strings.HasPrefix(t.value, "$") {
		p.pos++
		return t.value
	}
	return ""
}

// skipRest consumes tokens up to and including the paren closing the current field.
func (p *parser) skipRest() error {
	for depth := 1; depth > 0; {
		t := p.next()
		if t == nil {
			return p.errorf("unexpected end of input")
		}
		switch t.typ {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
	}
	return nil
}

func (p *parser) parseModule() (*wasm.Module, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	p.optionalName()

	p.mod = &wasm.Module{}
	start := p.pos
	if err := p.collectNames(); err != nil {
		return nil, err
	}
	p.pos = start

	for {
		t := p.peek()
		if t == nil {
			return nil, p.errorf("unexpected end of input in module")
		}
		if t.typ == tokRParen {
			p.pos++
			break
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		kw, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}

		switch kw.value {
		case "type":
			err = p.skipRest()
		case "import":
			err = p.parseImport()
		case "func":
			err = p.parseFunc()
		case "export":
			err = p.parseExport()
		case "start":
			err = p.parseStart()
		case "memory", "table", "global", "data", "elem":
			err = p.unsupported("module field " + kw.value)
		default:
			err = p.errorf("unknown module field %q", kw.value)
		}
		if err != nil {
			return nil, err
		}
	}

	if t := p.peek(); t != nil {
		return nil, p.errorf("unexpected %q after module", t.value)
	}
	return p.mod, nil
}

// collectNames is the first pass: it defines explicit types and assigns
// function indices so calls can refer to functions declared later.
func (p *parser) collectNames() error {
	var funcIdx uint32
	for {
		t := p.peek()
		if t == nil || t.typ == tokRParen {
			return nil
		}
		if _, err := p.expect(tokLParen); err != nil {
			return err
		}
		kw, err := p.expect(tokIdent)
		if err != nil {
			return err
		}

		switch kw.value {
		case "type":
			if err := p.parseTypeDef(); err != nil {
				return err
			}
			continue

		case "func":
			if name := p.optionalName(); name != "" {
				p.funcMap[name] = funcIdx
			}
			funcIdx++

		case "import":
			if _, err := p.expect(tokString); err != nil {
				return err
			}
			if _, err := p.expect(tokString); err != nil {
				return err
			}
			if p.peekKeyword() == "func" {
				p.pos += 2
				if name := p.optionalName(); name != "" {
					p.funcMap[name] = funcIdx
				}
				funcIdx++
				if err := p.skipRest(); err != nil {
					return err
				}
			}
		}
		if err := p.skipRest(); err != nil {
			return err
		}
	}
}

func (p *parser) parseTypeDef() error {
	name := p.optionalName()
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	if err := p.expectKeyword("func"); err != nil {
		return err
	}
	ft, _, err := p.parseTypeUse(nil)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	if name != "" {
		p.typeMap[name] = uint32(len(p.mod.Types))
	}
	p.mod.Types = append(p.mod.Types, ft)
	return nil
}

// parseTypeUse reads (type N)? (param ...)* (result ...)*. Named params are
// recorded in locals when it is non-nil. It reports the explicit type index.
func (p *parser) parseTypeUse(locals map[string]uint32) (wasm.FuncType, *uint32, error) {
	var ft wasm.FuncType
	var typeIdx *uint32
	// clauses after (type N) restate its signature
	var restateParams, restateResults bool

	for {
		switch p.peekKeyword() {
		case "type":
			p.pos += 2
			idx, err := p.parseIdx(p.typeMap, "type")
			if err != nil {
				return ft, nil, err
			}
			if int(idx) >= len(p.mod.Types) {
				return ft, nil, p.errorf("type index %d out of range", idx)
			}
			typeIdx = &idx
			restateParams, restateResults = true, true
			ref := p.mod.Types[idx]
			ft.Params = append([]wasm.ValType(nil), ref.Params...)
			ft.Results = append([]wasm.ValType(nil), ref.Results...)
			if _, err := p.expect(tokRParen); err != nil {
				return ft, nil, err
			}

		case "param":
			p.pos += 2
			if restateParams {
				ft.Params = ft.Params[:0]
				restateParams = false
			}
			if name := p.optionalName(); name != "" {
				vt, err := p.parseValType()
				if err != nil {
					return ft, nil, err
				}
				if locals != nil {
					locals[name] = uint32(len(ft.Params))
				}
				ft.Params = append(ft.Params, vt)
				if _, err := p.expect(tokRParen); err != nil {
					return ft, nil, err
				}
				continue
			}
			vts, err := p.parseValTypes()
			if err != nil {
				return ft, nil, err
			}
			ft.Params = append(ft.Params, vts...)

		case "result":
			p.pos += 2
			if restateResults {
				ft.Results = ft.Results[:0]
				restateResults = false
			}
			vts, err := p.parseValTypes()
			if err != nil {
				return ft, nil, err
			}
			ft.Results = append(ft.Results, vts...)

		default:
			return ft, typeIdx, nil
		}
	}
}

// parseValTypes reads value types up to and including the closing paren.
func (p *parser) parseValTypes() ([]wasm.ValType, error) {
	var out []wasm.ValType
	for {
		t := p.peek()
		if t == nil {
			return nil, p.errorf("unexpected end of input")
		}
		if t.typ == tokRParen {
			p.pos++
			return out, nil
		}
		vt, err := p.parseValType()
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
}

func (p *parser) parseValType() (wasm.ValType, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return 0, err
	}
	switch t.value {
	case "i32":
		return wasm.ValI32, nil
	case "i64":
		return wasm.ValI64, nil
	case "f32":
		return wasm.ValF32, nil
	case "f64":
		return wasm.ValF64, nil
	case "funcref":
		return wasm.ValFuncRef, nil
	case "externref":
		return wasm.ValExtern, nil
	default:
		p.pos--
		return 0, p.errorf("unknown value type: %s", t.value)
	}
}

func (p *parser) parseIdx(names map[string]uint32, space string) (uint32, error) {
	t := p.peek()
	if t == nil {
		return 0, p.errorf("expected %s index", space)
	}
	if t.typ == tokIdent && strings.HasPrefix(t.value, "$") {
		idx, ok := names[t.value]
		if !ok {
			return 0, p.errorf("unknown %s %s", space, t.value)
		}
		p.pos++
		return idx, nil
	}
	return p.parseU32()
}

func (p *parser) parseU32() (uint32, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(t.value, "_", ""), 0, 32)
	if err != nil {
		return 0, p.errorf("invalid number: %s", t.value)
	}
	return uint32(v), nil
}

// parseInt reads an integer literal that fits in bits, signed or unsigned.
func (p *parser) parseInt(bits int) (int64, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	s := strings.ReplaceAll(t.value, "_", "")
	if v, err := strconv.ParseInt(s, 0, bits); err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 0, bits)
	if err != nil {
		return 0, p.errorf("invalid i%d constant: %s", bits, t.value)
	}
	if bits == 32 {
		return int64(int32(uint32(u))), nil
	}
	return int64(u), nil
}

func (p *parser) funcIndex() uint32 {
	return uint32(p.mod.NumImportedFuncs() + len(p.mod.Funcs))
}

// parseImport handles (import "m" "n" (func $id? typeuse)).
func (p *parser) parseImport() error {
	mod, err := p.expect(tokString)
	if err != nil {
		return err
	}
	name, err := p.expect(tokString)
	if err != nil {
		return err
	}
	if kw := p.peekKeyword(); kw != "func" {
		return p.unsupported("import of kind " + quoteKeyword(kw))
	}
	p.pos += 2
	p.optionalName()

	ft, typeIdx, err := p.parseTypeUse(nil)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	return p.addImport(mod.value, name.value, ft, typeIdx)
}

func (p *parser) addImport(mod, name string, ft wasm.FuncType, typeIdx *uint32) error {
	if len(p.mod.Funcs) > 0 {
		return p.errorf("import %s.%s after function definitions", mod, name)
	}
	p.mod.Imports = append(p.mod.Imports, wasm.Import{
		Module: mod,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: p.typeIndex(ft, typeIdx)},
	})
	return nil
}

func (p *parser) typeIndex(ft wasm.FuncType, explicit *uint32) uint32 {
	if explicit != nil {
		return *explicit
	}
	return p.mod.AddType(ft)
}

func (p *parser) parseFunc() error {
	idx := p.funcIndex()
	p.optionalName()

	var exports []string
	for p.peekKeyword() == "export" {
		p.pos += 2
		name, err := p.expect(tokString)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return err
		}
		exports = append(exports, name.value)
	}

	if p.peekKeyword() == "import" {
		p.pos += 2
		mod, err := p.expect(tokString)
		if err != nil {
			return err
		}
		name, err := p.expect(tokString)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return err
		}
		ft, typeIdx, err := p.parseTypeUse(nil)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return err
		}
		if err := p.addImport(mod.value, name.value, ft, typeIdx); err != nil {
			return err
		}
		p.addExports(exports, idx)
		return nil
	}

	p.locals = make(map[string]uint32)
	p.labels = nil
	ft, typeIdx, err := p.parseTypeUse(p.locals)
	if err != nil {
		return err
	}

	locals, err := p.parseLocals(uint32(len(ft.Params)))
	if err != nil {
		return err
	}

	body, err := p.parseInstrs()
	if err != nil {
		return err
	}
	if len(p.labels) > 0 {
		return p.errorf("%d unclosed block(s)", len(p.labels))
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	body = append(body, wasm.Instruction{Opcode: wasm.OpEnd})

	p.mod.Funcs = append(p.mod.Funcs, p.typeIndex(ft, typeIdx))
	p.mod.Code = append(p.mod.Code, wasm.FuncBody{Locals: locals, Code: body})
	p.addExports(exports, idx)
	return nil
}

func (p *parser) addExports(names []string, idx uint32) {
	for _, name := range names {
		p.mod.Exports = append(p.mod.Exports, wasm.Export{Name: name, Kind: wasm.KindFunc, Idx: idx})
	}
}

// parseLocals reads (local ...) declarations, merging runs of one type.
func (p *parser) parseLocals(next uint32) ([]wasm.LocalEntry, error) {
	var entries []wasm.LocalEntry
	add := func(vt wasm.ValType) {
		if n := len(entries); n > 0 && entries[n-1].ValType == vt {
			entries[n-1].Count++
		} else {
			entries = append(entries, wasm.LocalEntry{Count: 1, ValType: vt})
		}
		next++
	}

	for p.peekKeyword() == "local" {
		p.pos += 2
		if name := p.optionalName(); name != "" {
			vt, err := p.parseValType()
			if err != nil {
				return nil, err
			}
			p.locals[name] = next
			add(vt)
			if _, err := p.expect(tokRParen); err != nil {
				return nil, err
			}
			continue
		}
		vts, err := p.parseValTypes()
		if err != nil {
			return nil, err
		}
		for _, vt := range vts {
			add(vt)
		}
	}
	return entries, nil
}

func (p *parser) parseExport() error {
	name, err := p.expect(tokString)
	if err != nil {
		return err
	}
	if kw := p.peekKeyword(); kw != "func" {
		return p.unsupported("export of kind " + quoteKeyword(kw))
	}
	p.pos += 2
	idx, err := p.parseIdx(p.funcMap, "function")
	if err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	p.addExports([]string{name.value}, idx)
	return nil
}

func (p *parser) parseStart() error {
	idx, err := p.parseIdx(p.funcMap, "function")
	if err != nil {
		return err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	p.mod.Start = &idx
	return nil
}

func quoteKeyword(s string) string {
	if s == "" {
		return "<none>"
	}
	return strconv.Quote(s)
}

// blockType encodes a single result type as the signed 7-bit value block
// immediates store (0x7F is -1).
func blockType(vt wasm.ValType) int32 {
	return int32(vt) - 0x80
}
