package wat

import (
	"strings"

	"github.com/wippyai/wasm-interp/wasm"
)

// parseInstrs reads plain and folded instructions up to, not including, the closing paren.
func (p *parser) parseInstrs() ([]wasm.Instruction, error) {
	var out []wasm.Instruction
	for {
		t := p.peek()
		if t == nil {
			return nil, p.errorf("unexpected end of input in function body")
		}
		switch t.typ {
		case tokRParen:
			return out, nil
		case tokLParen:
			instrs, err := p.parseFolded()
			if err != nil {
				return nil, err
			}
			out = append(out, instrs...)
		case tokIdent:
			instrs, err := p.parsePlain()
			if err != nil {
				return nil, err
			}
			out = append(out, instrs...)
		default:
			return nil, p.errorf("unexpected %v %q in function body", t.typ, t.value)
		}
	}
}

func (p *parser) parsePlain() ([]wasm.Instruction, error) {
	name := p.next().value

	switch name {
	case "block", "loop", "if":
		label := p.optionalName()
		bt, err := p.parseBlockType()
		if err != nil {
			return nil, err
		}
		p.labels = append(p.labels, label)
		op, _ := wasm.LookupOpcode(name)
		return []wasm.Instruction{{Opcode: op, Imm: wasm.BlockImm{Type: bt}}}, nil

	case "else":
		p.optionalName()
		return []wasm.Instruction{{Opcode: wasm.OpElse}}, nil

	case "end":
		p.optionalName()
		if len(p.labels) == 0 {
			return nil, p.errorf("end without matching block")
		}
		p.labels = p.labels[:len(p.labels)-1]
		return []wasm.Instruction{{Opcode: wasm.OpEnd}}, nil
	}

	inst, err := p.parseOp(name)
	if err != nil {
		return nil, err
	}
	return []wasm.Instruction{inst}, nil
}

// parseFolded reads one parenthesised instruction and flattens it:
// operands first, then the operator.
func (p *parser) parseFolded() ([]wasm.Instruction, error) {
	p.pos++
	t, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	name := t.value

	switch name {
	case "block", "loop":
		label := p.optionalName()
		bt, err := p.parseBlockType()
		if err != nil {
			return nil, err
		}
		op, _ := wasm.LookupOpcode(name)
		body, err := p.parseLabeled(label)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		out := []wasm.Instruction{{Opcode: op, Imm: wasm.BlockImm{Type: bt}}}
		out = append(out, body...)
		return append(out, wasm.Instruction{Opcode: wasm.OpEnd}), nil

	case "if":
		return p.parseFoldedIf()
	}

	inst, err := p.parseOp(name)
	if err != nil {
		return nil, err
	}
	var out []wasm.Instruction
	for t := p.peek(); t != nil && t.typ == tokLParen; t = p.peek() {
		operand, err := p.parseFolded()
		if err != nil {
			return nil, err
		}
		out = append(out, operand...)
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return append(out, inst), nil
}

func (p *parser) parseFoldedIf() ([]wasm.Instruction, error) {
	label := p.optionalName()
	bt, err := p.parseBlockType()
	if err != nil {
		return nil, err
	}

	var out []wasm.Instruction
	for p.peek() != nil && p.peek().typ == tokLParen && p.peekKeyword() != "then" {
		cond, err := p.parseFolded()
		if err != nil {
			return nil, err
		}
		out = append(out, cond...)
	}
	out = append(out, wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: bt}})

	if p.peekKeyword() != "then" {
		return nil, p.errorf("expected (then ...) in if")
	}
	p.pos += 2
	then, err := p.parseLabeled(label)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	out = append(out, then...)

	if p.peekKeyword() == "else" {
		p.pos += 2
		els, err := p.parseLabeled(label)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		out = append(out, wasm.Instruction{Opcode: wasm.OpElse})
		out = append(out, els...)
	}

	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return append(out, wasm.Instruction{Opcode: wasm.OpEnd}), nil
}

func (p *parser) parseLabeled(label string) ([]wasm.Instruction, error) {
	p.labels = append(p.labels, label)
	body, err := p.parseInstrs()
	p.labels = p.labels[:len(p.labels)-1]
	return body, err
}

// parseBlockType reads an optional (result t); a missing clause is the empty type.
func (p *parser) parseBlockType() (int32, error) {
	if p.peekKeyword() != "result" {
		return wasm.BlockTypeVoid, nil
	}
	p.pos += 2
	vts, err := p.parseValTypes()
	if err != nil {
		return 0, err
	}
	switch len(vts) {
	case 0:
		return wasm.BlockTypeVoid, nil
	case 1:
		return blockType(vts[0]), nil
	default:
		return 0, p.unsupported("multi-value block type")
	}
}

// parseOp reads an operator other than the structured ones, with its immediates.
func (p *parser) parseOp(name string) (wasm.Instruction, error) {
	op, ok := wasm.LookupOpcode(name)
	if !ok {
		p.pos--
		return wasm.Instruction{}, p.errorf("unknown instruction %s", name)
	}
	inst := wasm.Instruction{Opcode: op}

	switch op {
	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		idx, err := p.parseIdx(p.locals, "local")
		if err != nil {
			return inst, err
		}
		inst.Imm = wasm.LocalImm{LocalIdx: idx}

	case wasm.OpGlobalGet, wasm.OpGlobalSet:
		idx, err := p.parseU32()
		if err != nil {
			return inst, err
		}
		inst.Imm = wasm.GlobalImm{GlobalIdx: idx}

	case wasm.OpI32Const:
		v, err := p.parseInt(32)
		if err != nil {
			return inst, err
		}
		inst.Imm = wasm.I32Imm{Value: int32(v)}

	case wasm.OpI64Const:
		v, err := p.parseInt(64)
		if err != nil {
			return inst, err
		}
		inst.Imm = wasm.I64Imm{Value: v}

	case wasm.OpCall:
		idx, err := p.parseIdx(p.funcMap, "function")
		if err != nil {
			return inst, err
		}
		inst.Imm = wasm.CallImm{FuncIdx: idx}

	case wasm.OpBr, wasm.OpBrIf:
		depth, err := p.parseLabel()
		if err != nil {
			return inst, err
		}
		inst.Imm = wasm.BranchImm{LabelIdx: depth}

	default:
		if !wasm.NoImmediate(op) {
			return inst, p.unsupported("instruction " + name)
		}
	}
	return inst, nil
}

// parseLabel resolves a $label or a numeric depth.
func (p *parser) parseLabel() (uint32, error) {
	t := p.peek()
	if t != nil && t.typ == tokIdent && strings.HasPrefix(t.value, "$") {
		for i := len(p.labels) - 1; i >= 0; i-- {
			if p.labels[i] == t.value {
				p.pos++
				return uint32(len(p.labels) - 1 - i), nil
			}
		}
		return 0, p.errorf("unknown label %s", t.value)
	}
	return p.parseU32()
}
