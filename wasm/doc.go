// Package wasm provides WebAssembly binary format parsing and encoding for the
// interpreter.
//
// The parser decodes the sections the interpreter consumes (type, import,
// function, export, start, code and custom) into typed values and keeps the
// remaining sections as raw bytes so a module round-trips through Encode.
// Function bodies are decoded into Instruction values covering the MVP opcode
// set and the 0xFC prefix.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Building modules
//
//	m := &wasm.Module{
//	    Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs: []uint32{0},
//	    Code: []wasm.FuncBody{{Code: []wasm.Instruction{
//	        {Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
//	        {Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
//	        {Opcode: wasm.OpI32Add},
//	        {Opcode: wasm.OpEnd},
//	    }}},
//	    Exports: []wasm.Export{{Name: "add", Kind: wasm.KindFunc, Idx: 0}},
//	}
//	data := m.Encode()
package wasm
