package wat

import "github.com/wippyai/wasm-interp/wasm"

// Parse reads a module in text form.
func Parse(source string) (*wasm.Module, error) {
	return newParser(tokenize(source)).parseModule()
}

// Compile reads a module in text form and returns its binary encoding.
func Compile(source string) ([]byte, error) {
	m, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return m.Encode(), nil
}
