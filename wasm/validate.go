package wasm

import "fmt"

// Validate checks the module for structural validity.
//
// Type indices and export targets are deliberately left to instantiation,
// which reports them with their own error kinds.
func (m *Module) Validate() error {
	if err := m.validateCodeCount(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	return nil
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) validateCodeCount() error {
	// An absent code section is allowed; the module then defines no functions.
	if len(m.Code) > 0 && len(m.Code) != len(m.Funcs) {
		return fmt.Errorf("code section has %d entries but function section has %d",
			len(m.Code), len(m.Funcs))
	}
	return nil
}

func (m *Module) validateExports() error {
	seen := make(map[string]bool, len(m.Exports))
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			return fmt.Errorf("duplicate export name %q at index %d", exp.Name, i)
		}
		seen[exp.Name] = true
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}

	total := m.NumImportedFuncs() + len(m.Funcs)
	if int(*m.Start) >= total {
		return fmt.Errorf("start function %d out of range (%d functions)", *m.Start, total)
	}

	funcType := m.GetFuncType(*m.Start)
	if funcType != nil && (len(funcType.Params) != 0 || len(funcType.Results) != 0) {
		return fmt.Errorf("start function must have signature [] -> [], got %s", funcType)
	}

	return nil
}
