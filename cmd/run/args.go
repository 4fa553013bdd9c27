package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// parseArgs splits a comma-separated list and parses each item by its param type.
func parseArgs(list string, params []wasm.ValType) ([]runtime.Value, error) {
	var fields []string
	if strings.TrimSpace(list) != "" {
		fields = strings.Split(list, ",")
	}
	if len(fields) != len(params) {
		return nil, errors.InvalidInput(errors.PhaseParse,
			fmt.Sprintf("function takes %d arguments, got %d", len(params), len(fields)))
	}

	args := make([]runtime.Value, len(fields))
	for i, f := range fields {
		v, err := runtime.ParseValue(params[i], strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}
