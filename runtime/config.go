package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/errors"
)

// DefaultMaxCallDepth is the call stack limit used by DefaultConfig.
const DefaultMaxCallDepth = 1000

// Config controls instantiation and execution.
type Config struct {
	// Logger overrides the package logger for one runtime.
	Logger *zap.Logger

	// Fuel is the number of instructions one call may execute. 0 means unlimited.
	Fuel uint64

	// MaxCallDepth bounds the number of live frames. 0 means unlimited.
	MaxCallDepth int

	SkipValidation bool

	// Trace logs every executed instruction at debug level.
	Trace bool
}

// DefaultConfig returns the configuration used by Instantiate.
func DefaultConfig() Config {
	return Config{MaxCallDepth: DefaultMaxCallDepth}
}

// Validate reports an unusable configuration.
func (c Config) Validate() error {
	if c.MaxCallDepth < 0 {
		return errors.InvalidInput(errors.PhaseInstantiate, "max call depth must not be negative")
	}
	return nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}
