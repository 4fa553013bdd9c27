package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-interp/engine"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wat"
)

type options struct {
	wasmFile string
	funcName string
	args     string
	fuel     uint64
	maxDepth int
	list     bool
	verify   bool
	trace    bool
}

func main() {
	var (
		opts        options
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		debug       = flag.Bool("debug", false, "Development logging at debug level")
	)
	flag.StringVar(&opts.wasmFile, "wasm", "", "Path to core wasm module (.wasm or .wat)")
	flag.StringVar(&opts.funcName, "func", "", "Exported function to call")
	flag.StringVar(&opts.args, "args", "", "Comma-separated arguments (1,2)")
	flag.BoolVar(&opts.list, "list", false, "List exported functions and exit")
	flag.BoolVar(&opts.verify, "verify", false, "Cross-check the call against wazero")
	flag.Uint64Var(&opts.fuel, "fuel", 0, "Instruction budget per call (0 = unlimited)")
	flag.IntVar(&opts.maxDepth, "max-depth", runtime.DefaultMaxCallDepth, "Call stack limit (0 = unlimited)")
	flag.BoolVar(&opts.trace, "trace", false, "Log every executed instruction (with -debug)")
	flag.Parse()

	if opts.wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm|file.wat> [-func name] [-args 1,2] [-verify]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	runtime.SetLogger(log)
	engine.SetLogger(log)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(opts.wasmFile, opts.config()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func (o options) config() runtime.Config {
	cfg := runtime.DefaultConfig()
	cfg.Fuel = o.fuel
	cfg.MaxCallDepth = o.maxDepth
	cfg.Trace = o.trace
	return cfg
}

func run(ctx context.Context, opts options) error {
	data, err := readModule(opts.wasmFile)
	if err != nil {
		return err
	}

	rt, err := runtime.InstantiateWithConfig(data, opts.config())
	if err != nil {
		return err
	}

	exports := rt.Exports()
	fmt.Printf("Module: %s\n", opts.wasmFile)
	fmt.Printf("Functions: %d\n", rt.Store().Len())
	fmt.Printf("\nExported functions:\n")
	for _, exp := range exports {
		fmt.Printf("  %s%s\n", exp.Name, exp.Type)
	}

	if opts.list {
		return nil
	}

	funcName := opts.funcName
	if funcName == "" {
		if len(exports) != 1 {
			fmt.Printf("\nNo function specified. Use -func to choose one.\n")
			return nil
		}
		funcName = exports[0].Name
	}

	var target *runtime.ExportInfo
	for i := range exports {
		if exports[i].Name == funcName {
			target = &exports[i]
			break
		}
	}
	if target == nil {
		return errors.ExportNotFound(funcName)
	}

	args, err := parseArgs(opts.args, target.Type.Params)
	if err != nil {
		return err
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, formatArgs(args))

	var results []runtime.Value
	if opts.verify {
		results, err = verifiedCall(ctx, data, rt, funcName, args)
	} else {
		results, err = rt.CallContext(ctx, funcName, args...)
	}
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	fmt.Printf("Result: %s\n", formatResults(results))
	if opts.verify {
		fmt.Println("Verified against wazero.")
	}
	return nil
}

// readModule returns the binary module at path, compiling it first when it is
// in text form.
func readModule(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wat") {
		return wat.Compile(string(data))
	}
	return data, nil
}

func verifiedCall(ctx context.Context, data []byte, rt *runtime.Runtime, name string, args []runtime.Value) ([]runtime.Value, error) {
	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		return nil, err
	}
	defer eng.Close(ctx)

	mod, err := eng.LoadModule(ctx, data)
	if err != nil {
		return nil, err
	}
	ref, err := mod.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer ref.Close(ctx)

	return engine.Verify(ctx, rt, ref, name, args...)
}

func formatArgs(args []runtime.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func formatResults(results []runtime.Value) string {
	if len(results) == 0 {
		return "(no result)"
	}
	return formatArgs(results)
}
