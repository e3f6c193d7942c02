// Package checker runs a WASM build of a bytecode verifier against patched
// modules before they are submitted.
//
// A verifier exports execute() and imports from "env": input_len() and
// read_input(ptr) to fetch the module, write_output(ptr, len) to report a
// rejection reason, and gas(cost) for metering. No output means accepted.
package checker

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/zeebo/blake3"

	"SatVault/internal/logger"
)

// DefaultGasLimit bounds a single verifier run.
const DefaultGasLimit = 10_000_000

var (
	// ErrModuleRejected is returned when the verifier reports a problem.
	ErrModuleRejected = errors.New("module rejected by verifier")

	// ErrGasExhausted is returned when a verifier runs out of gas.
	ErrGasExhausted = errors.New("gas exhausted")

	// ErrClosed is returned by Check after Close.
	ErrClosed = errors.New("checker closed")
)

// Checker verifies compiled modules with one compiled verifier. Runs are
// serialized since each one instantiates its own "env" host module.
type Checker struct {
	runtime  wazero.Runtime        // runtime owns the compiled verifier
	verifier wazero.CompiledModule // verifier is compiled once, instantiated per run
	id       [32]byte              // id is the blake3 hash of the verifier bytes
	gasLimit uint64                // gasLimit bounds each run

	mu     sync.Mutex // mu serializes runs and Close
	closed bool       // closed is set once the runtime is released
}

// New compiles the verifier wasm. A zero gasLimit selects DefaultGasLimit.
func New(ctx context.Context, wasm []byte, gasLimit uint64) (*Checker, error) {
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}

	runtime := wazero.NewRuntime(ctx)

	compiled, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("compile verifier:\n%w", err)
	}

	c := &Checker{
		runtime:  runtime,
		verifier: compiled,
		id:       blake3.Sum256(wasm),
		gasLimit: gasLimit,
	}

	logger.Debug("verifier loaded", "id", hex.EncodeToString(c.id[:8]), "size", len(wasm))

	return c, nil
}

// Open reads and compiles the verifier at path.
func Open(ctx context.Context, path string, gasLimit uint64) (*Checker, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifier %s:\n%w", path, err)
	}

	return New(ctx, wasm, gasLimit)
}

// ID returns the blake3 hash of the verifier bytes.
func (c *Checker) ID() [32]byte {
	return c.id
}

// Check runs the verifier on a compiled module. Empty output accepts the
// module; any output is the rejection reason.
func (c *Checker) Check(ctx context.Context, module []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	r := &run{input: module, gasLimit: c.gasLimit}
	if err := c.execute(ctx, r); err != nil {
		return fmt.Errorf("run verifier:\n%w", err)
	}

	if len(r.output) > 0 {
		return fmt.Errorf("%w: %s", ErrModuleRejected, r.output)
	}

	logger.Debug("module verified", "size", len(module), "gas", r.gasUsed)

	return nil
}

// execute instantiates the verifier next to a fresh host module and calls
// its execute export.
func (c *Checker) execute(ctx context.Context, r *run) error {
	host, err := c.hostModule(ctx, r)
	if err != nil {
		return fmt.Errorf("build host module:\n%w", err)
	}
	defer host.Close(ctx)

	instance, err := c.runtime.InstantiateModule(ctx, c.verifier, wazero.NewModuleConfig())
	if err != nil {
		return fmt.Errorf("instantiate verifier:\n%w", err)
	}
	defer instance.Close(ctx)

	r.memory = instance.Memory()

	fn := instance.ExportedFunction("execute")
	if fn == nil {
		return errors.New("execute function not exported")
	}

	if _, err := fn.Call(ctx); err != nil {
		if r.gasExhausted {
			return fmt.Errorf("%w after %d", ErrGasExhausted, r.gasUsed)
		}

		return fmt.Errorf("execute:\n%w", err)
	}

	return nil
}

// Close releases the verifier runtime. Later checks fail with ErrClosed.
func (c *Checker) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.verifier.Close(ctx)

	return c.runtime.Close(ctx)
}
