package checker

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// run is the state of one verifier invocation.
type run struct {
	input        []byte     // input is the compiled Move module under check
	output       []byte     // output is the rejection reason, empty on success
	memory       api.Memory // memory is the verifier's linear memory
	gasLimit     uint64     // gasLimit is the maximum gas allowed
	gasUsed      uint64     // gasUsed tracks consumed gas
	gasExhausted bool       // gasExhausted is set once gasUsed passed gasLimit
}

// hostModule instantiates the "env" imports bound to r.
func (c *Checker) hostModule(ctx context.Context, r *run) (api.Module, error) {
	return c.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(r.gas).Export("gas").
		NewFunctionBuilder().WithFunc(r.inputLen).Export("input_len").
		NewFunctionBuilder().WithFunc(r.readInput).Export("read_input").
		NewFunctionBuilder().WithFunc(r.writeOutput).Export("write_output").
		Instantiate(ctx)
}

// gas meters cost and panics past the limit to abort the call.
func (r *run) gas(_ context.Context, cost uint32) {
	r.gasUsed += uint64(cost)

	if r.gasUsed > r.gasLimit {
		r.gasExhausted = true
		panic("gas exhausted")
	}
}

// inputLen reports the module size so the verifier can reserve memory.
func (r *run) inputLen(_ context.Context) uint32 {
	return uint32(len(r.input))
}

// readInput copies the module bytes into verifier memory at ptr.
func (r *run) readInput(_ context.Context, ptr uint32) {
	if r.memory == nil || len(r.input) == 0 {
		return
	}

	r.memory.Write(ptr, r.input)
}

// writeOutput copies the verdict out of verifier memory.
func (r *run) writeOutput(_ context.Context, ptr, length uint32) {
	if r.memory == nil || length == 0 {
		return
	}

	data, ok := r.memory.Read(ptr, length)
	if !ok {
		return
	}

	r.output = append([]byte(nil), data...)
}
