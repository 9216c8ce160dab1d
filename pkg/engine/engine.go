package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/store"
	"github.com/certen/wavs/pkg/types"
)

// Engine executes WebAssembly components under fuel, deadline and
// capability bounds (spec §4.5). Each Execute call gets a fresh instance:
// no cross-request state survives beyond whatever the component wrote to
// its KV context.
type Engine struct {
	runtime wazero.Runtime
	blobs   *store.BlobStore
	cache   *moduleCache
}

// Config controls the engine's shared resources.
type Config struct {
	Blobs          *store.BlobStore
	CacheCapacity  int
}

func New(ctx context.Context, cfg Config) (*Engine, error) {
	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	cache, err := newModuleCache(cfg.CacheCapacity)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("engine: new module cache: %w", err)
	}

	return &Engine{runtime: runtime, blobs: cfg.Blobs, cache: cache}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// compiled loads compiled, caching by digest, compiling on cache miss
// (spec §4.5 "cache miss loads from the blob store and compiles").
func (e *Engine) compiled(ctx context.Context, digest types.Digest) (wazero.CompiledModule, error) {
	if mod, ok := e.cache.get(digest); ok {
		return mod, nil
	}
	raw, err := e.blobs.Get(digest)
	if err != nil {
		return nil, err
	}
	mod, err := e.runtime.CompileModule(ctx, raw)
	if err != nil {
		return nil, wavserr.New(wavserr.InvalidInput, "Engine.compiled", err)
	}
	e.cache.put(digest, mod)
	return mod, nil
}

// Result carries bytes written to a guest's "wavs_execute" export,
// per the opaque-bytes execution contract of spec §4.5.
type Result struct {
	Output []byte
}

// Execute runs component's operator-variant guest export against input,
// wiring host capabilities from hostCtx, and enforcing fuel/time bounds.
func (e *Engine) Execute(ctx context.Context, component types.Component, digest types.Digest, input []byte, host *HostContext) (result *Result, err error) {
	compiledMod, err := e.compiled(ctx, digest)
	if err != nil {
		return nil, err
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if component.TimeLimitSecs != nil && *component.TimeLimitSecs > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(*component.TimeLimitSecs)*time.Second)
		defer cancel()
	}

	meter := newFuelMeter(component.Fuel())
	execCtx = withFuelMeter(execCtx, meter)

	// fuelListener.Before panics to unwind the in-flight guest call once the
	// budget runs out, since a FunctionListener has no way to abort a call
	// by return value. Recover it here, after the guest/host module Close
	// defers below have already run, and report it the same way the
	// Exhausted checks elsewhere in this function do.
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(fuelExhausted); ok {
				result, err = nil, wavserr.New(wavserr.ResourceExhausted, "Engine.Execute", errOutOfFuel)
				return
			}
			panic(r)
		}
	}()

	hostModule, err := e.buildHostModule(execCtx, host)
	if err != nil {
		return nil, wavserr.New(wavserr.Fatal, "Engine.Execute", err)
	}
	defer hostModule.Close(execCtx)

	modConfig := wazero.NewModuleConfig().WithStartFunctions() // skip the implicit _start call; guests export wavs_execute directly
	guest, err := e.runtime.InstantiateModule(execCtx, compiledMod, modConfig)
	if err != nil {
		if meter.Exhausted() {
			return nil, wavserr.New(wavserr.ResourceExhausted, "Engine.Execute", errOutOfFuel)
		}
		if execCtx.Err() != nil {
			return nil, wavserr.New(wavserr.ResourceExhausted, "Engine.Execute", fmt.Errorf("wall-clock deadline exceeded"))
		}
		return nil, wavserr.New(wavserr.Fatal, "Engine.Execute", fmt.Errorf("instantiate guest: %w", err))
	}
	defer guest.Close(execCtx)

	out, err := callExecute(execCtx, guest, input)
	if err != nil {
		if meter.Exhausted() {
			return nil, wavserr.New(wavserr.ResourceExhausted, "Engine.Execute", errOutOfFuel)
		}
		if execCtx.Err() != nil {
			return nil, wavserr.New(wavserr.ResourceExhausted, "Engine.Execute", fmt.Errorf("wall-clock deadline exceeded"))
		}
		return nil, wavserr.New(wavserr.InvalidInput, "Engine.Execute", err)
	}
	if meter.Exhausted() {
		return nil, wavserr.New(wavserr.ResourceExhausted, "Engine.Execute", errOutOfFuel)
	}
	return &Result{Output: out}, nil
}

var errOutOfFuel = fmt.Errorf("out of fuel")

// callExecute implements the guest ABI: the guest exports wavs_alloc(size
// i32) i32 and wavs_execute(ptr i32, len i32) i64, where the i64 result
// packs (outPtr<<32 | outLen). This flat ptr/len convention is the same
// shape a Component-Model toolchain's string/list lowering compiles down
// to, so components written against a narrower host interface (spec §9)
// need no change once real Component Model support lands.
func callExecute(ctx context.Context, guest api.Module, input []byte) ([]byte, error) {
	mem := guest.Memory()
	alloc := guest.ExportedFunction("wavs_alloc")
	execute := guest.ExportedFunction("wavs_execute")
	if alloc == nil || execute == nil {
		return nil, fmt.Errorf("component does not export wavs_alloc/wavs_execute")
	}

	allocRes, err := alloc.Call(ctx, uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("wavs_alloc: %w", err)
	}
	inPtr := uint32(allocRes[0])
	if !mem.Write(inPtr, input) {
		return nil, fmt.Errorf("wavs_alloc returned an out-of-bounds pointer")
	}

	execRes, err := execute.Call(ctx, uint64(inPtr), uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("wavs_execute: %w", err)
	}
	packed := execRes[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed)
	if outLen == 0 {
		return []byte{}, nil
	}
	out, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("wavs_execute returned an out-of-bounds result")
	}
	return append([]byte(nil), out...), nil
}
