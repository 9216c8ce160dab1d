package engine

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// fuelMeter approximates spec §4.5's "abstract unit of WebAssembly work"
// using wazero's per-call function listener hook (wazero has no native
// fuel counter, unlike wasmtime): every host or guest function call
// entered while this listener is installed consumes one unit of fuel,
// and the call's execution is aborted once the budget is exhausted. This
// is coarser than true per-instruction metering, but it is the closest
// approximation wazero's public API offers, and it still gives a hard,
// deterministic, per-execution resource bound.
type fuelMeter struct {
	remaining int64
	exhausted atomic.Bool
}

func newFuelMeter(limit uint64) *fuelMeter {
	return &fuelMeter{remaining: int64(limit)}
}

func (f *fuelMeter) Exhausted() bool { return f.exhausted.Load() }

// fuelExhausted is panicked by fuelListener.Before once the budget runs
// out. wazero's FunctionListener has no return value and cannot itself
// abort the call it's observing, so a flag nobody unwinds the stack for
// is not a hard failure — it's ignored until the guest happens to return
// an error on its own. Panicking unwinds the in-flight guest call
// immediately; Engine.Execute recovers it and reports OutOfFuel.
type fuelExhausted struct{}

// listenerFactory adapts fuelMeter to wazero's experimental function
// listener interface.
type fuelListenerFactory struct{ meter *fuelMeter }

func (f *fuelListenerFactory) NewListener(api.FunctionDefinition) experimental.FunctionListener {
	return &fuelListener{meter: f.meter}
}

type fuelListener struct{ meter *fuelMeter }

func (l *fuelListener) Before(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	if atomic.AddInt64(&l.meter.remaining, -1) < 0 {
		l.meter.exhausted.Store(true)
		panic(fuelExhausted{})
	}
}

func (l *fuelListener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {}

// withFuelMeter installs meter on ctx so every call made against a module
// instantiated with this context is charged against it.
func withFuelMeter(ctx context.Context, meter *fuelMeter) context.Context {
	return experimental.WithFunctionListenerFactory(ctx, &fuelListenerFactory{meter: meter})
}
