package hooks

import (
	"fmt"

	"go.uber.org/zap"
)

// HookError records one isolated callback failure, attributed to the mod
// which registered the callback rather than to the dispatch core.
type HookError struct {
	Owner      string
	Identifier string
	Phase      Phase
	Err        error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook callback of mod %q failed on %s (%s phase): %v",
		e.Owner, e.Identifier, e.Phase, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// FailureReporter receives isolated callback failures. Implemented by the
// surrounding UI/lifecycle collaborator; the default reporter logs.
type FailureReporter interface {
	ReportHookFailure(err *HookError)
}

type logReporter struct {
	logger *zap.Logger
}

func (r *logReporter) ReportHookFailure(err *HookError) {
	r.logger.Warn("hook callback failed",
		zap.String("mod", err.Owner),
		zap.String("function", err.Identifier),
		zap.String("phase", err.Phase.String()),
		zap.Error(err.Err))
}

// NativeFunc is the real engine function being hooked. The engine call site
// supplies it as a closure; it runs only when no pre-hook short-circuits.
type NativeFunc func(args map[string]any) any

// Dispatcher walks the registry for one native call at a time:
// pre phase, then the native call unless short-circuited, then post phase.
// It runs synchronously on the caller's goroutine; there is no worker pool
// and no cancellation, a call's hook chain always runs to completion.
type Dispatcher struct {
	registry *Registry
	reporter FailureReporter
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over a registry. A nil reporter falls
// back to logging failures.
func NewDispatcher(registry *Registry, reporter FailureReporter, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = &logReporter{logger: logger}
	}
	return &Dispatcher{
		registry: registry,
		reporter: reporter,
		logger:   logger,
	}
}

// Dispatch processes one occurrence of a hookable native call and returns the
// final return value handed back to the engine: the native result, a pre-hook
// short-circuit value, or the last post-hook override.
func (d *Dispatcher) Dispatch(identifier string, args map[string]any, native NativeFunc) any {
	if args == nil {
		args = make(map[string]any)
	}
	call := &Call{Identifier: identifier, Args: args}

	d.runPhase(call, PhasePre)

	if !call.shortCircuited && native != nil {
		call.ret = native(call.Args)
	}

	d.runPhase(call, PhasePost)

	return call.ret
}

// runPhase invokes a bucket's callbacks in order. Iteration is lazy: the
// bucket is re-read from the registry before every step, so a callback
// unregistering entries mid-dispatch takes effect for entries that have not
// run yet, while entries already invoked are never invoked twice.
func (d *Dispatcher) runPhase(call *Call, phase Phase) {
	invoked := make(map[Handle]struct{})

	for {
		var next *Registration
		for _, reg := range d.registry.Bucket(call.Identifier, phase) {
			if _, done := invoked[reg.handle]; !done {
				next = reg
				break
			}
		}
		if next == nil {
			return
		}
		invoked[next.handle] = struct{}{}

		// Snapshot the return state so a failing callback's short-circuit
		// request or override can be discarded along with the failure.
		prevRet := call.ret
		prevSC := call.shortCircuited

		if err := d.invoke(next, call); err != nil {
			call.ret = prevRet
			call.shortCircuited = prevSC
			d.reporter.ReportHookFailure(&HookError{
				Owner:      next.Owner,
				Identifier: call.Identifier,
				Phase:      phase,
				Err:        err,
			})
			continue
		}

		if phase == PhasePre && call.shortCircuited {
			// Accepted short-circuit: skip the rest of the pre bucket.
			return
		}
	}
}

// invoke runs a single callback, converting panics into isolated errors so a
// misbehaving mod cannot take down the engine's call thread.
func (d *Dispatcher) invoke(reg *Registration, call *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return reg.callback(call)
}
