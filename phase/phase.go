// Package phase defines the contract a phase module implements. The flow
// coordinator (package flow) drives instances of this contract; it never
// inspects their business logic.
package phase

import "time"

// Behavior flags a PhaseWorker can carry. The zero value is Stage.
type Behavior int

const (
	// Stage is the default: every output a module returns is forwarded
	// downstream (or to the flow, for the tail phase) as soon as it's
	// produced.
	Stage Behavior = iota
	// Accumulate hints that the module buffers outputs itself and only
	// returns them from HandleInputsDone. The worker doesn't enforce
	// this; it simply forwards whatever the module returns, whenever it
	// returns it.
	Accumulate
	// Converge names the behavior of a worker that is one of N peers
	// backing a single logical phase. It is never placed directly in a
	// Spec.Behaviors set by a caller; the flow derives convergence from a
	// Spec's Converge count and records it on each worker as a separate
	// flag, without adding this value to the worker's behaviors.
	Converge
)

// Result is an ordered batch of outputs produced by one module callback.
// Order within a Result is preserved all the way to the client.
type Result []any

// Module is the capability set a phase implementation provides. Init is
// called once per worker instance; the remaining callbacks are invoked by
// the owning PhaseWorker as inputs, timeouts, and end-of-input arrive.
//
// Every callback returns the outputs to forward downstream (or upstream to
// the client for a tail phase) along with the next user state. A non-nil
// error aborts the worker and is reported to the flow as a phase failure.
type Module interface {
	Init(args any) (state any, err error)
	HandleInput(input any, state any) (out Result, next any, err error)
	HandleTimeout(state any) (out Result, next any, err error)
	HandleInputsDone(state any) (out Result, next any, err error)
}

// SyncModule is the optional fast path of a module that wants to handle a
// whole batch of synchronously-submitted inputs (Flow.AddInputs) in one
// call instead of one HandleInput call per element.
type SyncModule interface {
	HandleSyncInputs(inputs []any, state any) (out Result, next any, err error)
}

// Spec describes one phase of a pipeline, in the order the client wants
// its phases constructed (head first).
type Spec struct {
	// Module is the phase implementation; the flow calls Init once per
	// worker instance it spawns for this phase.
	Module Module
	// Behaviors this phase carries. Converge must not be set directly;
	// use Converge below instead.
	Behaviors map[Behavior]struct{}
	// Args are passed verbatim to Module.Init for every worker instance.
	Args any
	// Converge is N in the {converge, N} annotation. N <= 1 means this
	// phase is a single ordinary worker.
	Converge int
	// IdleTimeout, when non-zero, makes the worker call HandleTimeout
	// whenever no input or EOI arrives for that long. Zero disables it;
	// spec leaves the trigger for HandleTimeout unspecified, and an idle
	// timer is the natural reading of "timeout" for a per-worker hook.
	IdleTimeout time.Duration
}

// HasBehavior reports whether b is set on the spec.
func (s Spec) HasBehavior(b Behavior) bool {
	_, ok := s.Behaviors[b]
	return ok
}

// IsConverging reports whether this spec describes a {converge, N} phase.
func (s Spec) IsConverging() bool {
	return s.Converge > 1
}
