package flow

import (
	"fmt"

	"github.com/tanmoyio/flowmr/phase"
)

// mapModule applies fn to every input and forwards the result immediately
// (a Stage phase).
type mapModule struct {
	fn func(any) any
}

func (m *mapModule) Init(args any) (any, error) { return nil, nil }

func (m *mapModule) HandleInput(input any, state any) (phase.Result, any, error) {
	return phase.Result{m.fn(input)}, state, nil
}

func (m *mapModule) HandleTimeout(state any) (phase.Result, any, error) {
	return nil, state, nil
}

func (m *mapModule) HandleInputsDone(state any) (phase.Result, any, error) {
	return nil, state, nil
}

// identityModule forwards every input unchanged.
func newIdentityModule() *mapModule {
	return &mapModule{fn: func(v any) any { return v }}
}

// sumModule accumulates every input and emits the total once, on EOI
// (an Accumulate phase).
type sumModule struct{}

func (s *sumModule) Init(args any) (any, error) { return 0, nil }

func (s *sumModule) HandleInput(input any, state any) (phase.Result, any, error) {
	return nil, state.(int) + input.(int), nil
}

func (s *sumModule) HandleTimeout(state any) (phase.Result, any, error) {
	return nil, state, nil
}

func (s *sumModule) HandleInputsDone(state any) (phase.Result, any, error) {
	return phase.Result{state.(int)}, state, nil
}

// crashModule fails on the nth call to HandleInput (1-based).
type crashModule struct {
	n     int
	calls int
}

func (c *crashModule) Init(args any) (any, error) { return nil, nil }

func (c *crashModule) HandleInput(input any, state any) (phase.Result, any, error) {
	c.calls++
	if c.calls == c.n {
		return nil, state, fmt.Errorf("boom on input %v", input)
	}
	return phase.Result{input}, state, nil
}

func (c *crashModule) HandleTimeout(state any) (phase.Result, any, error) {
	return nil, state, nil
}

func (c *crashModule) HandleInputsDone(state any) (phase.Result, any, error) {
	return nil, state, nil
}

// blockingModule never signals completion on its own; used to exercise
// flow_timeout without needing a phase that actually hangs a goroutine.
type blockingModule struct{}

func (b *blockingModule) Init(args any) (any, error) { return nil, nil }

func (b *blockingModule) HandleInput(input any, state any) (phase.Result, any, error) {
	return nil, state, nil
}

func (b *blockingModule) HandleTimeout(state any) (phase.Result, any, error) {
	return nil, state, nil
}

func (b *blockingModule) HandleInputsDone(state any) (phase.Result, any, error) {
	return nil, state, nil
}

func stageSpec(m phase.Module) phase.Spec {
	return phase.Spec{Module: m, Behaviors: map[phase.Behavior]struct{}{phase.Stage: {}}}
}

func accumulateSpec(m phase.Module) phase.Spec {
	return phase.Spec{Module: m, Behaviors: map[phase.Behavior]struct{}{phase.Accumulate: {}}}
}

func convergeSpec(m phase.Module, n int) phase.Spec {
	return phase.Spec{Module: m, Converge: n}
}
