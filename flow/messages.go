package flow

import "github.com/tanmoyio/flowmr/phase"

// Messages exchanged between actors (Flow, PhaseWorker) via their
// mailboxes. None of these cross a process boundary; they exist purely to
// keep every state mutation confined to the owning actor's goroutine, per
// the no-shared-mutable-state rule.

// msgBatch carries one or more inputs into a worker's inbox, either from
// the Flow (head phase) or from an upstream worker's distribute step.
type msgBatch struct {
	values []any
}

// msgEOI signals end-of-input to a worker from its upstream.
type msgEOI struct{}

// msgPartnerDone is sent by a non-leader convergence member to its leader
// once it has processed its own upstream EOI and forwarded its residual
// outputs.
type msgPartnerDone struct{}

// msgMemberFailed is sent by a non-leader convergence member to its leader
// when it dies abnormally, so the leader can report the failure and
// suppress its own EOI emission.
type msgMemberFailed struct {
	worker string
	err    error
}

// msgResults is sent by a tail worker (next is empty) to the Flow,
// carrying one batch of outputs.
type msgResults struct {
	phaseID int
	batch   phase.Result
}

// msgDone is sent by the tail phase (or its convergence leader) to the
// Flow once it has fully processed upstream EOI and has nothing left to
// forward.
type msgDone struct {
	phaseID int
}

// msgWorkerExit reports a worker's termination to the Flow. err == nil
// means a normal exit (ignored by the Flow per spec); non-nil means an
// abnormal exit that fails the whole flow.
type msgWorkerExit struct {
	phaseID int
	worker  string
	err     error
}

// msgTimeoutFired is delivered to the Flow's own mailbox by the
// flow_timeout timer.
type msgTimeoutFired struct{}

// msgAddInputs is the Flow's synchronous add_inputs request.
type msgAddInputs struct {
	batch []any
	reply chan error
}

// msgFinishInputs is the Flow's asynchronous finish_inputs request.
type msgFinishInputs struct{}

// msgCachePut is the Flow's synchronous cache_put request.
type msgCachePut struct {
	key   any
	value any
	reply chan struct{}
}

// msgCacheGet is the Flow's synchronous cache_get request.
type msgCacheGet struct {
	key   any
	reply chan cacheGetReply
}

type cacheGetReply struct {
	value any
	ok    bool
}
