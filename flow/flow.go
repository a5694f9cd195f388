// Package flow implements the flow coordinator: it builds a pipeline of
// phase workers from a description, routes inputs into the head, relays
// results back to the client, enforces a wall-clock timeout over the
// whole flow, and tears the pipeline down on completion or failure.
package flow

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tanmoyio/flowmr/phase"
)

// ClientMessage is anything the Flow sends to the client's delivery
// channel. It's one of ResultMsg, DoneMsg, or ErrorMsg.
type ClientMessage any

// ResultMsg carries one transformed result batch for one phase.
type ResultMsg struct {
	PhaseID int
	FlowID  string
	Result  phase.Result
}

// DoneMsg is the exactly-once terminal message on clean completion.
type DoneMsg struct {
	FlowID string
}

// ErrorMsg is the exactly-once terminal message on failure.
type ErrorMsg struct {
	FlowID string
	Err    error
}

type flowState int

const (
	stateExecuting flowState = iota
	stateTerminating
)

// Flow owns one end-to-end pipeline execution.
type Flow struct {
	id      string
	client  chan<- ClientMessage
	phases  []*PhaseHandle
	xformer Xformer
	timeout time.Duration

	logger          Logger
	mailboxCapacity int

	mailbox      *mailbox
	idgen        *idGenerator
	cache        cache
	state        flowState
	timeoutTimer *time.Timer
	headRR       int

	doneOnce sync.Once
}

// Start builds the pipeline described by specs (head first), links every
// worker to this flow, and begins execution. Workers are constructed
// tail-to-head (spec §9) so each phase's `next` handle exists before that
// phase is built, avoiding back-patching. If any phase fails to
// construct, every already-built worker is discarded and StartError is
// returned; no partial flow is ever exposed.
//
// timeout <= 0 means unbounded.
func Start(flowID string, specs []phase.Spec, xformer Xformer, timeout time.Duration, client chan<- ClientMessage, opts ...Option) (*Flow, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("flow: start: pipeline must have at least one phase")
	}

	idgen, err := newIDGenerator()
	if err != nil {
		return nil, fmt.Errorf("flow: start: %w", err)
	}

	f := &Flow{
		client:          client,
		xformer:         xformer,
		timeout:         timeout,
		logger:          defaultLogger(),
		mailboxCapacity: defaultMailboxCapacity,
		idgen:           idgen,
		cache:           newCache(),
		state:           stateExecuting,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.mailbox = newMailbox(f.mailboxCapacity)

	if flowID == "" {
		flowID, err = idgen.next()
		if err != nil {
			return nil, fmt.Errorf("flow: start: failed to generate a flow id: %w", err)
		}
	}
	f.id = flowID

	built := make([]*PhaseHandle, len(specs))
	for i := len(specs) - 1; i >= 0; i-- {
		var next []*PhaseWorker
		if i+1 < len(specs) {
			next = built[i+1].Workers()
		}
		ph, err := f.buildPhase(i, specs[i], next)
		if err != nil {
			f.discard(built[i+1:])
			return nil, &StartError{Phase: i, Err: err}
		}
		built[i] = ph
	}
	f.phases = built

	for _, ph := range f.phases {
		for _, w := range ph.Workers() {
			go w.run()
		}
	}
	go f.run()

	if f.timeout > 0 {
		f.timeoutTimer = time.AfterFunc(f.timeout, func() {
			_ = f.mailbox.send(msgTimeoutFired{})
		})
	}

	return f, nil
}

// buildPhase spawns the N workers backing one phase (N == 1 for a plain
// phase), constructing them concurrently — the same shape as the
// teacher's stage.Run spawning worker nodes concurrently — and wires
// leader/partner state for a converging phase.
func (f *Flow) buildPhase(phaseID int, spec phase.Spec, next []*PhaseWorker) (*PhaseHandle, error) {
	n := spec.Converge
	if n < 1 {
		n = 1
	}

	workers := make([]*PhaseWorker, n)
	var g errgroup.Group
	for k := 0; k < n; k++ {
		k := k
		g.Go(func() error {
			w, err := f.newPhaseWorker(phaseID, spec, next)
			if err != nil {
				return err
			}
			workers[k] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, w := range workers {
			if w != nil {
				w.mailbox.close()
			}
		}
		return nil, err
	}

	if n == 1 {
		return &PhaseHandle{workers: workers}, nil
	}

	leader := workers[0]
	for _, w := range workers {
		w.isConverging = true
		w.leader = leader
		w.partners = workers
		w.isLeader = w == leader
	}
	return &PhaseHandle{workers: workers, leader: leader}, nil
}

func (f *Flow) newPhaseWorker(phaseID int, spec phase.Spec, next []*PhaseWorker) (w *PhaseWorker, err error) {
	name, err := f.idgen.next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate worker id: %w", err)
	}

	state, err := safeInit(spec.Module, spec.Args)
	if err != nil {
		return nil, fmt.Errorf("phase %d: init: %w", phaseID, err)
	}

	w = &PhaseWorker{
		phaseID:     phaseID,
		name:        fmt.Sprintf("phase:%d:worker:%s", phaseID, name),
		module:      spec.Module,
		userState:   state,
		behaviors:   spec.Behaviors,
		next:        next,
		flow:        f,
		mailbox:     newMailbox(f.mailboxCapacity),
		idleTimeout: spec.IdleTimeout,
	}
	if sm, ok := spec.Module.(phase.SyncModule); ok {
		w.syncModule = sm
	}
	return w, nil
}

func safeInit(m phase.Module, args any) (state any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in phase module init: %v", r)
		}
	}()
	return m.Init(args)
}

// discard tears down any phase handles built before a construction
// failure. Their workers were never started, so it's just mailbox
// cleanup.
func (f *Flow) discard(handles []*PhaseHandle) {
	for _, ph := range handles {
		if ph == nil {
			continue
		}
		for _, w := range ph.Workers() {
			w.mailbox.close()
		}
	}
}

// ID returns the flow's id.
func (f *Flow) ID() string { return f.id }

// GetPhases returns the pipeline's phase handles, head first. For tests
// only, per spec.
func (f *Flow) GetPhases() []*PhaseHandle {
	return f.phases
}

// AddInputs delivers a batch to the head phase's synchronous input path.
// It returns once the head phase's mailbox has accepted the batch —
// not once the batch has been fully processed — bounded by the flow's
// timeout.
func (f *Flow) AddInputs(inputs []any) error {
	reply := make(chan error, 1)
	if err := f.mailbox.send(msgAddInputs{batch: inputs, reply: reply}); err != nil {
		return errFlowTerminated
	}
	if f.timeout <= 0 {
		return <-reply
	}
	select {
	case err := <-reply:
		return err
	case <-time.After(f.timeout):
		return fmt.Errorf("flow: %s: AddInputs: timed out waiting for the head phase to accept delivery", f.id)
	}
}

// FinishInputs signals end-of-input to the head phase. It's asynchronous:
// it does not wait for, or synchronize with, any prior AddInputs call —
// callers must ensure their last AddInputs has already returned.
func (f *Flow) FinishInputs() {
	_ = f.mailbox.send(msgFinishInputs{})
}

// CachePut stores value under key in the per-flow cache.
func (f *Flow) CachePut(key, value any) error {
	reply := make(chan struct{}, 1)
	if err := f.mailbox.send(msgCachePut{key: key, value: value, reply: reply}); err != nil {
		return errFlowTerminated
	}
	<-reply
	return nil
}

// CacheGet retrieves the value stored under key, or ErrNotFound.
func (f *Flow) CacheGet(key any) (any, error) {
	reply := make(chan cacheGetReply, 1)
	if err := f.mailbox.send(msgCacheGet{key: key, reply: reply}); err != nil {
		return nil, errFlowTerminated
	}
	r := <-reply
	if !r.ok {
		return nil, ErrNotFound
	}
	return r.value, nil
}

// run is the Flow's actor loop.
func (f *Flow) run() {
	defer f.mailbox.close()

	for {
		msg, err := f.mailbox.recv()
		if err != nil {
			return
		}

		switch m := msg.(type) {
		case msgAddInputs:
			f.handleAddInputs(m)
		case msgFinishInputs:
			f.handleFinishInputs()
		case msgCachePut:
			f.cache.put(m.key, m.value)
			m.reply <- struct{}{}
		case msgCacheGet:
			v, ok := f.cache.get(m.key)
			m.reply <- cacheGetReply{value: v, ok: ok}
		case msgResults:
			f.handleResults(m)
		case msgDone:
			f.terminate(func() { f.sendClient(DoneMsg{FlowID: f.id}) })
			return
		case msgWorkerExit:
			if f.handleWorkerExit(m) {
				return
			}
		case msgTimeoutFired:
			f.terminate(func() {
				f.sendClient(ErrorMsg{FlowID: f.id, Err: &TimeoutError{FlowID: f.id}})
			})
			return
		}
	}
}

func (f *Flow) handleAddInputs(m msgAddInputs) {
	if f.state != stateExecuting {
		m.reply <- errFlowTerminated
		return
	}
	head := f.phases[0].Workers()
	if len(head) == 1 {
		// A single head worker takes the whole batch in one message, so a
		// SyncModule sees it in one HandleSyncInputs call.
		if err := head[0].mailbox.send(msgBatch{values: m.batch}); err != nil {
			m.reply <- fmt.Errorf("flow: %s: AddInputs: head phase unavailable: %w", f.id, err)
			return
		}
		m.reply <- nil
		return
	}
	for _, v := range m.batch {
		target := head[f.headRR%len(head)]
		f.headRR++
		if err := target.mailbox.send(msgBatch{values: []any{v}}); err != nil {
			m.reply <- fmt.Errorf("flow: %s: AddInputs: head phase unavailable: %w", f.id, err)
			return
		}
	}
	m.reply <- nil
}

func (f *Flow) handleFinishInputs() {
	if f.state != stateExecuting {
		return
	}
	for _, w := range f.phases[0].Workers() {
		_ = w.mailbox.send(msgEOI{})
	}
}

func (f *Flow) handleResults(m msgResults) {
	if f.state != stateExecuting {
		return
	}
	batch := m.batch
	if f.xformer != nil {
		batch = f.xformer.apply(batch)
	}
	f.sendClient(ResultMsg{PhaseID: m.phaseID, FlowID: f.id, Result: batch})
}

// handleWorkerExit implements spec's event table: a normal exit is
// ignored (flagged in DESIGN.md as the spec's own surprising open
// question), an abnormal exit fails the whole flow. Returns true if the
// flow's run loop should stop.
func (f *Flow) handleWorkerExit(m msgWorkerExit) bool {
	if m.err == nil {
		f.logger.Printf("flow: %s: phase %d worker %s exited normally before flow completion; outputs may have been dropped", f.id, m.phaseID, m.worker)
		return false
	}
	f.terminate(func() {
		f.sendClient(ErrorMsg{FlowID: f.id, Err: &PhaseError{FlowID: f.id, Phase: m.phaseID, Err: m.err}})
	})
	return true
}

// terminate cancels the timeout, tears down every worker, and delivers
// exactly one terminal message via notify.
func (f *Flow) terminate(notify func()) {
	f.doneOnce.Do(func() {
		f.state = stateTerminating
		if f.timeoutTimer != nil {
			f.timeoutTimer.Stop()
		}
		notify()
		f.teardown()
	})
}

func (f *Flow) teardown() {
	for _, ph := range f.phases {
		for _, w := range ph.Workers() {
			w.mailbox.close()
		}
	}
}

func (f *Flow) sendClient(msg ClientMessage) {
	f.client <- msg
}
