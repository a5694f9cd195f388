package flow

import (
	"fmt"
	"time"

	"github.com/tanmoyio/flowmr/phase"
)

// inboxState is the PhaseWorker's local state machine (spec's
// Open -> DoneLocal -> DoneAnnounced).
type inboxState int

const (
	inboxOpen inboxState = iota
	inboxDoneLocal
	inboxDoneAnnounced
)

const defaultMailboxCapacity = 64

// PhaseWorker runs one instance of a phase module. It owns the module's
// user state between invocations and is never touched from outside its
// own goroutine except through its mailbox.
type PhaseWorker struct {
	phaseID int
	name    string

	module     phase.Module
	syncModule phase.SyncModule
	userState  any
	behaviors  map[phase.Behavior]struct{}

	next  []*PhaseWorker
	rrIdx int

	flow        *Flow
	mailbox     *mailbox
	inboxState  inboxState
	idleTimeout time.Duration

	// Set only for members of a ConvergenceGroup.
	isConverging bool
	isLeader     bool
	leader       *PhaseWorker
	partners     []*PhaseWorker

	// Leader-only quorum bookkeeping; touched only from the leader's own
	// run loop goroutine, never concurrently.
	leaderSelfDone  bool
	leaderDoneCount int
	leaderFailed    bool
}

// Name returns the worker's generated name, e.g. "phase:1:worker:ab3F".
func (w *PhaseWorker) Name() string { return w.name }

// PhaseID returns the 0-based index of the phase this worker belongs to.
func (w *PhaseWorker) PhaseID() int { return w.phaseID }

// run is the worker's actor loop. It returns when the mailbox is
// disposed (flow teardown), when the worker completes its own EOI
// propagation normally, or when it fails.
func (w *PhaseWorker) run() {
	for {
		msg, err := w.receive()
		if err == errTimeout {
			if !w.onTimeout() {
				return
			}
			continue
		}
		if err != nil {
			// Mailbox disposed: the flow is tearing down.
			return
		}

		switch m := msg.(type) {
		case msgBatch:
			if !w.onBatch(m.values) {
				return
			}
		case msgEOI:
			if w.onEOI() {
				return
			}
		case msgPartnerDone:
			w.leaderDoneCount++
			if w.leaderMaybeFinish() {
				return
			}
		case msgMemberFailed:
			w.leaderFailed = true
			w.reportExit(fmt.Errorf("convergence partner %s failed: %w", m.worker, m.err))
			return
		default:
			w.fail(fmt.Errorf("phase worker: unexpected message %T", msg))
			return
		}
	}
}

func (w *PhaseWorker) receive() (any, error) {
	if w.idleTimeout > 0 {
		return w.mailbox.recvTimeout(w.idleTimeout)
	}
	return w.mailbox.recv()
}

// onBatch processes a batch of inputs. Returns false if the worker should
// stop running (failure or reject-after-EOI).
func (w *PhaseWorker) onBatch(values []any) bool {
	if w.inboxState != inboxOpen {
		w.fail(fmt.Errorf("phase worker %s: received input after end-of-input", w.name))
		return false
	}

	out, err := w.handleValues(values)
	if err != nil {
		w.fail(fmt.Errorf("phase worker %s: handle input: %w", w.name, err))
		return false
	}
	w.emit(out)
	return true
}

// handleValues dispatches to the module's batched fast path if available,
// otherwise calls HandleInput once per value.
func (w *PhaseWorker) handleValues(values []any) (out phase.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in phase module: %v", r)
		}
	}()

	if w.syncModule != nil {
		var next any
		out, next, err = w.syncModule.HandleSyncInputs(values, w.userState)
		w.userState = next
		return out, err
	}

	var all phase.Result
	for _, v := range values {
		var batch phase.Result
		var next any
		batch, next, err = w.module.HandleInput(v, w.userState)
		w.userState = next
		if err != nil {
			return all, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (w *PhaseWorker) onTimeout() bool {
	out, err := w.callHandleTimeout()
	if err != nil {
		w.fail(fmt.Errorf("phase worker %s: handle timeout: %w", w.name, err))
		return false
	}
	w.emit(out)
	return true
}

func (w *PhaseWorker) callHandleTimeout() (out phase.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in phase module: %v", r)
		}
	}()
	var next any
	out, next, err = w.module.HandleTimeout(w.userState)
	w.userState = next
	return out, err
}

// onEOI handles upstream end-of-input. Returns true if the worker should
// stop running after this call.
func (w *PhaseWorker) onEOI() bool {
	if w.inboxState != inboxOpen {
		w.fail(fmt.Errorf("phase worker %s: received duplicate end-of-input", w.name))
		return true
	}
	w.inboxState = inboxDoneLocal

	out, err := w.callHandleInputsDone()
	if err != nil {
		w.fail(fmt.Errorf("phase worker %s: handle inputs done: %w", w.name, err))
		return true
	}
	w.emit(out)
	w.inboxState = inboxDoneAnnounced

	if !w.isConverging {
		w.finishDownstream()
		return true
	}

	if w.isLeader {
		w.leaderSelfDone = true
		return w.leaderMaybeFinish()
	}

	// Non-leader: hand off to the leader and stop. Best-effort: if the
	// leader has already died, this send fails silently.
	_ = w.leader.mailbox.send(msgPartnerDone{})
	return true
}

func (w *PhaseWorker) callHandleInputsDone() (out phase.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in phase module: %v", r)
		}
	}()
	var next any
	out, next, err = w.module.HandleInputsDone(w.userState)
	w.userState = next
	return out, err
}

// leaderMaybeFinish checks whether every partner (including the leader
// itself) has processed its own EOI, and if so emits the group's single
// downstream EOI. Only ever called from the leader's own run loop, so no
// synchronization is needed across members.
func (w *PhaseWorker) leaderMaybeFinish() bool {
	if w.leaderFailed {
		return false
	}
	if w.leaderSelfDone && w.leaderDoneCount >= len(w.partners)-1 {
		w.finishDownstream()
		return true
	}
	return false
}

// emit forwards a batch of outputs per the emission contract: to the flow
// if this is a tail worker, otherwise round-robin across next.
func (w *PhaseWorker) emit(batch phase.Result) {
	if len(batch) == 0 {
		return
	}
	if len(w.next) == 0 {
		_ = w.flow.mailbox.send(msgResults{phaseID: w.phaseID, batch: batch})
		return
	}
	for _, v := range batch {
		target := w.next[w.rrIdx%len(w.next)]
		w.rrIdx++
		_ = target.mailbox.send(msgBatch{values: []any{v}})
	}
}

// finishDownstream propagates end-of-input: to every distinct member of
// next, or, if next is empty (tail), to the flow as a done signal.
func (w *PhaseWorker) finishDownstream() {
	if len(w.next) == 0 {
		_ = w.flow.mailbox.send(msgDone{phaseID: w.phaseID})
		return
	}
	for _, n := range w.next {
		_ = n.mailbox.send(msgEOI{})
	}
}

// fail reports this worker's abnormal exit to the flow (and, if it's a
// non-leader convergence member, to its leader so the group doesn't
// re-issue EOI).
func (w *PhaseWorker) fail(err error) {
	w.reportExit(err)
	if w.isConverging && !w.isLeader {
		_ = w.leader.mailbox.send(msgMemberFailed{worker: w.name, err: err})
	}
}

func (w *PhaseWorker) reportExit(err error) {
	_ = w.flow.mailbox.send(msgWorkerExit{phaseID: w.phaseID, worker: w.name, err: err})
}
