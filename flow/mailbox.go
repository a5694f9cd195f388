package flow

import (
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// mailbox is the private inbox of one actor (a PhaseWorker, a
// ConvergenceGroup leader, or the Flow itself). It's a blocking,
// disposable queue: Put blocks a producer if the buffer is full, Get
// blocks a consumer until a message arrives, and Dispose wakes every
// blocked caller with errDisposed so an actor's loop can unwind cleanly
// on flow termination.
type mailbox struct {
	ring *queue.RingBuffer
}

// newMailbox returns a mailbox with room for capacity pending messages
// before Put starts blocking producers.
func newMailbox(capacity int) *mailbox {
	if capacity < 1 {
		capacity = 1
	}
	return &mailbox{ring: queue.NewRingBuffer(uint64(capacity))}
}

// send enqueues msg, blocking if the mailbox is full. It returns
// errDisposed if the mailbox has been torn down.
func (m *mailbox) send(msg any) error {
	err := m.ring.Put(msg)
	if err == queue.ErrDisposed {
		return errDisposed
	}
	return err
}

// recv blocks until a message is available or the mailbox is disposed.
func (m *mailbox) recv() (any, error) {
	msg, err := m.ring.Get()
	if err == queue.ErrDisposed {
		return nil, errDisposed
	}
	return msg, err
}

// recvTimeout blocks until a message is available, the mailbox is
// disposed, or d elapses. Used by a PhaseWorker with a configured idle
// timeout to drive its module's HandleTimeout callback.
func (m *mailbox) recvTimeout(d time.Duration) (any, error) {
	msg, err := m.ring.Poll(d)
	switch err {
	case nil:
		return msg, nil
	case queue.ErrDisposed:
		return nil, errDisposed
	case queue.ErrTimeout:
		return nil, errTimeout
	default:
		return nil, err
	}
}

// close tears the mailbox down; any blocked or future send/recv returns
// errDisposed.
func (m *mailbox) close() {
	m.ring.Dispose()
}
