package flow

import (
	"testing"
	"time"
)

func TestMailboxSendRecv(t *testing.T) {
	m := newMailbox(4)
	if err := m.send("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := m.recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %v, want %q", got, "hello")
	}
}

func TestMailboxPreservesOrder(t *testing.T) {
	m := newMailbox(8)
	for i := 0; i < 5; i++ {
		if err := m.send(i); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		got, err := m.recv()
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if got != i {
			t.Errorf("got %v, want %d", got, i)
		}
	}
}

func TestMailboxCloseWakesReceiver(t *testing.T) {
	m := newMailbox(1)
	done := make(chan error, 1)
	go func() {
		_, err := m.recv()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	m.close()

	select {
	case err := <-done:
		if err != errDisposed {
			t.Errorf("got %v, want errDisposed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("recv did not wake up after close")
	}
}

func TestMailboxSendAfterCloseFails(t *testing.T) {
	m := newMailbox(1)
	m.close()
	if err := m.send("too late"); err != errDisposed {
		t.Errorf("got %v, want errDisposed", err)
	}
}

func TestMailboxRecvTimeout(t *testing.T) {
	m := newMailbox(1)
	_, err := m.recvTimeout(20 * time.Millisecond)
	if err != errTimeout {
		t.Errorf("got %v, want errTimeout", err)
	}
}

func TestMailboxRecvTimeoutReturnsMessageBeforeDeadline(t *testing.T) {
	m := newMailbox(1)
	if err := m.send(42); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := m.recvTimeout(time.Second)
	if err != nil {
		t.Fatalf("recvTimeout: %v", err)
	}
	if got != 42 {
		t.Errorf("got %v, want 42", got)
	}
}
