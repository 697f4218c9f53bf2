package reactor

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a minimal Transport used to drive Reactor.Run through a
// bounded number of polls without any real I/O.
type fakeTransport struct {
	mu     sync.Mutex
	polls  int
	doneAt int
	err    error
	closed bool
}

func (f *fakeTransport) Poll(budget time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.err
}

func (f *fakeTransport) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doneAt > 0 && f.polls >= f.doneAt
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func TestReactorRunStopsWhenAllTransportsDone(t *testing.T) {
	r := New()
	ft := &fakeTransport{doneAt: 2}
	r.Register(ft)

	done := make(chan struct{})
	go func() {
		r.Run(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after transport reported Done")
	}

	if ft.pollCount() < 2 {
		t.Errorf("expected at least 2 polls, got %d", ft.pollCount())
	}
}

func TestReactorStopClosesRegisteredTransports(t *testing.T) {
	r := New()
	ft := &fakeTransport{}
	r.Register(ft)
	r.Stop()

	if !ft.closed {
		t.Error("expected Stop to close registered transports")
	}
}

func TestReactorUnregisterRemovesTransport(t *testing.T) {
	r := New()
	ft := &fakeTransport{}
	id := r.Register(ft)
	r.Unregister(id)

	// With the registry empty, Run should return immediately.
	done := make(chan struct{})
	go func() {
		r.Run(nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return with an empty registry")
	}
}

func TestReactorExceptionPolicyStopsOnFalse(t *testing.T) {
	r := New()
	ft := &fakeTransport{err: errors.New("boom")}
	r.Register(ft)

	policy := func(err error) bool { return false }

	done := make(chan struct{})
	go func() {
		r.Run(policy)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after policy returned false")
	}
}

func TestReactorAddSnapshotSavedOnStop(t *testing.T) {
	r := New()
	ft := &fakeTransport{}
	r.Register(ft)

	saved := make(chan string, 1)
	r.AddSnapshot(snapshotterFunc(func(path string) error {
		saved <- path
		return nil
	}), "/tmp/whatever.json")

	r.Stop()

	select {
	case p := <-saved:
		if p != "/tmp/whatever.json" {
			t.Errorf("unexpected snapshot path: %s", p)
		}
	default:
		t.Fatal("expected Stop to trigger a snapshot save")
	}
}

type snapshotterFunc func(path string) error

func (f snapshotterFunc) Save(path string) error { return f(path) }
