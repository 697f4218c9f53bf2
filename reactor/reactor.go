package reactor

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Transport is the contract the reactor drives every registered endpoint
// through. Poll is given a budget (an equal share of this iteration's
// 500ms tick) and should not block past it; it performs
// whatever non-blocking-equivalent work is due (read, accept, connect,
// flush one outbound frame) and dispatches the corresponding event
// callback on its owning session. Grounded on
// original_source/sxsuite/reaktor.py's asyncore.loop(timeout, map) call,
// which polls every registered channel for readable/writable/error
// readiness each pass.
type Transport interface {
	// Poll services this transport for up to budget and returns nil, or
	// a transport-level error if the connection is no longer usable.
	Poll(budget time.Duration) error
	// Done reports whether this transport's session has reached STOPPED
	// and it can be dropped from the registry.
	Done() bool
	// Close releases the transport's OS resources immediately.
	Close() error
}

// Snapshotter is a stateful object snapshotted on a fixed cadence and on
// clean shutdown (spec.md §4.2); session.Session implements it.
type Snapshotter interface {
	Save(path string) error
}

type snapshotEntry struct {
	obj  Snapshotter
	path string
}

// ExceptionPolicy decides whether the reactor should keep running after
// an unhandled exception escapes a callback. Returning false stops the
// loop. A nil policy means "stop on first unhandled exception."
type ExceptionPolicy func(err error) (continueRunning bool)

// Reactor is the single-threaded readiness loop described in spec.md
// §4.2. It owns a registry of transports keyed by an opaque id (in place
// of the source's raw file descriptor, per spec.md §9's arena/registry
// re-architecture) and a timer Wheel all registered transports share.
type Reactor struct {
	Timers *Wheel

	mu         sync.Mutex
	transports map[uint64]Transport
	nextID     uint64

	snapshots    []snapshotEntry
	snapshotTick time.Duration

	stopping bool
}

const defaultSnapshotInterval = 5 * time.Second
const tickBudget = 500 * time.Millisecond

// New creates an empty Reactor with its own timer wheel.
func New() *Reactor {
	return &Reactor{
		Timers:       NewWheel(),
		transports:   make(map[uint64]Transport),
		snapshotTick: defaultSnapshotInterval,
	}
}

// Register adds a transport to the registry and returns its id.
func (r *Reactor) Register(t Transport) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.transports[id] = t
	return id
}

// Unregister removes a transport from the registry without closing it
// (the caller is expected to have already closed it, or to be replacing
// it — e.g. an acceptor handing off to a freshly connected transport).
func (r *Reactor) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transports, id)
}

// AddSnapshot registers a Snapshotter to be saved to path on the
// snapshot cadence and on clean shutdown.
func (r *Reactor) AddSnapshot(obj Snapshotter, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshotEntry{obj: obj, path: path})
}

// SetSnapshotInterval overrides the default 5s snapshot cadence.
func (r *Reactor) SetSnapshotInterval(d time.Duration) {
	r.snapshotTick = d
}

// Run loops while the registry is non-empty and not every transport has
// reported Done. Each iteration polls every registered transport up to
// tickBudget, then runs due timers, on the cadence set by
// SetSnapshotInterval/defaultSnapshotInterval snapshots every stateful
// object. Grounded on reaktor.py's Reaktor.run: the `while self.map and
// not self.stopped()` loop, `asyncore.loop(0.5, False, self.map, 1)`,
// then `run_timers()`.
func (r *Reactor) Run(policy ExceptionPolicy) {
	var lastSnapshot time.Time

	for {
		r.mu.Lock()
		empty := len(r.transports) == 0
		r.mu.Unlock()
		if empty || r.isStopped() {
			break
		}

		r.pollOnce(policy)
		r.Timers.RunDue()

		if time.Since(lastSnapshot) >= r.snapshotTick {
			r.saveSnapshots()
			lastSnapshot = time.Now()
		}

		r.reapDone()
	}

	log.Debug("reactor: all sessions stopped")
}

func (r *Reactor) pollOnce(policy ExceptionPolicy) {
	r.mu.Lock()
	transports := make([]Transport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.mu.Unlock()

	if len(transports) == 0 {
		time.Sleep(tickBudget)
		return
	}

	perTransport := tickBudget / time.Duration(len(transports))
	if perTransport <= 0 {
		perTransport = time.Millisecond
	}

	for _, t := range transports {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.handleException(policy, recoverErr(rec))
				}
			}()
			if err := t.Poll(perTransport); err != nil {
				r.handleException(policy, err)
			}
		}()
	}
}

func (r *Reactor) handleException(policy ExceptionPolicy, err error) {
	log.WithError(err).Debug("reactor: callback error")
	if policy == nil {
		r.Stop()
		return
	}
	if !policy(err) {
		r.Stop()
	}
}

func recoverErr(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return &panicError{rec}
}

type panicError struct{ v interface{} }

func (p *panicError) Error() string { return "reactor: recovered panic" }

func (r *Reactor) saveSnapshots() {
	r.mu.Lock()
	snaps := append([]snapshotEntry(nil), r.snapshots...)
	r.mu.Unlock()

	for _, s := range snaps {
		if err := s.obj.Save(s.path); err != nil {
			log.WithError(err).Warn("reactor: snapshot save failed")
		}
	}
}

func (r *Reactor) reapDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.transports {
		if t.Done() {
			delete(r.transports, id)
		}
	}
}

func (r *Reactor) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		return true
	}
	if len(r.transports) == 0 {
		return false
	}
	for _, t := range r.transports {
		if !t.Done() {
			return false
		}
	}
	return true
}

// Stop asks every registered transport to close cooperatively and marks
// the loop for exit on its next check, mirroring reaktor.py's
// sigterm/stop handlers (`for t in self.map.values(): t.stop()`).
func (r *Reactor) Stop() {
	r.mu.Lock()
	transports := make([]Transport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.stopping = true
	r.mu.Unlock()

	r.saveSnapshots()
	for _, t := range transports {
		_ = t.Close()
	}
}
