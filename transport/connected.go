package transport

import (
	"net"
	"sync"
	"time"

	"fixengine/fix"
)

const readChunkSize = 10 * 1024 // 10 KiB, per spec.md §4.3

// Connected is a live, already-established socket. Readable delivers up
// to readChunkSize bytes to the session per poll; writable drains at
// most one queued frame per dispatch so other transports keep making
// progress in the same reactor tick (spec.md §4.3's fairness note).
type Connected struct {
	conn   net.Conn
	events Events

	mu      sync.Mutex
	outbox  [][]byte
	closed  bool
	lastErr error
}

// NewConnected wraps an already-connected net.Conn (TLS or plain) for
// reactor-driven duplex traffic.
func NewConnected(conn net.Conn, events Events) *Connected {
	return &Connected{conn: conn, events: events}
}

// Enqueue appends a fully-serialized frame to the outbound queue. Safe
// to call from any goroutine (the session calls it synchronously from
// the reactor thread in normal operation, but tests may call it
// directly).
func (c *Connected) Enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbox = append(c.outbox, frame)
}

// Pending reports how many frames are queued for write.
func (c *Connected) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outbox)
}

// Poll reads once (bounded by budget) and writes at most one queued
// frame, per spec.md §4.3.
func (c *Connected) Poll(budget time.Duration) error {
	if c.isClosed() {
		return nil
	}

	readBudget := budget
	if readBudget <= 0 {
		readBudget = time.Millisecond
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(readBudget))

	buf := make([]byte, readChunkSize)
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.events.OnReadable(buf[:n])
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// Nothing ready this tick — not a failure.
		} else {
			return c.fail(err)
		}
	}

	return c.drainOne()
}

func (c *Connected) drainOne() error {
	c.mu.Lock()
	if len(c.outbox) == 0 {
		c.mu.Unlock()
		return nil
	}
	frame := c.outbox[0]
	c.outbox = c.outbox[1:]
	c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write(frame); err != nil {
		return c.fail(err)
	}
	c.events.OnWritable()
	return nil
}

// fail notifies the session of a dead connection and reports the error
// up to the reactor only when it wasn't already fully handled here: a
// recoverable disconnect has already been delivered via OnDisconnect
// (the session reconnects/re-listens on its own), so it is not also a
// loop-level exception — only a non-recoverable error, which still
// needs OnError, is propagated to the caller.
func (c *Connected) fail(err error) error {
	recoverable := IsRecoverable(err)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.events.OnDisconnect(recoverable)
	if recoverable {
		return nil
	}
	c.events.OnError(&fix.TransportError{Source: "connected", Err: err, Recoverable: false})
	return err
}

func (c *Connected) Done() bool {
	return c.isClosed()
}

func (c *Connected) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connected) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// LastError returns the most recent I/O error observed, or nil.
func (c *Connected) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
