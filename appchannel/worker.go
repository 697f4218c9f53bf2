package appchannel

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"fixengine/fix"
	"fixengine/reactor"
)

// workerTick is the worker loop's readiness poll interval, per spec.md
// §4.7: "a simple readiness poll with a 500 ms tick during which it
// also drains its own timer wheel."
const workerTick = 500 * time.Millisecond

// runWorker is the worker side of the application channel. It owns a
// private timer Wheel the handler's Context exposes, calls Setup once,
// Handle for every inbound application message (in order, one at a
// time), and Finish on shutdown. spec.md §4.7 describes a
// process-forked worker that "flushes any inherited timers immediately
// on start"; this in-process substitute (SPEC_FULL.md §6) starts with a
// fresh Wheel and flushes it anyway so the contract reads identically
// regardless of which isolation variant backs Context.Timers.
func runWorker(conn net.Conn, handler Handler, cfg map[string]string) {
	wheel := reactor.NewWheel()
	wheel.Flush()

	ctx := &Context{Config: cfg, Timers: wheel}
	handler.Setup(ctx)
	defer handler.Finish(ctx)
	defer conn.Close()

	enc := gob.NewEncoder(conn)
	dec := gob.NewDecoder(conn)

	recv := make(chan record)
	recvErr := make(chan error, 1)
	go func() {
		for {
			var r record
			if err := dec.Decode(&r); err != nil {
				recvErr <- err
				return
			}
			recv <- r
		}
	}()

	ticker := time.NewTicker(workerTick)
	defer ticker.Stop()

	for {
		select {
		case r := <-recv:
			if r.Kind == kindShutdown {
				_ = enc.Encode(record{Kind: kindShutdown})
				return
			}
			handleOne(ctx, handler, r, enc)

		case err := <-recvErr:
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("appchannel: worker decode error, exiting")
			}
			return

		case <-ticker.C:
			wheel.RunDue()
		}
	}
}

// handleOne calls handler.Handle for one inbound message, recovering a
// handler panic into an exception record rather than letting it crash
// the worker — spec.md §4.7: "Exceptions raised by the handler are
// delivered as exception records and re-raised in the session context."
func handleOne(ctx *Context, handler Handler, r record, enc *gob.Encoder) {
	reply, err := invokeHandle(ctx, handler, r.Message)
	if err != nil {
		_ = enc.Encode(record{Kind: kindException, ErrText: err.Error()})
		return
	}
	if reply != nil {
		_ = enc.Encode(record{Kind: kindOutbound, Message: reply})
	}
}

func invokeHandle(ctx *Context, handler Handler, msg *fix.Message) (reply *fix.Message, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("appchannel: handler panic: %v", rec)
		}
	}()
	return handler.Handle(ctx, msg)
}
