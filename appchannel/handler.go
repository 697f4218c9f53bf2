// Package appchannel implements the full-duplex application channel
// spec.md §4.7 describes: a length-framed record protocol carrying
// validated inbound application messages one way and outbound
// application messages, handler exceptions, and shutdown signals the
// other, between the session (running inside the reactor) and a
// worker goroutine with its own timer wheel.
//
// spec.md §9 re-architects the source's attribute-inspection dispatch
// (`hasattr(handler, "setup")`, etc.) as an explicit capability: Handler
// exposes Setup/Handle/Finish, and BaseHandler gives every method a
// no-op default so an embedding type only needs to implement what it
// uses. The two-process isolation the source gets from forking plus a
// duplex pipe is preserved as a goroutine plus a net.Pipe (SPEC_FULL.md
// §6) — the channel's framing and ordering guarantees are unchanged
// either way; a future os/exec-backed worker would plug into the same
// Handler/Context contract.
package appchannel

import (
	"fixengine/reactor"

	"fixengine/fix"
)

// Context is the capability surface a Handler runs with: its static
// configuration and a private timer wheel it may schedule its own
// deferred work on, isolated from the session's reactor (spec.md §4.7:
// "the worker loop ... also drains its own timer wheel").
type Context struct {
	Config map[string]string
	Timers *reactor.Wheel
}

// Handler is the application-side capability spec.md §9 specifies:
// setup(context, config), handle(message, context) -> optional reply,
// finish(context). Any of the three may be a no-op by embedding
// BaseHandler instead of implementing it directly.
type Handler interface {
	Setup(ctx *Context)
	Handle(ctx *Context, msg *fix.Message) (*fix.Message, error)
	Finish(ctx *Context)
}

// BaseHandler gives every Handler method a no-op default. Application
// handlers embed it and override only what they need.
type BaseHandler struct{}

func (BaseHandler) Setup(*Context) {}

func (BaseHandler) Handle(*Context, *fix.Message) (*fix.Message, error) { return nil, nil }

func (BaseHandler) Finish(*Context) {}
