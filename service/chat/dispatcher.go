package chat

import (
	"PRelay/logger"
)

// Handler processes one inbound event kind.
type Handler interface {
	Type() EventType
	Handle(ctx *Context, f *Frame, c *Client) error
}

// Context hands the server to handlers.
type Context struct {
	S *Server
}

type Dispatcher struct {
	handlers map[EventType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Get(t EventType) Handler {
	h, ok := d.handlers[t]
	if !ok {
		logger.Debugf("no handler for type=%s", t)
		return nil
	}
	return h
}
