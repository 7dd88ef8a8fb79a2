package chat

import (
	"fmt"
)

// Handler processes one envelope kind for an authenticated session.
type Handler interface {
	Kind() Kind
	Handle(sess *Session, f Frame) error
}

type Dispatcher struct {
	handlers map[Kind]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Kind()] = h }

func (d *Dispatcher) Dispatch(sess *Session, f Frame) error {
	h, ok := d.handlers[f.Kind()]
	if !ok {
		return fmt.Errorf("no handler for type=%q", f.Kind())
	}
	return h.Handle(sess, f)
}
