package herald

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Ticket represents one subscription returned by Add, AddFunc, On or Once.
// Call Unsubscribe or Close to cancel it.
//
// Tickets are not released by the garbage collector. A consumer that wants
// the subscription tied to a scope must hold the ticket and release it
// explicitly (defer t.Close()), bind it to a context with Bind, or track it
// in a Group. Dropping a ticket on the floor leaves the callback registered.
type Ticket[S, E any] struct {
	id       string
	handler  *Handler[S, E]
	callback *Callback[S, E]

	mu    sync.Mutex
	hooks []func(*Ticket[S, E])
	stops []func() bool
}

func newTicket[S, E any](h *Handler[S, E], cb *Callback[S, E]) *Ticket[S, E] {
	return &Ticket[S, E]{
		id:       ulid.Make().String(),
		handler:  h,
		callback: cb,
	}
}

// ID returns a unique identifier for this ticket instance.
func (t *Ticket[S, E]) ID() string { return t.id }

// Handler returns the handler the subscription belongs to.
func (t *Ticket[S, E]) Handler() *Handler[S, E] { return t.handler }

// Callback returns the subscribed callback.
func (t *Ticket[S, E]) Callback() *Callback[S, E] { return t.callback }

// Registered reports whether the callback is still in the handler.
func (t *Ticket[S, E]) Registered() bool {
	return t.handler.Contains(t.callback)
}

// IsOnce reports whether the subscription ends after its first delivery.
func (t *Ticket[S, E]) IsOnce() bool {
	return t.callback != nil && t.callback.IsOnce()
}

// OnUnsubscribe registers fn to run when Unsubscribe actually removes the
// callback. Hooks run in registration order and receive the ticket.
func (t *Ticket[S, E]) OnUnsubscribe(fn func(*Ticket[S, E])) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}

// Unsubscribe removes the callback from the handler. When the callback was
// registered, the OnUnsubscribe hooks run. Safe to call multiple times;
// later calls are no-ops.
func (t *Ticket[S, E]) Unsubscribe() {
	t.mu.Lock()
	stops := t.stops
	t.stops = nil
	t.mu.Unlock()
	for _, stop := range stops {
		stop()
	}

	if !t.handler.Remove(t.callback) {
		return
	}

	t.mu.Lock()
	hooks := make([]func(*Ticket[S, E]), len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.Unlock()

	for _, hook := range hooks {
		hook(t)
	}
}

// Close unsubscribes. It always returns nil and exists so a ticket can be
// released with defer or handed to code expecting an io.Closer.
func (t *Ticket[S, E]) Close() error {
	t.Unsubscribe()
	return nil
}

// Bind unsubscribes the ticket once ctx is done and returns the ticket.
func (t *Ticket[S, E]) Bind(ctx context.Context) *Ticket[S, E] {
	stop := context.AfterFunc(ctx, t.Unsubscribe)
	t.mu.Lock()
	t.stops = append(t.stops, stop)
	t.mu.Unlock()
	return t
}

// Equal reports whether both tickets refer to the same callback in the
// same handler.
func (t *Ticket[S, E]) Equal(other *Ticket[S, E]) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.handler == other.handler && t.callback == other.callback
}

func (t *Ticket[S, E]) String() string {
	return fmt.Sprintf("<Ticket %s %v>", t.id, t.callback)
}
