package herald

import (
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Handler is the registry of callbacks for one event stream.
// The producer that owns it calls Invoke; consumers subscribe with Add,
// AddFunc, On or Once. The zero value is not usable; create with New.
type Handler[S, E any] struct {
	callbacks []*Callback[S, E] // registration order
	members   map[*Callback[S, E]]struct{}
	mu        sync.Mutex
	name      string
	logger    zerolog.Logger
	metrics   *Metrics
}

// New creates an empty Handler.
func New[S, E any](opts ...Option) *Handler[S, E] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler[S, E]{
		members: make(map[*Callback[S, E]]struct{}),
		name:    cfg.name,
		logger:  cfg.logger.With().Str("handler", cfg.name).Logger(),
		metrics: cfg.metrics,
	}
}

// NewFrom creates a Handler with default options pre-seeded with callbacks.
// Nil callbacks are skipped.
func NewFrom[S, E any](callbacks ...*Callback[S, E]) *Handler[S, E] {
	h := New[S, E]()
	for _, cb := range callbacks {
		if cb != nil {
			h.insert(cb)
		}
	}
	return h
}

// Name returns the label given by WithName.
func (h *Handler[S, E]) Name() string { return h.name }

// Add registers cb and returns a ticket for this registration.
// Adding a callback that is already registered leaves the set unchanged;
// the returned ticket still compares equal to earlier tickets for cb.
// A nil cb is ignored and yields a ticket that is never registered.
func (h *Handler[S, E]) Add(cb *Callback[S, E]) *Ticket[S, E] {
	added := h.insert(cb)
	t := newTicket(h, cb)
	if added {
		h.logger.Debug().
			Str("ticket", t.ID()).
			Bool("once", cb.IsOnce()).
			Bool("filtered", cb.HasFilter()).
			Msg("subscribed")
	}
	return t
}

// AddFunc registers fn as a plain callback: unfiltered and never removed
// automatically.
func (h *Handler[S, E]) AddFunc(fn Func[S, E]) *Ticket[S, E] {
	return h.Add(NewCallback(fn))
}

// On wraps fn in a Callback configured by opts and registers it.
func (h *Handler[S, E]) On(fn Func[S, E], opts ...CallbackOption[S, E]) *Ticket[S, E] {
	return h.Add(NewCallback(fn, opts...))
}

// Once registers fn for a single delivery. It is On with the Once option.
func (h *Handler[S, E]) Once(fn Func[S, E], opts ...CallbackOption[S, E]) *Ticket[S, E] {
	opts = append(opts, Once[S, E]())
	return h.On(fn, opts...)
}

func (h *Handler[S, E]) insert(cb *Callback[S, E]) bool {
	if cb == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.members[cb]; exists {
		return false
	}
	h.members[cb] = struct{}{}
	h.callbacks = append(h.callbacks, cb)
	cb.fired.Store(false)
	h.metrics.subscribed(h.name)
	return true
}

// Remove unregisters cb and reports whether it was registered.
// Removing an absent callback is a no-op.
func (h *Handler[S, E]) Remove(cb *Callback[S, E]) bool {
	h.mu.Lock()
	if _, exists := h.members[cb]; !exists {
		h.mu.Unlock()
		return false
	}
	delete(h.members, cb)
	if i := slices.Index(h.callbacks, cb); i >= 0 {
		h.callbacks = slices.Delete(h.callbacks, i, i+1)
	}
	remaining := len(h.callbacks)
	h.metrics.unsubscribed(h.name, 1)
	h.mu.Unlock()

	h.logger.Debug().Int("remaining", remaining).Msg("unsubscribed")
	return true
}

// Clear removes every callback. Ticket unsubscribe hooks are not run.
func (h *Handler[S, E]) Clear() {
	h.mu.Lock()
	n := len(h.callbacks)
	h.callbacks = nil
	clear(h.members)
	h.metrics.unsubscribed(h.name, n)
	h.mu.Unlock()

	h.logger.Debug().Int("removed", n).Msg("cleared")
}

// Invoke delivers (sender, e) to the callbacks registered when the call
// begins, in registration order. Callbacks added during the pass do not
// receive the event; callbacks removed during the pass still do.
//
// A filter returning true skips its callback. A one-shot callback is
// removed before its action runs and fires at most once per registration,
// also across concurrent Invoke calls. The first error returned by an action
// stops the pass and is returned as is. Panics propagate to the caller.
func (h *Handler[S, E]) Invoke(sender S, e E) error {
	h.mu.Lock()
	snapshot := slices.Clone(h.callbacks)
	h.mu.Unlock()

	for _, cb := range snapshot {
		if cb.Filter(h, sender, e) {
			h.metrics.vetoed(h.name)
			continue
		}
		ran, err := cb.call(h, sender, e)
		if !ran {
			continue
		}
		h.metrics.delivered(h.name)
		if err != nil {
			h.metrics.failed(h.name)
			h.logger.Debug().Err(err).Msg("invoke aborted by callback error")
			return err
		}
	}
	return nil
}

// Len returns the number of registered callbacks.
func (h *Handler[S, E]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.callbacks)
}

// IsEmpty reports whether no callbacks are registered.
func (h *Handler[S, E]) IsEmpty() bool {
	return h.Len() == 0
}

// Contains reports whether cb is registered.
func (h *Handler[S, E]) Contains(cb *Callback[S, E]) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.members[cb]
	return ok
}

// Callbacks returns a copy of the registered callbacks in registration order.
func (h *Handler[S, E]) Callbacks() []*Callback[S, E] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.callbacks)
}

// All iterates over a snapshot of the registered callbacks.
func (h *Handler[S, E]) All() iter.Seq[*Callback[S, E]] {
	return slices.Values(h.Callbacks())
}

// Equal reports whether h and other hold the same set of callbacks.
func (h *Handler[S, E]) Equal(other *Handler[S, E]) bool {
	if h == other {
		return true
	}
	if h == nil || other == nil {
		return false
	}
	mine := h.Callbacks()
	if len(mine) != other.Len() {
		return false
	}
	for _, cb := range mine {
		if !other.Contains(cb) {
			return false
		}
	}
	return true
}

func (h *Handler[S, E]) String() string {
	return fmt.Sprintf("<Handler %s %d callbacks>", h.name, h.Len())
}
