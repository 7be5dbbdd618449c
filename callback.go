package herald

import (
	"fmt"
	"sync/atomic"
)

// Callback is one registered entry in a Handler.
// Its identity is the pointer: adding the same *Callback twice keeps a
// single entry, while two Callbacks built from the same function are
// distinct subscriptions.
type Callback[S, E any] struct {
	fn    Func[S, E]
	where Filter[S, E]
	once  bool
	fired atomic.Bool // one-shot claim, reset each time the callback is registered
}

type callbackConfig[S, E any] struct {
	where Filter[S, E]
	once  bool
}

// CallbackOption configures a Callback built by NewCallback, On or Once.
type CallbackOption[S, E any] func(*callbackConfig[S, E])

// Where attaches a filter to the subscription.
// A nil filter leaves the subscription unfiltered.
func Where[S, E any](f Filter[S, E]) CallbackOption[S, E] {
	return func(c *callbackConfig[S, E]) {
		c.where = f
	}
}

// WhereFunc attaches a predicate filter. The predicate returns true to
// suppress delivery.
func WhereFunc[S, E any](f func(sender S, e E) bool) CallbackOption[S, E] {
	return func(c *callbackConfig[S, E]) {
		if f != nil {
			c.where = FilterFunc[S, E](f)
		}
	}
}

// Once marks the subscription for removal after its first delivery.
func Once[S, E any]() CallbackOption[S, E] {
	return func(c *callbackConfig[S, E]) {
		c.once = true
	}
}

// NewCallback wraps fn in a Callback configured by opts.
func NewCallback[S, E any](fn Func[S, E], opts ...CallbackOption[S, E]) *Callback[S, E] {
	var cfg callbackConfig[S, E]
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Callback[S, E]{
		fn:    fn,
		where: cfg.where,
		once:  cfg.once,
	}
}

// Filter reports whether the event should be withheld from this callback.
// Callbacks without a filter never suppress.
func (c *Callback[S, E]) Filter(h *Handler[S, E], sender S, e E) bool {
	if c.where == nil {
		return false
	}
	return c.where.Filter(h, sender, e)
}

// Call runs the action. A one-shot callback removes itself from h first,
// so an action that subscribes the same callback again stays registered.
// A one-shot callback runs at most once per registration, even when it was
// already removed from h or several Invoke passes race for it.
func (c *Callback[S, E]) Call(h *Handler[S, E], sender S, e E) error {
	_, err := c.call(h, sender, e)
	return err
}

// call reports whether the action ran.
func (c *Callback[S, E]) call(h *Handler[S, E], sender S, e E) (bool, error) {
	if c.once {
		if !c.fired.CompareAndSwap(false, true) {
			return false, nil
		}
		if h != nil {
			h.Remove(c)
		}
	}
	if c.fn == nil {
		return true, nil
	}
	return true, c.fn(sender, e)
}

// IsOnce reports whether the callback removes itself after delivery.
func (c *Callback[S, E]) IsOnce() bool { return c.once }

// HasFilter reports whether a filter is attached.
func (c *Callback[S, E]) HasFilter() bool { return c.where != nil }

func (c *Callback[S, E]) String() string {
	return fmt.Sprintf("<Callback %p once=%t filtered=%t>", c, c.once, c.where != nil)
}
