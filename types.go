// Package herald provides typed, synchronous event subscription for Go.
//
// A producer owns a Handler and calls Invoke whenever something notable
// happens. Consumers subscribe with On, Once or Add and receive a Ticket
// that cancels the subscription. Delivery is immediate and runs on the
// producer's goroutine; every Invoke pass works on a snapshot of the
// subscriber set taken before dispatch begins.
//
// Quick example:
//
//	h := herald.New[*Chart, Bar]()
//
//	t := h.On(func(c *Chart, b Bar) error {
//	    fmt.Println(b.Close)
//	    return nil
//	}, herald.WhereFunc(func(_ *Chart, b Bar) bool {
//	    return b.Volume == 0 // true suppresses delivery
//	}))
//	defer t.Close()
//
//	_ = h.Invoke(chart, bar)
//
// Subscriptions are identified by their *Callback pointer, not by the
// function it wraps: h.On(fn) twice registers two entries and fn runs twice
// per Invoke. Add the same *Callback twice to get a single entry.
//
// Filters use inverted polarity: a filter returning true vetoes delivery,
// false lets it through. A subscription without a filter always receives.
//
// Errors returned by a callback stop the current Invoke pass and are
// returned to the producer unchanged; panics are not recovered. A single
// failing subscriber therefore prevents later subscribers in the same pass
// from receiving the event.
package herald

// Func is the action half of a subscription.
// It receives the sender and the event args passed to Invoke.
type Func[S, E any] func(sender S, e E) error

// Filter decides whether an event is withheld from a subscription.
// Returning true suppresses delivery; returning false allows it.
type Filter[S, E any] interface {
	Filter(h *Handler[S, E], sender S, e E) bool
}

// FilterFunc adapts a plain predicate to the Filter interface.
// The handler argument is ignored.
type FilterFunc[S, E any] func(sender S, e E) bool

// Filter calls f(sender, e).
func (f FilterFunc[S, E]) Filter(_ *Handler[S, E], sender S, e E) bool {
	return f(sender, e)
}
