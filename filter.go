package herald

// Filter combinators. Remember the polarity: true suppresses.

type filterChain[S, E any] struct {
	filters []Filter[S, E]
	all     bool
}

func (c filterChain[S, E]) Filter(h *Handler[S, E], sender S, e E) bool {
	if len(c.filters) == 0 {
		return false
	}
	for _, f := range c.filters {
		suppress := f.Filter(h, sender, e)
		if c.all && !suppress {
			return false
		}
		if !c.all && suppress {
			return true
		}
	}
	return c.all
}

// Chain suppresses delivery when any of filters does.
// Filters are evaluated in order and stop at the first veto.
func Chain[S, E any](filters ...Filter[S, E]) Filter[S, E] {
	return filterChain[S, E]{filters: compact(filters)}
}

// AllOf suppresses delivery only when every filter does.
func AllOf[S, E any](filters ...Filter[S, E]) Filter[S, E] {
	return filterChain[S, E]{filters: compact(filters), all: true}
}

type inverted[S, E any] struct {
	f Filter[S, E]
}

func (i inverted[S, E]) Filter(h *Handler[S, E], sender S, e E) bool {
	return !i.f.Filter(h, sender, e)
}

// Invert turns a filter around: events it would suppress are delivered and
// vice versa. Inverting a nil filter suppresses everything.
func Invert[S, E any](f Filter[S, E]) Filter[S, E] {
	if f == nil {
		return FilterFunc[S, E](func(S, E) bool { return true })
	}
	return inverted[S, E]{f: f}
}

func compact[S, E any](filters []Filter[S, E]) []Filter[S, E] {
	out := make([]Filter[S, E], 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
