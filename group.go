package herald

import "sync"

// Closer is satisfied by every *Ticket regardless of its type parameters,
// so one Group can hold subscriptions to differently typed handlers.
type Closer interface {
	Close() error
}

// Group collects subscriptions owned by one component and releases them
// together. Call Close when the component shuts down.
type Group struct {
	tickets []Closer
	closed  bool
	mu      sync.Mutex
}

// NewGroup creates an empty Group.
func NewGroup() *Group {
	return &Group{}
}

// Track adds t to the group. Tracking on a closed group releases t
// immediately.
func (g *Group) Track(t Closer) {
	if t == nil {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = t.Close()
		return
	}
	g.tickets = append(g.tickets, t)
	g.mu.Unlock()
}

// Len returns the number of tracked tickets.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tickets)
}

// Close releases every tracked ticket. Safe to call multiple times.
func (g *Group) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	tickets := g.tickets
	g.tickets = nil
	g.mu.Unlock()

	for _, t := range tickets {
		_ = t.Close()
	}
	return nil
}
