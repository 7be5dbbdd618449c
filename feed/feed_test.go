package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/herald"
)

// scripted returns queued prices per code; an error entry fails that call.
type scripted struct {
	mu     sync.Mutex
	prices map[string][]any
	calls  map[string]int
}

func newScripted(prices map[string][]any) *scripted {
	return &scripted{prices: prices, calls: make(map[string]int)}
}

func (s *scripted) Fetch(_ context.Context, code string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[code]++
	queue, ok := s.prices[code]
	if !ok {
		return Quote{}, ErrUnknownCode
	}
	if len(queue) == 0 {
		return Quote{}, errors.New("script exhausted")
	}
	next := queue[0]
	if len(queue) > 1 {
		s.prices[code] = queue[1:]
	}
	switch v := next.(type) {
	case error:
		return Quote{}, v
	case int:
		return Quote{Code: code, Market: "KRX", Price: int64(v), Time: time.Unix(0, 0)}, nil
	}
	panic("bad script entry")
}

func (s *scripted) callCount(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[code]
}

func noWait() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
}

func newTestFeed(t *testing.T, src Source, codes ...string) *Feed {
	t.Helper()
	f, err := New(src, Config{Codes: codes, Interval: "10ms"}, WithBackOff(noWait))
	require.NoError(t, err)
	return f
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Codes: []string{"A"}})
	assert.Error(t, err)

	_, err = New(newScripted(nil), Config{})
	assert.ErrorIs(t, err, ErrNoCodes)

	_, err = New(newScripted(nil), Config{Codes: []string{"A"}, Interval: "soon"})
	assert.Error(t, err)
}

func TestPollPublishesChangesOnly(t *testing.T) {
	src := newScripted(map[string][]any{"A": {100, 100, 110, 90}})
	f := newTestFeed(t, src, "A")

	var events []QuoteEvent
	f.Quotes.AddFunc(func(sender *Feed, e QuoteEvent) error {
		assert.Same(t, f, sender)
		events = append(events, e)
		return nil
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, f.Poll(context.Background()))
	}

	require.Len(t, events, 3)
	assert.True(t, events[0].First)
	assert.Equal(t, int64(0), events[0].Change)
	assert.False(t, events[1].First)
	assert.Equal(t, int64(10), events[1].Change)
	assert.Equal(t, int64(100), events[1].Previous)
	assert.Equal(t, int64(-20), events[2].Change)

	last, ok := f.Last("A")
	assert.True(t, ok)
	assert.Equal(t, int64(90), last)
}

func TestPollFirstAfterZeroPrice(t *testing.T) {
	src := newScripted(map[string][]any{"A": {0, 10}})
	f := newTestFeed(t, src, "A")

	var events []QuoteEvent
	f.Quotes.AddFunc(func(_ *Feed, e QuoteEvent) error {
		events = append(events, e)
		return nil
	})

	require.NoError(t, f.Poll(context.Background()))
	require.NoError(t, f.Poll(context.Background()))

	require.Len(t, events, 2)
	assert.True(t, events[0].First)
	assert.False(t, events[1].First)
	assert.Equal(t, int64(0), events[1].Previous)
	assert.Equal(t, int64(10), events[1].Change)
}

func TestFilters(t *testing.T) {
	src := newScripted(map[string][]any{
		"A": {100, 110, 105},
		"B": {50, 60, 70},
	})
	f := newTestFeed(t, src, "A", "B")

	var onlyB, rising []string
	f.Quotes.On(func(_ *Feed, e QuoteEvent) error {
		onlyB = append(onlyB, e.Quote.Code)
		return nil
	}, herald.Where(CodeFilter("B")))
	f.Quotes.On(func(_ *Feed, e QuoteEvent) error {
		rising = append(rising, e.Quote.Code)
		return nil
	}, herald.Where(RisingOnly()))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.Poll(context.Background()))
	}

	assert.Equal(t, []string{"B", "B", "B"}, onlyB)
	assert.Equal(t, []string{"A", "B", "B"}, rising)
}

func TestCodeFilterEmptyAllowsAll(t *testing.T) {
	assert.False(t, CodeFilter().Filter(nil, nil, QuoteEvent{Quote: Quote{Code: "X"}}))
}

func TestFetchRetriesThenPublishesError(t *testing.T) {
	flaky := errors.New("timeout")
	src := newScripted(map[string][]any{"A": {flaky, flaky, 100}})
	f := newTestFeed(t, src, "A")

	var got []int64
	f.Quotes.AddFunc(func(_ *Feed, e QuoteEvent) error {
		got = append(got, e.Quote.Price)
		return nil
	})
	require.NoError(t, f.Poll(context.Background()))
	assert.Equal(t, []int64{100}, got)
	assert.Equal(t, 3, src.callCount("A"))

	down := newScripted(map[string][]any{"A": {flaky}})
	f = newTestFeed(t, down, "A")
	var failures []ErrorEvent
	f.Errors.AddFunc(func(_ *Feed, e ErrorEvent) error {
		failures = append(failures, e)
		return nil
	})
	require.NoError(t, f.Poll(context.Background()))
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], flaky)
	assert.Equal(t, 3, down.callCount("A"))
}

func TestUnknownCodeIsNotRetried(t *testing.T) {
	src := newScripted(map[string][]any{})
	f := newTestFeed(t, src, "ZZZ")

	var failures []ErrorEvent
	f.Errors.AddFunc(func(_ *Feed, e ErrorEvent) error {
		failures = append(failures, e)
		return nil
	})
	require.NoError(t, f.Poll(context.Background()))

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrUnknownCode)
	assert.Equal(t, 1, src.callCount("ZZZ"))
}

func TestSubscriberErrorStopsRun(t *testing.T) {
	src := newScripted(map[string][]any{"A": {100, 110}})
	f := newTestFeed(t, src, "A")

	reject := errors.New("rejected")
	f.Quotes.AddFunc(func(*Feed, QuoteEvent) error { return reject })

	err := f.Run(context.Background())
	assert.ErrorIs(t, err, reject)
	assert.Contains(t, err.Error(), "quote subscriber for A")
}

func TestRunStopsOnCancel(t *testing.T) {
	src := NewRandomWalk("KRX", 1, map[string]int64{"A": 1000})
	f := newTestFeed(t, src, "A")

	ctx, cancel := context.WithCancel(context.Background())
	polled := make(chan struct{}, 1)
	f.Quotes.Once(func(*Feed, QuoteEvent) error {
		polled <- struct{}{}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("feed never published")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestClose(t *testing.T) {
	f := newTestFeed(t, newScripted(nil), "A")
	ticket := f.Quotes.AddFunc(func(*Feed, QuoteEvent) error { return nil })
	f.Errors.AddFunc(func(*Feed, ErrorEvent) error { return nil })

	require.NoError(t, f.Close())
	assert.False(t, ticket.Registered())
	assert.True(t, f.Errors.IsEmpty())
}
