// Package feed polls a quote Source and publishes price changes through
// herald handlers. It is the producer side of the event model: consumers
// subscribe to Feed.Quotes and Feed.Errors, the feed calls Invoke.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/zoobzio/herald"
)

// Feed polls Source for every configured code and publishes changes.
type Feed struct {
	// Quotes receives a QuoteEvent whenever a code's price changes.
	Quotes *herald.Handler[*Feed, QuoteEvent]
	// Errors receives an ErrorEvent when a code cannot be fetched.
	Errors *herald.Handler[*Feed, ErrorEvent]

	source  Source
	cfg     Config
	logger  zerolog.Logger
	backoff func() backoff.BackOff

	mu   sync.Mutex
	last map[string]int64
}

// Option configures a Feed.
type Option func(*options)

type options struct {
	logger  zerolog.Logger
	metrics *herald.Metrics
	backoff func() backoff.BackOff
}

// WithLogger sets the feed logger. The handlers log through it as well.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records dispatch metrics for both handlers.
func WithMetrics(m *herald.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithBackOff overrides the retry policy used for each fetch.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *options) {
		if fn != nil {
			o.backoff = fn
		}
	}
}

// New creates a Feed. cfg is normalized and validated.
func New(src Source, cfg Config, opts ...Option) (*Feed, error) {
	if src == nil {
		return nil, errors.New("feed: nil source")
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Feed{
		Quotes: herald.New[*Feed, QuoteEvent](
			herald.WithName("quotes"),
			herald.WithLogger(o.logger),
			herald.WithMetrics(o.metrics),
		),
		Errors: herald.New[*Feed, ErrorEvent](
			herald.WithName("errors"),
			herald.WithLogger(o.logger),
			herald.WithMetrics(o.metrics),
		),
		source:  src,
		cfg:     cfg,
		logger:  o.logger.With().Str("component", "feed").Logger(),
		backoff: o.backoff,
		last:    make(map[string]int64, len(cfg.Codes)),
	}
	if f.backoff == nil {
		f.backoff = f.defaultBackOff
	}
	return f, nil
}

// Config returns the normalized configuration.
func (f *Feed) Config() Config { return f.cfg }

func (f *Feed) defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = f.cfg.Period()
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(f.cfg.Retries))
}

// Run polls until ctx is done. It returns nil on cancellation and the
// first subscriber error otherwise; a failing subscriber stops the feed.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Period())
	defer ticker.Stop()

	f.logger.Info().
		Strs("codes", f.cfg.Codes).
		Dur("interval", f.cfg.Period()).
		Msg("feed started")

	for {
		if err := f.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			f.logger.Info().Msg("feed stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches every code once and publishes what changed.
func (f *Feed) Poll(ctx context.Context) error {
	for _, code := range f.cfg.Codes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.poll(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feed) poll(ctx context.Context, code string) error {
	q, err := f.fetch(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn().Err(err).Str("code", code).Msg("fetch failed")
		if err := f.Errors.Invoke(f, ErrorEvent{Code: code, Err: err}); err != nil {
			return fmt.Errorf("error subscriber for %s: %w", code, err)
		}
		return nil
	}

	f.mu.Lock()
	prev, seen := f.last[code]
	f.last[code] = q.Price
	f.mu.Unlock()

	if seen && prev == q.Price {
		return nil
	}

	ev := QuoteEvent{Quote: q, Previous: prev, Change: q.Price - prev, First: !seen}
	if ev.First {
		ev.Change = 0
	}
	if err := f.Quotes.Invoke(f, ev); err != nil {
		return fmt.Errorf("quote subscriber for %s: %w", code, err)
	}
	return nil
}

func (f *Feed) fetch(ctx context.Context, code string) (Quote, error) {
	op := func() (Quote, error) {
		q, err := f.source.Fetch(ctx, code)
		if errors.Is(err, ErrUnknownCode) {
			return q, backoff.Permanent(err)
		}
		return q, err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Debug().Err(err).Str("code", code).Dur("wait", wait).Msg("retrying fetch")
	}
	return backoff.RetryNotifyWithData(op, backoff.WithContext(f.backoff(), ctx), notify)
}

// Last returns the most recent price seen for code.
func (f *Feed) Last(code string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.last[code]
	return p, ok
}

// Close drops every subscription on both handlers.
func (f *Feed) Close() error {
	f.Quotes.Clear()
	f.Errors.Clear()
	return nil
}

// CodeFilter suppresses quotes for codes not listed. With no codes it lets
// everything through.
func CodeFilter(codes ...string) herald.Filter[*Feed, QuoteEvent] {
	return herald.FilterFunc[*Feed, QuoteEvent](func(_ *Feed, e QuoteEvent) bool {
		return len(codes) > 0 && !slices.Contains(codes, e.Quote.Code)
	})
}

// RisingOnly suppresses quotes whose price did not go up.
func RisingOnly() herald.Filter[*Feed, QuoteEvent] {
	return herald.FilterFunc[*Feed, QuoteEvent](func(_ *Feed, e QuoteEvent) bool {
		return e.Change <= 0
	})
}
