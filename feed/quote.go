package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrUnknownCode is returned by a Source that does not list a code.
var ErrUnknownCode = errors.New("feed: unknown code")

// Quote is a point-in-time price for one instrument.
type Quote struct {
	Code   string
	Market string
	Price  int64
	Volume int64
	Time   time.Time
}

// QuoteEvent is published on Feed.Quotes when a price changes.
type QuoteEvent struct {
	Quote    Quote
	Previous int64 // zero when First is set
	Change   int64
	// First is set on the first quote the feed sees for a code.
	First bool
}

// ErrorEvent is published on Feed.Errors when a code cannot be fetched
// after all retries.
type ErrorEvent struct {
	Code string
	Err  error
}

func (e ErrorEvent) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Code, e.Err)
}

func (e ErrorEvent) Unwrap() error { return e.Err }

// Source returns the latest quote for a code.
type Source interface {
	Fetch(ctx context.Context, code string) (Quote, error)
}

// RandomWalk is a simulated Source. Each Fetch moves the price by at most
// one tick in either direction.
type RandomWalk struct {
	market string
	tick   int64
	now    func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]int64
	volume map[string]int64
}

// NewRandomWalk creates a deterministic source for the given starting prices.
func NewRandomWalk(market string, seed int64, start map[string]int64) *RandomWalk {
	prices := make(map[string]int64, len(start))
	for code, p := range start {
		prices[code] = p
	}
	return &RandomWalk{
		market: market,
		tick:   10,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // simulation only
		prices: prices,
		volume: make(map[string]int64, len(start)),
	}
}

// Fetch implements Source.
func (w *RandomWalk) Fetch(ctx context.Context, code string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	price, ok := w.prices[code]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}
	price += int64(w.rng.Intn(3)-1) * w.tick
	if price < w.tick {
		price = w.tick
	}
	w.prices[code] = price
	w.volume[code] += int64(w.rng.Intn(1000))

	return Quote{
		Code:   code,
		Market: w.market,
		Price:  price,
		Volume: w.volume[code],
		Time:   w.now(),
	}, nil
}
