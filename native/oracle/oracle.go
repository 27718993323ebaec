package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrInvalidPrice is returned when the feed reports a non-positive price.
	ErrInvalidPrice = errors.New("oracle: invalid price")
	// ErrStalePrice is returned when the latest round is older than the
	// configured freshness window.
	ErrStalePrice = errors.New("oracle: stale price")
	// ErrNoRound indicates the feed has not published any round yet.
	ErrNoRound = errors.New("oracle: no round available")
)

// Round mirrors the latest-round payload of an aggregator style price feed.
// Price is a signed fixed-point quantity using the feed's decimal scale.
type Round struct {
	RoundID   uint64
	Price     *big.Int
	Timestamp uint64
}

// Clone returns a deep copy of the round.
func (r Round) Clone() Round {
	clone := Round{RoundID: r.RoundID, Timestamp: r.Timestamp}
	if r.Price != nil {
		clone.Price = new(big.Int).Set(r.Price)
	}
	return clone
}

// Feed resolves the latest round from an external price source.
type Feed interface {
	LatestRound() (Round, error)
}

// Adapter wraps a Feed and validates the rounds it returns before they are
// used for reward arithmetic.
type Adapter struct {
	feed   Feed
	maxAge time.Duration
	now    func() time.Time
}

// NewAdapter constructs an adapter around the provided feed. A zero maxAge
// disables the freshness check.
func NewAdapter(feed Feed, maxAge time.Duration) *Adapter {
	if maxAge < 0 {
		maxAge = 0
	}
	return &Adapter{feed: feed, maxAge: maxAge, now: time.Now}
}

// SetNow overrides the clock used for the freshness check. It is intended for
// tests.
func (a *Adapter) SetNow(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	a.now = now
}

// LatestRound returns the validated latest round.
func (a *Adapter) LatestRound() (Round, error) {
	if a == nil || a.feed == nil {
		return Round{}, fmt.Errorf("oracle: feed not configured")
	}
	round, err := a.feed.LatestRound()
	if err != nil {
		return Round{}, fmt.Errorf("oracle: read feed: %w", err)
	}
	if !Valid(round.Price) {
		return Round{}, fmt.Errorf("%w: %s", ErrInvalidPrice, priceString(round.Price))
	}
	if a.maxAge > 0 {
		age := a.now().UTC().Sub(time.Unix(int64(round.Timestamp), 0).UTC())
		if age > a.maxAge {
			return Round{}, fmt.Errorf("%w: round %d is %s old", ErrStalePrice, round.RoundID, age)
		}
	}
	return round.Clone(), nil
}

// LatestPrice returns the latest validated price.
func (a *Adapter) LatestPrice() (*big.Int, error) {
	round, err := a.LatestRound()
	if err != nil {
		return nil, err
	}
	return round.Price, nil
}

// Valid reports whether a price may be used for reward calculations.
func Valid(price *big.Int) bool {
	return price != nil && price.Sign() > 0
}

func priceString(price *big.Int) string {
	if price == nil {
		return "<nil>"
	}
	return price.String()
}

// StaticFeed is an in-process feed whose rounds are pushed by the host. It is
// used by tests and by deployments that relay prices from another process.
type StaticFeed struct {
	mu    sync.RWMutex
	round Round
	set   bool
}

// NewStaticFeed constructs a feed that already holds the supplied price.
func NewStaticFeed(price *big.Int, timestamp uint64) *StaticFeed {
	feed := &StaticFeed{}
	feed.Set(price, timestamp)
	return feed
}

// Set publishes a new round. The round identifier increments on every call.
func (f *StaticFeed) Set(price *big.Int, timestamp uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := Round{RoundID: f.round.RoundID + 1, Timestamp: timestamp}
	if price != nil {
		next.Price = new(big.Int).Set(price)
	}
	f.round = next
	f.set = true
}

// LatestRound implements Feed.
func (f *StaticFeed) LatestRound() (Round, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return Round{}, ErrNoRound
	}
	return f.round.Clone(), nil
}
