package activity

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrMetricOverflow = errors.New("activity: metric overflow")
	ErrNilState       = errors.New("activity: nil state")
)

// Totals holds a user's lifetime pool activity. Counters only grow.
type Totals struct {
	LiquidityProvided *uint256.Int
	SwapVolume        *uint256.Int
	LiquidityEvents   uint64
	SwapEvents        uint64
}

// Clone returns a deep copy of the totals.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return nil
	}
	clone := &Totals{LiquidityEvents: t.LiquidityEvents, SwapEvents: t.SwapEvents}
	if t.LiquidityProvided != nil {
		clone.LiquidityProvided = new(uint256.Int).Set(t.LiquidityProvided)
	}
	if t.SwapVolume != nil {
		clone.SwapVolume = new(uint256.Int).Set(t.SwapVolume)
	}
	return clone
}

// Normalize ensures the counters are non-nil.
func (t *Totals) Normalize() *Totals {
	if t == nil {
		return nil
	}
	if t.LiquidityProvided == nil {
		t.LiquidityProvided = new(uint256.Int)
	}
	if t.SwapVolume == nil {
		t.SwapVolume = new(uint256.Int)
	}
	return t
}

// State persists activity totals.
type State interface {
	ActivityTotals(addr common.Address) (*Totals, error)
	SetActivityTotals(addr common.Address, totals *Totals) error
}

// Tracker accumulates cumulative liquidity provided and swap volume per user.
// Values are never decayed or windowed.
type Tracker struct {
	st State
}

// NewTracker constructs a tracker over the supplied state.
func NewTracker(st State) (*Tracker, error) {
	if st == nil {
		return nil, ErrNilState
	}
	return &Tracker{st: st}, nil
}

// RecordLiquidityProvision adds amount to the user's lifetime liquidity.
func (t *Tracker) RecordLiquidityProvision(user common.Address, amount *uint256.Int) error {
	totals, err := t.Totals(user)
	if err != nil {
		return err
	}
	sum, err := add(totals.LiquidityProvided, amount)
	if err != nil {
		return fmt.Errorf("liquidity: %w", err)
	}
	totals.LiquidityProvided = sum
	totals.LiquidityEvents++
	return t.st.SetActivityTotals(user, totals)
}

// RecordSwap adds amount to the user's lifetime swap volume.
func (t *Tracker) RecordSwap(user common.Address, amount *uint256.Int) error {
	totals, err := t.Totals(user)
	if err != nil {
		return err
	}
	sum, err := add(totals.SwapVolume, amount)
	if err != nil {
		return fmt.Errorf("swap volume: %w", err)
	}
	totals.SwapVolume = sum
	totals.SwapEvents++
	return t.st.SetActivityTotals(user, totals)
}

// LiquidityProvided returns the user's lifetime liquidity.
func (t *Tracker) LiquidityProvided(user common.Address) (*uint256.Int, error) {
	totals, err := t.Totals(user)
	if err != nil {
		return nil, err
	}
	return totals.LiquidityProvided, nil
}

// SwapVolume returns the user's lifetime swap volume.
func (t *Tracker) SwapVolume(user common.Address) (*uint256.Int, error) {
	totals, err := t.Totals(user)
	if err != nil {
		return nil, err
	}
	return totals.SwapVolume, nil
}

// Totals returns a normalized copy of the user's activity record.
func (t *Tracker) Totals(user common.Address) (*Totals, error) {
	totals, err := t.st.ActivityTotals(user)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		return (&Totals{}).Normalize(), nil
	}
	return totals.Clone().Normalize(), nil
}

func add(current, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return new(uint256.Int).Set(current), nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return nil, ErrMetricOverflow
	}
	return sum, nil
}
