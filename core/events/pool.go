package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/types"
)

const (
	// TypeLiquidityRewarded is emitted after a settled liquidity addition has
	// been converted into points.
	TypeLiquidityRewarded = "pool.liquidity.rewarded"
	// TypeSwapRewarded is emitted after a settled swap has been converted
	// into points.
	TypeSwapRewarded = "pool.swap.rewarded"
)

// LiquidityRewarded captures the reward computed for a liquidity addition.
type LiquidityRewarded struct {
	Address    common.Address
	Amount0    *big.Int
	Amount1    *big.Int
	BaseAmount *uint256.Int
	Points     *uint256.Int
}

// EventType implements the Event interface.
func (LiquidityRewarded) EventType() string { return TypeLiquidityRewarded }

// Event converts the reward into the generic event payload.
func (e LiquidityRewarded) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityRewarded,
		Attributes: map[string]string{
			"address":     e.Address.Hex(),
			"amount0":     bigString(e.Amount0),
			"amount1":     bigString(e.Amount1),
			"base_amount": u256String(e.BaseAmount),
			"points":      u256String(e.Points),
		},
	}
}

// SwapRewarded captures the reward computed for a swap.
type SwapRewarded struct {
	Address         common.Address
	ZeroForOne      bool
	AmountSpecified *big.Int
	Amount0         *big.Int
	Amount1         *big.Int
	BaseAmount      *uint256.Int
	Points          *uint256.Int
}

// EventType implements the Event interface.
func (SwapRewarded) EventType() string { return TypeSwapRewarded }

// Event converts the reward into the generic event payload.
func (e SwapRewarded) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapRewarded,
		Attributes: map[string]string{
			"address":          e.Address.Hex(),
			"zero_for_one":     strconv.FormatBool(e.ZeroForOne),
			"amount_specified": bigString(e.AmountSpecified),
			"amount0":          bigString(e.Amount0),
			"amount1":          bigString(e.Amount1),
			"base_amount":      u256String(e.BaseAmount),
			"points":           u256String(e.Points),
		},
	}
}
