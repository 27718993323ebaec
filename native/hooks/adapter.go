package hooks

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/events"
	nativecommon "poolquest/native/common"
)

const moduleName = "rewards"

var (
	ErrDeltaOverflow = errors.New("hooks: balance delta exceeds 256 bits")
	ErrNotConfigured = errors.New("hooks: adapter not configured")
)

// BalanceDelta is the signed settlement of a pool operation from the user's
// perspective. Amount0 is denominated in currency0, the base asset.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// BaseAmount returns |Amount0|, the settled base-asset quantity.
func (d BalanceDelta) BaseAmount() (*uint256.Int, error) {
	if d.Amount0 == nil {
		return new(uint256.Int), nil
	}
	amount, overflow := uint256.FromBig(new(big.Int).Abs(d.Amount0))
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrDeltaOverflow, d.Amount0)
	}
	return amount, nil
}

// SwapParams mirrors the parameters of an executed swap.
type SwapParams struct {
	ZeroForOne      bool
	AmountSpecified *big.Int
}

// PointsCalculator converts settled base-asset value into points.
type PointsCalculator interface {
	PointsForValue(amount *uint256.Int) (*uint256.Int, error)
}

// PointsCrediter credits points and runs level evaluation.
type PointsCrediter interface {
	CreditPoints(user common.Address, amount *uint256.Int) error
}

// ActivityRecorder accumulates per-user pool metrics.
type ActivityRecorder interface {
	RecordLiquidityProvision(user common.Address, amount *uint256.Int) error
	RecordSwap(user common.Address, amount *uint256.Int) error
}

// Adapter consumes settled pool events and turns them into points and
// activity metrics.
type Adapter struct {
	calculator PointsCalculator
	crediter   PointsCrediter
	recorder   ActivityRecorder
	emitter    events.Emitter
	pauses     nativecommon.PauseView
}

// NewAdapter wires the pool event pipeline.
func NewAdapter(calculator PointsCalculator, crediter PointsCrediter, recorder ActivityRecorder) *Adapter {
	return &Adapter{
		calculator: calculator,
		crediter:   crediter,
		recorder:   recorder,
		emitter:    events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (a *Adapter) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

func (a *Adapter) SetPauses(p nativecommon.PauseView) {
	if a == nil {
		return
	}
	a.pauses = p
}

// OnLiquidityAdded rewards a settled liquidity addition and returns the
// points credited.
func (a *Adapter) OnLiquidityAdded(user common.Address, delta BalanceDelta) (*uint256.Int, error) {
	base, points, err := a.reward(user, delta)
	if err != nil {
		return nil, err
	}
	if err := a.recorder.RecordLiquidityProvision(user, base); err != nil {
		return nil, err
	}
	a.emitter.Emit(events.LiquidityRewarded{
		Address:    user,
		Amount0:    copyBig(delta.Amount0),
		Amount1:    copyBig(delta.Amount1),
		BaseAmount: new(uint256.Int).Set(base),
		Points:     new(uint256.Int).Set(points),
	})
	return points, nil
}

// OnSwapExecuted rewards a settled swap and returns the points credited.
func (a *Adapter) OnSwapExecuted(user common.Address, params SwapParams, delta BalanceDelta) (*uint256.Int, error) {
	base, points, err := a.reward(user, delta)
	if err != nil {
		return nil, err
	}
	if err := a.recorder.RecordSwap(user, base); err != nil {
		return nil, err
	}
	a.emitter.Emit(events.SwapRewarded{
		Address:         user,
		ZeroForOne:      params.ZeroForOne,
		AmountSpecified: copyBig(params.AmountSpecified),
		Amount0:         copyBig(delta.Amount0),
		Amount1:         copyBig(delta.Amount1),
		BaseAmount:      new(uint256.Int).Set(base),
		Points:          new(uint256.Int).Set(points),
	})
	return points, nil
}

func (a *Adapter) reward(user common.Address, delta BalanceDelta) (*uint256.Int, *uint256.Int, error) {
	if err := nativecommon.Guard(a.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if a.calculator == nil || a.crediter == nil || a.recorder == nil {
		return nil, nil, ErrNotConfigured
	}
	base, err := delta.BaseAmount()
	if err != nil {
		return nil, nil, err
	}
	points, err := a.calculator.PointsForValue(base)
	if err != nil {
		return nil, nil, err
	}
	if err := a.crediter.CreditPoints(user, points); err != nil {
		return nil, nil, err
	}
	return base, points, nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
