package rewards

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"poolquest/native/oracle"
)

var (
	// ErrValueOverflow indicates amount*price exceeded 256 bits. Realistic
	// pool volume never reaches this, so it signals a misconfigured feed or
	// scale.
	ErrValueOverflow = errors.New("rewards: value overflow")
	ErrInvalidParams = errors.New("rewards: invalid params")
)

const (
	// DefaultBaseDecimals is the smallest-unit scale of the base asset.
	DefaultBaseDecimals = 18
	// DefaultPriceDecimals is the fixed-point scale of the price feed.
	DefaultPriceDecimals = 8
	// DefaultUSDPerPoint awards one point per ten dollars of settled value.
	DefaultUSDPerPoint = 10
)

// PriceSource supplies validated prices. *oracle.Adapter satisfies it.
type PriceSource interface {
	LatestPrice() (*big.Int, error)
}

// Params controls how settled base-asset value converts into points.
type Params struct {
	BaseDecimals  uint8
	PriceDecimals uint8
	USDPerPoint   uint64
}

// DefaultParams returns the reference configuration (18 decimal base asset,
// 8 decimal USD feed, one point per $10).
func DefaultParams() Params {
	return Params{
		BaseDecimals:  DefaultBaseDecimals,
		PriceDecimals: DefaultPriceDecimals,
		USDPerPoint:   DefaultUSDPerPoint,
	}
}

// Validate ensures the scales fit within 256-bit arithmetic.
func (p Params) Validate() error {
	if p.BaseDecimals > 77 || p.PriceDecimals > 57 {
		return fmt.Errorf("%w: decimals too large", ErrInvalidParams)
	}
	if p.USDPerPoint == 0 {
		return fmt.Errorf("%w: usdPerPoint must be positive", ErrInvalidParams)
	}
	return nil
}

// ScaleBase returns 10^BaseDecimals.
func (p Params) ScaleBase() *uint256.Int {
	return pow10(p.BaseDecimals)
}

// PointsDenominator returns USDPerPoint * 10^PriceDecimals.
func (p Params) PointsDenominator() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(p.USDPerPoint), pow10(p.PriceDecimals))
}

func pow10(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}

// Calculator converts settled base-asset amounts into points using the
// latest oracle price.
type Calculator struct {
	prices PriceSource
	params Params
}

// NewCalculator constructs a calculator. Params are validated eagerly.
func NewCalculator(prices PriceSource, params Params) (*Calculator, error) {
	if prices == nil {
		return nil, fmt.Errorf("%w: price source required", ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{prices: prices, params: params}, nil
}

// Params returns the calculator configuration.
func (c *Calculator) Params() Params {
	return c.params
}

// PointsForValue fetches the current price and returns the points earned for
// the supplied base-asset amount. The whole calculation fails when the price
// is not usable.
func (c *Calculator) PointsForValue(amount *uint256.Int) (*uint256.Int, error) {
	price, err := c.prices.LatestPrice()
	if err != nil {
		return nil, err
	}
	return c.params.PointsAt(amount, price)
}

// PointsAt is the pure conversion: amount * price / ScaleBase /
// PointsDenominator, floor division throughout.
func (p Params) PointsAt(amount *uint256.Int, price *big.Int) (*uint256.Int, error) {
	if !oracle.Valid(price) {
		return nil, fmt.Errorf("%w: %v", oracle.ErrInvalidPrice, price)
	}
	if amount == nil || amount.IsZero() {
		return new(uint256.Int), nil
	}
	scaledPrice, overflow := uint256.FromBig(price)
	if overflow {
		return nil, fmt.Errorf("%w: price %s", ErrValueOverflow, price)
	}
	usdValue, overflow := new(uint256.Int).MulOverflow(amount, scaledPrice)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrValueOverflow, amount.Dec(), price)
	}
	usdValue.Div(usdValue, p.ScaleBase())
	return usdValue.Div(usdValue, p.PointsDenominator()), nil
}
