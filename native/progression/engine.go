package progression

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/events"
)

// RoleRewardsAdmin may perform the one-time binding of the reward granter.
const RoleRewardsAdmin = "ROLE_REWARDS_ADMIN"

// State describes the storage the progression engine needs. The engine is the
// only component that writes profiles or the point supply.
type State interface {
	ProgressionProfile(addr common.Address) (*Profile, error)
	SetProgressionProfile(addr common.Address, profile *Profile) error
	ProgressionTotalPoints() (*uint256.Int, error)
	SetProgressionTotalPoints(total *uint256.Int) error
	ProgressionGranter() (common.Address, bool, error)
	SetProgressionGranter(granter common.Address) error
	HasRole(role string, addr []byte) (bool, error)
}

// Engine owns per-user points, levels and badges.
type Engine struct {
	st      State
	params  Params
	emitter events.Emitter
}

// NewEngine constructs an engine over the supplied state.
func NewEngine(st State, params Params) (*Engine, error) {
	if st == nil {
		return nil, ErrNilState
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{st: st, params: params, emitter: events.NoopEmitter{}}, nil
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Params returns the leveling configuration.
func (e *Engine) Params() Params {
	return e.params
}

// CalculateLevel derives the level for a point total: floor(points /
// PointsPerLevel) + 1, never exceeding MaxLevel.
func (e *Engine) CalculateLevel(points *uint256.Int) uint64 {
	return e.params.CalculateLevel(points)
}

// CalculateLevel derives the level for a point total under these params.
func (p Params) CalculateLevel(points *uint256.Int) uint64 {
	if points == nil || points.IsZero() {
		return 1
	}
	tiers := new(uint256.Int).Div(points, uint256.NewInt(p.PointsPerLevel))
	// tiers+1 > MaxLevel  <=>  tiers >= MaxLevel
	if !tiers.Lt(uint256.NewInt(p.MaxLevel)) {
		return p.MaxLevel
	}
	return tiers.Uint64() + 1
}

// CreditPoints adds amount to the user's balance and evaluates level-ups and
// milestone badges.
func (e *Engine) CreditPoints(user common.Address, amount *uint256.Int) error {
	profile, err := e.loadProfile(user)
	if err != nil {
		return err
	}
	if err := e.credit(user, profile, amount); err != nil {
		return err
	}
	return e.st.SetProgressionProfile(user, profile)
}

// AwardBadgeAndPoints is the restricted grant path used by the challenge
// registry. The caller must be the bound granter. Points are credited first
// (which may unlock milestone badges) and badgeID is then awarded
// idempotently.
func (e *Engine) AwardBadgeAndPoints(caller, user common.Address, points *uint256.Int, badgeID uint8) error {
	granter, bound, err := e.st.ProgressionGranter()
	if err != nil {
		return err
	}
	if !bound || caller != granter {
		return ErrUnauthorized
	}
	profile, err := e.loadProfile(user)
	if err != nil {
		return err
	}
	if err := e.credit(user, profile, points); err != nil {
		return err
	}
	e.awardBadge(user, profile, badgeID, events.BadgeSourceGrant)
	return e.st.SetProgressionProfile(user, profile)
}

// BindGranter wires the reward-granting capability to granter. It can only be
// performed once, by a holder of ROLE_REWARDS_ADMIN.
func (e *Engine) BindGranter(caller, granter common.Address) error {
	allowed, err := e.st.HasRole(RoleRewardsAdmin, caller.Bytes())
	if err != nil {
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}
	if granter == (common.Address{}) {
		return ErrInvalidGranter
	}
	_, bound, err := e.st.ProgressionGranter()
	if err != nil {
		return err
	}
	if bound {
		return ErrGranterBound
	}
	if err := e.st.SetProgressionGranter(granter); err != nil {
		return err
	}
	e.emitter.Emit(events.GranterBound{Granter: granter, Caller: caller})
	return nil
}

// Granter returns the bound granter, if any.
func (e *Engine) Granter() (common.Address, bool, error) {
	return e.st.ProgressionGranter()
}

// Profile returns a normalized copy of the user's progression record.
func (e *Engine) Profile(user common.Address) (*Profile, error) {
	return e.loadProfile(user)
}

// Points returns the user's point balance.
func (e *Engine) Points(user common.Address) (*uint256.Int, error) {
	profile, err := e.loadProfile(user)
	if err != nil {
		return nil, err
	}
	return profile.Points, nil
}

// Level returns the user's stored level.
func (e *Engine) Level(user common.Address) (uint64, error) {
	profile, err := e.loadProfile(user)
	if err != nil {
		return 0, err
	}
	return profile.Level, nil
}

// Badges returns the user's badge bitset.
func (e *Engine) Badges(user common.Address) (*uint256.Int, error) {
	profile, err := e.loadProfile(user)
	if err != nil {
		return nil, err
	}
	return profile.Badges, nil
}

// HasBadge reports whether the user holds the badge.
func (e *Engine) HasBadge(user common.Address, badgeID uint8) (bool, error) {
	profile, err := e.loadProfile(user)
	if err != nil {
		return false, err
	}
	return profile.HasBadge(badgeID), nil
}

// TotalPoints returns the sum of all point balances ever credited.
func (e *Engine) TotalPoints() (*uint256.Int, error) {
	total, err := e.st.ProgressionTotalPoints()
	if err != nil {
		return nil, err
	}
	if total == nil {
		return new(uint256.Int), nil
	}
	return total, nil
}

func (e *Engine) loadProfile(user common.Address) (*Profile, error) {
	profile, err := e.st.ProgressionProfile(user)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return NewProfile(), nil
	}
	return profile.Clone().Normalize(), nil
}

func (e *Engine) credit(user common.Address, profile *Profile, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	balance, overflow := new(uint256.Int).AddOverflow(profile.Points, amount)
	if overflow {
		return fmt.Errorf("%w: %s + %s", ErrPointsOverflow, profile.Points.Dec(), amount.Dec())
	}
	total, err := e.TotalPoints()
	if err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(total, amount)
	if overflow {
		return fmt.Errorf("%w: supply", ErrPointsOverflow)
	}
	if !amount.IsZero() {
		if err := e.st.SetProgressionTotalPoints(supply); err != nil {
			return err
		}
		profile.Points = balance
		e.emitter.Emit(events.PointsCredited{
			Address: user,
			Amount:  new(uint256.Int).Set(amount),
			Balance: new(uint256.Int).Set(balance),
		})
	}
	e.evaluateLevel(user, profile)
	return nil
}

func (e *Engine) evaluateLevel(user common.Address, profile *Profile) {
	level := e.params.CalculateLevel(profile.Points)
	if level <= profile.Level {
		return
	}
	old := profile.Level
	profile.Level = level
	e.emitter.Emit(events.LevelUp{Address: user, OldLevel: old, NewLevel: level})
	for _, milestone := range e.params.Milestones {
		if level >= milestone.MinLevel {
			e.awardBadge(user, profile, milestone.BadgeID, events.BadgeSourceMilestone)
		}
	}
}

func (e *Engine) awardBadge(user common.Address, profile *Profile, badgeID uint8, source string) {
	if profile.HasBadge(badgeID) {
		return
	}
	profile.Badges = new(uint256.Int).Or(profile.Badges, badgeMask(badgeID))
	e.emitter.Emit(events.BadgeAwarded{Address: user, BadgeID: badgeID, Source: source})
}
