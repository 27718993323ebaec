package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/types"
)

const (
	// TypePointsCredited is emitted whenever points are added to a user's
	// balance.
	TypePointsCredited = "progression.points.credited"
	// TypeLevelUp is emitted when a user's derived level increases.
	TypeLevelUp = "progression.level.up"
	// TypeBadgeAwarded is emitted the first time a badge is unlocked for a
	// user. Re-awarding a held badge emits nothing.
	TypeBadgeAwarded = "progression.badge.awarded"
	// TypeGranterBound is emitted when the reward-granting capability is
	// bound to the challenge registry.
	TypeGranterBound = "progression.granter.bound"
)

const (
	// BadgeSourceMilestone marks badges unlocked by level thresholds.
	BadgeSourceMilestone = "milestone"
	// BadgeSourceGrant marks badges awarded through the restricted grant
	// path (challenge and quest completions).
	BadgeSourceGrant = "grant"
)

// PointsCredited captures a balance increase.
type PointsCredited struct {
	Address common.Address
	Amount  *uint256.Int
	Balance *uint256.Int
}

// EventType implements the Event interface.
func (PointsCredited) EventType() string { return TypePointsCredited }

// Event converts the credit into the generic event payload.
func (e PointsCredited) Event() *types.Event {
	return &types.Event{
		Type: TypePointsCredited,
		Attributes: map[string]string{
			"address": e.Address.Hex(),
			"amount":  u256String(e.Amount),
			"balance": u256String(e.Balance),
		},
	}
}

// LevelUp captures a level transition.
type LevelUp struct {
	Address  common.Address
	OldLevel uint64
	NewLevel uint64
}

// EventType implements the Event interface.
func (LevelUp) EventType() string { return TypeLevelUp }

// Event converts the level transition into the generic event payload.
func (e LevelUp) Event() *types.Event {
	return &types.Event{
		Type: TypeLevelUp,
		Attributes: map[string]string{
			"address":   e.Address.Hex(),
			"old_level": uintString(e.OldLevel),
			"new_level": uintString(e.NewLevel),
		},
	}
}

// BadgeAwarded captures a newly unlocked badge.
type BadgeAwarded struct {
	Address common.Address
	BadgeID uint8
	Source  string
}

// EventType implements the Event interface.
func (BadgeAwarded) EventType() string { return TypeBadgeAwarded }

// Event converts the badge award into the generic event payload.
func (e BadgeAwarded) Event() *types.Event {
	source := e.Source
	if source == "" {
		source = BadgeSourceMilestone
	}
	return &types.Event{
		Type: TypeBadgeAwarded,
		Attributes: map[string]string{
			"address": e.Address.Hex(),
			"badge":   uintString(uint64(e.BadgeID)),
			"source":  source,
		},
	}
}

// GranterBound captures the one-time binding of the reward granter.
type GranterBound struct {
	Granter common.Address
	Caller  common.Address
}

// EventType implements the Event interface.
func (GranterBound) EventType() string { return TypeGranterBound }

// Event converts the binding into the generic event payload.
func (e GranterBound) Event() *types.Event {
	return &types.Event{
		Type: TypeGranterBound,
		Attributes: map[string]string{
			"granter": e.Granter.Hex(),
			"caller":  e.Caller.Hex(),
		},
	}
}
