package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/types"
)

const (
	// TypeChallengeCreated is emitted when a challenge is appended to the
	// registry.
	TypeChallengeCreated = "challenges.challenge.created"
	// TypeChallengeDeactivated is emitted on the one-way transition to
	// inactive.
	TypeChallengeDeactivated = "challenges.challenge.deactivated"
	// TypeChallengeCompleted is emitted after a user's completion has been
	// recorded and rewarded.
	TypeChallengeCompleted = "challenges.challenge.completed"
	// TypeQuestCreated is emitted when a quest is appended to the registry.
	TypeQuestCreated = "challenges.quest.created"
	// TypeQuestCompleted is emitted after a user's quest completion has been
	// recorded and rewarded.
	TypeQuestCompleted = "challenges.quest.completed"
)

// ChallengeCreated captures the definition of a new challenge.
type ChallengeCreated struct {
	ID             uint64
	Name           string
	Kind           string
	RequiredAmount *uint256.Int
	RewardPoints   *uint256.Int
	BadgeID        uint8
	StartTime      uint64
	EndTime        uint64
}

// EventType implements the Event interface.
func (ChallengeCreated) EventType() string { return TypeChallengeCreated }

// Event converts the creation into the generic event payload.
func (e ChallengeCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeChallengeCreated,
		Attributes: map[string]string{
			"challenge":       uintString(e.ID),
			"name":            e.Name,
			"kind":            e.Kind,
			"required_amount": u256String(e.RequiredAmount),
			"reward_points":   u256String(e.RewardPoints),
			"badge":           uintString(uint64(e.BadgeID)),
			"start_time":      uintString(e.StartTime),
			"end_time":        uintString(e.EndTime),
		},
	}
}

// ChallengeDeactivated captures the deactivation of a challenge.
type ChallengeDeactivated struct {
	ID     uint64
	Caller common.Address
}

// EventType implements the Event interface.
func (ChallengeDeactivated) EventType() string { return TypeChallengeDeactivated }

// Event converts the deactivation into the generic event payload.
func (e ChallengeDeactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeChallengeDeactivated,
		Attributes: map[string]string{
			"challenge": uintString(e.ID),
			"caller":    e.Caller.Hex(),
		},
	}
}

// ChallengeCompleted captures a rewarded challenge completion.
type ChallengeCompleted struct {
	ID           uint64
	Address      common.Address
	RewardPoints *uint256.Int
	BadgeID      uint8
}

// EventType implements the Event interface.
func (ChallengeCompleted) EventType() string { return TypeChallengeCompleted }

// Event converts the completion into the generic event payload.
func (e ChallengeCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeChallengeCompleted,
		Attributes: map[string]string{
			"challenge":     uintString(e.ID),
			"address":       e.Address.Hex(),
			"reward_points": u256String(e.RewardPoints),
			"badge":         uintString(uint64(e.BadgeID)),
		},
	}
}

// QuestCreated captures the definition of a new quest.
type QuestCreated struct {
	ID           uint64
	Name         string
	ChallengeIDs []uint64
	RewardPoints *uint256.Int
	BadgeID      uint8
}

// EventType implements the Event interface.
func (QuestCreated) EventType() string { return TypeQuestCreated }

// Event converts the creation into the generic event payload.
func (e QuestCreated) Event() *types.Event {
	ids := make([]string, len(e.ChallengeIDs))
	for i, id := range e.ChallengeIDs {
		ids[i] = uintString(id)
	}
	return &types.Event{
		Type: TypeQuestCreated,
		Attributes: map[string]string{
			"quest":         uintString(e.ID),
			"name":          e.Name,
			"challenges":    strings.Join(ids, ","),
			"reward_points": u256String(e.RewardPoints),
			"badge":         uintString(uint64(e.BadgeID)),
		},
	}
}

// QuestCompleted captures a rewarded quest completion.
type QuestCompleted struct {
	ID           uint64
	Address      common.Address
	RewardPoints *uint256.Int
	BadgeID      uint8
}

// EventType implements the Event interface.
func (QuestCompleted) EventType() string { return TypeQuestCompleted }

// Event converts the completion into the generic event payload.
func (e QuestCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeQuestCompleted,
		Attributes: map[string]string{
			"quest":         uintString(e.ID),
			"address":       e.Address.Hex(),
			"reward_points": u256String(e.RewardPoints),
			"badge":         uintString(uint64(e.BadgeID)),
		},
	}
}
