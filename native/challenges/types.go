package challenges

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ChallengeType selects which activity metric gates a challenge.
type ChallengeType uint8

const (
	// LiquidityProvision requires cumulative liquidity >= RequiredAmount.
	LiquidityProvision ChallengeType = iota
	// Swapping requires cumulative swap volume >= RequiredAmount.
	Swapping
	// TimeBased is satisfied by completing within the time window.
	TimeBased
)

// String renders the canonical lowercase name.
func (t ChallengeType) String() string {
	switch t {
	case LiquidityProvision:
		return "liquidity"
	case Swapping:
		return "swap"
	case TimeBased:
		return "time"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a known challenge type.
func (t ChallengeType) Valid() bool {
	return t <= TimeBased
}

// ParseChallengeType parses the names produced by String, plus a few aliases.
func ParseChallengeType(raw string) (ChallengeType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "liquidity", "liquidity_provision", "liquidityprovision":
		return LiquidityProvision, nil
	case "swap", "swapping":
		return Swapping, nil
	case "time", "time_based", "timebased":
		return TimeBased, nil
	default:
		return 0, fmt.Errorf("%w: unknown challenge type %q", ErrInvalidDefinition, raw)
	}
}

// Challenge is an append-only challenge definition. Only Active ever changes
// after creation, and only from true to false.
type Challenge struct {
	ID             uint64
	Name           string
	Type           ChallengeType
	RequiredAmount *uint256.Int
	RewardPoints   *uint256.Int
	BadgeID        uint8
	StartTime      uint64
	EndTime        uint64
	Active         bool
}

// OpenAt reports whether timestamp lies within [StartTime, EndTime].
func (c *Challenge) OpenAt(timestamp uint64) bool {
	return timestamp >= c.StartTime && timestamp <= c.EndTime
}

func (c *Challenge) normalize() *Challenge {
	if c.RequiredAmount == nil {
		c.RequiredAmount = new(uint256.Int)
	}
	if c.RewardPoints == nil {
		c.RewardPoints = new(uint256.Int)
	}
	return c
}

// Quest bundles challenges whose joint completion grants an extra reward.
type Quest struct {
	ID           uint64
	Name         string
	ChallengeIDs []uint64
	RewardPoints *uint256.Int
	BadgeID      uint8
}

func (q *Quest) normalize() *Quest {
	if q.RewardPoints == nil {
		q.RewardPoints = new(uint256.Int)
	}
	if q.ChallengeIDs == nil {
		q.ChallengeIDs = []uint64{}
	}
	return q
}

// Progress reports a user's standing on a challenge.
type Progress struct {
	Completed bool
	Progress  *uint256.Int
}

// QuestProgress reports a user's standing on a quest.
type QuestProgress struct {
	Completed           bool
	ChallengesCompleted uint64
	ChallengesTotal     uint64
}
