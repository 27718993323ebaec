package progression

import "fmt"

const (
	// DefaultPointsPerLevel is the number of points separating two levels.
	DefaultPointsPerLevel = 100
	// DefaultMaxLevel caps the derived level.
	DefaultMaxLevel = 100
)

// Milestone awards BadgeID once a user's level reaches MinLevel.
type Milestone struct {
	MinLevel uint64
	BadgeID  uint8
}

// Params configures level derivation and milestone badges.
type Params struct {
	PointsPerLevel uint64
	MaxLevel       uint64
	Milestones     []Milestone
}

// DefaultParams returns the reference leveling curve: 100 points per level,
// level 100 cap and milestone badges at levels 10, 25, 50 and the cap.
func DefaultParams() Params {
	return Params{
		PointsPerLevel: DefaultPointsPerLevel,
		MaxLevel:       DefaultMaxLevel,
		Milestones:     DefaultMilestones(DefaultMaxLevel),
	}
}

// DefaultMilestones returns the milestone ladder for the supplied cap.
func DefaultMilestones(maxLevel uint64) []Milestone {
	return []Milestone{
		{MinLevel: 10, BadgeID: 0},
		{MinLevel: 25, BadgeID: 1},
		{MinLevel: 50, BadgeID: 2},
		{MinLevel: maxLevel, BadgeID: 3},
	}
}

// Validate ensures the curve is usable and milestones are ascending.
func (p Params) Validate() error {
	if p.PointsPerLevel == 0 {
		return fmt.Errorf("%w: pointsPerLevel must be positive", ErrInvalidParams)
	}
	if p.MaxLevel == 0 {
		return fmt.Errorf("%w: maxLevel must be positive", ErrInvalidParams)
	}
	var prev uint64
	for i, m := range p.Milestones {
		if m.MinLevel == 0 || m.MinLevel > p.MaxLevel {
			return fmt.Errorf("%w: milestone %d level %d outside [1, %d]", ErrInvalidParams, i, m.MinLevel, p.MaxLevel)
		}
		if m.MinLevel < prev {
			return fmt.Errorf("%w: milestones must be ascending", ErrInvalidParams)
		}
		prev = m.MinLevel
	}
	return nil
}
