package config

import (
	"poolquest/native/progression"
	"poolquest/native/rewards"
)

// Rewards controls how settled base-asset value converts into points.
type Rewards struct {
	BaseDecimals  uint8  `toml:"BaseDecimals"`
	PriceDecimals uint8  `toml:"PriceDecimals"`
	USDPerPoint   uint64 `toml:"USDPerPoint"`
}

func (r *Rewards) applyDefaults() {
	if r.BaseDecimals == 0 && r.PriceDecimals == 0 && r.USDPerPoint == 0 {
		*r = Rewards{
			BaseDecimals:  rewards.DefaultBaseDecimals,
			PriceDecimals: rewards.DefaultPriceDecimals,
			USDPerPoint:   rewards.DefaultUSDPerPoint,
		}
	}
}

// Params converts the section into calculator parameters.
func (r Rewards) Params() rewards.Params {
	return rewards.Params{
		BaseDecimals:  r.BaseDecimals,
		PriceDecimals: r.PriceDecimals,
		USDPerPoint:   r.USDPerPoint,
	}
}

// Progression controls the leveling curve. Milestones always follow the
// default ladder with the top badge at MaxLevel.
type Progression struct {
	PointsPerLevel uint64 `toml:"PointsPerLevel"`
	MaxLevel       uint64 `toml:"MaxLevel"`
}

func (p *Progression) applyDefaults() {
	if p.PointsPerLevel == 0 {
		p.PointsPerLevel = progression.DefaultPointsPerLevel
	}
	if p.MaxLevel == 0 {
		p.MaxLevel = progression.DefaultMaxLevel
	}
}

// Params converts the section into engine parameters.
func (p Progression) Params() progression.Params {
	return progression.Params{
		PointsPerLevel: p.PointsPerLevel,
		MaxLevel:       p.MaxLevel,
		Milestones:     progression.DefaultMilestones(p.MaxLevel),
	}
}

// Oracle configures price feed validation.
type Oracle struct {
	// MaxAgeSeconds rejects rounds older than this. Zero disables the check.
	MaxAgeSeconds uint64 `toml:"MaxAgeSeconds"`
}

type Pauses struct {
	Rewards    bool `toml:"Rewards"`
	Challenges bool `toml:"Challenges"`
}

// IsPaused implements the module pause view.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "rewards":
		return p.Rewards
	case "challenges":
		return p.Challenges
	default:
		return false
	}
}
