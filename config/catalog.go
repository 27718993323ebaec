package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"poolquest/native/challenges"
)

// Catalog is the declarative list of challenges and quests applied on
// startup. Entries are positional: entry i describes registry index i.
type Catalog struct {
	Challenges []CatalogChallenge `yaml:"challenges"`
	Quests     []CatalogQuest     `yaml:"quests"`
}

type CatalogChallenge struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	RequiredAmount string `yaml:"required_amount"`
	RewardPoints   string `yaml:"reward_points"`
	Badge          int    `yaml:"badge"`
	StartTime      uint64 `yaml:"start_time"`
	EndTime        uint64 `yaml:"end_time"`
	// Active defaults to true. Setting it to false deactivates the
	// challenge, which cannot be undone.
	Active *bool `yaml:"active,omitempty"`
}

type CatalogQuest struct {
	Name         string   `yaml:"name"`
	Challenges   []uint64 `yaml:"challenges"`
	RewardPoints string   `yaml:"reward_points"`
	Badge        int      `yaml:"badge"`
}

// LoadCatalog reads and validates a YAML catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	catalog := &Catalog{}
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Validate checks every entry converts into a registry definition. Quests
// may only reference challenges declared in the same catalog.
func (c *Catalog) Validate() error {
	for i, entry := range c.Challenges {
		if _, err := entry.Definition(); err != nil {
			return fmt.Errorf("catalog: challenge %d: %w", i, err)
		}
	}
	for i, entry := range c.Quests {
		if len(entry.Challenges) == 0 {
			return fmt.Errorf("catalog: quest %d: no challenges", i)
		}
		for _, id := range entry.Challenges {
			if id >= uint64(len(c.Challenges)) {
				return fmt.Errorf("catalog: quest %d: unknown challenge %d", i, id)
			}
		}
		if _, err := badgeID(entry.Badge); err != nil {
			return fmt.Errorf("catalog: quest %d: %w", i, err)
		}
		if _, err := amount(entry.RewardPoints); err != nil {
			return fmt.Errorf("catalog: quest %d: reward_points: %w", i, err)
		}
	}
	return nil
}

// Definition converts the entry into a challenge definition.
func (c CatalogChallenge) Definition() (challenges.Challenge, error) {
	kind, err := challenges.ParseChallengeType(c.Type)
	if err != nil {
		return challenges.Challenge{}, err
	}
	required, err := amount(c.RequiredAmount)
	if err != nil {
		return challenges.Challenge{}, fmt.Errorf("required_amount: %w", err)
	}
	reward, err := amount(c.RewardPoints)
	if err != nil {
		return challenges.Challenge{}, fmt.Errorf("reward_points: %w", err)
	}
	badge, err := badgeID(c.Badge)
	if err != nil {
		return challenges.Challenge{}, err
	}
	return challenges.Challenge{
		Name:           strings.TrimSpace(c.Name),
		Type:           kind,
		RequiredAmount: required,
		RewardPoints:   reward,
		BadgeID:        badge,
		StartTime:      c.StartTime,
		EndTime:        c.EndTime,
		Active:         c.IsActive(),
	}, nil
}

// IsActive reports the desired activation state.
func (c CatalogChallenge) IsActive() bool {
	return c.Active == nil || *c.Active
}

// Reward parses the quest reward.
func (q CatalogQuest) Reward() (*uint256.Int, error) {
	return amount(q.RewardPoints)
}

// BadgeID returns the quest badge.
func (q CatalogQuest) BadgeID() (uint8, error) {
	return badgeID(q.Badge)
}

func amount(raw string) (*uint256.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return uint256.FromDecimal(trimmed)
}

func badgeID(raw int) (uint8, error) {
	if raw < 0 || raw > 255 {
		return 0, fmt.Errorf("%w: badge %d outside [0, 255]", challenges.ErrInvalidDefinition, raw)
	}
	return uint8(raw), nil
}
