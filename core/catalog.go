package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"poolquest/config"
	"poolquest/native/challenges"
)

// ErrCatalogMismatch is returned when an already applied catalog entry no
// longer matches the stored definition at the same index.
var ErrCatalogMismatch = errors.New("core: catalog does not match registry")

// CatalogResult summarizes the changes made by ApplyCatalog.
type CatalogResult struct {
	ChallengesCreated     int
	ChallengesDeactivated int
	QuestsCreated         int
}

// ApplyCatalog reconciles the registry with catalog in a single transaction.
// Catalog entry i corresponds to registry index i: entries beyond the stored
// count are created, existing entries are left untouched except that an
// entry marked inactive deactivates its challenge. The catalog is assumed to
// be the only source of the first len(catalog) definitions.
func (p *Processor) ApplyCatalog(ctx context.Context, caller common.Address, catalog *config.Catalog) (CatalogResult, error) {
	var result CatalogResult
	if catalog == nil {
		return result, nil
	}
	err := p.execute(ctx, "apply_catalog", "", []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.Int("challenges", len(catalog.Challenges)),
		attribute.Int("quests", len(catalog.Quests)),
	}, func() error {
		result = CatalogResult{}
		if err := catalog.Validate(); err != nil {
			return err
		}
		if err := p.applyChallenges(caller, catalog, &result); err != nil {
			return err
		}
		return p.applyQuests(caller, catalog, &result)
	})
	if err != nil {
		return CatalogResult{}, err
	}
	return result, nil
}

func (p *Processor) applyChallenges(caller common.Address, catalog *config.Catalog, result *CatalogResult) error {
	count, err := p.registry.ChallengeCount()
	if err != nil {
		return err
	}
	for i, entry := range catalog.Challenges {
		def, err := entry.Definition()
		if err != nil {
			return fmt.Errorf("catalog challenge %d: %w", i, err)
		}
		id := uint64(i)
		if id < count {
			existing, err := p.registry.Challenge(id)
			if err != nil {
				return err
			}
			if existing.Name != def.Name || existing.Type != def.Type {
				return fmt.Errorf("%w: challenge %d is %q (%s), catalog has %q (%s)",
					ErrCatalogMismatch, id, existing.Name, existing.Type, def.Name, def.Type)
			}
			if existing.Active && !def.Active {
				if err := p.registry.DeactivateChallenge(caller, id); err != nil {
					return err
				}
				result.ChallengesDeactivated++
			}
			continue
		}
		created, err := p.registry.CreateChallenge(caller, def)
		if err != nil {
			return fmt.Errorf("catalog challenge %d: %w", i, err)
		}
		if created != id {
			return fmt.Errorf("%w: challenge %d stored at %d", ErrCatalogMismatch, id, created)
		}
		result.ChallengesCreated++
		if !def.Active {
			if err := p.registry.DeactivateChallenge(caller, id); err != nil {
				return err
			}
			result.ChallengesDeactivated++
		}
	}
	return nil
}

func (p *Processor) applyQuests(caller common.Address, catalog *config.Catalog, result *CatalogResult) error {
	count, err := p.registry.QuestCount()
	if err != nil {
		return err
	}
	for i, entry := range catalog.Quests {
		id := uint64(i)
		reward, err := entry.Reward()
		if err != nil {
			return fmt.Errorf("catalog quest %d: %w", i, err)
		}
		badge, err := entry.BadgeID()
		if err != nil {
			return fmt.Errorf("catalog quest %d: %w", i, err)
		}
		if id < count {
			existing, err := p.registry.Quest(id)
			if err != nil {
				return err
			}
			if err := matchQuest(existing, entry, reward, badge); err != nil {
				return err
			}
			continue
		}
		created, err := p.registry.CreateQuest(caller, entry.Name, entry.Challenges, reward, badge)
		if err != nil {
			return fmt.Errorf("catalog quest %d: %w", i, err)
		}
		if created != id {
			return fmt.Errorf("%w: quest %d stored at %d", ErrCatalogMismatch, id, created)
		}
		result.QuestsCreated++
	}
	return nil
}

func matchQuest(existing *challenges.Quest, entry config.CatalogQuest, reward *uint256.Int, badge uint8) error {
	name := strings.TrimSpace(entry.Name)
	switch {
	case existing.Name != name:
		return fmt.Errorf("%w: quest %d is %q, catalog has %q", ErrCatalogMismatch, existing.ID, existing.Name, name)
	case !slices.Equal(existing.ChallengeIDs, entry.Challenges):
		return fmt.Errorf("%w: quest %d requires %v, catalog has %v", ErrCatalogMismatch, existing.ID, existing.ChallengeIDs, entry.Challenges)
	case existing.RewardPoints == nil || !existing.RewardPoints.Eq(reward):
		return fmt.Errorf("%w: quest %d reward differs from catalog %s", ErrCatalogMismatch, existing.ID, reward.Dec())
	case existing.BadgeID != badge:
		return fmt.Errorf("%w: quest %d badge is %d, catalog has %d", ErrCatalogMismatch, existing.ID, existing.BadgeID, badge)
	}
	return nil
}
