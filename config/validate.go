package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DefaultRegistrySeed derives the challenge registry identity when
// RegistryAddress is left empty.
const DefaultRegistrySeed = "poolquest/challenges"

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.StorageEngine {
	case StorageLevelDB, StorageBolt:
	default:
		return fmt.Errorf("storage: unknown engine %q", c.StorageEngine)
	}
	if err := c.Rewards.Params().Validate(); err != nil {
		return fmt.Errorf("rewards: %w", err)
	}
	if err := c.Progression.Params().Validate(); err != nil {
		return fmt.Errorf("progression: %w", err)
	}
	if _, err := c.AdminAddresses(); err != nil {
		return err
	}
	if _, err := c.RegistryIdentity(); err != nil {
		return err
	}
	return nil
}

// AdminAddresses parses the configured administrators.
func (c *Config) AdminAddresses() ([]common.Address, error) {
	out := make([]common.Address, 0, len(c.Admins))
	for _, raw := range c.Admins {
		trimmed := strings.TrimSpace(raw)
		if !common.IsHexAddress(trimmed) {
			return nil, fmt.Errorf("admins: invalid address %q", raw)
		}
		out = append(out, common.HexToAddress(trimmed))
	}
	return out, nil
}

// RegistryIdentity returns the address the challenge registry presents to
// the progression engine.
func (c *Config) RegistryIdentity() (common.Address, error) {
	trimmed := strings.TrimSpace(c.RegistryAddress)
	if trimmed == "" {
		return common.BytesToAddress(ethcrypto.Keccak256([]byte(DefaultRegistrySeed))), nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("registry: invalid address %q", c.RegistryAddress)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("registry: zero address")
	}
	return addr, nil
}
