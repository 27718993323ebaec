package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServiceName = "poolquest"
	DefaultEnvironment = "dev"
	DefaultDataDir     = "./poolquest-data"

	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
)

type Config struct {
	ServiceName     string      `toml:"ServiceName"`
	Environment     string      `toml:"Environment"`
	DataDir         string      `toml:"DataDir"`
	StorageEngine   string      `toml:"StorageEngine"`
	Admins          []string    `toml:"Admins"`
	RegistryAddress string      `toml:"RegistryAddress"`
	CatalogFile     string      `toml:"CatalogFile"`
	IndexerPath     string      `toml:"IndexerPath"`
	Rewards         Rewards     `toml:"rewards"`
	Progression     Progression `toml:"progression"`
	Oracle          Oracle      `toml:"oracle"`
	Pauses          Pauses      `toml:"pauses"`
}

// Load loads the configuration from the given path. A default configuration
// is written to path when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the reference configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = DefaultServiceName
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = DefaultEnvironment
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	c.StorageEngine = strings.ToLower(strings.TrimSpace(c.StorageEngine))
	if c.StorageEngine == "" {
		c.StorageEngine = StorageLevelDB
	}
	if c.Admins == nil {
		c.Admins = []string{}
	}
	c.Rewards.applyDefaults()
	c.Progression.applyDefaults()
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
