package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"poolquest/config"
	"poolquest/indexer"
	"poolquest/native/challenges"
	"poolquest/native/oracle"
	"poolquest/native/progression"
	"poolquest/observability/logging"
	"poolquest/storage"
)

const (
	// StateDirName is the LevelDB directory created under the data dir.
	StateDirName = "state"
	// StateFileName is the bbolt file created under the data dir.
	StateFileName = "state.db"
)

// OpenOption adjusts the processor options derived from configuration.
type OpenOption func(*Options)

// WithClock replaces the wall clock used for challenge windows and oracle
// freshness.
func WithClock(now func() time.Time) OpenOption {
	return func(o *Options) {
		o.Now = now
	}
}

// Open boots a processor from configuration: it opens the state store under DataDir,
// grants the configured admins both admin roles, binds the registry as the
// reward granter on first run, applies the catalog and attaches the event
// journal.
func Open(ctx context.Context, cfg *config.Config, feed oracle.Feed, opts ...OpenOption) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("core: config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	admins, err := cfg.AdminAddresses()
	if err != nil {
		return nil, err
	}
	identity, err := cfg.RegistryIdentity()
	if err != nil {
		return nil, err
	}
	logger := logging.Component(slog.Default(), "bootstrap")

	db, err := openState(cfg)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	options := Options{
		Progression:      cfg.Progression.Params(),
		Rewards:          cfg.Rewards.Params(),
		OracleMaxAge:     time.Duration(cfg.Oracle.MaxAgeSeconds) * time.Second,
		RegistryIdentity: identity,
		Pauses:           cfg.Pauses,
		Logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	p, err := NewProcessor(db, feed, options)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := bootstrap(ctx, p, cfg, logger); err != nil {
		_ = p.Close()
		return nil, err
	}
	if len(admins) == 0 {
		logger.Warn("no admins configured; granter binding and catalog skipped")
	}
	return p, nil
}

func openState(cfg *config.Config) (storage.Database, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	if cfg.StorageEngine == config.StorageBolt {
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, StateFileName))
	}
	return storage.NewLevelDB(filepath.Join(cfg.DataDir, StateDirName))
}

func bootstrap(ctx context.Context, p *Processor, cfg *config.Config, logger *slog.Logger) error {
	admins, err := cfg.AdminAddresses()
	if err != nil {
		return err
	}
	for _, admin := range admins {
		for _, role := range []string{challenges.RoleChallengeAdmin, progression.RoleRewardsAdmin} {
			if err := p.AssignRole(ctx, role, admin); err != nil {
				return fmt.Errorf("assign %s: %w", role, err)
			}
		}
	}

	if len(admins) > 0 {
		granter, bound, err := p.Granter()
		if err != nil {
			return err
		}
		switch {
		case !bound:
			if err := p.BindRewardGranter(ctx, admins[0], p.RegistryIdentity()); err != nil {
				return fmt.Errorf("bind granter: %w", err)
			}
			logger.Info("reward granter bound", slog.String("granter", p.RegistryIdentity().Hex()))
		case granter != p.RegistryIdentity():
			return fmt.Errorf("bind granter: bound to %s, configured registry is %s", granter.Hex(), p.RegistryIdentity().Hex())
		}

		if cfg.CatalogFile != "" {
			catalog, err := config.LoadCatalog(cfg.CatalogFile)
			if err != nil {
				return err
			}
			result, err := p.ApplyCatalog(ctx, admins[0], catalog)
			if err != nil {
				return fmt.Errorf("apply catalog: %w", err)
			}
			logger.Info("catalog applied",
				slog.Int("challenges_created", result.ChallengesCreated),
				slog.Int("challenges_deactivated", result.ChallengesDeactivated),
				slog.Int("quests_created", result.QuestsCreated))
		}
	} else if cfg.CatalogFile != "" {
		return fmt.Errorf("catalog %s requires at least one admin", cfg.CatalogFile)
	}

	if cfg.IndexerPath != "" {
		journal, err := indexer.OpenFile(cfg.IndexerPath)
		if err != nil {
			return err
		}
		p.onClose(journal.Close)
		p.Subscribe(journal.Emitter(slog.Default()))
	}
	return nil
}
