package core

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolquest/config"
	"poolquest/core/events"
	"poolquest/indexer"
	"poolquest/native/challenges"
	"poolquest/native/hooks"
	"poolquest/native/oracle"
	"poolquest/native/progression"
	"poolquest/storage"
)

var (
	unit      = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	price2000 = big.NewInt(2000_0000_0000)

	adminAddr    = common.HexToAddress("0x0000000000000000000000000000000000000ad1")
	lpAddr       = common.HexToAddress("0x0000000000000000000000000000000000000101")
	identityAddr = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(e events.Event) { r.events = append(r.events, e) }

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

func newTestProcessor(t *testing.T) (*Processor, *oracle.StaticFeed, *recorder, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	feed := oracle.NewStaticFeed(price2000, uint64(time.Now().Unix()))
	p, err := NewProcessor(db, feed, Options{RegistryIdentity: identityAddr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx := context.Background()
	require.NoError(t, p.AssignRole(ctx, challenges.RoleChallengeAdmin, adminAddr))
	require.NoError(t, p.AssignRole(ctx, progression.RoleRewardsAdmin, adminAddr))
	rec := &recorder{}
	p.Subscribe(rec)
	return p, feed, rec, db
}

func TestHandleLiquidityCommitsAndPublishes(t *testing.T) {
	p, _, rec, db := newTestProcessor(t)
	ctx := context.Background()
	before := db.Len()

	points, err := p.HandleLiquidityAdded(ctx, lpAddr, hooks.BalanceDelta{Amount0: new(big.Int).Neg(units(1)), Amount1: big.NewInt(-1)})
	require.NoError(t, err)
	require.Equal(t, uint64(200), points.Uint64())
	require.Greater(t, db.Len(), before)

	require.Equal(t, []string{
		events.TypePointsCredited,
		events.TypeLevelUp,
		events.TypeLiquidityRewarded,
	}, rec.types())

	level, err := p.Level(lpAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), level)
	totals, err := p.Activity(lpAddr)
	require.NoError(t, err)
	require.Equal(t, 0, totals.LiquidityProvided.ToBig().Cmp(unit))
	require.Equal(t, uint64(1), totals.LiquidityEvents)
}

func TestInvalidPriceLeavesNoTrace(t *testing.T) {
	p, feed, rec, db := newTestProcessor(t)
	ctx := context.Background()
	before := db.Len()

	feed.Set(big.NewInt(-1), uint64(time.Now().Unix()))
	_, err := p.HandleSwap(ctx, lpAddr, hooks.SwapParams{ZeroForOne: true, AmountSpecified: units(1)}, hooks.BalanceDelta{Amount0: units(1)})
	require.ErrorIs(t, err, oracle.ErrInvalidPrice)
	require.Equal(t, "invalid_price", Reason(err))
	require.Empty(t, rec.events)
	require.Equal(t, before, db.Len())

	totals, err := p.Activity(lpAddr)
	require.NoError(t, err)
	require.True(t, totals.SwapVolume.IsZero())
}

func TestFailedGrantRollsBackCompletion(t *testing.T) {
	p, _, rec, _ := newTestProcessor(t)
	ctx := context.Background()

	id, err := p.CreateChallenge(ctx, adminAddr, challenges.Challenge{
		Name:         "welcome",
		Type:         challenges.TimeBased,
		RewardPoints: uint256.NewInt(50),
		BadgeID:      12,
		EndTime:      uint64(time.Now().Add(time.Hour).Unix()),
	})
	require.NoError(t, err)
	rec.events = nil

	// The registry identity is not bound yet, so the grant fails after the
	// completion record has been staged.
	err = p.CompleteChallenge(ctx, lpAddr, id)
	require.ErrorIs(t, err, progression.ErrUnauthorized)
	require.Empty(t, rec.events)
	progress, err := p.ChallengeProgress(lpAddr, id)
	require.NoError(t, err)
	require.False(t, progress.Completed)
	history, err := p.CompletedChallenges(lpAddr)
	require.NoError(t, err)
	require.Empty(t, history)

	require.NoError(t, p.BindRewardGranter(ctx, adminAddr, identityAddr))
	require.NoError(t, p.CompleteChallenge(ctx, lpAddr, id))
	history, err = p.CompletedChallenges(lpAddr)
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, history)
	progress, err = p.ChallengeProgress(lpAddr, id)
	require.NoError(t, err)
	require.True(t, progress.Completed)

	points, err := p.Points(lpAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(50), points.Uint64())
	badges, err := p.Badges(lpAddr)
	require.NoError(t, err)
	require.Equal(t, []uint8{12}, progression.BadgeIDs(badges))

	err = p.CompleteChallenge(ctx, lpAddr, id)
	require.ErrorIs(t, err, challenges.ErrAlreadyCompleted)
	require.Equal(t, "already_completed", Reason(err))
}

func TestCanceledContextIsRejected(t *testing.T) {
	p, _, rec, _ := newTestProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.HandleLiquidityAdded(ctx, lpAddr, hooks.BalanceDelta{Amount0: units(1)})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, rec.events)
}

func TestQuestFlowThroughProcessor(t *testing.T) {
	p, _, rec, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, p.BindRewardGranter(ctx, adminAddr, identityAddr))
	end := uint64(time.Now().Add(time.Hour).Unix())

	liquidity, err := p.CreateChallenge(ctx, adminAddr, challenges.Challenge{
		Name:           "provide",
		Type:           challenges.LiquidityProvision,
		RequiredAmount: uint256.MustFromBig(units(10)),
		RewardPoints:   uint256.NewInt(100),
		BadgeID:        10,
		EndTime:        end,
	})
	require.NoError(t, err)
	swap, err := p.CreateChallenge(ctx, adminAddr, challenges.Challenge{
		Name:           "trade",
		Type:           challenges.Swapping,
		RequiredAmount: uint256.MustFromBig(units(1)),
		RewardPoints:   uint256.NewInt(100),
		BadgeID:        11,
		EndTime:        end,
	})
	require.NoError(t, err)
	quest, err := p.CreateQuest(ctx, adminAddr, "regular", []uint64{liquidity, swap}, uint256.NewInt(500), 20)
	require.NoError(t, err)

	_, err = p.HandleLiquidityAdded(ctx, lpAddr, hooks.BalanceDelta{Amount0: units(10)})
	require.NoError(t, err)
	require.NoError(t, p.CompleteChallenge(ctx, lpAddr, liquidity))
	require.ErrorIs(t, p.CompleteQuest(ctx, lpAddr, quest), challenges.ErrIncompleteChallenges)

	_, err = p.HandleSwap(ctx, lpAddr, hooks.SwapParams{ZeroForOne: true, AmountSpecified: units(1)}, hooks.BalanceDelta{Amount0: units(1), Amount1: big.NewInt(-2000)})
	require.NoError(t, err)
	require.NoError(t, p.CompleteChallenge(ctx, lpAddr, swap))
	require.NoError(t, p.CompleteQuest(ctx, lpAddr, quest))

	progress, err := p.QuestProgress(lpAddr, quest)
	require.NoError(t, err)
	require.True(t, progress.Completed)
	require.Equal(t, uint64(2), progress.ChallengesCompleted)
	quests, err := p.CompletedQuests(lpAddr)
	require.NoError(t, err)
	require.Equal(t, []uint64{quest}, quests)

	// 2000 + 200 from pool activity, 700 from completions.
	points, err := p.Points(lpAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(2_900), points.Uint64())
	level, err := p.Level(lpAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(30), level)
	badges, err := p.Badges(lpAddr)
	require.NoError(t, err)
	require.Equal(t, []uint8{0, 1, 10, 11, 20}, progression.BadgeIDs(badges))

	completed := 0
	for _, evt := range rec.events {
		if evt.EventType() == events.TypeQuestCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)
}

func TestApplyCatalogIsIdempotent(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)
	ctx := context.Background()
	catalog, err := config.ParseCatalog([]byte(`
challenges:
  - name: deposit
    type: liquidity
    required_amount: "1000"
    reward_points: "10"
    badge: 10
    end_time: 4102444800
  - name: legacy
    type: time
    reward_points: "5"
    badge: 11
    end_time: 4102444800
quests:
  - name: both
    challenges: [0, 1]
    reward_points: "50"
    badge: 20
`))
	require.NoError(t, err)

	result, err := p.ApplyCatalog(ctx, adminAddr, catalog)
	require.NoError(t, err)
	require.Equal(t, CatalogResult{ChallengesCreated: 2, QuestsCreated: 1}, result)

	result, err = p.ApplyCatalog(ctx, adminAddr, catalog)
	require.NoError(t, err)
	require.Equal(t, CatalogResult{}, result)

	inactive := false
	catalog.Challenges[1].Active = &inactive
	result, err = p.ApplyCatalog(ctx, adminAddr, catalog)
	require.NoError(t, err)
	require.Equal(t, CatalogResult{ChallengesDeactivated: 1}, result)
	legacy, err := p.Challenge(1)
	require.NoError(t, err)
	require.False(t, legacy.Active)

	catalog.Challenges[0].Name = "renamed"
	_, err = p.ApplyCatalog(ctx, adminAddr, catalog)
	require.ErrorIs(t, err, ErrCatalogMismatch)
}

func TestApplyCatalogRejectsChangedQuest(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)
	ctx := context.Background()
	load := func() *config.Catalog {
		catalog, err := config.ParseCatalog([]byte(`
challenges:
  - name: first
    type: time
    reward_points: "5"
    badge: 10
    end_time: 4102444800
  - name: second
    type: time
    reward_points: "5"
    badge: 11
    end_time: 4102444800
quests:
  - name: pair
    challenges: [0, 1]
    reward_points: "50"
    badge: 20
`))
		require.NoError(t, err)
		return catalog
	}
	_, err := p.ApplyCatalog(ctx, adminAddr, load())
	require.NoError(t, err)

	changed := load()
	changed.Quests[0].Challenges = []uint64{0}
	_, err = p.ApplyCatalog(ctx, adminAddr, changed)
	require.ErrorIs(t, err, ErrCatalogMismatch)

	changed = load()
	changed.Quests[0].RewardPoints = "75"
	_, err = p.ApplyCatalog(ctx, adminAddr, changed)
	require.ErrorIs(t, err, ErrCatalogMismatch)

	changed = load()
	changed.Quests[0].Badge = 21
	_, err = p.ApplyCatalog(ctx, adminAddr, changed)
	require.ErrorIs(t, err, ErrCatalogMismatch)

	quest, err := p.Quest(0)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, quest.ChallengeIDs)
	require.Equal(t, uint64(50), quest.RewardPoints.Uint64())
}

func TestApplyCatalogRequiresAdmin(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)
	catalog := &config.Catalog{Challenges: []config.CatalogChallenge{{Name: "x", Type: "time"}}}
	_, err := p.ApplyCatalog(context.Background(), lpAddr, catalog)
	require.ErrorIs(t, err, challenges.ErrUnauthorized)
	_, err = p.Challenge(0)
	require.ErrorIs(t, err, challenges.ErrInvalidChallenge)
}

func TestReasonLabels(t *testing.T) {
	require.Equal(t, "", Reason(nil))
	require.Equal(t, "internal", Reason(errors.New("boom")))
	require.Equal(t, "outside_window", Reason(challenges.ErrOutsideWindow))
}

func TestOpenPersistsAcrossRestarts(t *testing.T) {
	for _, engine := range []string{config.StorageLevelDB, config.StorageBolt} {
		t.Run(engine, func(t *testing.T) { openAndReopen(t, engine) })
	}
}

func openAndReopen(t *testing.T, engine string) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
challenges:
  - name: hello
    type: time
    reward_points: "25"
    badge: 30
    end_time: 4102444800
`), 0o644))

	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.StorageEngine = engine
	cfg.Admins = []string{adminAddr.Hex()}
	cfg.CatalogFile = catalogPath
	cfg.IndexerPath = filepath.Join(dir, "journal.db")
	ctx := context.Background()
	feed := oracle.NewStaticFeed(price2000, uint64(time.Now().Unix()))

	p, err := Open(ctx, cfg, feed)
	require.NoError(t, err)
	_, err = p.HandleLiquidityAdded(ctx, lpAddr, hooks.BalanceDelta{Amount0: units(1)})
	require.NoError(t, err)
	require.NoError(t, p.CompleteChallenge(ctx, lpAddr, 0))
	require.NoError(t, p.Close())

	p, err = Open(ctx, cfg, feed)
	require.NoError(t, err)
	defer p.Close()

	points, err := p.Points(lpAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(225), points.Uint64())
	granter, bound, err := p.Granter()
	require.NoError(t, err)
	require.True(t, bound)
	expected, err := cfg.RegistryIdentity()
	require.NoError(t, err)
	require.Equal(t, expected, granter)
	count, err := p.registry.ChallengeCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	journal, err := indexer.OpenFile(cfg.IndexerPath)
	require.NoError(t, err)
	defer journal.Close()
	history, err := journal.History(ctx, lpAddr, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	require.Equal(t, events.TypeChallengeCompleted, history[0].Type)
}
