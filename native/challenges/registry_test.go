package challenges_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolquest/core/events"
	"poolquest/core/state"
	"poolquest/native/activity"
	"poolquest/native/challenges"
	nativecommon "poolquest/native/common"
	"poolquest/native/progression"
	"poolquest/storage"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func (c *capturingEmitter) count(eventType string) int {
	n := 0
	for _, evt := range c.events {
		if evt.EventType() == eventType {
			n++
		}
	}
	return n
}

type pauseStub map[string]bool

func (p pauseStub) IsPaused(module string) bool { return p[module] }

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	identity = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type fixture struct {
	registry *challenges.Registry
	engine   *progression.Engine
	tracker  *activity.Tracker
	manager  *state.Manager
	emitter  *capturingEmitter
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	require.NoError(t, manager.SetRole(challenges.RoleChallengeAdmin, admin.Bytes()))
	require.NoError(t, manager.SetRole(progression.RoleRewardsAdmin, admin.Bytes()))

	engine, err := progression.NewEngine(manager, progression.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, engine.BindGranter(admin, identity))
	tracker, err := activity.NewTracker(manager)
	require.NoError(t, err)

	f := &fixture{
		engine:  engine,
		tracker: tracker,
		manager: manager,
		emitter: &capturingEmitter{},
		now:     time.Unix(1_000, 0),
	}
	f.registry = challenges.NewRegistry(manager, tracker, engine, identity)
	f.registry.SetEmitter(f.emitter)
	f.registry.SetNow(func() time.Time { return f.now })
	return f
}

func (f *fixture) create(t *testing.T, kind challenges.ChallengeType, required, reward uint64, badge uint8) uint64 {
	t.Helper()
	id, err := f.registry.CreateChallenge(admin, challenges.Challenge{
		Name:           kind.String(),
		Type:           kind,
		RequiredAmount: uint256.NewInt(required),
		RewardPoints:   uint256.NewInt(reward),
		BadgeID:        badge,
		StartTime:      500,
		EndTime:        2_000,
	})
	require.NoError(t, err)
	return id
}

func TestCreateChallengeAssignsDenseIndices(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, challenges.LiquidityProvision, 10, 50, 4)
	second := f.create(t, challenges.Swapping, 10, 50, 5)
	require.Equal(t, uint64(0), first)
	require.Equal(t, uint64(1), second)

	count, err := f.registry.ChallengeCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	stored, err := f.registry.Challenge(second)
	require.NoError(t, err)
	require.True(t, stored.Active)
	require.Equal(t, challenges.Swapping, stored.Type)
	require.Equal(t, uint8(5), stored.BadgeID)
	require.Equal(t, 2, f.emitter.count(events.TypeChallengeCreated))
}

func TestAdminOperationsRequireRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.CreateChallenge(user, challenges.Challenge{Type: challenges.TimeBased})
	require.ErrorIs(t, err, challenges.ErrUnauthorized)

	id := f.create(t, challenges.TimeBased, 0, 10, 4)
	require.ErrorIs(t, f.registry.DeactivateChallenge(user, id), challenges.ErrUnauthorized)
	_, err = f.registry.CreateQuest(user, "q", []uint64{id}, uint256.NewInt(1), 6)
	require.ErrorIs(t, err, challenges.ErrUnauthorized)
}

func TestCreateChallengeRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.CreateChallenge(admin, challenges.Challenge{Type: challenges.ChallengeType(9)})
	require.ErrorIs(t, err, challenges.ErrInvalidDefinition)
}

func TestCompleteLiquidityChallenge(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, challenges.LiquidityProvision, 1_000, 250, 7)

	err := f.registry.CompleteChallenge(user, id)
	require.ErrorIs(t, err, challenges.ErrRequirementNotMet)

	require.NoError(t, f.tracker.RecordLiquidityProvision(user, uint256.NewInt(1_000)))
	require.NoError(t, f.registry.CompleteChallenge(user, id))

	points, err := f.engine.Points(user)
	require.NoError(t, err)
	require.Equal(t, uint64(250), points.Uint64())
	has, err := f.engine.HasBadge(user, 7)
	require.NoError(t, err)
	require.True(t, has)
	level, err := f.engine.Level(user)
	require.NoError(t, err)
	require.Equal(t, uint64(3), level)

	progress, err := f.registry.ChallengeProgress(user, id)
	require.NoError(t, err)
	require.True(t, progress.Completed)
	require.Equal(t, uint64(1_000), progress.Progress.Uint64())
	require.Equal(t, 1, f.emitter.count(events.TypeChallengeCompleted))

	err = f.registry.CompleteChallenge(user, id)
	require.ErrorIs(t, err, challenges.ErrAlreadyCompleted)
	points, err = f.engine.Points(user)
	require.NoError(t, err)
	require.Equal(t, uint64(250), points.Uint64())
}

func TestCompleteSwapChallengeUsesSwapVolume(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, challenges.Swapping, 500, 10, 8)
	require.NoError(t, f.tracker.RecordLiquidityProvision(user, uint256.NewInt(10_000)))
	require.ErrorIs(t, f.registry.CompleteChallenge(user, id), challenges.ErrRequirementNotMet)

	require.NoError(t, f.tracker.RecordSwap(user, uint256.NewInt(499)))
	require.ErrorIs(t, f.registry.CompleteChallenge(user, id), challenges.ErrRequirementNotMet)
	require.NoError(t, f.tracker.RecordSwap(user, uint256.NewInt(1)))
	require.NoError(t, f.registry.CompleteChallenge(user, id))
}

func TestTimeBasedChallengeWindow(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, challenges.TimeBased, 42, 10, 9)

	progress, err := f.registry.ChallengeProgress(user, id)
	require.NoError(t, err)
	require.False(t, progress.Completed)
	require.True(t, progress.Progress.IsZero())

	f.now = time.Unix(499, 0)
	require.ErrorIs(t, f.registry.CompleteChallenge(user, id), challenges.ErrOutsideWindow)
	f.now = time.Unix(2_001, 0)
	require.ErrorIs(t, f.registry.CompleteChallenge(user, id), challenges.ErrOutsideWindow)

	f.now = time.Unix(2_000, 0)
	require.NoError(t, f.registry.CompleteChallenge(user, id))
	progress, err = f.registry.ChallengeProgress(user, id)
	require.NoError(t, err)
	require.True(t, progress.Completed)
	require.Equal(t, uint64(42), progress.Progress.Uint64())
}

func TestCompletionCheckOrder(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.registry.CompleteChallenge(user, 0), challenges.ErrInvalidChallenge)

	id := f.create(t, challenges.TimeBased, 0, 10, 9)
	require.NoError(t, f.registry.CompleteChallenge(user, id))

	// Once completed, a closed window still reports the completion.
	f.now = time.Unix(5_000, 0)
	require.ErrorIs(t, f.registry.CompleteChallenge(user, id), challenges.ErrAlreadyCompleted)

	// Inactive takes precedence over everything but an unknown id.
	require.NoError(t, f.registry.DeactivateChallenge(admin, id))
	require.ErrorIs(t, f.registry.CompleteChallenge(user, id), challenges.ErrChallengeInactive)
}

func TestDeactivateChallenge(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, challenges.TimeBased, 0, 10, 9)
	require.ErrorIs(t, f.registry.DeactivateChallenge(admin, 99), challenges.ErrInvalidChallenge)

	require.NoError(t, f.registry.DeactivateChallenge(admin, id))
	require.NoError(t, f.registry.DeactivateChallenge(admin, id))
	require.Equal(t, 1, f.emitter.count(events.TypeChallengeDeactivated))

	stored, err := f.registry.Challenge(id)
	require.NoError(t, err)
	require.False(t, stored.Active)

	active, err := f.registry.ActiveChallenges(1_000)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestActiveChallengesFiltersByWindow(t *testing.T) {
	f := newFixture(t)
	f.create(t, challenges.TimeBased, 0, 10, 9)
	_, err := f.registry.CreateChallenge(admin, challenges.Challenge{
		Type:      challenges.TimeBased,
		StartTime: 3_000,
		EndTime:   4_000,
	})
	require.NoError(t, err)

	active, err := f.registry.ActiveChallenges(1_000)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, uint64(0), active[0].ID)

	active, err = f.registry.ActiveChallenges(3_500)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, uint64(1), active[0].ID)
}

func TestQuestLifecycle(t *testing.T) {
	f := newFixture(t)
	liquidity := f.create(t, challenges.LiquidityProvision, 100, 10, 4)
	timed := f.create(t, challenges.TimeBased, 0, 10, 5)

	quest, err := f.registry.CreateQuest(admin, " Starter ", []uint64{liquidity, timed}, uint256.NewInt(80), 6)
	require.NoError(t, err)
	stored, err := f.registry.Quest(quest)
	require.NoError(t, err)
	require.Equal(t, "Starter", stored.Name)
	require.Equal(t, []uint64{liquidity, timed}, stored.ChallengeIDs)

	require.NoError(t, f.registry.CompleteChallenge(user, timed))
	progress, err := f.registry.QuestProgress(user, quest)
	require.NoError(t, err)
	require.False(t, progress.Completed)
	require.Equal(t, uint64(1), progress.ChallengesCompleted)
	require.Equal(t, uint64(2), progress.ChallengesTotal)

	require.ErrorIs(t, f.registry.CompleteQuest(user, quest), challenges.ErrIncompleteChallenges)

	require.NoError(t, f.tracker.RecordLiquidityProvision(user, uint256.NewInt(100)))
	require.NoError(t, f.registry.CompleteChallenge(user, liquidity))
	require.NoError(t, f.registry.CompleteQuest(user, quest))
	require.ErrorIs(t, f.registry.CompleteQuest(user, quest), challenges.ErrAlreadyCompleted)

	points, err := f.engine.Points(user)
	require.NoError(t, err)
	require.Equal(t, uint64(100), points.Uint64())
	badges, err := f.engine.Badges(user)
	require.NoError(t, err)
	require.Equal(t, []uint8{4, 5, 6}, progression.BadgeIDs(badges))
	require.Equal(t, 1, f.emitter.count(events.TypeQuestCompleted))

	completed, err := f.registry.CompletedChallenges(user)
	require.NoError(t, err)
	require.Equal(t, []uint64{timed, liquidity}, completed)
	quests, err := f.registry.CompletedQuests(user)
	require.NoError(t, err)
	require.Equal(t, []uint64{quest}, quests)

	none, err := f.registry.CompletedChallenges(admin)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCreateQuestValidatesChallengeIDs(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.CreateQuest(admin, "empty", nil, uint256.NewInt(1), 1)
	require.ErrorIs(t, err, challenges.ErrInvalidQuest)

	f.create(t, challenges.TimeBased, 0, 1, 1)
	_, err = f.registry.CreateQuest(admin, "dangling", []uint64{0, 1}, uint256.NewInt(1), 1)
	require.ErrorIs(t, err, challenges.ErrInvalidChallenge)

	count, err := f.registry.QuestCount()
	require.NoError(t, err)
	require.Zero(t, count)
	require.ErrorIs(t, f.registry.CompleteQuest(user, 0), challenges.ErrInvalidQuest)
}

type reentrantGranter struct {
	inner    challenges.RewardGranter
	registry *challenges.Registry
	id       uint64
	nested   error
}

func (g *reentrantGranter) AwardBadgeAndPoints(caller, user common.Address, points *uint256.Int, badgeID uint8) error {
	if g.nested == nil {
		g.nested = g.registry.CompleteChallenge(user, g.id)
	}
	return g.inner.AwardBadgeAndPoints(caller, user, points, badgeID)
}

func TestReentrantCompletionObservesRecord(t *testing.T) {
	f := newFixture(t)
	granter := &reentrantGranter{inner: f.engine}
	registry := challenges.NewRegistry(f.manager, f.tracker, granter, identity)
	registry.SetNow(func() time.Time { return f.now })
	granter.registry = registry

	id, err := registry.CreateChallenge(admin, challenges.Challenge{
		Type:         challenges.TimeBased,
		RewardPoints: uint256.NewInt(30),
		StartTime:    0,
		EndTime:      10_000,
	})
	require.NoError(t, err)
	granter.id = id

	require.NoError(t, registry.CompleteChallenge(user, id))
	require.ErrorIs(t, granter.nested, challenges.ErrAlreadyCompleted)

	points, err := f.engine.Points(user)
	require.NoError(t, err)
	require.Equal(t, uint64(30), points.Uint64())
}

func TestGrantRequiresBoundIdentity(t *testing.T) {
	f := newFixture(t)
	impostor := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	registry := challenges.NewRegistry(f.manager, f.tracker, f.engine, impostor)
	registry.SetNow(func() time.Time { return f.now })
	id, err := registry.CreateChallenge(admin, challenges.Challenge{Type: challenges.TimeBased, EndTime: 10_000})
	require.NoError(t, err)

	err = registry.CompleteChallenge(user, id)
	require.ErrorIs(t, err, progression.ErrUnauthorized)
}

func TestPausedRegistryRejectsMutations(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, challenges.TimeBased, 0, 1, 1)
	f.registry.SetPauses(pauseStub{"challenges": true})

	err := f.registry.CompleteChallenge(user, id)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	_, err = f.registry.CreateChallenge(admin, challenges.Challenge{Type: challenges.TimeBased})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	f.registry.SetPauses(nil)
	require.NoError(t, f.registry.CompleteChallenge(user, id))
}
