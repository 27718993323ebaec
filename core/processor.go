package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"poolquest/core/events"
	"poolquest/core/state"
	"poolquest/native/activity"
	"poolquest/native/challenges"
	nativecommon "poolquest/native/common"
	"poolquest/native/hooks"
	"poolquest/native/oracle"
	"poolquest/native/progression"
	"poolquest/native/rewards"
	"poolquest/observability"
	"poolquest/observability/logging"
	"poolquest/observability/metrics"
	telemetry "poolquest/observability/otel"
	"poolquest/storage"
)

const (
	sourceLiquidity = "liquidity"
	sourceSwap      = "swap"
	sourceGrant     = "grant"
)

// Options configures a Processor. Zero values select the reference
// parameters.
type Options struct {
	Progression      progression.Params
	Rewards          rewards.Params
	OracleMaxAge     time.Duration
	RegistryIdentity common.Address
	Pauses           nativecommon.PauseView
	Logger           *slog.Logger
	Metrics          *metrics.RewardsMetrics
	Now              func() time.Time
}

// Processor serializes every external call against a pending state overlay.
// A call either commits all of its writes in one storage batch and publishes
// its events, or leaves state and subscribers untouched.
type Processor struct {
	mu sync.Mutex

	db       storage.Database
	state    *state.Manager
	feed     *oracle.Adapter
	engine   *progression.Engine
	tracker  *activity.Tracker
	registry *challenges.Registry
	hooks    *hooks.Adapter
	identity common.Address

	buffer      *eventBuffer
	subscribers []events.Emitter

	logger  *slog.Logger
	metrics *metrics.RewardsMetrics
	tracer  trace.Tracer
	closers []func() error
}

// NewProcessor wires the reward engines over db. feed supplies the base-asset
// price.
func NewProcessor(db storage.Database, feed oracle.Feed, opts Options) (*Processor, error) {
	if db == nil {
		return nil, fmt.Errorf("core: storage required")
	}
	if feed == nil {
		return nil, fmt.Errorf("core: price feed required")
	}
	if opts.Progression.PointsPerLevel == 0 {
		opts.Progression = progression.DefaultParams()
	}
	if opts.Rewards.USDPerPoint == 0 {
		opts.Rewards = rewards.DefaultParams()
	}
	if opts.RegistryIdentity == (common.Address{}) {
		return nil, fmt.Errorf("core: registry identity required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Rewards()
	}

	manager := state.NewManager(db)
	engine, err := progression.NewEngine(manager, opts.Progression)
	if err != nil {
		return nil, err
	}
	tracker, err := activity.NewTracker(manager)
	if err != nil {
		return nil, err
	}
	priceFeed := oracle.NewAdapter(feed, opts.OracleMaxAge)
	calculator, err := rewards.NewCalculator(priceFeed, opts.Rewards)
	if err != nil {
		return nil, err
	}

	buffer := &eventBuffer{}
	engine.SetEmitter(buffer)

	registry := challenges.NewRegistry(manager, tracker, engine, opts.RegistryIdentity)
	registry.SetEmitter(buffer)
	registry.SetPauses(opts.Pauses)

	adapter := hooks.NewAdapter(calculator, engine, tracker)
	adapter.SetEmitter(buffer)
	adapter.SetPauses(opts.Pauses)

	if opts.Now != nil {
		registry.SetNow(opts.Now)
		priceFeed.SetNow(opts.Now)
	}

	return &Processor{
		db:       db,
		state:    manager,
		feed:     priceFeed,
		engine:   engine,
		tracker:  tracker,
		registry: registry,
		hooks:    adapter,
		identity: opts.RegistryIdentity,
		buffer:   buffer,
		logger:   logging.Component(opts.Logger, "processor"),
		metrics:  opts.Metrics,
		tracer:   otel.Tracer(telemetry.TracerName),
	}, nil
}

// Subscribe registers an emitter that receives events of committed calls, in
// emission order.
func (p *Processor) Subscribe(emitter events.Emitter) {
	if emitter == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, emitter)
}

// RegistryIdentity returns the address the challenge registry uses when
// granting rewards.
func (p *Processor) RegistryIdentity() common.Address {
	return p.identity
}

// Close releases the storage and any attached resources.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	p.db.Close()
	return errors.Join(errs...)
}

func (p *Processor) onClose(fn func() error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closers = append(p.closers, fn)
}

// HandleLiquidityAdded rewards a settled liquidity addition.
func (p *Processor) HandleLiquidityAdded(ctx context.Context, user common.Address, delta hooks.BalanceDelta) (*uint256.Int, error) {
	var points *uint256.Int
	err := p.execute(ctx, "handle_liquidity", sourceLiquidity, []attribute.KeyValue{
		attribute.String("user", user.Hex()),
	}, func() error {
		var err error
		points, err = p.hooks.OnLiquidityAdded(user, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// HandleSwap rewards a settled swap.
func (p *Processor) HandleSwap(ctx context.Context, user common.Address, params hooks.SwapParams, delta hooks.BalanceDelta) (*uint256.Int, error) {
	var points *uint256.Int
	err := p.execute(ctx, "handle_swap", sourceSwap, []attribute.KeyValue{
		attribute.String("user", user.Hex()),
		attribute.Bool("zero_for_one", params.ZeroForOne),
	}, func() error {
		var err error
		points, err = p.hooks.OnSwapExecuted(user, params, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// CompleteChallenge completes challenge id on behalf of caller.
func (p *Processor) CompleteChallenge(ctx context.Context, caller common.Address, id uint64) error {
	return p.execute(ctx, "complete_challenge", sourceGrant, []attribute.KeyValue{
		attribute.String("user", caller.Hex()),
		attribute.Int64("challenge", int64(id)),
	}, func() error {
		return p.registry.CompleteChallenge(caller, id)
	})
}

// CompleteQuest completes quest id on behalf of caller.
func (p *Processor) CompleteQuest(ctx context.Context, caller common.Address, id uint64) error {
	return p.execute(ctx, "complete_quest", sourceGrant, []attribute.KeyValue{
		attribute.String("user", caller.Hex()),
		attribute.Int64("quest", int64(id)),
	}, func() error {
		return p.registry.CompleteQuest(caller, id)
	})
}

// CreateChallenge appends a challenge definition.
func (p *Processor) CreateChallenge(ctx context.Context, caller common.Address, def challenges.Challenge) (uint64, error) {
	var id uint64
	err := p.execute(ctx, "create_challenge", "", []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.String("kind", def.Type.String()),
	}, func() error {
		var err error
		id, err = p.registry.CreateChallenge(caller, def)
		return err
	})
	return id, err
}

// DeactivateChallenge permanently deactivates challenge id.
func (p *Processor) DeactivateChallenge(ctx context.Context, caller common.Address, id uint64) error {
	return p.execute(ctx, "deactivate_challenge", "", []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.Int64("challenge", int64(id)),
	}, func() error {
		return p.registry.DeactivateChallenge(caller, id)
	})
}

// CreateQuest appends a quest definition.
func (p *Processor) CreateQuest(ctx context.Context, caller common.Address, name string, challengeIDs []uint64, rewardPoints *uint256.Int, badgeID uint8) (uint64, error) {
	var id uint64
	err := p.execute(ctx, "create_quest", "", []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.Int("challenges", len(challengeIDs)),
	}, func() error {
		var err error
		id, err = p.registry.CreateQuest(caller, name, challengeIDs, rewardPoints, badgeID)
		return err
	})
	return id, err
}

// BindRewardGranter performs the one-time binding of the reward-granting
// capability.
func (p *Processor) BindRewardGranter(ctx context.Context, caller, granter common.Address) error {
	return p.execute(ctx, "bind_granter", "", []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.String("granter", granter.Hex()),
	}, func() error {
		return p.engine.BindGranter(caller, granter)
	})
}

// AssignRole grants role to addr. It is a bootstrap operation with no
// authorization of its own; role management lives outside the engines.
func (p *Processor) AssignRole(ctx context.Context, role string, addr common.Address) error {
	return p.execute(ctx, "assign_role", "", []attribute.KeyValue{
		attribute.String("role", role),
		attribute.String("address", addr.Hex()),
	}, func() error {
		return p.state.SetRole(role, addr.Bytes())
	})
}

// Profile returns the user's points, level and badges.
func (p *Processor) Profile(user common.Address) (*progression.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Profile(user)
}

// Points returns the user's point balance.
func (p *Processor) Points(user common.Address) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Points(user)
}

// Level returns the user's level.
func (p *Processor) Level(user common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Level(user)
}

// Badges returns the user's badge bitset.
func (p *Processor) Badges(user common.Address) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Badges(user)
}

// TotalPoints returns the sum of all credited points.
func (p *Processor) TotalPoints() (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.TotalPoints()
}

// Granter returns the bound reward granter, if any.
func (p *Processor) Granter() (common.Address, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Granter()
}

// Activity returns the user's cumulative liquidity and swap metrics.
func (p *Processor) Activity(user common.Address) (*activity.Totals, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Totals(user)
}

// Challenge returns challenge id.
func (p *Processor) Challenge(id uint64) (*challenges.Challenge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.Challenge(id)
}

// Quest returns quest id.
func (p *Processor) Quest(id uint64) (*challenges.Quest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.Quest(id)
}

// ActiveChallenges lists the challenges open at timestamp.
func (p *Processor) ActiveChallenges(timestamp uint64) ([]*challenges.Challenge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.ActiveChallenges(timestamp)
}

// ChallengeProgress reports user's standing on challenge id.
func (p *Processor) ChallengeProgress(user common.Address, id uint64) (challenges.Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.ChallengeProgress(user, id)
}

// QuestProgress reports user's standing on quest id.
func (p *Processor) QuestProgress(user common.Address, id uint64) (challenges.QuestProgress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.QuestProgress(user, id)
}

// CompletedChallenges lists the challenges user completed, oldest first.
func (p *Processor) CompletedChallenges(user common.Address) ([]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.CompletedChallenges(user)
}

// CompletedQuests lists the quests user completed, oldest first.
func (p *Processor) CompletedQuests(user common.Address) ([]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.CompletedQuests(user)
}

// LatestRound returns the current validated oracle round.
func (p *Processor) LatestRound() (oracle.Round, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed.LatestRound()
}

func (p *Processor) execute(ctx context.Context, op, source string, attrs []attribute.KeyValue, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "processor."+op, trace.WithAttributes(attrs...))
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	err := ctx.Err()
	if err == nil {
		p.buffer.reset()
		err = fn()
	}
	if err == nil {
		err = p.state.Commit()
	}
	if err != nil {
		p.state.Reset()
		p.buffer.reset()
		reason := Reason(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.IncRejection(op, reason)
		p.metrics.ObserveCall(op, time.Since(start))
		p.logger.WarnContext(ctx, "call rejected",
			slog.String("operation", op),
			slog.String("reason", reason),
			slog.Any("error", err))
		return err
	}

	committed := p.buffer.drain()
	span.SetAttributes(attribute.Int("events", len(committed)))
	span.SetStatus(codes.Ok, "committed")
	p.publish(ctx, source, committed)
	p.metrics.ObserveCall(op, time.Since(start))
	return nil
}

func (p *Processor) publish(ctx context.Context, source string, committed []events.Event) {
	for _, evt := range committed {
		p.observe(ctx, source, evt)
		observability.Events().RecordPublished(evt.EventType())
		for _, subscriber := range p.subscribers {
			subscriber.Emit(evt)
		}
	}
}

func (p *Processor) observe(ctx context.Context, source string, evt events.Event) {
	switch e := evt.(type) {
	case events.PointsCredited:
		p.metrics.AddPoints(source, toFloat(e.Amount))
	case events.LevelUp:
		p.metrics.IncLevelUp()
		p.logger.InfoContext(ctx, "level up",
			slog.String("address", e.Address.Hex()),
			slog.Uint64("old_level", e.OldLevel),
			slog.Uint64("new_level", e.NewLevel))
	case events.BadgeAwarded:
		p.metrics.IncBadge(e.Source)
	case events.ChallengeCompleted:
		p.metrics.IncCompletion("challenge")
		p.logger.InfoContext(ctx, "challenge completed",
			slog.String("address", e.Address.Hex()),
			slog.Uint64("challenge", e.ID))
	case events.QuestCompleted:
		p.metrics.IncCompletion("quest")
		p.logger.InfoContext(ctx, "quest completed",
			slog.String("address", e.Address.Hex()),
			slog.Uint64("quest", e.ID))
	}
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

type eventBuffer struct {
	events []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	b.events = append(b.events, evt)
}

func (b *eventBuffer) reset() {
	b.events = nil
}

func (b *eventBuffer) drain() []events.Event {
	out := b.events
	b.events = nil
	return out
}
