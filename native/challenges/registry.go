package challenges

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/events"
	nativecommon "poolquest/native/common"
)

const (
	// RoleChallengeAdmin may create and deactivate challenges and quests.
	RoleChallengeAdmin = "ROLE_CHALLENGE_ADMIN"
	moduleName         = "challenges"
)

type registryState interface {
	HasRole(role string, addr []byte) (bool, error)
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// MetricsReader exposes the cumulative activity counters that gate
// challenge requirements.
type MetricsReader interface {
	LiquidityProvided(user common.Address) (*uint256.Int, error)
	SwapVolume(user common.Address) (*uint256.Int, error)
}

// RewardGranter is the restricted capability used to pay out completion
// rewards. The registry presents its own identity as caller.
type RewardGranter interface {
	AwardBadgeAndPoints(caller, user common.Address, points *uint256.Int, badgeID uint8) error
}

// Registry stores challenge and quest definitions and per-user completion
// records.
type Registry struct {
	st       registryState
	metrics  MetricsReader
	granter  RewardGranter
	identity common.Address
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	now      func() time.Time
}

// NewRegistry creates a registry backed by the provided state. identity is
// the address the registry presents to the reward granter.
func NewRegistry(st registryState, metrics MetricsReader, granter RewardGranter, identity common.Address) *Registry {
	return &Registry{
		st:       st,
		metrics:  metrics,
		granter:  granter,
		identity: identity,
		emitter:  events.NoopEmitter{},
		now:      time.Now,
	}
}

// SetEmitter configures the event emitter used to broadcast registry updates.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetNow overrides the time source. It is intended for tests.
func (r *Registry) SetNow(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.now = now
}

// Identity returns the address the registry uses when granting rewards.
func (r *Registry) Identity() common.Address {
	return r.identity
}

func (r *Registry) timestamp() uint64 {
	ts := r.now().UTC().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (r *Registry) authorize(caller common.Address) error {
	allowed, err := r.st.HasRole(RoleChallengeAdmin, caller.Bytes())
	if err != nil {
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}
	return nil
}

// CreateChallenge appends a challenge definition and returns its index. New
// challenges are always active. Time ordering is not validated; a challenge
// whose window is empty simply can never be completed.
func (r *Registry) CreateChallenge(caller common.Address, def Challenge) (uint64, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := r.authorize(caller); err != nil {
		return 0, err
	}
	if !def.Type.Valid() {
		return 0, fmt.Errorf("%w: type %d", ErrInvalidDefinition, uint8(def.Type))
	}
	id, err := r.ChallengeCount()
	if err != nil {
		return 0, err
	}
	challenge := Challenge{
		ID:             id,
		Name:           strings.TrimSpace(def.Name),
		Type:           def.Type,
		RequiredAmount: cloneU256(def.RequiredAmount),
		RewardPoints:   cloneU256(def.RewardPoints),
		BadgeID:        def.BadgeID,
		StartTime:      def.StartTime,
		EndTime:        def.EndTime,
		Active:         true,
	}
	if err := r.st.KVPut(challengeKey(id), &challenge); err != nil {
		return 0, err
	}
	if err := r.st.KVPut(challengeCounterKey(), id+1); err != nil {
		return 0, err
	}
	r.emitter.Emit(events.ChallengeCreated{
		ID:             id,
		Name:           challenge.Name,
		Kind:           challenge.Type.String(),
		RequiredAmount: cloneU256(challenge.RequiredAmount),
		RewardPoints:   cloneU256(challenge.RewardPoints),
		BadgeID:        challenge.BadgeID,
		StartTime:      challenge.StartTime,
		EndTime:        challenge.EndTime,
	})
	return id, nil
}

// DeactivateChallenge performs the one-way transition to inactive.
// Deactivating an already inactive challenge is a no-op.
func (r *Registry) DeactivateChallenge(caller common.Address, id uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if err := r.authorize(caller); err != nil {
		return err
	}
	challenge, err := r.Challenge(id)
	if err != nil {
		return err
	}
	if !challenge.Active {
		return nil
	}
	challenge.Active = false
	if err := r.st.KVPut(challengeKey(id), challenge); err != nil {
		return err
	}
	r.emitter.Emit(events.ChallengeDeactivated{ID: id, Caller: caller})
	return nil
}

// CreateQuest appends a quest definition and returns its index. Every
// referenced challenge must already exist.
func (r *Registry) CreateQuest(caller common.Address, name string, challengeIDs []uint64, rewardPoints *uint256.Int, badgeID uint8) (uint64, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := r.authorize(caller); err != nil {
		return 0, err
	}
	if len(challengeIDs) == 0 {
		return 0, fmt.Errorf("%w: quest references no challenges", ErrInvalidQuest)
	}
	count, err := r.ChallengeCount()
	if err != nil {
		return 0, err
	}
	for _, cid := range challengeIDs {
		if cid >= count {
			return 0, fmt.Errorf("%w: quest references challenge %d of %d", ErrInvalidChallenge, cid, count)
		}
	}
	id, err := r.QuestCount()
	if err != nil {
		return 0, err
	}
	quest := Quest{
		ID:           id,
		Name:         strings.TrimSpace(name),
		ChallengeIDs: append([]uint64(nil), challengeIDs...),
		RewardPoints: cloneU256(rewardPoints),
		BadgeID:      badgeID,
	}
	if err := r.st.KVPut(questKey(id), &quest); err != nil {
		return 0, err
	}
	if err := r.st.KVPut(questCounterKey(), id+1); err != nil {
		return 0, err
	}
	r.emitter.Emit(events.QuestCreated{
		ID:           id,
		Name:         quest.Name,
		ChallengeIDs: append([]uint64(nil), quest.ChallengeIDs...),
		RewardPoints: cloneU256(quest.RewardPoints),
		BadgeID:      quest.BadgeID,
	})
	return id, nil
}

// ChallengeCount returns the number of challenges ever created.
func (r *Registry) ChallengeCount() (uint64, error) {
	return r.counter(challengeCounterKey())
}

// QuestCount returns the number of quests ever created.
func (r *Registry) QuestCount() (uint64, error) {
	return r.counter(questCounterKey())
}

func (r *Registry) counter(key []byte) (uint64, error) {
	var count uint64
	if _, err := r.st.KVGet(key, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Challenge returns the definition stored at id.
func (r *Registry) Challenge(id uint64) (*Challenge, error) {
	challenge := new(Challenge)
	ok, err := r.st.KVGet(challengeKey(id), challenge)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChallenge, id)
	}
	return challenge.normalize(), nil
}

// Quest returns the definition stored at id.
func (r *Registry) Quest(id uint64) (*Quest, error) {
	quest := new(Quest)
	ok, err := r.st.KVGet(questKey(id), quest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuest, id)
	}
	return quest.normalize(), nil
}

// ActiveChallenges lists the active challenges whose window contains
// timestamp, in index order.
func (r *Registry) ActiveChallenges(timestamp uint64) ([]*Challenge, error) {
	count, err := r.ChallengeCount()
	if err != nil {
		return nil, err
	}
	out := make([]*Challenge, 0)
	for id := uint64(0); id < count; id++ {
		challenge, err := r.Challenge(id)
		if err != nil {
			return nil, err
		}
		if challenge.Active && challenge.OpenAt(timestamp) {
			out = append(out, challenge)
		}
	}
	return out, nil
}

func cloneU256(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
