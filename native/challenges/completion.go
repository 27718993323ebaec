package challenges

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/core/events"
	nativecommon "poolquest/native/common"
)

// CompleteChallenge records caller's completion of challenge id and grants
// its reward. The completion record is written before the reward grant so a
// re-entrant attempt observes ErrAlreadyCompleted.
func (r *Registry) CompleteChallenge(caller common.Address, id uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if r.granter == nil {
		return ErrGranterNotConfigured
	}
	challenge, err := r.Challenge(id)
	if err != nil {
		return err
	}
	if !challenge.Active {
		return fmt.Errorf("%w: %d", ErrChallengeInactive, id)
	}
	completed, err := r.challengeCompleted(caller, id)
	if err != nil {
		return err
	}
	if completed {
		return fmt.Errorf("%w: challenge %d", ErrAlreadyCompleted, id)
	}
	now := r.timestamp()
	if !challenge.OpenAt(now) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutsideWindow, now, challenge.StartTime, challenge.EndTime)
	}
	if err := r.checkRequirement(caller, challenge); err != nil {
		return err
	}
	if err := r.st.KVPut(challengeCompletionKey(caller, id), true); err != nil {
		return err
	}
	if err := r.st.KVAppend(historyKey(challengeHistoryPrefix, caller), encodeID(id)); err != nil {
		return err
	}
	if err := r.granter.AwardBadgeAndPoints(r.identity, caller, challenge.RewardPoints, challenge.BadgeID); err != nil {
		return err
	}
	r.emitter.Emit(events.ChallengeCompleted{
		ID:           id,
		Address:      caller,
		RewardPoints: cloneU256(challenge.RewardPoints),
		BadgeID:      challenge.BadgeID,
	})
	return nil
}

// CompleteQuest records caller's completion of quest id once every referenced
// challenge has been completed by caller.
func (r *Registry) CompleteQuest(caller common.Address, id uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if r.granter == nil {
		return ErrGranterNotConfigured
	}
	quest, err := r.Quest(id)
	if err != nil {
		return err
	}
	completed, err := r.questCompleted(caller, id)
	if err != nil {
		return err
	}
	if completed {
		return fmt.Errorf("%w: quest %d", ErrAlreadyCompleted, id)
	}
	done, err := r.countCompleted(caller, quest.ChallengeIDs)
	if err != nil {
		return err
	}
	if done < uint64(len(quest.ChallengeIDs)) {
		return fmt.Errorf("%w: %d of %d", ErrIncompleteChallenges, done, len(quest.ChallengeIDs))
	}
	if err := r.st.KVPut(questCompletionKey(caller, id), true); err != nil {
		return err
	}
	if err := r.st.KVAppend(historyKey(questHistoryPrefix, caller), encodeID(id)); err != nil {
		return err
	}
	if err := r.granter.AwardBadgeAndPoints(r.identity, caller, quest.RewardPoints, quest.BadgeID); err != nil {
		return err
	}
	r.emitter.Emit(events.QuestCompleted{
		ID:           id,
		Address:      caller,
		RewardPoints: cloneU256(quest.RewardPoints),
		BadgeID:      quest.BadgeID,
	})
	return nil
}

// ChallengeProgress reports whether user completed challenge id and the
// metric backing it. Time based challenges report RequiredAmount once
// completed and zero otherwise.
func (r *Registry) ChallengeProgress(user common.Address, id uint64) (Progress, error) {
	challenge, err := r.Challenge(id)
	if err != nil {
		return Progress{}, err
	}
	completed, err := r.challengeCompleted(user, id)
	if err != nil {
		return Progress{}, err
	}
	progress := new(uint256.Int)
	switch challenge.Type {
	case LiquidityProvision, Swapping:
		value, err := r.metric(user, challenge.Type)
		if err != nil {
			return Progress{}, err
		}
		progress = value
	case TimeBased:
		if completed {
			progress = cloneU256(challenge.RequiredAmount)
		}
	}
	return Progress{Completed: completed, Progress: progress}, nil
}

// QuestProgress reports whether user completed quest id and how many of its
// challenges user has completed so far.
func (r *Registry) QuestProgress(user common.Address, id uint64) (QuestProgress, error) {
	quest, err := r.Quest(id)
	if err != nil {
		return QuestProgress{}, err
	}
	completed, err := r.questCompleted(user, id)
	if err != nil {
		return QuestProgress{}, err
	}
	done, err := r.countCompleted(user, quest.ChallengeIDs)
	if err != nil {
		return QuestProgress{}, err
	}
	return QuestProgress{
		Completed:           completed,
		ChallengesCompleted: done,
		ChallengesTotal:     uint64(len(quest.ChallengeIDs)),
	}, nil
}

// ChallengeCompleted reports whether user holds a completion record for id.
func (r *Registry) ChallengeCompleted(user common.Address, id uint64) (bool, error) {
	return r.challengeCompleted(user, id)
}

// QuestCompleted reports whether user holds a completion record for id.
func (r *Registry) QuestCompleted(user common.Address, id uint64) (bool, error) {
	return r.questCompleted(user, id)
}

// CompletedChallenges lists the challenges user completed, oldest first.
func (r *Registry) CompletedChallenges(user common.Address) ([]uint64, error) {
	return r.history(challengeHistoryPrefix, user)
}

// CompletedQuests lists the quests user completed, oldest first.
func (r *Registry) CompletedQuests(user common.Address) ([]uint64, error) {
	return r.history(questHistoryPrefix, user)
}

func (r *Registry) history(prefix []byte, user common.Address) ([]uint64, error) {
	var raw [][]byte
	if err := r.st.KVGetList(historyKey(prefix, user), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("challenges: corrupt completion history entry of %d bytes", len(entry))
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

func (r *Registry) checkRequirement(user common.Address, challenge *Challenge) error {
	if challenge.Type == TimeBased {
		return nil
	}
	value, err := r.metric(user, challenge.Type)
	if err != nil {
		return err
	}
	if value.Lt(challenge.RequiredAmount) {
		return fmt.Errorf("%w: have %s, need %s", ErrRequirementNotMet, value.Dec(), challenge.RequiredAmount.Dec())
	}
	return nil
}

func (r *Registry) metric(user common.Address, kind ChallengeType) (*uint256.Int, error) {
	if r.metrics == nil {
		return new(uint256.Int), nil
	}
	var (
		value *uint256.Int
		err   error
	)
	switch kind {
	case LiquidityProvision:
		value, err = r.metrics.LiquidityProvided(user)
	case Swapping:
		value, err = r.metrics.SwapVolume(user)
	default:
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		return new(uint256.Int), nil
	}
	return value, nil
}

func (r *Registry) countCompleted(user common.Address, ids []uint64) (uint64, error) {
	var done uint64
	for _, cid := range ids {
		ok, err := r.challengeCompleted(user, cid)
		if err != nil {
			return 0, err
		}
		if ok {
			done++
		}
	}
	return done, nil
}

func (r *Registry) challengeCompleted(user common.Address, id uint64) (bool, error) {
	return r.flag(challengeCompletionKey(user, id))
}

func (r *Registry) questCompleted(user common.Address, id uint64) (bool, error) {
	return r.flag(questCompletionKey(user, id))
}

func (r *Registry) flag(key []byte) (bool, error) {
	var set bool
	ok, err := r.st.KVGet(key, &set)
	if err != nil {
		return false, err
	}
	return ok && set, nil
}
