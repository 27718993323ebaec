package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquest/native/activity"
	"poolquest/native/progression"
)

// ProgressionProfile loads a user's progression record. Absent users yield
// nil.
func (m *Manager) ProgressionProfile(addr common.Address) (*progression.Profile, error) {
	profile := new(progression.Profile)
	ok, err := m.KVGet(ProgressionProfileKey(addr.Bytes()), profile)
	if err != nil || !ok {
		return nil, err
	}
	return profile.Normalize(), nil
}

// SetProgressionProfile persists a user's progression record.
func (m *Manager) SetProgressionProfile(addr common.Address, profile *progression.Profile) error {
	return m.KVPut(ProgressionProfileKey(addr.Bytes()), profile.Clone().Normalize())
}

// ProgressionTotalPoints returns the total number of points credited.
func (m *Manager) ProgressionTotalPoints() (*uint256.Int, error) {
	total := new(uint256.Int)
	if _, err := m.KVGet(progressionSupplyKey, total); err != nil {
		return nil, err
	}
	return total, nil
}

// SetProgressionTotalPoints persists the total number of points credited.
func (m *Manager) SetProgressionTotalPoints(total *uint256.Int) error {
	if total == nil {
		total = new(uint256.Int)
	}
	return m.KVPut(progressionSupplyKey, total)
}

// ProgressionGranter returns the address bound to the reward-granting
// capability.
func (m *Manager) ProgressionGranter() (common.Address, bool, error) {
	var granter common.Address
	ok, err := m.KVGet(progressionGranterKey, &granter)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return granter, true, nil
}

// SetProgressionGranter binds the reward-granting capability.
func (m *Manager) SetProgressionGranter(granter common.Address) error {
	return m.KVPut(progressionGranterKey, granter)
}

// ActivityTotals loads a user's activity record. Absent users yield nil.
func (m *Manager) ActivityTotals(addr common.Address) (*activity.Totals, error) {
	totals := new(activity.Totals)
	ok, err := m.KVGet(ActivityTotalsKey(addr.Bytes()), totals)
	if err != nil || !ok {
		return nil, err
	}
	return totals.Normalize(), nil
}

// SetActivityTotals persists a user's activity record.
func (m *Manager) SetActivityTotals(addr common.Address, totals *activity.Totals) error {
	return m.KVPut(ActivityTotalsKey(addr.Bytes()), totals.Clone().Normalize())
}
