package state

var (
	progressionProfilePrefix = []byte("progression/profile/")
	progressionSupplyKey     = []byte("progression/supply")
	progressionGranterKey    = []byte("progression/granter")
	activityTotalsPrefix     = []byte("activity/totals/")
)

func prefixedKey(prefix []byte, suffix []byte) []byte {
	key := make([]byte, len(prefix)+len(suffix))
	copy(key, prefix)
	copy(key[len(prefix):], suffix)
	return key
}

// ProgressionProfileKey returns the raw storage key of a user's progression
// profile.
func ProgressionProfileKey(addr []byte) []byte {
	return prefixedKey(progressionProfilePrefix, addr)
}

// ActivityTotalsKey returns the raw storage key of a user's activity totals.
func ActivityTotalsKey(addr []byte) []byte {
	return prefixedKey(activityTotalsPrefix, addr)
}
