package progression

import "github.com/holiman/uint256"

// Profile is the per-user progression record. Points mirror the user's
// fungible point balance; Level is the cached derived level; Badges is a
// bitset where bit i is set once badge i has been unlocked.
type Profile struct {
	Points *uint256.Int
	Level  uint64
	Badges *uint256.Int
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := &Profile{Level: p.Level}
	if p.Points != nil {
		clone.Points = new(uint256.Int).Set(p.Points)
	}
	if p.Badges != nil {
		clone.Badges = new(uint256.Int).Set(p.Badges)
	}
	return clone
}

// Normalize replaces unset fields with their defaults: zero points, level 1
// and an empty badge set. The receiver is returned to allow chaining.
func (p *Profile) Normalize() *Profile {
	if p == nil {
		return nil
	}
	if p.Points == nil {
		p.Points = new(uint256.Int)
	}
	if p.Badges == nil {
		p.Badges = new(uint256.Int)
	}
	if p.Level == 0 {
		p.Level = 1
	}
	return p
}

// NewProfile returns the profile of a user that never interacted.
func NewProfile() *Profile {
	return (&Profile{}).Normalize()
}

// HasBadge reports whether the badge bit is set.
func (p *Profile) HasBadge(id uint8) bool {
	if p == nil || p.Badges == nil {
		return false
	}
	return HasBadge(p.Badges, id)
}

// BadgeIDs lists the unlocked badges in ascending order.
func (p *Profile) BadgeIDs() []uint8 {
	if p == nil {
		return nil
	}
	return BadgeIDs(p.Badges)
}

func badgeMask(id uint8) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(id))
}

// HasBadge reports whether bit id is set in the badge set.
func HasBadge(set *uint256.Int, id uint8) bool {
	if set == nil {
		return false
	}
	return !new(uint256.Int).And(set, badgeMask(id)).IsZero()
}

// BadgeIDs lists the set bits of a badge set in ascending order.
func BadgeIDs(set *uint256.Int) []uint8 {
	if set == nil || set.IsZero() {
		return nil
	}
	ids := make([]uint8, 0, 4)
	for i := 0; i < 256; i++ {
		if HasBadge(set, uint8(i)) {
			ids = append(ids, uint8(i))
		}
	}
	return ids
}
