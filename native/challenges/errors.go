package challenges

import "errors"

var (
	ErrUnauthorized         = errors.New("challenges: unauthorized")
	ErrInvalidChallenge     = errors.New("challenges: invalid challenge")
	ErrInvalidQuest         = errors.New("challenges: invalid quest")
	ErrInvalidDefinition    = errors.New("challenges: invalid definition")
	ErrChallengeInactive    = errors.New("challenges: challenge inactive")
	ErrOutsideWindow        = errors.New("challenges: outside challenge window")
	ErrAlreadyCompleted     = errors.New("challenges: already completed")
	ErrRequirementNotMet    = errors.New("challenges: requirement not met")
	ErrIncompleteChallenges = errors.New("challenges: quest challenges incomplete")
	ErrGranterNotConfigured = errors.New("challenges: reward granter not configured")
)
