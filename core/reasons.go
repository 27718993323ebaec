package core

import (
	"context"
	"errors"

	"poolquest/native/activity"
	"poolquest/native/challenges"
	nativecommon "poolquest/native/common"
	"poolquest/native/hooks"
	"poolquest/native/oracle"
	"poolquest/native/progression"
	"poolquest/native/rewards"
)

var reasons = []struct {
	err    error
	reason string
}{
	{oracle.ErrInvalidPrice, "invalid_price"},
	{oracle.ErrStalePrice, "stale_price"},
	{oracle.ErrNoRound, "no_round"},
	{rewards.ErrValueOverflow, "value_overflow"},
	{hooks.ErrDeltaOverflow, "value_overflow"},
	{progression.ErrPointsOverflow, "points_overflow"},
	{activity.ErrMetricOverflow, "metric_overflow"},
	{progression.ErrUnauthorized, "unauthorized"},
	{progression.ErrGranterBound, "granter_bound"},
	{progression.ErrInvalidGranter, "invalid_granter"},
	{challenges.ErrUnauthorized, "unauthorized"},
	{challenges.ErrInvalidChallenge, "invalid_challenge"},
	{challenges.ErrInvalidQuest, "invalid_quest"},
	{challenges.ErrInvalidDefinition, "invalid_definition"},
	{challenges.ErrChallengeInactive, "challenge_inactive"},
	{challenges.ErrOutsideWindow, "outside_window"},
	{challenges.ErrAlreadyCompleted, "already_completed"},
	{challenges.ErrRequirementNotMet, "requirement_not_met"},
	{challenges.ErrIncompleteChallenges, "incomplete_challenges"},
	{nativecommon.ErrModulePaused, "paused"},
	{ErrCatalogMismatch, "catalog_mismatch"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// Reason maps an error onto a stable label used in metrics and logs.
// Unrecognised errors are labelled internal.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range reasons {
		if errors.Is(err, entry.err) {
			return entry.reason
		}
	}
	return "internal"
}
