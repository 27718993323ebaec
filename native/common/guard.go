package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned by mutating calls of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the operator pause switches.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when module is paused. A nil view never pauses.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
