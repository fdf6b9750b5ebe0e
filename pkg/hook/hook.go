package hook

import (
	"errors"
)

// Hook is an interface for before/after hooks around registry transitions.
type Hook[T any, R any] interface {
	// Before is called before the transition described by T is applied.
	//
	// When Before returns an error, the transition is aborted.
	Before(T) (R, error)

	// After is called after the transition described by T is committed.
	After(T) error
}

var ErrHookFailed = errors.New("hook failed")
