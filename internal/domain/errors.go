package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountExists         = errors.New("account already exists")
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidChoice         = errors.New("invalid choice")
	ErrUnknownTool           = errors.New("unknown tool")
	ErrIncompleteCredentials = errors.New("incomplete credentials")
	ErrSecretNotFound        = errors.New("secret not found")

	// ErrExitRequested is returned by an input source when the user types the
	// exit sentinel at any prompt.
	ErrExitRequested = errors.New("exit requested")
)

// IsUserInputError reports whether err is an interactive input mistake that
// the session recovers from locally.
func IsUserInputError(err error) bool {
	return errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvalidChoice)
}

// ConfigCorruptionError means the persisted document exists but cannot be
// parsed. It is never repaired automatically.
type ConfigCorruptionError struct {
	Path string
	Err  error
}

func (e *ConfigCorruptionError) Error() string {
	return fmt.Sprintf("config document %s is corrupt: %v", e.Path, e.Err)
}

func (e *ConfigCorruptionError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed step of writing the document. The previous
// file on disk is left intact.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist config document %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
