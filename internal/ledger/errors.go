package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/splitit/internal/calculator"
	"github.com/mmynk/splitit/internal/storage"
)

// Sentinel errors for expected ledger failures. Callers wrap them with a
// human-readable message and compare with errors.Is.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrAlreadySettled    = errors.New("already settled")
	ErrAlreadyMember     = errors.New("already a member")
	ErrInvalidInvitation = errors.New("invalid invitation")
	ErrInvalidInput      = errors.New("invalid input")

	// The calculator owns these two so it can stay free of ledger imports.
	ErrInvalidSplit = calculator.ErrInvalidSplit
	ErrInvalidState = calculator.ErrInvalidState
)

var businessErrors = []error{
	ErrUnauthenticated,
	ErrForbidden,
	ErrNotFound,
	ErrInvalidSplit,
	ErrAlreadySettled,
	ErrAlreadyMember,
	ErrInvalidInvitation,
	ErrInvalidState,
	ErrInvalidInput,
}

// IsBusinessError reports whether err is an expected ledger failure, as
// opposed to a storage or system fault.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Message returns the human-readable part of a business error, without
// the sentinel's name.
func Message(err error) string {
	msg := err.Error()
	for _, target := range businessErrors {
		if !errors.Is(err, target) {
			continue
		}
		prefix := target.Error() + ": "
		if i := strings.Index(msg, prefix); i >= 0 {
			return msg[i+len(prefix):]
		}
		break
	}
	return msg
}

// NotFound translates storage.ErrNotFound into ErrNotFound with a message
// naming what was missing. Other errors pass through unchanged.
func NotFound(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
