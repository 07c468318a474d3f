package permit

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine and the entity directory.
// Callers match them with errors.Is; wrapped variants carry the id or
// operation that failed.
var (
	ErrNotFound            = errors.New("permit: not found")
	ErrAlreadyExists       = errors.New("permit: already exists")
	ErrInactive            = errors.New("permit: inactive")
	ErrSessionInvalid      = errors.New("permit: session invalid")
	ErrSystemNotReady      = errors.New("permit: system not ready")
	ErrRoleAlreadyAssigned = errors.New("permit: role already assigned")
	ErrRoleNotAssigned     = errors.New("permit: role not assigned")
	ErrUnexpected          = errors.New("permit: unexpected")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

func alreadyExists(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrAlreadyExists, kind, id)
}

// unexpected wraps an internal fault so callers can distinguish "could
// not be evaluated" from an explicit denial.
func unexpected(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnexpected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnexpected, err)
}
