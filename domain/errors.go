package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrBusy            = errors.New("resource busy")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrAlreadyExists   = errors.New("already exists")
	ErrConflict        = errors.New("concurrent modification")
	ErrInvariant       = errors.New("invariant violation")
)

func NewNotFoundError(details string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, details)
}

func NewInvalidStateError(details string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, details)
}

func NewBusyError(details string) error {
	return fmt.Errorf("%w: %s", ErrBusy, details)
}

func NewInvalidQuantityError(details string) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuantity, details)
}

func NewAlreadyExistsError(details string) error {
	return fmt.Errorf("%w: %s", ErrAlreadyExists, details)
}

func NewConflictError(details string) error {
	return fmt.Errorf("%w: %s", ErrConflict, details)
}

func NewInvariantError(details string) error {
	return fmt.Errorf("%w: %s", ErrInvariant, details)
}

// IsRetriable returns true if the caller may retry the same request unchanged.
func IsRetriable(err error) bool {
	return err != nil && (errors.Is(err, ErrBusy) || errors.Is(err, ErrConflict))
}
