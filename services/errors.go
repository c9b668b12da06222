package services

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
	ErrNotPurchasable     = errors.New("tree is not available for purchase")
	ErrNotResellable      = errors.New("tree cannot be resold by this user")
	ErrNotVerifiable      = errors.New("tree is not pending verification")
	ErrUnauthenticated    = errors.New("session required")
	ErrInvalidInput       = errors.New("invalid input")
)

// PersistenceError wraps an unexpected failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

var domainErrors = []error{
	ErrDuplicateEmail,
	ErrInvalidCredentials,
	ErrNotFound,
	ErrNotPurchasable,
	ErrNotResellable,
	ErrNotVerifiable,
	ErrUnauthenticated,
	ErrInvalidInput,
}

// persistence passes domain errors through and wraps anything else.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
