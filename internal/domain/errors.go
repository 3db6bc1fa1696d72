// Package domain holds the error taxonomy shared by the cart and order packages.
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")           // 404
	ErrValidation       = errors.New("validation")          // 400
	ErrConflict         = errors.New("conflict")            // 409
	ErrState            = errors.New("invalid state")       // 409
	ErrTransientStorage = errors.New("storage unavailable") // 503, caller may retry
)

const (
	MsgCartEmpty          = "cart empty"
	MsgInsufficientStock  = "insufficient stock"
	MsgProductUnavailable = "product unavailable"
)

func NotFound(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

func State(msg string) error {
	return fmt.Errorf("%w: %s", ErrState, msg)
}

func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrTransientStorage)
}

// Storage passes domain errors through and classifies everything else
// (driver failures, deadlines) as transient.
func Storage(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransientStorage, op, err)
}
