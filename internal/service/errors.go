package service

import (
	"errors"
	"fmt"

	"github.com/pinnity/pinnity/internal/repository"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")

	// Lookup errors
	ErrUserNotFound         = errors.New("user not found")
	ErrBusinessNotFound     = errors.New("business not found")
	ErrDealNotFound         = errors.New("deal not found")
	ErrRedemptionNotFound   = errors.New("redemption not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Conflict errors
	ErrEmailTaken        = errors.New("email already registered")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrBusinessExists    = errors.New("user already has a business")
	ErrAlreadyRated      = errors.New("redemption already rated")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDealNotEditable   = errors.New("deal cannot be edited in its current status")

	// Redemption errors
	ErrRedemptionLimitReached = errors.New("redemption limit reached for this deal")
	ErrDealSoldOut            = errors.New("deal has no redemptions left")
	ErrDealNotRedeemable      = errors.New("deal is not redeemable")
	ErrInvalidRedemptionCode  = errors.New("invalid redemption code")
	ErrRedemptionNotActive    = errors.New("redemption is not active")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBusinessNotFound) ||
		errors.Is(err, ErrDealNotFound) ||
		errors.Is(err, ErrRedemptionNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsConflict reports whether err means the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrBusinessExists) ||
		errors.Is(err, ErrAlreadyRated)
}

// IsPrecondition reports whether err means the state machine refused the change.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDealNotEditable) ||
		errors.Is(err, ErrRedemptionNotActive)
}

// IsRedemptionRefused reports whether a redemption was refused by policy.
func IsRedemptionRefused(err error) bool {
	return errors.Is(err, ErrRedemptionLimitReached) ||
		errors.Is(err, ErrDealSoldOut) ||
		errors.Is(err, ErrDealNotRedeemable)
}

// mapNotFound replaces a repository not-found with the domain error.
func mapNotFound(err, domain error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain
	}
	return err
}

func transitionError(entity string, from, to any) error {
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, entity, from, to)
}
