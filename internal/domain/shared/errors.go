// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every error returned by the ledger core matches exactly
// one of ErrValidation, ErrEligibility, ErrConsistency or ErrStorage via errors.Is().
var (
	// ErrValidation - reference to an unknown entity or malformed input.
	ErrValidation = errors.New("validation error")

	// ErrEligibility - a business rule forbids the operation right now.
	ErrEligibility = errors.New("eligibility error")

	// ErrConsistency - the operation would violate an invariant under contention.
	ErrConsistency = errors.New("consistency error")

	// ErrStorage - the storage collaborator failed.
	ErrStorage = errors.New("storage error")

	// Validation sub-kinds
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "mission", "shop"
	Op      string // Operation that failed, e.g., "Complete", "Redeem"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// kindError lets a sentinel carry a sub-kind and a base kind at once,
// e.g. "not found" that is also a validation error.
type kindError struct {
	sub  error
	base error
}

func (k kindError) Error() string { return k.sub.Error() }

func (k kindError) Is(target error) bool {
	return errors.Is(k.sub, target) || errors.Is(k.base, target)
}

func notFound() error      { return kindError{sub: ErrNotFound, base: ErrValidation} }
func alreadyExists() error { return kindError{sub: ErrAlreadyExists, base: ErrValidation} }
func invalidInput() error  { return kindError{sub: ErrInvalidInput, base: ErrValidation} }

// User domain errors
var (
	ErrUnknownUser     = NewDomainError("user", "Find", notFound(), "unknown user")
	ErrUserExists      = NewDomainError("user", "Create", alreadyExists(), "user already exists")
	ErrInvalidUserID   = NewDomainError("user", "Validate", invalidInput(), "invalid user id")
	ErrNegativeBalance = NewDomainError("user", "ApplyPoints", ErrConsistency, "points cannot go negative")
)

// Achievement domain errors
var (
	ErrUnknownAchievement = NewDomainError("achievement", "Find", notFound(), "unknown achievement")
	ErrAchievementExists  = NewDomainError("achievement", "Create", alreadyExists(), "achievement name already taken")
	ErrInvalidAchievement = NewDomainError("achievement", "Validate", invalidInput(), "invalid achievement")
)

// Mission domain errors
var (
	ErrUnknownMission  = NewDomainError("mission", "Find", notFound(), "unknown mission")
	ErrMissionExists   = NewDomainError("mission", "Create", alreadyExists(), "mission already exists")
	ErrInvalidMission  = NewDomainError("mission", "Validate", invalidInput(), "invalid mission")
	ErrNotEligible     = NewDomainError("mission", "Complete", ErrEligibility, "cooldown has not elapsed")
	ErrMissionInactive = NewDomainError("mission", "Complete", ErrEligibility, "mission is not active")
)

// Shop domain errors
var (
	ErrUnknownItem        = NewDomainError("shop", "Find", notFound(), "unknown item")
	ErrItemExists         = NewDomainError("shop", "Create", alreadyExists(), "item already exists")
	ErrInvalidItem        = NewDomainError("shop", "Validate", invalidInput(), "invalid item")
	ErrOutOfStock         = NewDomainError("shop", "Redeem", ErrEligibility, "item is out of stock")
	ErrInsufficientPoints = NewDomainError("shop", "Redeem", ErrEligibility, "insufficient points")
	ErrStockNegative      = NewDomainError("shop", "Redeem", ErrConsistency, "stock would go negative")
)

// Event (score multiplier) domain errors
var (
	ErrInvalidEvent = NewDomainError("event", "Validate", invalidInput(), "invalid event")
	ErrManyActive   = NewDomainError("event", "Resolve", ErrConsistency, "more than one event is flagged active")
)

// Season domain errors
var (
	ErrUnknownArchive = NewDomainError("season", "Find", notFound(), "unknown season archive")
)

// Storage errors
var (
	ErrStoreClosed     = NewDomainError("ledger", "Begin", ErrStorage, "store is closed")
	ErrLockUnavailable = NewDomainError("ledger", "Lock", ErrConsistency, "could not acquire lock")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsEligibility checks if the error is a business-rule rejection.
func IsEligibility(err error) bool {
	return errors.Is(err, ErrEligibility)
}

// IsConsistency checks if the error is an invariant/contention failure.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrConsistency)
}

// IsStorage checks if the error came from the storage collaborator.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsRetryable checks if the operation can be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConsistency) || errors.Is(err, ErrStorage)
}

// Storage wraps an I/O failure as a storage error unless it already
// carries one of the ledger kinds.
func Storage(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsEligibility(err) || IsConsistency(err) || IsStorage(err) {
		return err
	}
	return WrapError(domain, op, ErrStorage, "storage failure", err)
}
