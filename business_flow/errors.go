// Package businessflow contains the core business logic for member onboarding and unique ID allocation
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Allocation errors
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrAssignmentFailed   = errors.New("unique id assignment failed")

	// Member-related errors
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberInactive      = errors.New("member is inactive")
	ErrMemberNotEligible   = errors.New("member is not eligible for a unique id")
	ErrProfileIncomplete   = errors.New("profile is incomplete")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrProfileUpdateEmpty  = errors.New("at least one field must be provided for update")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrReconcileInProgress = errors.New("reconciliation already in progress")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AssignmentError reports an identifier that was committed by the counter
// but could not be recorded against its member.
type AssignmentError struct {
	OrphanedID string
	Err        error
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("unique id %s allocated but not assigned: %v", e.OrphanedID, e.Err)
}

func (e *AssignmentError) Unwrap() []error {
	return []error{ErrAssignmentFailed, e.Err}
}

// OrphanedID extracts the lost identifier from an assignment failure
func OrphanedID(err error) (string, bool) {
	var ae *AssignmentError
	if errors.As(err, &ae) {
		return ae.OrphanedID, true
	}
	return "", false
}

func IsTransactionAborted(err error) bool {
	return errors.Is(err, ErrTransactionAborted)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsAssignmentFailed(err error) bool {
	return errors.Is(err, ErrAssignmentFailed)
}

func IsMemberNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound)
}

func IsMemberInactive(err error) bool {
	return errors.Is(err, ErrMemberInactive)
}

func IsMemberNotEligible(err error) bool {
	return errors.Is(err, ErrMemberNotEligible)
}

func IsProfileIncomplete(err error) bool {
	return errors.Is(err, ErrProfileIncomplete)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsProfileUpdateEmpty(err error) bool {
	return errors.Is(err, ErrProfileUpdateEmpty)
}

func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

func IsReconcileInProgress(err error) bool {
	return errors.Is(err, ErrReconcileInProgress)
}
