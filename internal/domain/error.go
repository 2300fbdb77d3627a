package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoActivePlan    = errors.New("no active plan")
	ErrUnknownSlot     = errors.New("unknown channel slot")
	ErrRateLimited     = errors.New("too many requests")

	// External collaborator failures. Adapters wrap provider errors with these.
	ErrUpstream     = errors.New("upstream service error")
	ErrUnauthorized = errors.New("upstream rejected credentials")

	ErrInvalidTransition = errors.New("invalid channel transition")
	ErrInvalidCoupon     = errors.New("invalid coupon")
)

// UserErrorKind groups precondition failures so the transport can pick a status code.
type UserErrorKind string

const (
	KindPrecondition UserErrorKind = "precondition"
	KindConflict     UserErrorKind = "conflict"
	KindInvalid      UserErrorKind = "invalid"
)

// UserError is a precondition failure raised before any external mutation.
// Message is shown to the customer as is.
type UserError struct {
	Kind    UserErrorKind
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

func NewUserError(kind UserErrorKind, msg string, err error) *UserError {
	return &UserError{Kind: kind, Message: msg, Err: err}
}

// AsUserError reports whether err carries a UserError.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// PartialMutationError reports that a multi-step mutation failed after at
// least one external write already succeeded. Nothing is rolled back.
type PartialMutationError struct {
	Operation string
	SlotID    int
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialMutationError) Error() string {
	return fmt.Sprintf("%s slot %d: step %q failed after %v: %v", e.Operation, e.SlotID, e.Failed, e.Completed, e.Err)
}

func (e *PartialMutationError) Unwrap() error { return e.Err }
