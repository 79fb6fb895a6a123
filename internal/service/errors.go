package service

import (
	"errors"
	"fmt"
)

// Error kinds returned by BookingService. They are wrapped with context,
// so compare with errors.Is.
var (
	// ErrInvalidInput reports malformed arguments, e.g. start >= end.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict reports that the item is not available for the dates.
	ErrConflict = errors.New("item not available for requested dates")
	// ErrNotFound reports an unknown booking ID.
	ErrNotFound = errors.New("booking not found")
	// ErrInvalidTransition reports an operation the current status does
	// not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTooEarly reports a completion attempted before the end date.
	ErrTooEarly = errors.New("booking has not ended yet")
	// ErrPartiallyApplied reports that collaborators changed external
	// state that could not be rolled back. The booking itself is left in
	// its previous status; see PartialFailureError for the details an
	// operator needs.
	ErrPartiallyApplied = errors.New("operation partially applied")
)

// PartialFailureError describes an operation that failed after a
// collaborator had already committed a side effect which could not be
// compensated. It matches ErrPartiallyApplied, Cause and, when set,
// CompensationErr under errors.Is.
type PartialFailureError struct {
	Op              string // confirm or cancel
	BookingID       string
	PaymentID       string // payment left charged (confirm) or already refunded (cancel)
	Cause           error  // failure that stopped the operation
	CompensationErr error  // failure of the compensating step, if one ran
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("%s booking %s: %v (payment %s)", e.Op, e.BookingID, e.Cause, e.PaymentID)
	if e.CompensationErr != nil {
		msg += fmt.Sprintf(": compensation failed: %v", e.CompensationErr)
	}
	return msg
}

func (e *PartialFailureError) Unwrap() []error {
	errs := []error{ErrPartiallyApplied, e.Cause}
	if e.CompensationErr != nil {
		errs = append(errs, e.CompensationErr)
	}
	return errs
}
