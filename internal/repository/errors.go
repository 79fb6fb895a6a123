// Package repository defines the booking store contract and its
// implementations. The sentinel values below let the service layer tell
// a missing record apart from a storage failure.
package repository

import "errors"

// ErrBookingNotFound is returned by Get when no booking is stored under
// the requested ID. The service layer translates it into its own
// not-found kind.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInvalidBooking is returned by Put for records that cannot be stored,
// such as a nil booking or one without an ID.
var ErrInvalidBooking = errors.New("invalid booking record")

// ErrCorruptBooking is returned when a stored record carries a status the
// state machine does not know.
var ErrCorruptBooking = errors.New("corrupt booking record")
