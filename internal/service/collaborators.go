package service

import (
	"context"
	"time"
)

// PaymentGateway takes and refunds payments. Errors are returned to the
// caller of the booking operation unchanged.
type PaymentGateway interface {
	// ProcessPayment charges amount to the user with the given method and
	// returns the gateway's payment reference.
	ProcessPayment(ctx context.Context, userID string, amount float64, method string) (string, error)
	// RefundPayment refunds a previously processed payment. It fails for
	// unknown or already refunded payments.
	RefundPayment(ctx context.Context, paymentID string) error
}

// Inventory answers availability questions and holds items for date
// ranges. Exclusivity at reservation time is the inventory's concern.
type Inventory interface {
	CheckAvailability(ctx context.Context, itemID string, start, end time.Time) (bool, error)
	// ReserveItem fails when the range is no longer available.
	ReserveItem(ctx context.Context, itemID string, start, end time.Time) error
	// ReleaseItem fails when nothing was reserved for the range.
	ReleaseItem(ctx context.Context, itemID string, start, end time.Time) error
}

// Notifier announces lifecycle events to the booking's user. Delivery is
// best effort: a failure never undoes the transition that triggered it.
type Notifier interface {
	BookingCreated(ctx context.Context, userID, bookingID string) error
	BookingConfirmed(ctx context.Context, userID, bookingID string) error
	BookingCancelled(ctx context.Context, userID, bookingID string) error
	BookingCompleted(ctx context.Context, userID, bookingID string) error
}
