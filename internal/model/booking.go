package model

import "time"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	// StatusRefunded is reserved for a refund-only flow. No operation
	// produces it yet.
	StatusRefunded Status = "REFUNDED"
)

// transitions lists the allowed edges of the booking state machine.
// PENDING is the only initial state; statuses without outgoing edges are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusRefunded:
		return true
	}
	return false
}

// Active reports whether a booking in status s still holds, or may come
// to hold, its item.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking records a user's reservation of an item for a date range.
//
// Fields:
//  ID         – opaque unique identifier assigned at creation.
//  UserID     – user who made the booking (not validated here).
//  ItemID     – item being rented (not validated here).
//  StartDate  – start of the rental period; always before EndDate.
//  EndDate    – end of the rental period.
//  TotalPrice – non-negative amount, currency agnostic.
//  Status     – state machine position.
//  PaymentID  – payment reference once a payment succeeded. It is kept
//               after a refund so the record shows which payment was
//               refunded.
//  CreatedAt  – creation timestamp, never changed.
//  UpdatedAt  – refreshed on every successful transition.
type Booking struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	TotalPrice float64   `json:"total_price"`
	Status     Status    `json:"status"`
	PaymentID  *string   `json:"payment_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasPayment reports whether a payment reference is recorded.
func (b *Booking) HasPayment() bool {
	return b.PaymentID != nil && *b.PaymentID != ""
}

// Clone returns a deep copy so that callers never share the PaymentID
// pointer with a stored record.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	if b.PaymentID != nil {
		pid := *b.PaymentID
		cp.PaymentID = &pid
	}
	return &cp
}
