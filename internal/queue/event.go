// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "fmt"
    "time"
)

// EventType names a booking lifecycle event. It doubles as the routing
// key on the events exchange.
type EventType string

const (
    EventBookingCreated   EventType = "booking.created"
    EventBookingConfirmed EventType = "booking.confirmed"
    EventBookingCancelled EventType = "booking.cancelled"
    EventBookingCompleted EventType = "booking.completed"
)

// bindingKey matches every booking lifecycle routing key.
const bindingKey = "booking.*"

// Known reports whether t is one of the lifecycle events above.
func (t EventType) Known() bool {
    switch t {
    case EventBookingCreated, EventBookingConfirmed, EventBookingCancelled, EventBookingCompleted:
        return true
    }
    return false
}

// BookingEvent is published after a booking transition has been stored.
// It carries identifiers only; consumers that need the full record read
// it from the booking store.
type BookingEvent struct {
    EventID    string    `json:"event_id"`
    Type       EventType `json:"type"`
    BookingID  string    `json:"booking_id"`
    UserID     string    `json:"user_id"`
    OccurredAt time.Time `json:"occurred_at"`
}

// Validate checks the fields every consumer relies on.
func (e BookingEvent) Validate() error {
    if !e.Type.Known() {
        return fmt.Errorf("unknown event type %q", e.Type)
    }
    if e.BookingID == "" {
        return fmt.Errorf("%s event without booking_id", e.Type)
    }
    return nil
}
