package repository

import (
    "context"
    "fmt"

    "github.com/iliyamo/rental-booking/internal/model"
)

// BookingStore is keyed persistence for bookings. Implementations hand out
// copies: mutating a returned record never changes stored state until it
// is written back with Put. No read-modify-write atomicity is provided;
// callers that need it must serialize access per booking ID themselves.
type BookingStore interface {
    // Put inserts or overwrites the record stored under b.ID.
    Put(ctx context.Context, b *model.Booking) error
    // Get returns the stored record or ErrBookingNotFound.
    Get(ctx context.Context, id string) (*model.Booking, error)
    // ListByUser returns every booking made by userID.
    ListByUser(ctx context.Context, userID string) ([]*model.Booking, error)
    // ListByItem returns every booking of itemID.
    ListByItem(ctx context.Context, itemID string) ([]*model.Booking, error)
    // ListActiveByItem returns the bookings of itemID that are PENDING or
    // CONFIRMED.
    ListActiveByItem(ctx context.Context, itemID string) ([]*model.Booking, error)
}

func validateRecord(b *model.Booking) error {
    if b == nil || b.ID == "" {
        return ErrInvalidBooking
    }
    return nil
}

// checkStored rejects a decoded record whose status is not declared.
func checkStored(b *model.Booking) error {
    if !b.Status.Valid() {
        return fmt.Errorf("booking %s has status %q: %w", b.ID, b.Status, ErrCorruptBooking)
    }
    return nil
}

// filterActive keeps the bookings whose status still holds the item.
func filterActive(in []*model.Booking) []*model.Booking {
    out := make([]*model.Booking, 0, len(in))
    for _, b := range in {
        if b.Status.Active() {
            out = append(out, b)
        }
    }
    return out
}
