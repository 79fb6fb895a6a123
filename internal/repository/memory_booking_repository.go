package repository

import (
    "context"
    "sync"

    "github.com/iliyamo/rental-booking/internal/model"
)

// MemoryBookingRepo keeps bookings in a process-local map. It is the
// default store and the reference implementation of BookingStore. The
// mutex only protects the map itself; see BookingStore for the lack of
// read-modify-write atomicity.
type MemoryBookingRepo struct {
    mu    sync.RWMutex
    byID  map[string]*model.Booking
    order []string // insertion order of IDs, used for stable listings
}

// NewMemoryBookingRepo returns an empty in-memory store.
func NewMemoryBookingRepo() *MemoryBookingRepo {
    return &MemoryBookingRepo{byID: make(map[string]*model.Booking)}
}

// Put stores a copy of b, replacing any previous record with the same ID.
func (r *MemoryBookingRepo) Put(_ context.Context, b *model.Booking) error {
    if err := validateRecord(b); err != nil {
        return err
    }
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.byID[b.ID]; !ok {
        r.order = append(r.order, b.ID)
    }
    r.byID[b.ID] = b.Clone()
    return nil
}

// Get returns a copy of the booking stored under id.
func (r *MemoryBookingRepo) Get(_ context.Context, id string) (*model.Booking, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    b, ok := r.byID[id]
    if !ok {
        return nil, ErrBookingNotFound
    }
    return b.Clone(), nil
}

// ListByUser returns copies of every booking of userID.
func (r *MemoryBookingRepo) ListByUser(_ context.Context, userID string) ([]*model.Booking, error) {
    return r.filter(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

// ListByItem returns copies of every booking of itemID.
func (r *MemoryBookingRepo) ListByItem(_ context.Context, itemID string) ([]*model.Booking, error) {
    return r.filter(func(b *model.Booking) bool { return b.ItemID == itemID }), nil
}

// ListActiveByItem returns copies of the PENDING and CONFIRMED bookings
// of itemID.
func (r *MemoryBookingRepo) ListActiveByItem(_ context.Context, itemID string) ([]*model.Booking, error) {
    return r.filter(func(b *model.Booking) bool {
        return b.ItemID == itemID && b.Status.Active()
    }), nil
}

// filter walks the records in insertion order and returns copies of the
// ones accepted by keep.
func (r *MemoryBookingRepo) filter(keep func(*model.Booking) bool) []*model.Booking {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make([]*model.Booking, 0)
    for _, id := range r.order {
        if b := r.byID[id]; keep(b) {
            out = append(out, b.Clone())
        }
    }
    return out
}
