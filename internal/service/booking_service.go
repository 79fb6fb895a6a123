// Package service implements the booking state machine. BookingService
// validates every transition against the stored record, drives the
// payment, inventory and notification collaborators in a fixed order and
// only then commits the new status.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/repository"
)

// BookingService orchestrates booking transitions. Mutating operations on
// the same booking ID are serialized inside the process; operations on
// different bookings run concurrently.
type BookingService struct {
	Store     repository.BookingStore
	Payment   PaymentGateway
	Inventory Inventory
	Notifier  Notifier
	Logger    *zap.Logger

	Now   func() time.Time // clock used for timestamps and the completion check
	NewID func() string    // booking ID generator

	locks *keyedMutex
}

// CreateBookingInput carries the arguments of Create.
type CreateBookingInput struct {
	UserID     string
	ItemID     string
	StartDate  time.Time
	EndDate    time.Time
	TotalPrice float64
}

// NewBookingService wires a BookingService. Store and the three
// collaborators are required; a nil logger falls back to zap.NewNop.
func NewBookingService(store repository.BookingStore, payment PaymentGateway, inventory Inventory, notifier Notifier, logger *zap.Logger) *BookingService {
	if store == nil || payment == nil || inventory == nil || notifier == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		Store:     store,
		Payment:   payment,
		Inventory: inventory,
		Notifier:  notifier,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     uuid.NewString,
		locks:     newKeyedMutex(),
	}
}

// Create validates the request, checks availability and stores a new
// PENDING booking. The availability check and the write are not atomic
// with other creates for the same item; the inventory decides at
// confirmation time.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	available, err := s.Inventory.CheckAvailability(ctx, in.ItemID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("item %s from %s to %s: %w",
			in.ItemID, in.StartDate.Format(time.RFC3339), in.EndDate.Format(time.RFC3339), ErrConflict)
	}

	now := s.Now()
	b := &model.Booking{
		ID:         s.NewID(),
		UserID:     in.UserID,
		ItemID:     in.ItemID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		TotalPrice: in.TotalPrice,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("store booking: %w", err)
	}
	s.Logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("item_id", b.ItemID),
	)

	s.notify(ctx, "created", b, s.Notifier.BookingCreated)
	return b.Clone(), nil
}

func validateCreate(in CreateBookingInput) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("user id is required: %w", ErrInvalidInput)
	case in.ItemID == "":
		return fmt.Errorf("item id is required: %w", ErrInvalidInput)
	case !in.StartDate.Before(in.EndDate):
		return fmt.Errorf("start date must be before end date: %w", ErrInvalidInput)
	case in.TotalPrice < 0:
		return fmt.Errorf("total price must not be negative: %w", ErrInvalidInput)
	}
	return nil
}

// Confirm takes payment, reserves the item and moves a PENDING booking to
// CONFIRMED. If the reservation fails the fresh payment is refunded; a
// failed refund surfaces as a PartialFailureError.
func (s *BookingService) Confirm(ctx context.Context, bookingID, paymentMethod string) (*model.Booking, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(b, model.StatusConfirmed); err != nil {
		return nil, err
	}

	paymentID, err := s.Payment.ProcessPayment(ctx, b.UserID, b.TotalPrice, paymentMethod)
	if err != nil {
		return nil, err
	}

	if err := s.Inventory.ReserveItem(ctx, b.ItemID, b.StartDate, b.EndDate); err != nil {
		return nil, s.compensatePayment(ctx, b, paymentID, err)
	}

	b.Status = model.StatusConfirmed
	b.PaymentID = &paymentID
	s.touch(b)
	if err := s.Store.Put(ctx, b); err != nil {
		return nil, s.partial("confirm", b, paymentID, fmt.Errorf("store booking: %w", err), nil)
	}
	s.Logger.Info("booking confirmed",
		zap.String("booking_id", b.ID),
		zap.String("payment_id", paymentID),
	)

	s.notify(ctx, "confirmed", b, s.Notifier.BookingConfirmed)
	return b.Clone(), nil
}

// compensatePayment refunds a payment taken for a confirmation that could
// not reserve the item. On success the reservation error is returned as
// is, leaving the booking PENDING and consistent.
func (s *BookingService) compensatePayment(ctx context.Context, b *model.Booking, paymentID string, cause error) error {
	if err := s.Payment.RefundPayment(ctx, paymentID); err != nil {
		return s.partial("confirm", b, paymentID, cause, err)
	}
	s.Logger.Warn("reservation failed, payment refunded",
		zap.String("booking_id", b.ID),
		zap.String("payment_id", paymentID),
		zap.Error(cause),
	)
	return cause
}

// Cancel refunds any payment, releases a confirmed reservation and moves
// the booking to CANCELLED. PaymentID stays on the record as the
// reference of the refunded payment.
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(b, model.StatusCancelled); err != nil {
		return nil, err
	}

	refunded := ""
	if b.HasPayment() {
		if err := s.Payment.RefundPayment(ctx, *b.PaymentID); err != nil {
			return nil, err
		}
		refunded = *b.PaymentID
	}

	if b.Status == model.StatusConfirmed {
		if err := s.Inventory.ReleaseItem(ctx, b.ItemID, b.StartDate, b.EndDate); err != nil {
			if refunded != "" {
				return nil, s.partial("cancel", b, refunded, err, nil)
			}
			return nil, err
		}
	}

	b.Status = model.StatusCancelled
	s.touch(b)
	if err := s.Store.Put(ctx, b); err != nil {
		err = fmt.Errorf("store booking: %w", err)
		if refunded != "" {
			return nil, s.partial("cancel", b, refunded, err, nil)
		}
		return nil, err
	}
	s.Logger.Info("booking cancelled",
		zap.String("booking_id", b.ID),
		zap.String("refunded_payment_id", refunded),
	)

	s.notify(ctx, "cancelled", b, s.Notifier.BookingCancelled)
	return b.Clone(), nil
}

// Complete closes a CONFIRMED booking whose end date has passed. The item
// reservation is intentionally left in place.
func (s *BookingService) Complete(ctx context.Context, bookingID string) (*model.Booking, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(b, model.StatusCompleted); err != nil {
		return nil, err
	}
	if now := s.Now(); now.Before(b.EndDate) {
		return nil, fmt.Errorf("booking %s ends at %s: %w", b.ID, b.EndDate.Format(time.RFC3339), ErrTooEarly)
	}

	b.Status = model.StatusCompleted
	s.touch(b)
	if err := s.Store.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("store booking: %w", err)
	}
	s.Logger.Info("booking completed", zap.String("booking_id", b.ID))

	s.notify(ctx, "completed", b, s.Notifier.BookingCompleted)
	return b.Clone(), nil
}

// GetBooking returns the booking stored under id.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.load(ctx, id)
}

// GetBookingsByUser returns every booking made by userID.
func (s *BookingService) GetBookingsByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	return s.Store.ListByUser(ctx, userID)
}

// GetBookingsByItem returns every booking of itemID, whatever its status.
func (s *BookingService) GetBookingsByItem(ctx context.Context, itemID string) ([]*model.Booking, error) {
	return s.Store.ListByItem(ctx, itemID)
}

// GetActiveBookingsByItem returns the PENDING and CONFIRMED bookings of
// itemID.
func (s *BookingService) GetActiveBookingsByItem(ctx context.Context, itemID string) ([]*model.Booking, error) {
	return s.Store.ListActiveByItem(ctx, itemID)
}

func (s *BookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.Store.Get(ctx, id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", id, err)
	}
	return b, nil
}

func checkTransition(b *model.Booking, to model.Status) error {
	if b.Status.Terminal() {
		return fmt.Errorf("booking %s is already %s: %w", b.ID, b.Status, ErrInvalidTransition)
	}
	if !model.CanTransition(b.Status, to) {
		return fmt.Errorf("booking %s is %s, cannot move to %s: %w", b.ID, b.Status, to, ErrInvalidTransition)
	}
	return nil
}

// touch refreshes UpdatedAt without ever moving it backwards.
func (s *BookingService) touch(b *model.Booking) {
	if now := s.Now(); now.After(b.UpdatedAt) {
		b.UpdatedAt = now
	}
}

func (s *BookingService) partial(op string, b *model.Booking, paymentID string, cause, compErr error) error {
	perr := &PartialFailureError{
		Op:              op,
		BookingID:       b.ID,
		PaymentID:       paymentID,
		Cause:           cause,
		CompensationErr: compErr,
	}
	s.Logger.Error("booking left partially applied",
		zap.String("op", op),
		zap.String("booking_id", b.ID),
		zap.String("payment_id", paymentID),
		zap.Error(perr),
	)
	return perr
}

// notify sends a lifecycle notification after the transition has been
// committed. Failures are logged and dropped.
func (s *BookingService) notify(ctx context.Context, event string, b *model.Booking, send func(context.Context, string, string) error) {
	if err := send(ctx, b.UserID, b.ID); err != nil {
		s.Logger.Warn("booking notification failed",
			zap.String("event", event),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
