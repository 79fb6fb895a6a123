package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/repository"
)

type paymentCall struct {
	UserID string
	Amount float64
	Method string
}

// fakePayment records calls and returns scripted results.
type fakePayment struct {
	mu         sync.Mutex
	nextID     int
	processErr error
	refundErr  error
	delay      time.Duration
	processed  []paymentCall
	refunded   []string
}

func (p *fakePayment) ProcessPayment(_ context.Context, userID string, amount float64, method string) (string, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, paymentCall{UserID: userID, Amount: amount, Method: method})
	if p.processErr != nil {
		return "", p.processErr
	}
	p.nextID++
	return fmt.Sprintf("pay_%d", p.nextID), nil
}

func (p *fakePayment) RefundPayment(_ context.Context, paymentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunded = append(p.refunded, paymentID)
	return p.refundErr
}

func (p *fakePayment) processCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

type rangeCall struct {
	ItemID     string
	Start, End time.Time
}

// fakeInventory records calls; availability defaults to true.
type fakeInventory struct {
	mu          sync.Mutex
	unavailable bool
	checkErr    error
	reserveErr  error
	releaseErr  error
	checked     []rangeCall
	reserved    []rangeCall
	released    []rangeCall
}

func (i *fakeInventory) CheckAvailability(_ context.Context, itemID string, start, end time.Time) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.checked = append(i.checked, rangeCall{itemID, start, end})
	if i.checkErr != nil {
		return false, i.checkErr
	}
	return !i.unavailable, nil
}

func (i *fakeInventory) ReserveItem(_ context.Context, itemID string, start, end time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reserved = append(i.reserved, rangeCall{itemID, start, end})
	return i.reserveErr
}

func (i *fakeInventory) ReleaseItem(_ context.Context, itemID string, start, end time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.released = append(i.released, rangeCall{itemID, start, end})
	return i.releaseErr
}

// fakeNotifier records "<event>:<bookingID>" entries.
type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	events []string
}

func (n *fakeNotifier) record(event, bookingID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event+":"+bookingID)
	return n.err
}

func (n *fakeNotifier) BookingCreated(_ context.Context, _, bookingID string) error {
	return n.record("created", bookingID)
}

func (n *fakeNotifier) BookingConfirmed(_ context.Context, _, bookingID string) error {
	return n.record("confirmed", bookingID)
}

func (n *fakeNotifier) BookingCancelled(_ context.Context, _, bookingID string) error {
	return n.record("cancelled", bookingID)
}

func (n *fakeNotifier) BookingCompleted(_ context.Context, _, bookingID string) error {
	return n.record("completed", bookingID)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	errGateway  = errors.New("gateway unavailable")
	errDiskFull = errors.New("disk full")
)

// failingPutStore reads through to the wrapped store but rejects writes.
type failingPutStore struct {
	repository.BookingStore
	err error
}

func (s failingPutStore) Put(context.Context, *model.Booking) error {
	return s.err
}
