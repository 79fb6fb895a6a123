package queue

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zaptest/observer"

    "github.com/iliyamo/rental-booking/internal/model"
    "github.com/iliyamo/rental-booking/internal/repository"
    "github.com/iliyamo/rental-booking/internal/service"
)

var _ service.Notifier = (*Publisher)(nil)

type publishedMsg struct {
    exchange, key string
    msg           amqp.Publishing
    hasDeadline   bool
}

type fakeChannel struct {
    err    error
    sent   []publishedMsg
    closed bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
    _, ok := ctx.Deadline()
    f.sent = append(f.sent, publishedMsg{exchange: exchange, key: key, msg: msg, hasDeadline: ok})
    return f.err
}

func (f *fakeChannel) Close() error {
    f.closed = true
    return nil
}

func TestPublisherRoutesByEventType(t *testing.T) {
    ch := &fakeChannel{}
    p := newPublisher(ch, "booking.events", time.Second, nil)
    at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    p.now = func() time.Time { return at }

    ctx := context.Background()
    require.NoError(t, p.BookingCreated(ctx, "u1", "b1"))
    require.NoError(t, p.BookingConfirmed(ctx, "u1", "b1"))
    require.NoError(t, p.BookingCancelled(ctx, "u1", "b1"))
    require.NoError(t, p.BookingCompleted(ctx, "u1", "b1"))

    require.Len(t, ch.sent, 4)
    keys := []string{ch.sent[0].key, ch.sent[1].key, ch.sent[2].key, ch.sent[3].key}
    assert.Equal(t, []string{"booking.created", "booking.confirmed", "booking.cancelled", "booking.completed"}, keys)

    got := ch.sent[1]
    assert.Equal(t, "booking.events", got.exchange)
    assert.True(t, got.hasDeadline)
    assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
    assert.Equal(t, "application/json", got.msg.ContentType)

    var ev BookingEvent
    require.NoError(t, json.Unmarshal(got.msg.Body, &ev))
    assert.Equal(t, EventBookingConfirmed, ev.Type)
    assert.Equal(t, "b1", ev.BookingID)
    assert.Equal(t, "u1", ev.UserID)
    assert.Equal(t, got.msg.MessageId, ev.EventID)
    assert.NotEmpty(t, ev.EventID)
    assert.True(t, at.Equal(ev.OccurredAt))

    require.NoError(t, p.Close())
    assert.True(t, ch.closed)
}

func TestPublisherWrapsChannelError(t *testing.T) {
    ch := &fakeChannel{err: errors.New("channel closed")}
    p := newPublisher(ch, "booking.events", 0, nil)

    err := p.BookingCancelled(context.Background(), "u1", "b9")
    require.Error(t, err)
    assert.Contains(t, err.Error(), "b9")
    assert.False(t, ch.sent[0].hasDeadline)
}

func TestPublisherRejectsEmptyBookingID(t *testing.T) {
    ch := &fakeChannel{}
    p := newPublisher(ch, "booking.events", 0, nil)

    require.Error(t, p.BookingCreated(context.Background(), "u1", ""))
    assert.Empty(t, ch.sent)
}

func newTestConsumer() (*Consumer, *observer.ObservedLogs) {
    return newTestConsumerWithStore(nil)
}

func newTestConsumerWithStore(store repository.BookingStore) (*Consumer, *observer.ObservedLogs) {
    core, logs := observer.New(zap.InfoLevel)
    return NewConsumer("amqp://unused", "booking.events", "booking.audit", store, zap.New(core), nil), logs
}

func TestConsumerHandleMessage(t *testing.T) {
    c, logs := newTestConsumer()
    body, err := json.Marshal(BookingEvent{
        EventID:    "e1",
        Type:       EventBookingCompleted,
        BookingID:  "b1",
        UserID:     "u1",
        OccurredAt: time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)

    require.NoError(t, c.handleMessage(context.Background(), "booking.completed", body))

    entries := logs.All()
    require.Len(t, entries, 1)
    fields := entries[0].ContextMap()
    assert.Equal(t, "booking.completed", fields["type"])
    assert.Equal(t, "b1", fields["booking_id"])
    assert.Equal(t, "u1", fields["user_id"])
    assert.Equal(t, "e1", fields["event_id"])
    assert.NotContains(t, fields, "status")
}

func TestConsumerEnrichesFromStore(t *testing.T) {
    store := repository.NewMemoryBookingRepo()
    now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
    require.NoError(t, store.Put(context.Background(), &model.Booking{
        ID:        "b1",
        UserID:    "u1",
        ItemID:    "bike-7",
        StartDate: now,
        EndDate:   now.Add(48 * time.Hour),
        Status:    model.StatusConfirmed,
        CreatedAt: now,
        UpdatedAt: now,
    }))
    c, logs := newTestConsumerWithStore(store)

    known := `{"event_id":"e1","type":"booking.confirmed","booking_id":"b1","user_id":"u1"}`
    require.NoError(t, c.handleMessage(context.Background(), "booking.confirmed", []byte(known)))
    unknown := `{"event_id":"e2","type":"booking.created","booking_id":"b404","user_id":"u1"}`
    require.NoError(t, c.handleMessage(context.Background(), "booking.created", []byte(unknown)))

    entries := logs.All()
    require.Len(t, entries, 2)
    assert.Equal(t, "bike-7", entries[0].ContextMap()["item_id"])
    assert.Equal(t, "CONFIRMED", entries[0].ContextMap()["status"])
    assert.NotContains(t, entries[1].ContextMap(), "status")
}

func TestConsumerRejectsBadMessages(t *testing.T) {
    valid := `{"event_id":"e1","type":"booking.created","booking_id":"b1","user_id":"u1"}`

    tests := []struct {
        name string
        key  string
        body string
    }{
        {"malformed json", "booking.created", `{"type":`},
        {"unknown type", "booking.refunded", `{"type":"booking.refunded","booking_id":"b1"}`},
        {"missing booking id", "booking.created", `{"type":"booking.created"}`},
        {"routing key mismatch", "booking.cancelled", valid},
    }
    for _, tc := range tests {
        t.Run(tc.name, func(t *testing.T) {
            c, logs := newTestConsumer()
            assert.Error(t, c.handleMessage(context.Background(), tc.key, []byte(tc.body)))
            assert.Zero(t, logs.Len())
        })
    }
}

func TestNextBackoffCaps(t *testing.T) {
    assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
    assert.Equal(t, maxBackoff, nextBackoff(16*time.Second))
    assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

func TestSleepStopsOnCancel(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    assert.False(t, sleep(ctx, time.Hour))
    assert.True(t, sleep(context.Background(), time.Millisecond))
}

func TestConsumerReadyTracksState(t *testing.T) {
    c, _ := newTestConsumer()
    assert.Error(t, c.Ready(context.Background()))
    c.consuming.Store(true)
    assert.NoError(t, c.Ready(context.Background()))
}
