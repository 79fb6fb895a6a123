package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// publishChannel is the part of *amqp.Channel the publisher uses.
type publishChannel interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// Publisher sends booking lifecycle events to a durable topic exchange.
// It implements service.Notifier, so errors are returned to the booking
// service, which logs and drops them.
type Publisher struct {
    mu       sync.Mutex
    conn     *amqp.Connection
    ch       publishChannel
    exchange string
    timeout  time.Duration
    logger   *zap.Logger
    now      func() time.Time
}

// NewPublisher dials the broker and declares the exchange. timeout bounds
// each publish; zero disables the bound.
func NewPublisher(url, exchange string, timeout time.Duration, logger *zap.Logger) (*Publisher, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, fmt.Errorf("dial rabbitmq: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("open channel: %w", err)
    }
    if err := declareExchange(ch, exchange); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, err
    }
    p := newPublisher(ch, exchange, timeout, logger)
    p.conn = conn
    return p, nil
}

func newPublisher(ch publishChannel, exchange string, timeout time.Duration, logger *zap.Logger) *Publisher {
    if logger == nil {
        logger = zap.NewNop()
    }
    return &Publisher{
        ch:       ch,
        exchange: exchange,
        timeout:  timeout,
        logger:   logger,
        now:      func() time.Time { return time.Now().UTC() },
    }
}

func declareExchange(ch *amqp.Channel, exchange string) error {
    if err := ch.ExchangeDeclare(
        exchange, // name
        "topic",  // kind
        true,     // durable
        false,    // autoDelete
        false,    // internal
        false,    // noWait
        nil,      // args
    ); err != nil {
        return fmt.Errorf("declare exchange %s: %w", exchange, err)
    }
    return nil
}

func (p *Publisher) BookingCreated(ctx context.Context, userID, bookingID string) error {
    return p.Publish(ctx, EventBookingCreated, userID, bookingID)
}

func (p *Publisher) BookingConfirmed(ctx context.Context, userID, bookingID string) error {
    return p.Publish(ctx, EventBookingConfirmed, userID, bookingID)
}

func (p *Publisher) BookingCancelled(ctx context.Context, userID, bookingID string) error {
    return p.Publish(ctx, EventBookingCancelled, userID, bookingID)
}

func (p *Publisher) BookingCompleted(ctx context.Context, userID, bookingID string) error {
    return p.Publish(ctx, EventBookingCompleted, userID, bookingID)
}

// Publish sends one persistent JSON event routed by its type.
func (p *Publisher) Publish(ctx context.Context, typ EventType, userID, bookingID string) error {
    ev := BookingEvent{
        EventID:    uuid.NewString(),
        Type:       typ,
        BookingID:  bookingID,
        UserID:     userID,
        OccurredAt: p.now(),
    }
    if err := ev.Validate(); err != nil {
        return err
    }
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal %s event: %w", typ, err)
    }

    if p.timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, p.timeout)
        defer cancel()
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    ev.EventID,
        Type:         string(typ),
        Timestamp:    ev.OccurredAt,
        Body:         body,
    }

    p.mu.Lock()
    err = p.ch.PublishWithContext(ctx, p.exchange, string(typ), false, false, msg)
    p.mu.Unlock()
    if err != nil {
        return fmt.Errorf("publish %s for booking %s: %w", typ, bookingID, err)
    }
    p.logger.Debug("booking event published",
        zap.String("type", string(typ)),
        zap.String("booking_id", bookingID),
        zap.String("event_id", ev.EventID),
    )
    return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        return p.conn.Close()
    }
    return nil
}
