package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync/atomic"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/rental-booking/internal/repository"
)

const (
    minBackoff = time.Second
    maxBackoff = 30 * time.Second
)

// Consumer binds a durable queue to the booking events exchange and writes
// one audit line per event to sink. When a store is set, each line also
// carries the booking's current item and status. Malformed messages are
// rejected without requeue.
type Consumer struct {
    url      string
    exchange string
    queue    string
    store    repository.BookingStore // optional
    sink     *zap.Logger             // audit log, usually a rotating file
    logger   *zap.Logger             // operational log

    consuming atomic.Bool
}

func NewConsumer(url, exchange, queue string, store repository.BookingStore, sink, logger *zap.Logger) *Consumer {
    if logger == nil {
        logger = zap.NewNop()
    }
    if sink == nil {
        sink = logger
    }
    return &Consumer{url: url, exchange: exchange, queue: queue, store: store, sink: sink, logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled. Lost
// connections are retried with exponential backoff capped at 30s. Run
// returns ctx.Err() once the context is done.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := minBackoff
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.logger.Warn("booking-consumer: dial failed",
                zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            backoff = nextBackoff(backoff)
            continue
        }
        backoff = minBackoff // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.logger.Warn("booking-consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.logger.Warn("booking-consumer: set QoS failed", zap.Error(err))
    }
    if err := declareExchange(ch, c.exchange); err != nil {
        return err
    }
    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(c.queue, bindingKey, c.exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }

    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.consuming.Store(true)
    defer c.consuming.Store(false)
    c.logger.Info("booking-consumer: consuming",
        zap.String("queue", c.queue), zap.String("exchange", c.exchange))

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handleMessage(ctx, d.RoutingKey, d.Body); err != nil {
                c.logger.Warn("booking-consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Ready reports an error unless the consumer is attached to its queue.
func (c *Consumer) Ready(context.Context) error {
    if !c.consuming.Load() {
        return errors.New("not consuming from broker")
    }
    return nil
}

// handleMessage decodes one delivery and writes it to the audit sink. The
// routing key, when present, must agree with the payload type.
func (c *Consumer) handleMessage(ctx context.Context, routingKey string, body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := ev.Validate(); err != nil {
        return err
    }
    if routingKey != "" && routingKey != string(ev.Type) {
        return fmt.Errorf("routing key %q does not match event type %q", routingKey, ev.Type)
    }

    fields := []zap.Field{
        zap.String("type", string(ev.Type)),
        zap.String("event_id", ev.EventID),
        zap.String("booking_id", ev.BookingID),
        zap.String("user_id", ev.UserID),
        zap.Time("occurred_at", ev.OccurredAt),
    }
    fields = append(fields, c.lookup(ctx, ev.BookingID)...)
    c.sink.Info("booking event", fields...)
    return nil
}

// lookup returns the stored booking's item and status. A missing store or
// record only drops the extra fields; the event is still audited.
func (c *Consumer) lookup(ctx context.Context, bookingID string) []zap.Field {
    if c.store == nil {
        return nil
    }
    b, err := c.store.Get(ctx, bookingID)
    if err != nil {
        if !errors.Is(err, repository.ErrBookingNotFound) {
            c.logger.Warn("booking-consumer: lookup failed",
                zap.String("booking_id", bookingID), zap.Error(err))
        }
        return nil
    }
    return []zap.Field{
        zap.String("item_id", b.ItemID),
        zap.String("status", string(b.Status)),
    }
}

func nextBackoff(d time.Duration) time.Duration {
    d *= 2
    if d > maxBackoff {
        return maxBackoff
    }
    return d
}

// sleep waits for d or until ctx is done; it reports false in the latter case.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
