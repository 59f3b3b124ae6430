package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/queue"
)

// EventPublisher announces booking state changes.  Publishing happens after
// the database commit and is best-effort: failures are logged, never
// returned to the HTTP caller.
type EventPublisher interface {
    PublishBooking(ctx context.Context, b *model.Booking)
}

// NoopPublisher drops every event.  Used when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBooking(context.Context, *model.Booking) {}

// AMQPPublisher publishes BookingEvents to a topic exchange, routed by
// event type.  The connection is opened lazily and re-dialled after a
// failure.
type AMQPPublisher struct {
    url      string
    exchange string

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

func NewAMQPPublisher(url, exchange string) *AMQPPublisher {
    return &AMQPPublisher{url: url, exchange: exchange}
}

func (p *AMQPPublisher) PublishBooking(ctx context.Context, b *model.Booking) {
    ev := queue.NewBookingEvent(b)
    if err := p.publish(ctx, ev.Type, ev); err != nil {
        log.Warn().Err(err).Str("event", ev.Type).Uint64("booking_id", ev.BookingID).Msg("rabbitmq: publish failed")
    }
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, event any) error {
    pub, err := newPublishing(event)
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    ch, err := p.channel()
    if err != nil {
        return err
    }
    if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, pub); err != nil {
        p.reset()
        return err
    }
    return nil
}

func newPublishing(event any) (amqp.Publishing, error) {
    body, err := json.Marshal(event)
    if err != nil {
        return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
    }
    return amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }, nil
}

// channel returns the cached channel, dialling when needed.  p.mu held.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    if err := queue.DeclareTopology(ch, p.exchange); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, err
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *AMQPPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
}
