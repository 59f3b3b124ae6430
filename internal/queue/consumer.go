package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// NotificationQueue receives every booking.* event from the exchange.
const NotificationQueue = "booking.notifications"

// Consumer listens to booking events and appends one notification entry
// per event to a JSON-lines log.  Delivery over email or SMS would replace
// the sink; the queue wiring stays the same.
type Consumer struct {
    url      string
    exchange string
    sink     zerolog.Logger
}

// NewConsumer builds a consumer writing notifications to out.
func NewConsumer(url, exchange string, out io.Writer) *Consumer {
    return &Consumer{
        url:      url,
        exchange: exchange,
        sink:     zerolog.New(out).With().Timestamp().Logger(),
    }
}

// OpenNotificationLog opens (creating parents) the append-only file used as
// the consumer sink.
func OpenNotificationLog(path string) (*os.File, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
    }
    return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, reconnecting
// with exponential backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            log.Warn().Err(err).Dur("retry_in", backoff).Msg("notification consumer: dial failed")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn().Err(err).Msg("notification consumer: consume loop ended, reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn().Err(err).Msg("notification consumer: set QoS failed")
    }
    if err := DeclareTopology(ch, c.exchange); err != nil {
        return err
    }
    if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(NotificationQueue, "booking.#", c.exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }

    msgs, err := ch.ConsumeWithContext(ctx, NotificationQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                log.Error().Err(err).Msg("notification consumer: handle message failed")
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// DeclareTopology declares the durable topic exchange booking events are
// published to.
func DeclareTopology(ch *amqp.Channel, exchange string) error {
    if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    return nil
}

// Handle decodes one event and writes the notification entry.
func (c *Consumer) Handle(body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.BookingID == 0 || ev.Type == "" {
        return errors.New("event without booking id or type")
    }
    c.sink.Info().
        Str("event", ev.Type).
        Uint64("booking_id", ev.BookingID).
        Uint64("traveler_id", ev.TravelerID).
        Uint64("guide_id", ev.GuideID).
        Str("experience", ev.ExperienceTitle).
        Str("tour_date", ev.TourDate).
        Int("guests", ev.GuestCount).
        Int64("total_cents", ev.TotalPriceCents).
        Msg(notificationText(ev))
    return nil
}

func notificationText(ev BookingEvent) string {
    switch ev.Type {
    case BookingConfirmed:
        return fmt.Sprintf("Booking #%d for %q on %s is confirmed", ev.BookingID, ev.ExperienceTitle, ev.TourDate)
    case BookingPending:
        return fmt.Sprintf("Booking #%d for %q is awaiting payment", ev.BookingID, ev.ExperienceTitle)
    case BookingCancelled:
        return fmt.Sprintf("Booking #%d for %q on %s was cancelled", ev.BookingID, ev.ExperienceTitle, ev.TourDate)
    case BookingCompleted:
        return fmt.Sprintf("Booking #%d for %q is completed, leave a review", ev.BookingID, ev.ExperienceTitle)
    }
    return fmt.Sprintf("Booking #%d: %s", ev.BookingID, ev.Type)
}

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
