package events

import (
	"context"
	"time"

	"househunt/pkg/kafka"
	"househunt/pkg/logger"
	"househunt/pkg/middleware"
	"househunt/pkg/model"
)

const (
	BookingRequested = "booking.requested"
	BookingConfirmed = "booking.confirmed"
	BookingRejected  = "booking.rejected"

	schemaVersion  = "1"
	publishTimeout = 5 * time.Second
)

// ForStatus names the event emitted when a booking enters status.
func ForStatus(status model.BookingStatus) string {
	switch status {
	case model.BookingConfirmed:
		return BookingConfirmed
	case model.BookingRejected:
		return BookingRejected
	default:
		return BookingRequested
	}
}

type Publisher interface {
	Publish(ctx context.Context, event string, booking *model.Booking)
}

type Payload struct {
	Event   string         `json:"event"`
	Booking *model.Booking `json:"booking"`
}

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(p *kafka.Producer, source string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, source: source, log: log}
}

// Publish emits the event keyed by booking ID. Failures are logged and
// never surface to the caller, and the caller's cancellation does not abort
// an event for a write that already happened.
func (p *KafkaPublisher) Publish(ctx context.Context, event string, booking *model.Booking) {
	msg := kafka.NewMessage().
		WithKey(booking.ID).
		WithEventType(event).
		WithSource(p.source).
		WithSchemaVersion(schemaVersion).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithValue(Payload{Event: event, Booking: booking}).
		Build()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event", event,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

// NopPublisher is used when no event stream is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *model.Booking) {}
