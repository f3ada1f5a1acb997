package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lodging_booking/pkg/events"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type Publisher struct {
	client *RabbitMQClient
}

func NewPublisher(client *RabbitMQClient) *Publisher {
	return &Publisher{client: client}
}

// Publish sends event to the exchange with its type as the routing key.
func (p *Publisher) Publish(ctx context.Context, event events.BookingEvent) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	msg, err := bookingMessage(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.client.Channel().Publish(p.client.Exchange(), string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("event publish error: %w", err)
	}
	log.Printf("Event published: %s reservation=%s", event.Type, event.ReservationUid)
	return nil
}

func bookingMessage(event events.BookingEvent) (amqp.Publishing, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("event serialization error: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.Timestamp,
		Headers: amqp.Table{
			"reservation_uid": event.ReservationUid,
			"event_type":      string(event.Type),
		},
	}, nil
}
