package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"lodging_booking/pkg/events"

	"github.com/streadway/amqp"
)

// PaymentHandler applies one payment outcome. A non-nil error means the
// delivery should be redelivered.
type PaymentHandler func(ctx context.Context, event events.PaymentEvent) error

type disposition int

const (
	ack disposition = iota
	requeue
	reject
)

const (
	defaultResubscribeDelay = 2 * time.Second
	defaultRequeueDelay     = 2 * time.Second
)

// paymentRoutingKeys are bound to the outcomes queue. Outbound booking event
// types must stay disjoint from them.
var paymentRoutingKeys = []string{
	string(events.PaymentSucceeded),
	string(events.PaymentCaptured),
	string(events.PaymentFailed),
	string(events.PaymentExpired),
}

type Consumer struct {
	client           *RabbitMQClient
	queueName        string
	consumerTag      string
	resubscribeDelay time.Duration
	requeueDelay     time.Duration
}

func NewConsumer(client *RabbitMQClient, queueName, consumerTag string) *Consumer {
	return &Consumer{
		client:           client,
		queueName:        queueName,
		consumerTag:      consumerTag,
		resubscribeDelay: defaultResubscribeDelay,
		requeueDelay:     defaultRequeueDelay,
	}
}

type subscribeFunc func() (<-chan amqp.Delivery, error)

// ConsumePayments handles payment outcomes in the background until ctx is
// done or the client is closed. The queue subscription is rebuilt on every
// new broker channel.
func (c *Consumer) ConsumePayments(ctx context.Context, handler PaymentHandler) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.client.ctx, cancel)
	go func() {
		defer stop()
		defer cancel()
		c.run(ctx, c.subscribe, handler)
	}()
}

func (c *Consumer) run(ctx context.Context, subscribe subscribeFunc, handler PaymentHandler) {
	for {
		deliveries, err := subscribe()
		switch {
		case err == nil:
			log.Printf("Consuming payment outcomes on queue: %s", c.queueName)
			c.drain(ctx, deliveries, handler)
			if ctx.Err() != nil {
				return
			}
			log.Printf("Delivery channel closed: %s, resubscribing", c.consumerTag)
		case !errors.Is(err, ErrNotConnected):
			log.Printf("Payment outcome subscribe error: %v", err)
		}
		if !sleep(ctx, c.resubscribeDelay) {
			return
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	if !c.client.IsConnected() {
		return nil, ErrNotConnected
	}
	channel := c.client.Channel()

	queue, err := channel.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue declare error: %w", err)
	}
	for _, key := range paymentRoutingKeys {
		if err := channel.QueueBind(queue.Name, key, c.client.Exchange(), false, nil); err != nil {
			return nil, fmt.Errorf("queue bind error (%s): %w", key, err)
		}
	}

	messages, err := channel.Consume(queue.Name, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume start error: %w", err)
	}
	return messages, nil
}

// drain handles deliveries until the channel closes or ctx is done. A failed
// delivery is held for requeueDelay before it goes back to the queue.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery, handler PaymentHandler) {
	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			d := process(ctx, msg.Body, handler)
			if d == requeue {
				sleep(ctx, c.requeueDelay)
			}
			c.settle(msg, d)
		case <-ctx.Done():
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Consumer) settle(msg amqp.Delivery, d disposition) {
	var err error
	switch d {
	case ack:
		err = msg.Ack(false)
	case requeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Nack(false, false)
	}
	if err != nil {
		log.Printf("Failed to settle delivery %s: %v", msg.MessageId, err)
	}
}

func process(ctx context.Context, body []byte, handler PaymentHandler) disposition {
	var event events.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Payment event deserialize error: %v", err)
		return reject
	}
	if event.ReservationUid == "" {
		log.Printf("Payment event %s has no reservation uid", event.ID)
		return reject
	}

	if err := handler(ctx, event); err != nil {
		log.Printf("Payment event %s for %s failed, requeueing: %v", event.Type, event.ReservationUid, err)
		return requeue
	}
	return ack
}
