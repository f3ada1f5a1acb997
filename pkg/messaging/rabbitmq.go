package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

var ErrNotConnected = errors.New("no connection to RabbitMQ")

type RabbitMQClient struct {
	config      *RabbitMQConfig
	connection  *amqp.Connection
	channel     *amqp.Channel
	notifyClose chan *amqp.Error
	mu          sync.RWMutex
	isClosing   bool
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewRabbitMQClient(config *RabbitMQConfig) *RabbitMQClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RabbitMQClient{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the broker and declares the topic exchange, retrying
// RetryCount times. The lock is only held while the new connection is stored.
func (r *RabbitMQClient) Connect() error {
	var err error
	for i := 0; i < r.config.RetryCount; i++ {
		if r.closing() {
			return ErrNotConnected
		}
		var conn *amqp.Connection
		var channel *amqp.Channel
		conn, channel, err = r.dial()
		if err != nil {
			log.Printf("RabbitMQ connection error (attempt %d/%d): %v", i+1, r.config.RetryCount, err)
			if i < r.config.RetryCount-1 {
				time.Sleep(r.config.RetryDelay)
			}
			continue
		}

		r.mu.Lock()
		r.connection = conn
		r.channel = channel
		r.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
		r.mu.Unlock()
		log.Printf("Connected to RabbitMQ, exchange %s", r.config.Exchange)
		return nil
	}
	return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}

func (r *RabbitMQClient) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return nil, nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		r.config.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, channel, nil
}

// Run keeps the client connected until ctx is done or Close is called. A
// failed first dial is retried the same way as a lost connection.
func (r *RabbitMQClient) Run(ctx context.Context) {
	for {
		if err := r.Connect(); err != nil {
			log.Printf("RabbitMQ unavailable: %v", err)
		} else {
			r.mu.RLock()
			notifyClose := r.notifyClose
			r.mu.RUnlock()

			select {
			case err := <-notifyClose:
				if r.closing() {
					return
				}
				log.Printf("RabbitMQ connection lost: %v. Reconnecting...", err)
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			}
		}

		timer := time.NewTimer(r.config.RetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (r *RabbitMQClient) closing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isClosing
}

func (r *RabbitMQClient) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

func (r *RabbitMQClient) Exchange() string {
	return r.config.Exchange
}

func (r *RabbitMQClient) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connection != nil && !r.connection.IsClosed()
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isClosing {
		return nil
	}
	r.isClosing = true
	r.cancel()

	var errs []error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("channel close: %w", err))
		}
	}
	if r.connection != nil {
		if err := r.connection.Close(); err != nil {
			errs = append(errs, fmt.Errorf("connection close: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("RabbitMQ close error: %v", err)
		return err
	}
	log.Println("RabbitMQ connection closed")
	return nil
}
