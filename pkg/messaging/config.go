package messaging

import "time"

const (
	DefaultExchange      = "booking.events"
	PaymentOutcomesQueue = "payment.outcomes"
)

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RetryCount int
	RetryDelay time.Duration
}

func NewRabbitMQConfig(url, exchange string) *RabbitMQConfig {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &RabbitMQConfig{
		URL:        url,
		Exchange:   exchange,
		RetryCount: 5,
		RetryDelay: 5 * time.Second,
	}
}
