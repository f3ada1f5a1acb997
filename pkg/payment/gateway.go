package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"lodging_booking/pkg/circuitbreaker"
	"lodging_booking/pkg/events"

	"github.com/google/uuid"
)

type CheckoutRequest struct {
	ReservationUid string `json:"reservation_uid"`
	Amount         int64  `json:"amount"` // whole currency units
	Currency       string `json:"currency"`
	Description    string `json:"description"`
}

// CheckoutSession is the gateway's handle for a checkout. ClientSecret is
// passed to the client; Reference identifies the session in callbacks.
type CheckoutSession struct {
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret"`
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// WebhookParser turns a signed gateway callback into a payment outcome.
// ok is false for callbacks that carry no outcome.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (event events.PaymentEvent, ok bool, err error)
}

var ErrInvalidAmount = errors.New("amount must be positive")

// MockGateway is used when no provider is configured and in tests.
type MockGateway struct {
	mu       sync.Mutex
	Requests []CheckoutRequest
	Err      error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	ref := fmt.Sprintf("mock_%s", uuid.New().String()[:8])
	log.Printf("Mock gateway: checkout %s for reservation %s, %d %s", ref, req.ReservationUid, req.Amount, req.Currency)
	return &CheckoutSession{Reference: ref, ClientSecret: ref + "_secret"}, nil
}

func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// BreakerGateway fails fast while the wrapped gateway keeps failing.
type BreakerGateway struct {
	inner   Gateway
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerGateway(inner Gateway, breaker *circuitbreaker.CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{inner: inner, breaker: breaker}
}

func (b *BreakerGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var session *CheckoutSession
	err := b.breaker.Execute(func() error {
		var err error
		session, err = b.inner.CreateCheckout(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
