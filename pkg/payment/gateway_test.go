package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lodging_booking/pkg/circuitbreaker"
	"lodging_booking/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		expected int64
	}{
		{name: "thb has two decimals", amount: 4500, currency: "thb", expected: 450000},
		{name: "upper case currency", amount: 10, currency: "USD", expected: 1000},
		{name: "jpy is zero decimal", amount: 4500, currency: "jpy", expected: 4500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MinorUnits(tt.amount, tt.currency))
		})
	}
}

func TestMockGatewayCreatesSession(t *testing.T) {
	gw := NewMockGateway()
	session, err := gw.CreateCheckout(context.Background(), CheckoutRequest{
		ReservationUid: "res-1",
		Amount:         2000,
		Currency:       "thb",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Reference)
	assert.Equal(t, session.Reference+"_secret", session.ClientSecret)
	assert.Equal(t, 1, gw.Calls())

	_, err = gw.CreateCheckout(context.Background(), CheckoutRequest{ReservationUid: "res-2"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBreakerGatewayFailsFast(t *testing.T) {
	gw := NewMockGateway()
	gw.Err = errors.New("connection refused")
	guarded := NewBreakerGateway(gw, circuitbreaker.New(1, time.Minute))
	req := CheckoutRequest{ReservationUid: "res-1", Amount: 100, Currency: "thb"}

	for i := 0; i < 2; i++ {
		_, err := guarded.CreateCheckout(context.Background(), req)
		assert.EqualError(t, err, "connection refused")
	}
	_, err := guarded.CreateCheckout(context.Background(), req)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, gw.Calls())
}

func signedEvent(t *testing.T, secret, eventType string, intent map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_123",
		"object":      "event",
		"type":        eventType,
		"created":     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Unix(),
		"api_version": "2023-10-16",
		"data":        map[string]interface{}{"object": intent},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestStripeParseWebhook(t *testing.T) {
	gw := NewStripeGateway("sk_test_dummy", "whsec_test")
	intent := map[string]interface{}{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": map[string]string{"reservationUid": "res-42"},
	}

	payload, header := signedEvent(t, "whsec_test", "payment_intent.succeeded", intent)
	event, ok, err := gw.ParseWebhook(payload, header)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, events.PaymentSucceeded, event.Type)
	assert.Equal(t, "res-42", event.ReservationUid)

	again, _, err := gw.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, event.ID, again.ID, "redelivered webhook keeps its id")

	payload, header = signedEvent(t, "whsec_test", "customer.created", map[string]interface{}{"id": "cus_1"})
	_, ok, err = gw.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = gw.ParseWebhook(payload, "t=1,v1=bad")
	assert.Error(t, err)
}
