package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lodging_booking/pkg/events"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const metadataReservationUid = "reservationUid"

// zero-decimal currencies are charged in whole units by Stripe
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MinorUnits converts a whole-unit amount to the smallest currency unit.
func MinorUnits(amount int64, currency string) int64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return amount
	}
	return amount * 100
}

// StripeGateway creates PaymentIntents and verifies Stripe webhooks.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(req.Amount, req.Currency)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataReservationUid, req.ReservationUid)
	// one intent per reservation and amount, so a retried checkout reuses it
	params.SetIdempotencyKey(fmt.Sprintf("checkout-%s-%d", req.ReservationUid, req.Amount))

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}
	return &CheckoutSession{Reference: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (events.PaymentEvent, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return events.PaymentEvent{}, false, fmt.Errorf("stripe webhook: %w", err)
	}

	var outcome events.PaymentEventType
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = events.PaymentSucceeded
	case "payment_intent.payment_failed":
		outcome = events.PaymentFailed
	case "payment_intent.canceled":
		outcome = events.PaymentExpired
	default:
		return events.PaymentEvent{}, false, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return events.PaymentEvent{}, false, fmt.Errorf("stripe webhook payload: %w", err)
	}
	uid := intent.Metadata[metadataReservationUid]
	if uid == "" {
		return events.PaymentEvent{}, false, nil
	}

	reason := ""
	if intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Msg
	}
	if outcome == events.PaymentFailed && reason == "" {
		reason = "payment failed"
	}

	return events.PaymentEvent{
		ID:             uuid.NewSHA1(uuid.NameSpaceURL, []byte("stripe:"+event.ID)),
		Type:           outcome,
		ReservationUid: uid,
		Reason:         reason,
		Timestamp:      time.Unix(event.Created, 0),
	}, true, nil
}
