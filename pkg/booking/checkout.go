package booking

import (
	"context"
	"fmt"

	"lodging_booking/pkg/models"
	"lodging_booking/pkg/payment"
)

type Checkout struct {
	Reservation  *models.Reservation
	ClientSecret string
	Amount       int64
	Currency     string
}

// StartCheckout opens a gateway checkout session for the owner's pending
// direct reservation and records the session reference on it.
func (s *Service) StartCheckout(ctx context.Context, uid string, userID uint) (*Checkout, error) {
	if s.gateway == nil {
		return nil, dependency("create checkout session", fmt.Errorf("no payment gateway configured"))
	}

	r, err := s.GetReservation(ctx, uid, userID)
	if err != nil {
		return nil, err
	}
	if err := checkoutAllowed(r); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		ReservationUid: r.ReservationUid,
		Amount:         r.TotalPrice,
		Currency:       s.cfg.Currency,
		Description:    fmt.Sprintf("Reservation %s, %d nights %s", r.ReservationUid, r.Nights, r.CheckIn.Format(DateLayout)),
	})
	if err != nil {
		return nil, dependency("create checkout session", err)
	}

	out, err := s.transition(ctx, uid, func(r *models.Reservation) (*step, error) {
		if err := checkoutAllowed(r); err != nil {
			return nil, err
		}
		if r.PaymentRef == session.Reference && r.PaymentStatus == models.PaymentPending {
			return nil, nil
		}
		return &step{
			mutate: func(r *models.Reservation) {
				r.PaymentRef = session.Reference
				r.PaymentStatus = models.PaymentPending
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Checkout{
		Reservation:  out.Reservation,
		ClientSecret: session.ClientSecret,
		Amount:       r.TotalPrice,
		Currency:     s.cfg.Currency,
	}, nil
}

func checkoutAllowed(r *models.Reservation) error {
	if r.Channel != models.ChannelDirect {
		return invalidState("reservation %s is paid by bank transfer", r.ReservationUid)
	}
	if r.Status != models.StatusPending || !r.PaymentStatus.Cancellable() {
		return invalidState("reservation %s is %s/%s", r.ReservationUid, r.Status, r.PaymentStatus)
	}
	return nil
}
