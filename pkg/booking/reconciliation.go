package booking

import (
	"context"
	"errors"
	"log"

	"lodging_booking/pkg/events"
	"lodging_booking/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ReasonExpired = "expired"

// Outcome of a reconciliation call. Applied is false when the reservation
// was already in the requested state and nothing changed.
type Outcome struct {
	Reservation *models.Reservation
	Applied     bool
}

// step mutates a reservation in memory; transition persists the mutation
// with a compare-and-set on the statuses it was planned from.
type step struct {
	event  events.BookingEventType
	reason string
	mutate func(r *models.Reservation)
}

// plan returns nil when the change is already applied.
type plan func(r *models.Reservation) (*step, error)

var errLostRace = errors.New("reservation changed concurrently")

const maxTransitionAttempts = 3

func (s *Service) transition(ctx context.Context, uid string, p plan) (*Outcome, error) {
	var (
		out *Outcome
		ev  *step
		err error
	)
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		out, ev, err = s.tryTransition(ctx, uid, p)
		if !errors.Is(err, errLostRace) {
			break
		}
	}
	if errors.Is(err, errLostRace) {
		return nil, dependency("update reservation "+uid, err)
	}
	if err != nil {
		return nil, err
	}
	if out.Applied && ev.event != "" {
		s.publish(ctx, out.Reservation, ev.event, ev.reason)
	}
	return out, nil
}

func (s *Service) tryTransition(ctx context.Context, uid string, p plan) (*Outcome, *step, error) {
	out := &Outcome{}
	var applied *step

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := loadReservation(tx, uid, true)
		if err != nil {
			return err
		}
		out.Reservation = r

		st, err := p(r)
		if err != nil {
			return err
		}
		if st == nil {
			return nil
		}

		fromStatus, fromPayment := r.Status, r.PaymentStatus
		st.mutate(r)
		r.UpdatedAt = s.cfg.Now()

		res := tx.Model(&models.Reservation{}).
			Where("id = ? AND status = ? AND payment_status = ?", r.ID, fromStatus, fromPayment).
			Updates(map[string]interface{}{
				"status":         r.Status,
				"payment_status": r.PaymentStatus,
				"payment_ref":    r.PaymentRef,
				"slip_url":       r.SlipURL,
				"reject_reason":  r.RejectReason,
				"updated_at":     r.UpdatedAt,
			})
		if res.Error != nil {
			return dependency("update reservation", res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}

		if r.RoomID != nil && fromStatus != r.Status {
			if err := s.refreshRoomFlag(tx, *r.RoomID); err != nil {
				return err
			}
		}
		out.Applied = true
		applied = st
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, applied, nil
}

func loadReservation(tx *gorm.DB, uid string, forUpdate bool) (*models.Reservation, error) {
	q := tx
	if forUpdate && isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var r models.Reservation
	err := q.Where("reservation_uid = ?", uid).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("reservation %s", uid)
	}
	if err != nil {
		return nil, dependency("load reservation", err)
	}
	return &r, nil
}

// refreshRoomFlag recomputes the room's display flag from reservation state:
// booked while a confirmed stay has not checked out.
func (s *Service) refreshRoomFlag(tx *gorm.DB, roomID uint) error {
	var count int64
	err := tx.Model(&models.Reservation{}).
		Where("room_id = ? AND status = ? AND check_out >= ?", roomID, models.StatusConfirmed, s.today()).
		Count(&count).Error
	if err != nil {
		return dependency("count confirmed reservations", err)
	}
	err = tx.Model(&models.Room{}).Where("id = ?", roomID).Update("is_booked", count > 0).Error
	if err != nil {
		return dependency("update room flag", err)
	}
	return nil
}

func successPlan(r *models.Reservation) (*step, error) {
	switch r.Status {
	case models.StatusConfirmed:
		if r.PaymentStatus == models.PaymentPaid {
			return nil, nil
		}
	case models.StatusCancelled, models.StatusCompleted:
		return nil, invalidState("reservation %s is %s", r.ReservationUid, r.Status)
	}
	return &step{
		event: events.ReservationConfirmed,
		mutate: func(r *models.Reservation) {
			r.Status = models.StatusConfirmed
			r.PaymentStatus = models.PaymentPaid
		},
	}, nil
}

func capturedPlan(r *models.Reservation) (*step, error) {
	if r.PaymentStatus == models.PaymentPaid {
		return nil, nil
	}
	if r.Status != models.StatusPending {
		return nil, invalidState("reservation %s is %s", r.ReservationUid, r.Status)
	}
	return &step{
		event: events.PaymentRecorded,
		mutate: func(r *models.Reservation) {
			r.PaymentStatus = models.PaymentPaid
		},
	}, nil
}

func rejectionPlan(reason string) plan {
	return func(r *models.Reservation) (*step, error) {
		switch r.Status {
		case models.StatusCancelled:
			return nil, nil
		case models.StatusConfirmed, models.StatusCompleted:
			return nil, invalidState("reservation %s is already %s", r.ReservationUid, r.Status)
		}
		if r.PaymentStatus == models.PaymentPaid {
			return nil, invalidState("reservation %s is already paid", r.ReservationUid)
		}
		eventType := events.ReservationCancelled
		if reason == ReasonExpired {
			eventType = events.ReservationExpired
		}
		return &step{
			event:  eventType,
			reason: reason,
			mutate: func(r *models.Reservation) {
				r.Status = models.StatusCancelled
				r.PaymentStatus = models.PaymentRejected
				r.RejectReason = reason
			},
		}, nil
	}
}

// ApplyPaymentSuccess confirms a reservation and marks it paid. Redelivery
// of the same outcome is a no-op.
func (s *Service) ApplyPaymentSuccess(ctx context.Context, uid string) (*Outcome, error) {
	out, err := s.transition(ctx, uid, successPlan)
	if err == nil && out.Applied {
		log.Printf("Payment applied: reservation %s confirmed", uid)
	}
	return out, err
}

// ApplyPaymentCaptured records a payment the gateway reports separately from
// booking confirmation. The reservation stays pending until
// ApplyPaymentSuccess.
func (s *Service) ApplyPaymentCaptured(ctx context.Context, uid string) (*Outcome, error) {
	return s.transition(ctx, uid, capturedPlan)
}

// ApplyPaymentRejection cancels an unpaid reservation and releases its dates.
func (s *Service) ApplyPaymentRejection(ctx context.Context, uid, reason string) (*Outcome, error) {
	if reason == "" {
		reason = "payment rejected"
	}
	out, err := s.transition(ctx, uid, rejectionPlan(reason))
	if err == nil && out.Applied {
		log.Printf("Payment rejected: reservation %s cancelled (%s)", uid, reason)
	}
	return out, err
}

// ApplyPaymentExpired is a rejection with reason "expired".
func (s *Service) ApplyPaymentExpired(ctx context.Context, uid string) (*Outcome, error) {
	return s.ApplyPaymentRejection(ctx, uid, ReasonExpired)
}

// SubmitSlip attaches a bank transfer slip URL and moves the payment to
// awaiting verification.
func (s *Service) SubmitSlip(ctx context.Context, uid string, userID uint, slipURL string) (*Outcome, error) {
	if slipURL == "" {
		return nil, invalidState("slip url is required")
	}
	return s.transition(ctx, uid, func(r *models.Reservation) (*step, error) {
		if r.UserID != userID {
			return nil, notFound("reservation %s", uid)
		}
		if r.Channel != models.ChannelBankTransfer {
			return nil, invalidState("reservation %s is not a bank transfer booking", uid)
		}
		if r.Status != models.StatusPending || !r.PaymentStatus.Cancellable() {
			return nil, invalidState("reservation %s is %s/%s", uid, r.Status, r.PaymentStatus)
		}
		if r.SlipURL == slipURL && r.PaymentStatus == models.PaymentPending {
			return nil, nil
		}
		return &step{
			event: events.SlipSubmitted,
			mutate: func(r *models.Reservation) {
				r.SlipURL = slipURL
				r.PaymentStatus = models.PaymentPending
			},
		}, nil
	})
}

// ReviewSlip is the manual verification of a bank transfer slip. Approval
// and rejection go through the same logic as gateway outcomes.
func (s *Service) ReviewSlip(ctx context.Context, uid string, approve bool, reason string) (*Outcome, error) {
	if !approve && reason == "" {
		reason = "slip rejected"
	}
	return s.transition(ctx, uid, func(r *models.Reservation) (*step, error) {
		if approve && r.Status == models.StatusConfirmed {
			return successPlan(r)
		}
		if !approve && r.Status == models.StatusCancelled {
			return nil, nil
		}
		if r.SlipURL == "" || r.PaymentStatus != models.PaymentPending {
			return nil, invalidState("reservation %s has no slip awaiting review", uid)
		}
		if approve {
			return successPlan(r)
		}
		return rejectionPlan(reason)(r)
	})
}

// Cancel is the owner's cancellation. Only unpaid or payment-pending
// reservations may be cancelled.
func (s *Service) Cancel(ctx context.Context, uid string, userID uint) (*Outcome, error) {
	return s.transition(ctx, uid, func(r *models.Reservation) (*step, error) {
		if r.UserID != userID {
			return nil, notFound("reservation %s", uid)
		}
		if r.Status != models.StatusPending || !r.PaymentStatus.Cancellable() {
			return nil, invalidState("reservation %s is %s/%s and cannot be cancelled", uid, r.Status, r.PaymentStatus)
		}
		return &step{
			event:  events.ReservationCancelled,
			reason: "cancelled by requester",
			mutate: func(r *models.Reservation) {
				r.Status = models.StatusCancelled
				r.PaymentStatus = models.PaymentCancelled
			},
		}, nil
	})
}

func (s *Service) GetReservation(ctx context.Context, uid string, userID uint) (*models.Reservation, error) {
	r, err := loadReservation(s.db.WithContext(ctx), uid, false)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, notFound("reservation %s", uid)
	}
	return r, nil
}

func (s *Service) ListReservations(ctx context.Context, userID uint) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, dependency("list reservations", err)
	}
	return reservations, nil
}

// ApplyPaymentEvent routes an inbound gateway outcome to the matching
// reconciliation operation.
func (s *Service) ApplyPaymentEvent(ctx context.Context, e events.PaymentEvent) (*Outcome, error) {
	switch e.Type {
	case events.PaymentSucceeded:
		return s.ApplyPaymentSuccess(ctx, e.ReservationUid)
	case events.PaymentCaptured:
		return s.ApplyPaymentCaptured(ctx, e.ReservationUid)
	case events.PaymentFailed:
		return s.ApplyPaymentRejection(ctx, e.ReservationUid, e.Reason)
	case events.PaymentExpired:
		return s.ApplyPaymentExpired(ctx, e.ReservationUid)
	}
	return nil, invalidState("unknown payment event type %q", e.Type)
}
