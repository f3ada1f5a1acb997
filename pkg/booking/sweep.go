package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"lodging_booking/pkg/events"
	"lodging_booking/pkg/models"
)

// CheckoutHour is the local hour after which today's check-outs complete.
const CheckoutHour = 12

type SweepResult struct {
	Completed int `json:"completed"`
	Expired   int `json:"expired"`
}

// Sweep completes confirmed stays past their check-out cutoff and cancels
// pending holds that expired without a payment or slip. Already processed
// reservations are skipped, so running it twice changes nothing.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	completed, err := s.completeStays(ctx)
	result.Completed = completed
	if err != nil {
		return result, err
	}

	expired, err := s.expireHolds(ctx)
	result.Expired = expired
	if err != nil {
		return result, err
	}

	if result.Completed > 0 || result.Expired > 0 {
		log.Printf("Sweep: %d stays completed, %d holds expired", result.Completed, result.Expired)
	}
	return result, nil
}

// checkoutCutoff is the first check-out date not yet due for completion.
func (s *Service) checkoutCutoff() time.Time {
	now := s.cfg.Now().In(s.cfg.Location)
	cutoff := Day(now, s.cfg.Location)
	if now.Hour() >= CheckoutHour {
		cutoff = cutoff.AddDate(0, 0, 1)
	}
	return cutoff
}

func (s *Service) completeStays(ctx context.Context) (int, error) {
	var uids []string
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("status = ? AND check_out < ?", models.StatusConfirmed, s.checkoutCutoff()).
		Pluck("reservation_uid", &uids).Error
	if err != nil {
		return 0, dependency("scan stays to complete", err)
	}

	n := 0
	for _, uid := range uids {
		out, err := s.transition(ctx, uid, completePlan)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if out.Applied {
			n++
		}
	}
	return n, nil
}

func completePlan(r *models.Reservation) (*step, error) {
	if r.Status != models.StatusConfirmed {
		return nil, nil
	}
	return &step{
		event: events.ReservationCompleted,
		mutate: func(r *models.Reservation) {
			r.Status = models.StatusCompleted
		},
	}, nil
}

func (s *Service) expireHolds(ctx context.Context) (int, error) {
	now := s.cfg.Now().UTC()
	var uids []string
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("status = ? AND payment_status IN ? AND slip_url = ? AND hold_expires_at < ?",
			models.StatusPending,
			[]models.PaymentStatus{models.PaymentUnpaid, models.PaymentPending}, "", now).
		Pluck("reservation_uid", &uids).Error
	if err != nil {
		return 0, dependency("scan expired holds", err)
	}

	n := 0
	for _, uid := range uids {
		out, err := s.transition(ctx, uid, func(r *models.Reservation) (*step, error) {
			if r.Status != models.StatusPending || r.SlipURL != "" || !r.PaymentStatus.Cancellable() {
				return nil, nil
			}
			if !r.HoldExpiresAt.Before(now) {
				return nil, nil
			}
			return &step{
				event:  events.ReservationExpired,
				reason: "hold expired",
				mutate: func(r *models.Reservation) {
					r.Status = models.StatusCancelled
					r.PaymentStatus = models.PaymentCancelled
					r.RejectReason = "hold expired"
				},
			}, nil
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if out.Applied {
			n++
		}
	}
	return n, nil
}

// RunSweeper runs Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		}
	}
}
