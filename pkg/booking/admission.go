package booking

import (
	"context"
	"log"
	"time"

	"lodging_booking/pkg/events"
	"lodging_booking/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdmitRequest struct {
	UserID   uint
	PlaceID  uint
	RoomID   *uint
	CheckIn  time.Time
	CheckOut time.Time
	Channel  models.Channel
}

// Availability is the result of running admission checks without persisting.
type Availability struct {
	Inventory  Inventory
	Range      DateRange
	Nights     int
	TotalPrice int64
	Conflicts  []Conflict
}

func (a *Availability) Available() bool {
	return len(a.Conflicts) == 0
}

func (s *Service) AdmitDirect(ctx context.Context, req AdmitRequest) (*models.Reservation, error) {
	req.Channel = models.ChannelDirect
	return s.Admit(ctx, req)
}

func (s *Service) AdmitBankTransfer(ctx context.Context, req AdmitRequest) (*models.Reservation, error) {
	req.Channel = models.ChannelBankTransfer
	return s.Admit(ctx, req)
}

// Admit validates a request and persists a pending reservation. The
// conflict scan and the insert run under the target's lock inside one
// transaction, so overlapping concurrent requests admit at most one.
//
// A user holds at most one draft: the direct path first removes the
// requester's other pending reservations that have no payment recorded and
// no slip under review.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*models.Reservation, error) {
	if req.Channel == "" {
		req.Channel = models.ChannelDirect
	}
	db := s.db.WithContext(ctx)

	if req.Channel == models.ChannelDirect {
		purged, err := s.purgeDrafts(ctx, req.UserID)
		if err != nil {
			log.Printf("Failed to purge pending drafts of user %d: %v", req.UserID, err)
		} else if purged > 0 {
			log.Printf("Purged %d pending drafts of user %d", purged, req.UserID)
		}
	}

	inv, err := resolveInventory(db, req.PlaceID, req.RoomID)
	if err != nil {
		return nil, err
	}

	rng, nights, err := ValidateRange(req.CheckIn, req.CheckOut, s.today())
	if err != nil {
		return nil, err
	}

	target := inv.Target()
	unlock, err := s.locker.Lock(ctx, target.LockKey())
	if err != nil {
		return nil, dependency("acquire "+target.LockKey(), err)
	}
	defer unlock()

	var exclude *uint
	if req.Channel == models.ChannelDirect && s.cfg.LegacySelfExclusion {
		exclude = &req.UserID
	}

	now := s.cfg.Now()
	reservation := &models.Reservation{
		ReservationUid: uuid.New().String(),
		UserID:         req.UserID,
		PlaceID:        inv.PlaceID,
		RoomID:         inv.RoomID,
		CheckIn:        rng.CheckIn,
		CheckOut:       rng.CheckOut,
		Nights:         nights,
		TotalPrice:     ComputePrice(inv.NightlyPrice, nights),
		Status:         models.StatusPending,
		PaymentStatus:  req.Channel.InitialPaymentStatus(),
		Channel:        req.Channel,
		HoldExpiresAt:  now.Add(s.cfg.HoldTTL).UTC(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := lockTarget(tx, target); err != nil {
			return err
		}
		conflicts, err := findConflicts(tx, target, rng, exclude)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		if err := tx.Create(reservation).Error; err != nil {
			return dependency("insert reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Reservation admitted: uid=%s user=%d target=%s range=%s total=%d",
		reservation.ReservationUid, reservation.UserID, target.LockKey(), rng, reservation.TotalPrice)
	s.publish(ctx, reservation, events.ReservationCreated, "")
	return reservation, nil
}

// CheckAvailability runs lookup, validation and conflict detection for a
// prospective request without writing anything.
func (s *Service) CheckAvailability(ctx context.Context, placeID uint, roomID *uint, checkIn, checkOut time.Time) (*Availability, error) {
	db := s.db.WithContext(ctx)
	inv, err := resolveInventory(db, placeID, roomID)
	if err != nil {
		return nil, err
	}
	rng, nights, err := ValidateRange(checkIn, checkOut, s.today())
	if err != nil {
		return nil, err
	}
	conflicts, err := findConflicts(db, inv.Target(), rng, nil)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Inventory:  *inv,
		Range:      rng,
		Nights:     nights,
		TotalPrice: ComputePrice(inv.NightlyPrice, nights),
		Conflicts:  conflicts,
	}, nil
}

// purgeDrafts keeps drafts with a started checkout so a late gateway outcome
// still finds its reservation.
func (s *Service) purgeDrafts(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND payment_status IN ? AND slip_url = ? AND payment_ref = ?",
			userID, models.StatusPending,
			[]models.PaymentStatus{models.PaymentUnpaid, models.PaymentPending}, "", "").
		Delete(&models.Reservation{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
