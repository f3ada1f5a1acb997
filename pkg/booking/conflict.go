package booking

import (
	"context"
	"fmt"
	"time"

	"lodging_booking/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Target is what a reservation occupies: a room, or the whole place when
// RoomID is nil.
type Target struct {
	PlaceID uint
	RoomID  *uint
}

func (t Target) LockKey() string {
	if t.RoomID != nil {
		return fmt.Sprintf("room:%d", *t.RoomID)
	}
	return fmt.Sprintf("place:%d", t.PlaceID)
}

type Conflict struct {
	ReservationUid string        `json:"reservationUid"`
	CheckIn        time.Time     `json:"checkIn"`
	CheckOut       time.Time     `json:"checkOut"`
	Status         models.Status `json:"status"`
}

func (c Conflict) Range() DateRange {
	return DateRange{CheckIn: c.CheckIn, CheckOut: c.CheckOut}
}

func (c Conflict) String() string {
	return c.Range().String()
}

// HasConflict reports the active reservations on target overlapping
// [checkIn, checkOut). Reservations of excludeUserID are skipped when set.
func (s *Service) HasConflict(ctx context.Context, target Target, checkIn, checkOut time.Time, excludeUserID *uint) (bool, []Conflict, error) {
	rng := DateRange{CheckIn: Day(checkIn, nil), CheckOut: Day(checkOut, nil)}
	conflicts, err := findConflicts(s.db.WithContext(ctx), target, rng, excludeUserID)
	if err != nil {
		return false, nil, err
	}
	return len(conflicts) > 0, conflicts, nil
}

func findConflicts(tx *gorm.DB, target Target, rng DateRange, excludeUserID *uint) ([]Conflict, error) {
	q := tx.Model(&models.Reservation{}).
		Where("status IN ?", models.ActiveStatuses).
		Where("check_out > ?", rng.CheckIn)
	if target.RoomID != nil {
		q = q.Where("room_id = ?", *target.RoomID)
	} else {
		q = q.Where("place_id = ? AND room_id IS NULL", target.PlaceID)
	}
	if excludeUserID != nil {
		q = q.Where("user_id <> ?", *excludeUserID)
	}

	var existing []models.Reservation
	if err := q.Order("check_in ASC").Find(&existing).Error; err != nil {
		return nil, dependency("scan reservations", err)
	}

	var conflicts []Conflict
	for _, r := range existing {
		other := DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
		if !rng.Overlaps(other) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			ReservationUid: r.ReservationUid,
			CheckIn:        r.CheckIn,
			CheckOut:       r.CheckOut,
			Status:         r.Status,
		})
	}
	return conflicts, nil
}

// lockTarget takes a row lock on the room or place so concurrent admissions
// on other instances queue behind this transaction. Dialects without row
// locks rely on the admission Locker alone.
func lockTarget(tx *gorm.DB, target Target) error {
	if !isPostgres(tx) {
		return nil
	}
	locking := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id")
	var err error
	if target.RoomID != nil {
		err = locking.First(&models.Room{}, *target.RoomID).Error
	} else {
		err = locking.First(&models.Place{}, target.PlaceID).Error
	}
	if err != nil {
		return dependency("lock "+target.LockKey(), err)
	}
	return nil
}
