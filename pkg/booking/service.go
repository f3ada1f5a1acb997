// Package booking decides whether a reservation request is admitted, at what
// price, and applies payment outcomes to admitted reservations.
package booking

import (
	"context"
	"log"
	"time"

	"lodging_booking/pkg/events"
	"lodging_booking/pkg/lock"
	"lodging_booking/pkg/models"
	"lodging_booking/pkg/payment"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gateway creates checkout sessions with the payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
}

// Publisher delivers booking lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event events.BookingEvent) error
}

type Config struct {
	Now      func() time.Time
	Location *time.Location
	// HoldTTL bounds how long an unpaid pending reservation holds its dates.
	HoldTTL  time.Duration
	Currency string
	// LegacySelfExclusion skips the requester's own reservations during
	// conflict detection on the direct path.
	LegacySelfExclusion bool
}

type Service struct {
	db        *gorm.DB
	locker    lock.Locker
	gateway   Gateway
	publisher Publisher
	cfg       Config
}

func NewService(db *gorm.DB, locker lock.Locker, gateway Gateway, publisher Publisher, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 24 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "thb"
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if publisher == nil {
		publisher = logPublisher{}
	}
	return &Service{
		db:        db,
		locker:    locker,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *Service) today() time.Time {
	return Day(s.cfg.Now(), s.cfg.Location)
}

func (s *Service) publish(ctx context.Context, r *models.Reservation, eventType events.BookingEventType, reason string) {
	event := events.BookingEvent{
		ID:             uuid.New(),
		Type:           eventType,
		ReservationUid: r.ReservationUid,
		UserID:         r.UserID,
		PlaceID:        r.PlaceID,
		RoomID:         r.RoomID,
		CheckIn:        r.CheckIn.Format(DateLayout),
		CheckOut:       r.CheckOut.Format(DateLayout),
		TotalPrice:     r.TotalPrice,
		Status:         string(r.Status),
		PaymentStatus:  string(r.PaymentStatus),
		Reason:         reason,
		Timestamp:      s.cfg.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish %s for reservation %s: %v", eventType, r.ReservationUid, err)
	}
}

type logPublisher struct{}

func (logPublisher) Publish(_ context.Context, event events.BookingEvent) error {
	log.Printf("Event: %s reservation=%s status=%s payment=%s",
		event.Type, event.ReservationUid, event.Status, event.PaymentStatus)
	return nil
}

func isPostgres(tx *gorm.DB) bool {
	return tx.Dialector != nil && tx.Dialector.Name() == "postgres"
}
