package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"lodging_booking/pkg/database/dbtest"
	"lodging_booking/pkg/events"
	"lodging_booking/pkg/models"
	"lodging_booking/pkg/payment"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.BookingEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	clock   *fakeClock
	events  *recordingPublisher
	gateway *payment.MockGateway
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	f := &fixture{
		db:      db,
		clock:   &fakeClock{t: time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)},
		events:  &recordingPublisher{},
		gateway: payment.NewMockGateway(),
	}
	cfg.Now = f.clock.Now
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	f.svc = NewService(db, nil, f.gateway, f.events, cfg)

	place := models.Place{
		ID:   3,
		Name: "Riverside Guesthouse",
		Rooms: []models.Room{
			{ID: 7, Name: "Garden Double", NightlyPrice: 1500},
		},
	}
	require.NoError(t, db.Create(&place).Error)
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func roomPtr(id uint) *uint { return &id }

func (f *fixture) admit(t *testing.T, userID uint, channel models.Channel, in, out time.Time) *models.Reservation {
	t.Helper()
	r, err := f.svc.Admit(context.Background(), AdmitRequest{
		UserID:   userID,
		PlaceID:  3,
		RoomID:   roomPtr(7),
		CheckIn:  in,
		CheckOut: out,
		Channel:  channel,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) reload(t *testing.T, uid string) *models.Reservation {
	t.Helper()
	var r models.Reservation
	require.NoError(t, f.db.Where("reservation_uid = ?", uid).First(&r).Error)
	return &r
}

func (f *fixture) roomBooked(t *testing.T, id uint) bool {
	t.Helper()
	var room models.Room
	require.NoError(t, f.db.First(&room, id).Error)
	return room.IsBooked
}
