package booking

import (
	"context"
	"testing"

	"lodging_booking/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertReservation(t *testing.T, f *fixture, userID uint, roomID *uint, rng DateRange, status models.Status) string {
	t.Helper()
	r := models.Reservation{
		ReservationUid: uuid.New().String(),
		UserID:         userID,
		PlaceID:        3,
		RoomID:         roomID,
		CheckIn:        rng.CheckIn,
		CheckOut:       rng.CheckOut,
		Nights:         rng.Nights(),
		Status:         status,
		PaymentStatus:  models.PaymentPending,
		Channel:        models.ChannelDirect,
	}
	require.NoError(t, f.db.Create(&r).Error)
	return r.ReservationUid
}

func TestHasConflictIgnoresInactiveStatuses(t *testing.T) {
	f := newFixture(t, Config{})
	rng := DateRange{date(2024, 3, 1), date(2024, 3, 4)}
	room := Target{PlaceID: 3, RoomID: roomPtr(7)}
	ctx := context.Background()

	insertReservation(t, f, 1, roomPtr(7), rng, models.StatusCancelled)
	insertReservation(t, f, 1, roomPtr(7), rng, models.StatusCompleted)

	conflict, list, err := f.svc.HasConflict(ctx, room, rng.CheckIn, rng.CheckOut, nil)
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Empty(t, list)

	uid := insertReservation(t, f, 1, roomPtr(7), rng, models.StatusPending)
	conflict, list, err = f.svc.HasConflict(ctx, room, date(2024, 3, 3), date(2024, 3, 5), nil)
	require.NoError(t, err)
	assert.True(t, conflict)
	require.Len(t, list, 1)
	assert.Equal(t, uid, list[0].ReservationUid)
	assert.Equal(t, "[2024-03-01, 2024-03-04)", list[0].String())

	conflict, _, err = f.svc.HasConflict(ctx, room, date(2024, 3, 4), date(2024, 3, 5), nil)
	require.NoError(t, err)
	assert.False(t, conflict, "check-out day is free")
}

func TestHasConflictScopesTarget(t *testing.T) {
	f := newFixture(t, Config{})
	rng := DateRange{date(2024, 3, 1), date(2024, 3, 4)}
	ctx := context.Background()

	insertReservation(t, f, 1, roomPtr(7), rng, models.StatusConfirmed)

	conflict, _, err := f.svc.HasConflict(ctx, Target{PlaceID: 3, RoomID: roomPtr(8)}, rng.CheckIn, rng.CheckOut, nil)
	require.NoError(t, err)
	assert.False(t, conflict, "other room")

	conflict, _, err = f.svc.HasConflict(ctx, Target{PlaceID: 3}, rng.CheckIn, rng.CheckOut, nil)
	require.NoError(t, err)
	assert.False(t, conflict, "place-level target only sees room-less reservations")

	insertReservation(t, f, 2, nil, rng, models.StatusPending)
	conflict, _, err = f.svc.HasConflict(ctx, Target{PlaceID: 3}, rng.CheckIn, rng.CheckOut, nil)
	require.NoError(t, err)
	assert.True(t, conflict)
}

func TestHasConflictExcludesUser(t *testing.T) {
	f := newFixture(t, Config{})
	rng := DateRange{date(2024, 3, 1), date(2024, 3, 4)}
	room := Target{PlaceID: 3, RoomID: roomPtr(7)}
	insertReservation(t, f, 1, roomPtr(7), rng, models.StatusConfirmed)

	user := uint(1)
	conflict, _, err := f.svc.HasConflict(context.Background(), room, rng.CheckIn, rng.CheckOut, &user)
	require.NoError(t, err)
	assert.False(t, conflict)

	other := uint(2)
	conflict, _, err = f.svc.HasConflict(context.Background(), room, rng.CheckIn, rng.CheckOut, &other)
	require.NoError(t, err)
	assert.True(t, conflict)
}
