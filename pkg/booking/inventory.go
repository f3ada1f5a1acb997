package booking

import (
	"context"
	"errors"

	"lodging_booking/pkg/models"

	"gorm.io/gorm"
)

// Inventory is the entity a reservation occupies and its nightly price.
// RoomID is nil when the place has no rooms.
type Inventory struct {
	PlaceID      uint
	RoomID       *uint
	NightlyPrice int64
}

func (i Inventory) Target() Target {
	return Target{PlaceID: i.PlaceID, RoomID: i.RoomID}
}

func (s *Service) ResolveInventory(ctx context.Context, placeID uint, roomID *uint) (*Inventory, error) {
	return resolveInventory(s.db.WithContext(ctx), placeID, roomID)
}

// resolveInventory picks the requested room, else the first room in stored
// order, else the place's flat price.
func resolveInventory(db *gorm.DB, placeID uint, roomID *uint) (*Inventory, error) {
	place, err := loadPlace(db, placeID)
	if err != nil {
		return nil, err
	}

	if roomID != nil {
		for _, room := range place.Rooms {
			if room.ID == *roomID {
				id := room.ID
				return &Inventory{PlaceID: place.ID, RoomID: &id, NightlyPrice: room.NightlyPrice}, nil
			}
		}
		return nil, notFound("room %d in place %d", *roomID, placeID)
	}

	if len(place.Rooms) > 0 {
		first := place.Rooms[0]
		id := first.ID
		return &Inventory{PlaceID: place.ID, RoomID: &id, NightlyPrice: first.NightlyPrice}, nil
	}

	return &Inventory{PlaceID: place.ID, NightlyPrice: place.NightlyPrice}, nil
}

func loadPlace(db *gorm.DB, placeID uint) (*models.Place, error) {
	var place models.Place
	err := db.Preload("Rooms", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&place, placeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("place %d", placeID)
	}
	if err != nil {
		return nil, dependency("load place", err)
	}
	return &place, nil
}

func (s *Service) GetPlace(ctx context.Context, placeID uint) (*models.Place, error) {
	return loadPlace(s.db.WithContext(ctx), placeID)
}
