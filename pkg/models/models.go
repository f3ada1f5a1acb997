package models

import (
	"time"
)

type Place struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:120;not null"`
	City         string `gorm:"size:80"`
	NightlyPrice int64  `gorm:"not null;default:0"` // used only when the place has no rooms
	Rooms        []Room `gorm:"foreignKey:PlaceID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	ID           uint   `gorm:"primaryKey"`
	PlaceID      uint   `gorm:"not null;index"`
	Name         string `gorm:"size:80"`
	NightlyPrice int64  `gorm:"not null"`
	// IsBooked is a display cache derived from confirmed reservations.
	// Conflict detection never reads it.
	IsBooked  bool `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Reservation struct {
	ID             uint          `gorm:"primaryKey"`
	ReservationUid string        `gorm:"type:uuid;uniqueIndex;not null"`
	UserID         uint          `gorm:"not null;index"`
	PlaceID        uint          `gorm:"not null;index"`
	RoomID         *uint         `gorm:"index"`
	CheckIn        time.Time     `gorm:"not null;index"`
	CheckOut       time.Time     `gorm:"not null;index"`
	Nights         int           `gorm:"not null"`
	TotalPrice     int64         `gorm:"not null"`
	Status         Status        `gorm:"size:20;not null;index"`
	PaymentStatus  PaymentStatus `gorm:"size:20;not null"`
	Channel        Channel       `gorm:"size:20;not null"`
	PaymentRef     string        `gorm:"size:120"`
	SlipURL        string        `gorm:"size:500"`
	RejectReason   string        `gorm:"size:500"`
	HoldExpiresAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
