package events

import (
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	ReservationCreated   BookingEventType = "reservation.created"
	ReservationConfirmed BookingEventType = "reservation.confirmed"
	ReservationCancelled BookingEventType = "reservation.cancelled"
	ReservationCompleted BookingEventType = "reservation.completed"
	ReservationExpired   BookingEventType = "reservation.expired"
	PaymentRecorded      BookingEventType = "reservation.payment_captured"
	SlipSubmitted        BookingEventType = "slip.submitted"
)

// BookingEvent is published once per applied reservation transition.
type BookingEvent struct {
	ID             uuid.UUID        `json:"id"`
	Type           BookingEventType `json:"type"`
	ReservationUid string           `json:"reservation_uid"`
	UserID         uint             `json:"user_id"`
	PlaceID        uint             `json:"place_id"`
	RoomID         *uint            `json:"room_id,omitempty"`
	CheckIn        string           `json:"check_in"`
	CheckOut       string           `json:"check_out"`
	TotalPrice     int64            `json:"total_price"`
	Status         string           `json:"status"`
	PaymentStatus  string           `json:"payment_status"`
	Reason         string           `json:"reason,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "payment.succeeded"
	PaymentCaptured  PaymentEventType = "payment.captured"
	PaymentFailed    PaymentEventType = "payment.failed"
	PaymentExpired   PaymentEventType = "payment.expired"
)

// PaymentEvent is an inbound payment outcome. Delivery is at-least-once.
type PaymentEvent struct {
	ID             uuid.UUID        `json:"id"`
	Type           PaymentEventType `json:"type"`
	ReservationUid string           `json:"reservation_uid"`
	Reason         string           `json:"reason,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
