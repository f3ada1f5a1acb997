package models

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses hold inventory and take part in conflict detection.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further lifecycle transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentPending   PaymentStatus = "pending" // checkout started, or slip awaiting review
	PaymentPaid      PaymentStatus = "paid"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentCancelled PaymentStatus = "cancelled"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPending, PaymentPaid, PaymentRejected, PaymentCancelled:
		return true
	}
	return false
}

// Cancellable reports whether the owner may still cancel.
func (p PaymentStatus) Cancellable() bool {
	return p == PaymentUnpaid || p == PaymentPending
}

// Channel is the creation path a reservation was admitted through.
type Channel string

const (
	ChannelDirect       Channel = "direct"
	ChannelBankTransfer Channel = "bank_transfer"
)

// InitialPaymentStatus is the payment status an admitted reservation starts with.
func (c Channel) InitialPaymentStatus() PaymentStatus {
	if c == ChannelBankTransfer {
		return PaymentUnpaid
	}
	return PaymentPending
}
