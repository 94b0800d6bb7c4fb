package models

import "time"

// BookingStatus represents the lifecycle of a booking.
type BookingStatus string

// Possible booking statuses.
const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Cancellation actors recorded on cancelled bookings.
const (
	CancelledByCustomer = "customer"
	CancelledByProvider = "provider"
	CancelledBySystem   = "system"
)

// Booking is a customer's claim on exactly one time slot. At most one
// non-cancelled booking may reference a given slot.
type Booking struct {
	ID          string        `db:"id" json:"id"`
	CustomerID  string        `db:"customer_id" json:"customer_id"`
	ProviderID  string        `db:"provider_id" json:"provider_id"`
	TimeSlotID  string        `db:"time_slot_id" json:"time_slot_id"`
	Status      BookingStatus `db:"status" json:"status"`
	CancelledBy *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingDetail enriches Booking with its slot interval.
type BookingDetail struct {
	Booking
	SlotStartAt time.Time `db:"slot_start_at" json:"slot_start_at"`
	SlotEndAt   time.Time `db:"slot_end_at" json:"slot_end_at"`
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	CustomerID string
	ProviderID string
	Status     BookingStatus
	Page       int
	PageSize   int
}
