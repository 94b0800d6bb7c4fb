package models

import "time"

// BookingEventType labels post-commit booking events.
type BookingEventType string

// Event types emitted after booking transactions commit.
const (
	EventBookingReserved  BookingEventType = "booking.reserved"
	EventBookingHeld      BookingEventType = "booking.held"
	EventBookingConfirmed BookingEventType = "booking.confirmed"
	EventBookingCancelled BookingEventType = "booking.cancelled"
	EventHoldExpired      BookingEventType = "booking.hold_expired"
)

// BookingEvent is emitted to the notification dispatcher after a booking
// transaction commits. Delivery is fire-and-forget and never affects the
// originating transaction.
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	BookingID  string           `json:"booking_id"`
	TimeSlotID string           `json:"time_slot_id"`
	ProviderID string           `json:"provider_id"`
	CustomerID string           `json:"customer_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}
