package models

import "time"

// SlotStatus represents the lifecycle of a time slot.
type SlotStatus string

// Possible slot statuses.
const (
	SlotStatusFree      SlotStatus = "FREE"
	SlotStatusHeld      SlotStatus = "HELD"
	SlotStatusBooked    SlotStatus = "BOOKED"
	SlotStatusCancelled SlotStatus = "CANCELLED"
	SlotStatusExpired   SlotStatus = "EXPIRED"
)

// TimeSlot is one materialized, individually bookable interval. Slots are
// created only by generation and uniquely keyed by (provider_id, start_at).
type TimeSlot struct {
	ID               string     `db:"id" json:"id"`
	ProviderID       string     `db:"provider_id" json:"provider_id"`
	ScheduleWindowID string     `db:"schedule_window_id" json:"schedule_window_id"`
	ResourceID       *string    `db:"resource_id" json:"resource_id,omitempty"`
	StartAt          time.Time  `db:"start_at" json:"start_at"`
	EndAt            time.Time  `db:"end_at" json:"end_at"`
	Status           SlotStatus `db:"status" json:"status"`
	HeldUntil        *time.Time `db:"held_until" json:"held_until,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// HoldExpired reports whether a HELD slot's hold has lapsed at the given instant.
func (s TimeSlot) HoldExpired(now time.Time) bool {
	return s.Status == SlotStatusHeld && s.HeldUntil != nil && s.HeldUntil.Before(now)
}

// Reservable reports whether the slot can be claimed at the given instant.
func (s TimeSlot) Reservable(now time.Time) bool {
	return s.Status == SlotStatusFree || s.HoldExpired(now)
}

// AvailabilityFilter narrows the free-slot read path.
type AvailabilityFilter struct {
	ProviderID string
	From       time.Time
	To         time.Time
	ResourceID string
}
