package models

import "time"

// ScheduleWindow is a recurring weekly availability rule for a provider.
// DayOfWeek follows time.Weekday (0 = Sunday). Start and end times are
// wall-clock "HH:MM" strings resolved against Timezone at generation time.
type ScheduleWindow struct {
	ID           string    `db:"id" json:"id"`
	ProviderID   string    `db:"provider_id" json:"provider_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	SlotDuration int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	Timezone     string    `db:"timezone" json:"timezone"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleWindowFilter narrows window listings.
type ScheduleWindowFilter struct {
	ProviderID string
	DayOfWeek  *int
	ActiveOnly bool
}
