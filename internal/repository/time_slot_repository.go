package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotwise/booking-api/internal/models"
)

// TimeSlotRepository handles persistence of materialized time slots.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs the repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// BulkInsert persists generated slots in FREE status. The insert is keyed by
// (provider_id, start_at): slots already materialized are skipped untouched,
// which makes regeneration over an overlapping range a no-op for existing rows.
// Returns the number of slots actually created.
func (r *TimeSlotRepository) BulkInsert(ctx context.Context, slots []models.TimeSlot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin slot insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `INSERT INTO time_slots (id, provider_id, schedule_window_id, resource_id, start_at, end_at, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        ON CONFLICT (provider_id, start_at) DO NOTHING`

	created := 0
	now := time.Now().UTC()
	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.Status == "" {
			slot.Status = models.SlotStatusFree
		}
		res, err := tx.ExecContext(ctx, query, slot.ID, slot.ProviderID, slot.ScheduleWindowID, slot.ResourceID, slot.StartAt, slot.EndAt, slot.Status, now)
		if err != nil {
			return 0, fmt.Errorf("insert time slot: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert time slot: %w", err)
		}
		created += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit slot insert: %w", err)
	}
	return created, nil
}

// FindByID returns a time slot by its ID.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	const query = `SELECT id, provider_id, schedule_window_id, resource_id, start_at, end_at, status, held_until, created_at, updated_at
        FROM time_slots WHERE id = $1`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListAvailable returns reservable slots ordered by start time. HELD slots whose
// hold has lapsed count as free here; their rows are reclaimed separately by
// ReleaseExpiredHolds.
func (r *TimeSlotRepository) ListAvailable(ctx context.Context, filter models.AvailabilityFilter) ([]models.TimeSlot, error) {
	query := `SELECT id, provider_id, schedule_window_id, resource_id, start_at, end_at, status, held_until, created_at, updated_at
        FROM time_slots
        WHERE provider_id = $1 AND start_at >= $2 AND start_at < $3
        AND (status = $4 OR (status = $5 AND held_until IS NOT NULL AND held_until < $6))`
	args := []interface{}{filter.ProviderID, filter.From, filter.To, models.SlotStatusFree, models.SlotStatusHeld, time.Now().UTC()}
	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", len(args)+1)
		args = append(args, filter.ResourceID)
	}
	query += " ORDER BY start_at ASC"

	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ReleaseExpiredHolds reclaims HELD slots whose hold lapsed before now: the slot
// returns to FREE and its pending booking is cancelled by the system. This is a
// storage-hygiene sweep only; reads and the reserve compare-and-set never depend
// on it having run. Returns the cancelled pending bookings.
func (r *TimeSlotRepository) ReleaseExpiredHolds(ctx context.Context, providerID string, now time.Time) ([]models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin hold release: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const reclaim = `UPDATE time_slots SET status = $1, held_until = NULL, updated_at = $2
        WHERE provider_id = $3 AND status = $4 AND held_until IS NOT NULL AND held_until < $2
        RETURNING id`
	var slotIDs []string
	if err := tx.SelectContext(ctx, &slotIDs, reclaim, models.SlotStatusFree, now, providerID, models.SlotStatusHeld); err != nil {
		return nil, fmt.Errorf("reclaim expired holds: %w", err)
	}
	if len(slotIDs) == 0 {
		return nil, tx.Commit()
	}

	placeholders := make([]string, len(slotIDs))
	args := []interface{}{models.BookingStatusCancelled, models.CancelledBySystem, now, models.BookingStatusPending}
	for i, id := range slotIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	cancel := fmt.Sprintf(`UPDATE bookings SET status = $1, cancelled_by = $2, cancelled_at = $3, updated_at = $3
        WHERE status = $4 AND time_slot_id IN (%s)
        RETURNING id, customer_id, provider_id, time_slot_id, status, cancelled_by, cancelled_at, created_at, updated_at`,
		strings.Join(placeholders, ","))

	var cancelled []models.Booking
	if err := tx.SelectContext(ctx, &cancelled, cancel, args...); err != nil {
		return nil, fmt.Errorf("cancel expired pending bookings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit hold release: %w", err)
	}
	return cancelled, nil
}

// CountByProviderAndRange reports how many slots are already materialized in a
// range, used by generation telemetry.
func (r *TimeSlotRepository) CountByProviderAndRange(ctx context.Context, providerID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM time_slots WHERE provider_id = $1 AND start_at >= $2 AND start_at < $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, providerID, from, to); err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return total, nil
}
