package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotwise/booking-api/internal/models"
)

// ScheduleWindowRepository handles persistence of recurring availability rules.
type ScheduleWindowRepository struct {
	db *sqlx.DB
}

// NewScheduleWindowRepository constructs the repository.
func NewScheduleWindowRepository(db *sqlx.DB) *ScheduleWindowRepository {
	return &ScheduleWindowRepository{db: db}
}

// Create persists a new schedule window.
func (r *ScheduleWindowRepository) Create(ctx context.Context, window *models.ScheduleWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now
	const query = `INSERT INTO schedule_windows (id, provider_id, day_of_week, start_time, end_time, slot_duration_minutes, timezone, active, created_at, updated_at)
        VALUES (:id, :provider_id, :day_of_week, :start_time, :end_time, :slot_duration_minutes, :timezone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create schedule window: %w", err)
	}
	return nil
}

// FindByID returns a schedule window by its ID.
func (r *ScheduleWindowRepository) FindByID(ctx context.Context, id string) (*models.ScheduleWindow, error) {
	const query = `SELECT id, provider_id, day_of_week, start_time, end_time, slot_duration_minutes, timezone, active, created_at, updated_at
        FROM schedule_windows WHERE id = $1`
	var window models.ScheduleWindow
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// List returns windows matching the provided filter ordered by weekday and start.
func (r *ScheduleWindowRepository) List(ctx context.Context, filter models.ScheduleWindowFilter) ([]models.ScheduleWindow, error) {
	base := `SELECT id, provider_id, day_of_week, start_time, end_time, slot_duration_minutes, timezone, active, created_at, updated_at
        FROM schedule_windows`
	var conditions []string
	var args []interface{}

	if filter.ProviderID != "" {
		conditions = append(conditions, fmt.Sprintf("provider_id = $%d", len(args)+1))
		args = append(args, filter.ProviderID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY day_of_week, start_time"

	var windows []models.ScheduleWindow
	if err := r.db.SelectContext(ctx, &windows, query, args...); err != nil {
		return nil, fmt.Errorf("list schedule windows: %w", err)
	}
	return windows, nil
}

// ListActiveByProvider returns all active windows for a provider.
func (r *ScheduleWindowRepository) ListActiveByProvider(ctx context.Context, providerID string) ([]models.ScheduleWindow, error) {
	return r.List(ctx, models.ScheduleWindowFilter{ProviderID: providerID, ActiveOnly: true})
}

// Deactivate soft-disables a window. Materialized slots referencing it survive,
// so windows are never hard-deleted.
func (r *ScheduleWindowRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE schedule_windows SET active = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate schedule window: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate schedule window: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
