package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotwise/booking-api/internal/models"
)

// Sentinel errors surfaced by the compare-and-set write paths. Services map
// them onto the HTTP error taxonomy.
var (
	// ErrSlotNotReservable means the slot exists but the compare-and-set lost:
	// another transaction moved it out of FREE first.
	ErrSlotNotReservable = errors.New("slot not reservable")
	// ErrHoldLapsed means the hold expired before confirmation.
	ErrHoldLapsed = errors.New("hold lapsed")
)

// BookingRepository owns the transactional write paths for bookings. It is the
// only code allowed to move a time slot out of FREE; the slot row UPDATE is the
// single serialization point for competing claims.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// reservableCondition matches slots that may be claimed: FREE, or HELD with a
// lapsed hold (lazy expiry).
const reservableCondition = `(status = 'FREE' OR (status = 'HELD' AND held_until IS NOT NULL AND held_until < $2))`

// Reserve claims a slot in a single transaction: a compare-and-set UPDATE on
// the slot row followed by the booking insert. The first transaction to win
// the UPDATE commits; all others see zero rows and fail with
// ErrSlotNotReservable. Missing slots surface as sql.ErrNoRows.
func (r *BookingRepository) Reserve(ctx context.Context, slotID, customerID string) (*models.Booking, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	providerID, err := r.claimSlot(ctx, tx, slotID, models.SlotStatusBooked, nil, now)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		ProviderID: providerID,
		TimeSlotID: slotID,
		Status:     models.BookingStatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := insertBooking(ctx, tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return booking, nil
}

// Hold claims a slot for the two-phase flow: the slot moves to HELD with an
// expiry and a PENDING booking records the claim. Confirmation must arrive
// before heldUntil or the hold is treated as lapsed on next access.
func (r *BookingRepository) Hold(ctx context.Context, slotID, customerID string, heldUntil time.Time) (*models.Booking, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin hold: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	providerID, err := r.claimSlot(ctx, tx, slotID, models.SlotStatusHeld, &heldUntil, now)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		ProviderID: providerID,
		TimeSlotID: slotID,
		Status:     models.BookingStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := insertBooking(ctx, tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit hold: %w", err)
	}
	return booking, nil
}

// claimSlot performs the compare-and-set on the slot row and returns the
// owning provider id. A superseded PENDING booking on a lapsed hold is
// cancelled inside the same transaction so slot and booking state stay in
// lockstep.
func (r *BookingRepository) claimSlot(ctx context.Context, tx *sqlx.Tx, slotID string, status models.SlotStatus, heldUntil *time.Time, now time.Time) (string, error) {
	// Cancel any pending booking left behind by a lapsed hold before the slot
	// row changes hands.
	const supersede = `UPDATE bookings SET status = $1, cancelled_by = $2, cancelled_at = $3, updated_at = $3
        WHERE time_slot_id = $4 AND status = $5
        AND EXISTS (SELECT 1 FROM time_slots WHERE id = $4 AND status = 'HELD' AND held_until IS NOT NULL AND held_until < $3)`
	if _, err := tx.ExecContext(ctx, supersede, models.BookingStatusCancelled, models.CancelledBySystem, now, slotID, models.BookingStatusPending); err != nil {
		return "", fmt.Errorf("supersede lapsed hold: %w", err)
	}

	claim := fmt.Sprintf(`UPDATE time_slots SET status = $3, held_until = $4, updated_at = $2
        WHERE id = $1 AND %s
        RETURNING provider_id`, reservableCondition)
	var providerID string
	err := tx.GetContext(ctx, &providerID, claim, slotID, now, status, heldUntil)
	if err == nil {
		return providerID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("claim slot: %w", err)
	}

	// Zero rows: distinguish a missing slot from a lost race.
	var exists int
	checkErr := tx.GetContext(ctx, &exists, `SELECT 1 FROM time_slots WHERE id = $1`, slotID)
	if errors.Is(checkErr, sql.ErrNoRows) {
		return "", sql.ErrNoRows
	}
	if checkErr != nil {
		return "", fmt.Errorf("check slot: %w", checkErr)
	}
	return "", ErrSlotNotReservable
}

func insertBooking(ctx context.Context, tx *sqlx.Tx, booking *models.Booking) error {
	const query = `INSERT INTO bookings (id, customer_id, provider_id, time_slot_id, status, created_at, updated_at)
        VALUES (:id, :customer_id, :provider_id, :time_slot_id, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Confirm promotes a held slot to BOOKED and its pending booking to CONFIRMED.
// The slot compare-and-set requires an unexpired hold; a lapsed hold surfaces
// ErrHoldLapsed. Confirming an already confirmed booking is a no-op success.
func (r *BookingRepository) Confirm(ctx context.Context, bookingID string) (*models.Booking, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirm: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusConfirmed {
		return booking, tx.Commit()
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, ErrHoldLapsed
	}

	const promote = `UPDATE time_slots SET status = $2, held_until = NULL, updated_at = $3
        WHERE id = $1 AND status = $4 AND held_until IS NOT NULL AND held_until >= $3`
	res, err := tx.ExecContext(ctx, promote, booking.TimeSlotID, models.SlotStatusBooked, now, models.SlotStatusHeld)
	if err != nil {
		return nil, fmt.Errorf("promote held slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("promote held slot: %w", err)
	}
	if affected == 0 {
		return nil, ErrHoldLapsed
	}

	const confirm = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, confirm, bookingID, models.BookingStatusConfirmed, now); err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	booking.Status = models.BookingStatusConfirmed
	booking.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirm: %w", err)
	}
	return booking, nil
}

// Cancel marks a booking CANCELLED and frees its slot when no other active
// booking references it. Cancelling an already cancelled booking commits
// nothing and reports released=false, keeping the operation idempotent for
// retrying callers. Missing bookings surface as sql.ErrNoRows.
func (r *BookingRepository) Cancel(ctx context.Context, bookingID, actor string) (*models.Booking, bool, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin cancel: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return booking, false, tx.Commit()
	}

	const cancel = `UPDATE bookings SET status = $2, cancelled_by = $3, cancelled_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, cancel, bookingID, models.BookingStatusCancelled, actor, now); err != nil {
		return nil, false, fmt.Errorf("cancel booking: %w", err)
	}

	const release = `UPDATE time_slots SET status = $2, held_until = NULL, updated_at = $3
        WHERE id = $1 AND NOT EXISTS (
            SELECT 1 FROM bookings WHERE time_slot_id = $1 AND id <> $4 AND status <> $5
        )`
	res, err := tx.ExecContext(ctx, release, booking.TimeSlotID, models.SlotStatusFree, now, bookingID, models.BookingStatusCancelled)
	if err != nil {
		return nil, false, fmt.Errorf("release slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("release slot: %w", err)
	}

	booking.Status = models.BookingStatusCancelled
	booking.CancelledBy = &actor
	booking.CancelledAt = &now
	booking.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit cancel: %w", err)
	}
	return booking, affected > 0, nil
}

func lockBooking(ctx context.Context, tx *sqlx.Tx, bookingID string) (*models.Booking, error) {
	const query = `SELECT id, customer_id, provider_id, time_slot_id, status, cancelled_by, cancelled_at, created_at, updated_at
        FROM bookings WHERE id = $1 FOR UPDATE`
	var booking models.Booking
	if err := tx.GetContext(ctx, &booking, query, bookingID); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByID returns a booking by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, customer_id, provider_id, time_slot_id, status, cancelled_by, cancelled_at, created_at, updated_at
        FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindDetailByID returns a booking joined with its slot interval.
func (r *BookingRepository) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	const query = `SELECT b.id, b.customer_id, b.provider_id, b.time_slot_id, b.status, b.cancelled_by, b.cancelled_at, b.created_at, b.updated_at,
        t.start_at AS slot_start_at, t.end_at AS slot_end_at
        FROM bookings b
        JOIN time_slots t ON t.id = b.time_slot_id
        WHERE b.id = $1`
	var detail models.BookingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns bookings matching the filter with a total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	base := `FROM bookings b JOIN time_slots t ON t.id = b.time_slot_id`
	var conditions []string
	var args []interface{}

	if filter.CustomerID != "" {
		conditions = append(conditions, fmt.Sprintf("b.customer_id = $%d", len(args)+1))
		args = append(args, filter.CustomerID)
	}
	if filter.ProviderID != "" {
		conditions = append(conditions, fmt.Sprintf("b.provider_id = $%d", len(args)+1))
		args = append(args, filter.ProviderID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT b.id, b.customer_id, b.provider_id, b.time_slot_id, b.status, b.cancelled_by, b.cancelled_at, b.created_at, b.updated_at,
        t.start_at AS slot_start_at, t.end_at AS slot_end_at
        %s ORDER BY t.start_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// ListByProviderAndDay returns bookings with slot intervals for a provider day
// sheet, ordered by slot start.
func (r *BookingRepository) ListByProviderAndDay(ctx context.Context, providerID string, dayStart, dayEnd time.Time) ([]models.BookingDetail, error) {
	const query = `SELECT b.id, b.customer_id, b.provider_id, b.time_slot_id, b.status, b.cancelled_by, b.cancelled_at, b.created_at, b.updated_at,
        t.start_at AS slot_start_at, t.end_at AS slot_end_at
        FROM bookings b
        JOIN time_slots t ON t.id = b.time_slot_id
        WHERE b.provider_id = $1 AND t.start_at >= $2 AND t.start_at < $3 AND b.status <> $4
        ORDER BY t.start_at ASC`
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, providerID, dayStart, dayEnd, models.BookingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list provider day bookings: %w", err)
	}
	return bookings, nil
}
