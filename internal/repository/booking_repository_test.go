package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/models"
)

func newBookingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBookingRepositoryReserveWinsSlot(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE time_slots SET status =")).
		WillReturnRows(sqlmock.NewRows([]string{"provider_id"}).AddRow("provider-1"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), "slot-1", "customer-1")
	require.NoError(t, err)
	require.Equal(t, "provider-1", booking.ProviderID)
	require.Equal(t, "customer-1", booking.CustomerID)
	require.Equal(t, models.BookingStatusConfirmed, booking.Status)
	require.NotEmpty(t, booking.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReserveLosesRace(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// The compare-and-set matched zero rows: slot already claimed.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE time_slots SET status =")).
		WillReturnRows(sqlmock.NewRows([]string{"provider_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM time_slots")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "slot-1", "customer-2")
	require.ErrorIs(t, err, ErrSlotNotReservable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReserveMissingSlot(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE time_slots SET status =")).
		WillReturnRows(sqlmock.NewRows([]string{"provider_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM time_slots")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "ghost", "customer-1")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryHoldCreatesPendingBooking(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE time_slots SET status =")).
		WillReturnRows(sqlmock.NewRows([]string{"provider_id"}).AddRow("provider-1"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	heldUntil := time.Now().UTC().Add(5 * time.Minute)
	booking, err := repo.Hold(context.Background(), "slot-1", "customer-1", heldUntil)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusPending, booking.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func bookingRows(status models.BookingStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_id", "provider_id", "time_slot_id", "status", "cancelled_by", "cancelled_at", "created_at", "updated_at"}).
		AddRow("booking-1", "customer-1", "provider-1", "slot-1", status, nil, nil, time.Now(), time.Now())
}

func TestBookingRepositoryConfirmLapsedHold(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_id, provider_id")).
		WithArgs("booking-1").
		WillReturnRows(bookingRows(models.BookingStatusPending))
	// Promotion matches zero rows: the hold expired.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE time_slots SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Confirm(context.Background(), "booking-1")
	require.ErrorIs(t, err, ErrHoldLapsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryConfirmIsIdempotent(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_id, provider_id")).
		WithArgs("booking-1").
		WillReturnRows(bookingRows(models.BookingStatusConfirmed))
	mock.ExpectCommit()

	booking, err := repo.Confirm(context.Background(), "booking-1")
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusConfirmed, booking.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancelReleasesSlot(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_id, provider_id")).
		WithArgs("booking-1").
		WillReturnRows(bookingRows(models.BookingStatusConfirmed))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE time_slots SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, released, err := repo.Cancel(context.Background(), "booking-1", models.CancelledByCustomer)
	require.NoError(t, err)
	require.True(t, released)
	require.Equal(t, models.BookingStatusCancelled, booking.Status)
	require.NotNil(t, booking.CancelledBy)
	require.Equal(t, models.CancelledByCustomer, *booking.CancelledBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancelAlreadyCancelled(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_id, provider_id")).
		WithArgs("booking-1").
		WillReturnRows(bookingRows(models.BookingStatusCancelled))
	mock.ExpectCommit()

	booking, released, err := repo.Cancel(context.Background(), "booking-1", models.CancelledByCustomer)
	require.NoError(t, err)
	require.False(t, released)
	require.Equal(t, models.BookingStatusCancelled, booking.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "customer_id", "provider_id", "time_slot_id", "status", "cancelled_by", "cancelled_at", "created_at", "updated_at", "slot_start_at", "slot_end_at"}).
		AddRow("booking-1", "customer-1", "provider-1", "slot-1", models.BookingStatusConfirmed, nil, nil, time.Now(), time.Now(), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT b.id, b.customer_id")).
		WithArgs("customer-1", models.BookingStatusConfirmed).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("customer-1", models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{
		CustomerID: "customer-1",
		Status:     models.BookingStatusConfirmed,
	})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
