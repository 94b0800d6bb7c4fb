package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/models"
)

func newWindowRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleWindowRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewScheduleWindowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_windows")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	window := &models.ScheduleWindow{
		ProviderID:   "provider-1",
		DayOfWeek:    1,
		StartTime:    "09:00",
		EndTime:      "12:00",
		SlotDuration: 30,
		Timezone:     "UTC",
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), window))
	require.NotEmpty(t, window.ID)
	require.False(t, window.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleWindowRepositoryListBuildsConditions(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewScheduleWindowRepository(db)

	rows := sqlmock.NewRows([]string{"id", "provider_id", "day_of_week", "start_time", "end_time", "slot_duration_minutes", "timezone", "active", "created_at", "updated_at"}).
		AddRow("window-1", "provider-1", 1, "09:00", "12:00", 30, "UTC", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, provider_id, day_of_week")).
		WithArgs("provider-1", 1).
		WillReturnRows(rows)

	day := 1
	windows, err := repo.List(context.Background(), models.ScheduleWindowFilter{
		ProviderID: "provider-1",
		DayOfWeek:  &day,
		ActiveOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, "window-1", windows[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleWindowRepositoryDeactivateMissing(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewScheduleWindowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_windows SET active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleWindowRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewScheduleWindowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_windows SET active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "window-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
