package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type slotWriterStub struct {
	created  int
	err      error
	received []models.TimeSlot
}

func (s *slotWriterStub) BulkInsert(ctx context.Context, slots []models.TimeSlot) (int, error) {
	s.received = append(s.received, slots...)
	if s.err != nil {
		return 0, s.err
	}
	if s.created > 0 {
		return s.created, nil
	}
	return len(slots), nil
}

type windowReaderStub struct {
	windows []models.ScheduleWindow
	err     error
}

func (s windowReaderStub) ListActiveByProvider(ctx context.Context, providerID string) ([]models.ScheduleWindow, error) {
	return s.windows, s.err
}

func mondayWindow() models.ScheduleWindow {
	return models.ScheduleWindow{
		ID:           "window-1",
		ProviderID:   "provider-1",
		DayOfWeek:    int(time.Monday),
		StartTime:    "09:00",
		EndTime:      "12:00",
		SlotDuration: 30,
		Timezone:     "UTC",
		Active:       true,
	}
}

func TestExpandWindowSingleMonday(t *testing.T) {
	// 2026-08-24 is a Monday.
	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	slots, err := ExpandWindow(mondayWindow(), from, to)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	assert.Equal(t, time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), slots[0].StartAt)
	assert.Equal(t, time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC), slots[0].EndAt)
	assert.Equal(t, time.Date(2026, 8, 24, 11, 30, 0, 0, time.UTC), slots[5].StartAt)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), slots[5].EndAt)
	for _, slot := range slots {
		assert.Equal(t, models.SlotStatusFree, slot.Status)
		assert.Equal(t, "provider-1", slot.ProviderID)
		assert.Equal(t, "window-1", slot.ScheduleWindowID)
	}
}

func TestExpandWindowDropsTrailingPartialSlot(t *testing.T) {
	window := mondayWindow()
	window.EndTime = "10:45"

	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	slots, err := ExpandWindow(window, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	// 09:00, 09:30, 10:00 fit; 10:30-11:00 would overrun 10:45.
	require.Len(t, slots, 3)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), slots[2].StartAt)
}

func TestExpandWindowMultipleWeeks(t *testing.T) {
	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	slots, err := ExpandWindow(mondayWindow(), from, to)
	require.NoError(t, err)
	assert.Len(t, slots, 12)
}

func TestExpandWindowKeepsWallClockAcrossDST(t *testing.T) {
	window := mondayWindow()
	window.DayOfWeek = int(time.Sunday)
	window.StartTime = "09:00"
	window.EndTime = "10:00"
	window.SlotDuration = 60
	window.Timezone = "Europe/Berlin"

	// Range covers the Sunday before and the Sunday of the 2026 spring
	// transition (2026-03-29, CET -> CEST).
	from := time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)

	slots, err := ExpandWindow(window, from, to)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	// 09:00 CET is 08:00 UTC; after the transition 09:00 CEST is 07:00 UTC.
	assert.Equal(t, time.Date(2026, 3, 22, 8, 0, 0, 0, time.UTC), slots[0].StartAt)
	assert.Equal(t, time.Date(2026, 3, 29, 7, 0, 0, 0, time.UTC), slots[1].StartAt)
}

func TestExpandWindowExcludesSlotsBeforeRangeStart(t *testing.T) {
	// Range starts mid-window: 10:00 on the Monday.
	from := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	slots, err := ExpandWindow(mondayWindow(), from, to)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), slots[0].StartAt)
}

func TestExpandWindowRejectsInvalidDefinitions(t *testing.T) {
	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	cases := map[string]func(*models.ScheduleWindow){
		"zero duration":     func(w *models.ScheduleWindow) { w.SlotDuration = 0 },
		"start after end":   func(w *models.ScheduleWindow) { w.StartTime = "13:00" },
		"equal start end":   func(w *models.ScheduleWindow) { w.StartTime = "12:00" },
		"bad start format":  func(w *models.ScheduleWindow) { w.StartTime = "9am" },
		"day out of range":  func(w *models.ScheduleWindow) { w.DayOfWeek = 7 },
		"unknown timezone":  func(w *models.ScheduleWindow) { w.Timezone = "Mars/Olympus" },
		"negative duration": func(w *models.ScheduleWindow) { w.SlotDuration = -30 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			window := mondayWindow()
			mutate(&window)
			_, err := ExpandWindow(window, from, to)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidWindow.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestGenerateRejectsOversizedRange(t *testing.T) {
	svc := NewSlotGeneratorService(windowReaderStub{}, &slotWriterStub{}, nil, 30, zap.NewNop())

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Generate(context.Background(), "provider-1", from, from.AddDate(0, 0, 31))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRangeTooLarge.Code, appErrors.FromError(err).Code)
}

func TestGenerateRejectsInvertedRange(t *testing.T) {
	svc := NewSlotGeneratorService(windowReaderStub{}, &slotWriterStub{}, nil, 30, zap.NewNop())

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Generate(context.Background(), "provider-1", from, from)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateReportsCreatedCount(t *testing.T) {
	writer := &slotWriterStub{created: 4}
	reader := windowReaderStub{windows: []models.ScheduleWindow{mondayWindow()}}
	svc := NewSlotGeneratorService(reader, writer, nil, 30, zap.NewNop())

	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	result, err := svc.Generate(context.Background(), "provider-1", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Windows)
	// 6 expanded, 4 actually created: the rest already existed.
	assert.Len(t, writer.received, 6)
	assert.Equal(t, 4, result.Created)
}

func TestGenerateNoActiveWindows(t *testing.T) {
	writer := &slotWriterStub{}
	svc := NewSlotGeneratorService(windowReaderStub{}, writer, nil, 30, zap.NewNop())

	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	result, err := svc.Generate(context.Background(), "provider-1", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Empty(t, writer.received)
}
