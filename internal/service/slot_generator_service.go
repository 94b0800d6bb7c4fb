package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type slotWriter interface {
	BulkInsert(ctx context.Context, slots []models.TimeSlot) (int, error)
}

type activeWindowReader interface {
	ListActiveByProvider(ctx context.Context, providerID string) ([]models.ScheduleWindow, error)
}

// GenerationResult summarizes a generation run.
type GenerationResult struct {
	ProviderID string    `json:"provider_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Windows    int       `json:"windows"`
	Created    int       `json:"created"`
}

// SlotGeneratorService materializes discrete time slots from recurring
// schedule windows. Expansion is a pure function of (window, range), so
// re-running generation over an overlapping range is idempotent: the
// repository upsert keyed by (provider_id, start_at) skips existing rows.
type SlotGeneratorService struct {
	windows      activeWindowReader
	slots        slotWriter
	metrics      *MetricsService
	maxRangeDays int
	logger       *zap.Logger
}

// NewSlotGeneratorService constructs SlotGeneratorService.
func NewSlotGeneratorService(windows activeWindowReader, slots slotWriter, metrics *MetricsService, maxRangeDays int, logger *zap.Logger) *SlotGeneratorService {
	if maxRangeDays <= 0 {
		maxRangeDays = 90
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotGeneratorService{windows: windows, slots: slots, metrics: metrics, maxRangeDays: maxRangeDays, logger: logger}
}

// Generate expands every active window of the provider over [from, to) and
// persists the resulting slots in FREE status. Returns the number of slots
// actually created (existing slots are never touched).
func (s *SlotGeneratorService) Generate(ctx context.Context, providerID string, from, to time.Time) (*GenerationResult, error) {
	if providerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provider id is required")
	}
	if !from.Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "generation range start must precede end")
	}
	if to.Sub(from) > time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrRangeTooLarge, fmt.Sprintf("generation range exceeds %d days", s.maxRangeDays))
	}

	windows, err := s.windows.ListActiveByProvider(ctx, providerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule windows")
	}

	var pending []models.TimeSlot
	for _, window := range windows {
		expanded, err := ExpandWindow(window, from, to)
		if err != nil {
			return nil, err
		}
		pending = append(pending, expanded...)
	}

	created, err := s.slots.BulkInsert(ctx, pending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist generated slots")
	}

	s.metrics.AddSlotsGenerated(created)
	s.logger.Info("slots generated",
		zap.String("provider_id", providerID),
		zap.Int("windows", len(windows)),
		zap.Int("expanded", len(pending)),
		zap.Int("created", created),
	)

	return &GenerationResult{ProviderID: providerID, From: from, To: to, Windows: len(windows), Created: created}, nil
}

// ExpandWindow is the pure expansion: it emits one slot per slot_duration step
// for every occurrence of the window's weekday within [from, to). Times are
// resolved in the window's timezone, so slots stay wall-clock-constant across
// DST transitions while their absolute instants shift with the offset. A final
// partial slot that would overrun end_time is dropped, not truncated.
func ExpandWindow(window models.ScheduleWindow, from, to time.Time) ([]models.TimeSlot, error) {
	if window.SlotDuration <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "slot duration must be positive")
	}
	startMin, err := parseWallClock(window.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "invalid window start time")
	}
	endMin, err := parseWallClock(window.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "invalid window end time")
	}
	if startMin >= endMin {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "window start must precede end")
	}
	if window.DayOfWeek < 0 || window.DayOfWeek > 6 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "day of week out of range")
	}
	loc, err := time.LoadLocation(window.Timezone)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "unknown timezone")
	}

	var slots []models.TimeSlot
	weekday := time.Weekday(window.DayOfWeek)

	localFrom := from.In(loc)
	day := time.Date(localFrom.Year(), localFrom.Month(), localFrom.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		if day.Weekday() != weekday {
			continue
		}
		for minutes := startMin; minutes+window.SlotDuration <= endMin; minutes += window.SlotDuration {
			startAt := wallClockOnDay(day, minutes, loc)
			endAt := wallClockOnDay(day, minutes+window.SlotDuration, loc)
			if startAt.Before(from) || !startAt.Before(to) {
				continue
			}
			slots = append(slots, models.TimeSlot{
				ProviderID:       window.ProviderID,
				ScheduleWindowID: window.ID,
				StartAt:          startAt.UTC(),
				EndAt:            endAt.UTC(),
				Status:           models.SlotStatusFree,
			})
		}
	}
	return slots, nil
}

// wallClockOnDay resolves minutes-past-midnight on a calendar day in loc.
// time.Date performs the DST normalization for wall clocks that do not exist
// or occur twice on transition days.
func wallClockOnDay(day time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc)
}

func parseWallClock(raw string) (int, error) {
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
