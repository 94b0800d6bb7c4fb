package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type scheduleWindowRepository interface {
	Create(ctx context.Context, window *models.ScheduleWindow) error
	FindByID(ctx context.Context, id string) (*models.ScheduleWindow, error)
	List(ctx context.Context, filter models.ScheduleWindowFilter) ([]models.ScheduleWindow, error)
	Deactivate(ctx context.Context, id string) error
}

// DefineWindowRequest describes a recurring availability rule.
type DefineWindowRequest struct {
	DayOfWeek    int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	SlotDuration int    `json:"slot_duration_minutes" validate:"required,gt=0"`
	Timezone     string `json:"timezone" validate:"required"`
}

// ScheduleService manages provider schedule windows.
type ScheduleService struct {
	repo      scheduleWindowRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(repo scheduleWindowRepository, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, validator: validate, logger: logger}
}

// DefineWindow validates and persists a new schedule window for a provider.
func (s *ScheduleService) DefineWindow(ctx context.Context, providerID string, req DefineWindowRequest) (*models.ScheduleWindow, error) {
	if providerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provider id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidWindow.Code, appErrors.ErrInvalidWindow.Status, "invalid window payload")
	}
	startMin, err := parseWallClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "start time must be HH:MM")
	}
	endMin, err := parseWallClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "end time must be HH:MM")
	}
	if startMin >= endMin {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "window start must precede end")
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "unknown timezone")
	}

	window := &models.ScheduleWindow{
		ProviderID:   providerID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SlotDuration: req.SlotDuration,
		Timezone:     req.Timezone,
		Active:       true,
	}
	if err := s.repo.Create(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule window")
	}

	s.logger.Info("schedule window defined",
		zap.String("window_id", window.ID),
		zap.String("provider_id", providerID),
		zap.Int("day_of_week", req.DayOfWeek),
	)
	return window, nil
}

// List returns windows for a provider.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleWindowFilter) ([]models.ScheduleWindow, error) {
	windows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule windows")
	}
	return windows, nil
}

// Deactivate soft-disables a window so future generation runs skip it.
// Already materialized slots keep referencing the window and stay bookable.
func (s *ScheduleService) Deactivate(ctx context.Context, providerID, windowID string) error {
	window, err := s.repo.FindByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule window")
	}
	if window.ProviderID != providerID {
		return appErrors.Clone(appErrors.ErrForbidden, "window belongs to another provider")
	}
	if err := s.repo.Deactivate(ctx, windowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate schedule window")
	}
	return nil
}
