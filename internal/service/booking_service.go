package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/repository"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type bookingRepository interface {
	Reserve(ctx context.Context, slotID, customerID string) (*models.Booking, error)
	Hold(ctx context.Context, slotID, customerID string, heldUntil time.Time) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID string) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actor string) (*models.Booking, bool, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReserveRequest claims a slot single-phase: the slot goes straight to BOOKED.
type ReserveRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

// HoldRequest claims a slot two-phase: HELD with an expiry, pending confirm.
type HoldRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

// BookingService orchestrates the exclusivity-enforcing write paths. The
// repository transaction carries correctness; this layer maps errors, emits
// post-commit events, and invalidates the availability cache. No external
// side effect (payment, notification delivery) runs inside the transaction.
type BookingService struct {
	repo      bookingRepository
	cache     cacheInvalidator
	events    eventPublisher
	metrics   *MetricsService
	holdTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs BookingService.
func NewBookingService(repo bookingRepository, cache cacheInvalidator, events eventPublisher, metrics *MetricsService, holdTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if holdTTL <= 0 {
		holdTTL = 5 * time.Minute
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, cache: cache, events: events, metrics: metrics, holdTTL: holdTTL, validator: validate, logger: logger}
}

// Reserve claims a slot for the customer. Exactly one of N concurrent calls
// against the same slot succeeds; the rest receive SLOT_UNAVAILABLE and must
// pick a different slot, never retry the same one.
func (s *BookingService) Reserve(ctx context.Context, customerID string, req ReserveRequest) (*models.Booking, error) {
	if err := s.validateClaim(customerID, req); err != nil {
		return nil, err
	}

	booking, err := s.repo.Reserve(ctx, req.SlotID, customerID)
	if err != nil {
		return nil, s.mapClaimError(err)
	}

	s.afterCommit(ctx, models.EventBookingReserved, booking)
	s.metrics.RecordReservation("reserved")
	return booking, nil
}

// Hold claims a slot two-phase. The hold lapses after the configured TTL
// unless confirmed; expiry is lazy, observed on the next read or claim.
func (s *BookingService) Hold(ctx context.Context, customerID string, req HoldRequest) (*models.Booking, error) {
	if err := s.validateClaim(customerID, req); err != nil {
		return nil, err
	}

	heldUntil := time.Now().UTC().Add(s.holdTTL)
	booking, err := s.repo.Hold(ctx, req.SlotID, customerID, heldUntil)
	if err != nil {
		return nil, s.mapClaimError(err)
	}

	s.afterCommit(ctx, models.EventBookingHeld, booking)
	s.metrics.RecordReservation("held")
	return booking, nil
}

// Confirm promotes a held booking to CONFIRMED. Callers must re-validate at
// confirm time: a lapsed hold surfaces HOLD_EXPIRED and the slot may already
// belong to someone else.
func (s *BookingService) Confirm(ctx context.Context, customerID, bookingID string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrBookingNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking.CustomerID != customerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another customer")
	}

	confirmed, err := s.repo.Confirm(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrHoldLapsed) {
			s.metrics.RecordReservation("hold_expired")
			return nil, appErrors.Clone(appErrors.ErrHoldExpired, "")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrBookingNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}

	s.afterCommit(ctx, models.EventBookingConfirmed, confirmed)
	s.metrics.RecordReservation("confirmed")
	return confirmed, nil
}

// Cancel releases a booking. Idempotent: cancelling an already cancelled
// booking succeeds without re-emitting events or touching the slot.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actor string) error {
	if actor == "" {
		actor = models.CancelledBySystem
	}
	booking, released, err := s.repo.Cancel(ctx, bookingID, actor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrBookingNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	if released {
		s.afterCommit(ctx, models.EventBookingCancelled, booking)
		s.metrics.RecordReservation("cancelled")
	}
	return nil
}

// Get returns a booking with its slot interval.
func (s *BookingService) Get(ctx context.Context, requesterID, bookingID string) (*models.BookingDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrBookingNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if detail.CustomerID != requesterID && detail.ProviderID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another party")
	}
	return detail, nil
}

// List returns bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return bookings, pagination, nil
}

func (s *BookingService) validateClaim(customerID string, req any) error {
	if customerID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "customer identity required")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "slot id is required")
	}
	return nil
}

func (s *BookingService) mapClaimError(err error) error {
	if errors.Is(err, repository.ErrSlotNotReservable) {
		s.metrics.RecordReservation("conflict")
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrSlotNotFound, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim slot")
}

// afterCommit runs the post-commit side effects: availability invalidation and
// event emission. Both are decoupled from the booking transaction; a failure
// here never rolls anything back.
func (s *BookingService) afterCommit(ctx context.Context, eventType models.BookingEventType, booking *models.Booking) {
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, AvailabilityCachePattern(booking.ProviderID)); err != nil {
			s.logger.Warn("availability cache invalidation failed", zap.String("provider_id", booking.ProviderID), zap.Error(err))
		}
	}
	if s.events != nil {
		s.events.Publish(models.BookingEvent{
			Type:       eventType,
			BookingID:  booking.ID,
			TimeSlotID: booking.TimeSlotID,
			ProviderID: booking.ProviderID,
			CustomerID: booking.CustomerID,
			OccurredAt: time.Now().UTC(),
		})
	}
}
