package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type availableSlotReader interface {
	ListAvailable(ctx context.Context, filter models.AvailabilityFilter) ([]models.TimeSlot, error)
	ReleaseExpiredHolds(ctx context.Context, providerID string, now time.Time) ([]models.Booking, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type eventPublisher interface {
	Publish(event models.BookingEvent)
}

// AvailabilityService is the read path answering "which slots are free". It
// has no side effects on slot state beyond an opportunistic reclamation of
// lapsed holds, which is best-effort storage hygiene: the underlying query
// already treats expired HELD slots as free.
type AvailabilityService struct {
	slots    availableSlotReader
	cache    availabilityCache
	events   eventPublisher
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAvailabilityService constructs AvailabilityService.
func NewAvailabilityService(slots availableSlotReader, cache availabilityCache, events eventPublisher, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AvailabilityService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{slots: slots, cache: cache, events: events, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// List returns FREE slots for the provider in [from, to), ascending by start.
func (s *AvailabilityService) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.TimeSlot, error) {
	if filter.ProviderID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provider id is required")
	}
	if !filter.From.Before(filter.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "availability range start must precede end")
	}

	key := availabilityCacheKey(filter)
	if s.cache != nil {
		start := time.Now()
		var cached []models.TimeSlot
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
	}

	s.sweepExpiredHolds(ctx, filter.ProviderID)

	slots, err := s.slots.ListAvailable(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, key, slots, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	return slots, nil
}

// sweepExpiredHolds reclaims lapsed holds before serving the read. Failures
// are logged and ignored: correctness never depends on the sweep.
func (s *AvailabilityService) sweepExpiredHolds(ctx context.Context, providerID string) {
	cancelled, err := s.slots.ReleaseExpiredHolds(ctx, providerID, time.Now().UTC())
	if err != nil {
		s.logger.Warn("expired hold sweep failed", zap.String("provider_id", providerID), zap.Error(err))
		return
	}
	for _, booking := range cancelled {
		if s.events != nil {
			s.events.Publish(models.BookingEvent{
				Type:       models.EventHoldExpired,
				BookingID:  booking.ID,
				TimeSlotID: booking.TimeSlotID,
				ProviderID: booking.ProviderID,
				CustomerID: booking.CustomerID,
				OccurredAt: time.Now().UTC(),
			})
		}
		s.metrics.RecordHoldExpired()
	}
}

func availabilityCacheKey(filter models.AvailabilityFilter) string {
	resource := filter.ResourceID
	if resource == "" {
		resource = "-"
	}
	return fmt.Sprintf("availability:%s:%d:%d:%s", filter.ProviderID, filter.From.Unix(), filter.To.Unix(), resource)
}

// AvailabilityCachePattern matches every cached availability entry of a
// provider; write paths use it for invalidation.
func AvailabilityCachePattern(providerID string) string {
	return fmt.Sprintf("availability:%s:*", providerID)
}
