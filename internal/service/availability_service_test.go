package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type slotReaderStub struct {
	slots     []models.TimeSlot
	listErr   error
	listCalls int

	cancelled  []models.Booking
	sweepErr   error
	sweepCalls int
}

func (s *slotReaderStub) ListAvailable(ctx context.Context, filter models.AvailabilityFilter) ([]models.TimeSlot, error) {
	s.listCalls++
	return s.slots, s.listErr
}

func (s *slotReaderStub) ReleaseExpiredHolds(ctx context.Context, providerID string, now time.Time) ([]models.Booking, error) {
	s.sweepCalls++
	return s.cancelled, s.sweepErr
}

type cacheStub struct {
	cached   []models.TimeSlot
	hit      bool
	setKeys  []string
	setErr   error
	lastTTL  time.Duration
	getCalls int
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	s.getCalls++
	if !s.hit {
		return appErrors.ErrCacheMiss
	}
	out, ok := dest.(*[]models.TimeSlot)
	if !ok {
		return errors.New("unexpected destination type")
	}
	*out = s.cached
	return nil
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	s.lastTTL = ttl
	return s.setErr
}

func availabilityWindow() models.AvailabilityFilter {
	return models.AvailabilityFilter{
		ProviderID: "provider-1",
		From:       time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
	}
}

func TestAvailabilityCacheHitSkipsDatabase(t *testing.T) {
	reader := &slotReaderStub{}
	cache := &cacheStub{hit: true, cached: []models.TimeSlot{{ID: "slot-1"}}}
	svc := NewAvailabilityService(reader, cache, &publisherStub{}, nil, time.Minute, zap.NewNop())

	slots, err := svc.List(context.Background(), availabilityWindow())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "slot-1", slots[0].ID)
	assert.Zero(t, reader.listCalls)
	assert.Zero(t, reader.sweepCalls)
}

func TestAvailabilityCacheMissPopulatesCache(t *testing.T) {
	reader := &slotReaderStub{slots: []models.TimeSlot{{ID: "slot-1"}, {ID: "slot-2"}}}
	cache := &cacheStub{}
	svc := NewAvailabilityService(reader, cache, &publisherStub{}, nil, 90*time.Second, zap.NewNop())

	slots, err := svc.List(context.Background(), availabilityWindow())
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Equal(t, 1, reader.listCalls)
	require.Len(t, cache.setKeys, 1)
	assert.Contains(t, cache.setKeys[0], "availability:provider-1:")
	assert.Equal(t, 90*time.Second, cache.lastTTL)
}

func TestAvailabilitySweepPublishesHoldExpiredEvents(t *testing.T) {
	reader := &slotReaderStub{
		cancelled: []models.Booking{
			{ID: "booking-1", TimeSlotID: "slot-1", ProviderID: "provider-1", CustomerID: "customer-1"},
		},
	}
	events := &publisherStub{}
	svc := NewAvailabilityService(reader, &cacheStub{}, events, nil, time.Minute, zap.NewNop())

	_, err := svc.List(context.Background(), availabilityWindow())
	require.NoError(t, err)
	assert.Equal(t, 1, reader.sweepCalls)
	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventHoldExpired, events.events[0].Type)
	assert.Equal(t, "booking-1", events.events[0].BookingID)
}

func TestAvailabilitySweepFailureDoesNotBlockReads(t *testing.T) {
	reader := &slotReaderStub{
		slots:    []models.TimeSlot{{ID: "slot-1"}},
		sweepErr: errors.New("lock timeout"),
	}
	svc := NewAvailabilityService(reader, &cacheStub{}, &publisherStub{}, nil, time.Minute, zap.NewNop())

	slots, err := svc.List(context.Background(), availabilityWindow())
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestAvailabilityRejectsInvertedRange(t *testing.T) {
	svc := NewAvailabilityService(&slotReaderStub{}, &cacheStub{}, &publisherStub{}, nil, time.Minute, zap.NewNop())

	filter := availabilityWindow()
	filter.From, filter.To = filter.To, filter.From
	_, err := svc.List(context.Background(), filter)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityEmptyResultIsNotNil(t *testing.T) {
	svc := NewAvailabilityService(&slotReaderStub{}, &cacheStub{}, &publisherStub{}, nil, time.Minute, zap.NewNop())

	slots, err := svc.List(context.Background(), availabilityWindow())
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}
