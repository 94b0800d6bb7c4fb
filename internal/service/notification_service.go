package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/pkg/jobs"
)

// NotificationService fans booking lifecycle events out to interested parties
// through an in-process worker pool. Delivery is fire-and-forget: events are
// published after the owning transaction commits and a lost event never
// affects booking state.
type NotificationService struct {
	queue   *jobs.Queue
	enabled bool
	logger  *zap.Logger
}

// NewNotificationService constructs NotificationService and its queue.
func NewNotificationService(enabled bool, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{enabled: enabled, logger: logger}
	s.queue = jobs.NewQueue("booking-events", s.dispatch, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		s.logger.Info("notifications disabled, events will be dropped")
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// Publish enqueues a booking event. Safe to call from any goroutine; the
// event is dropped with a log line when notifications are disabled or the
// queue is saturated.
func (s *NotificationService) Publish(event models.BookingEvent) {
	if s == nil || !s.enabled {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Type),
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("booking event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("booking_id", event.BookingID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.BookingEvent)
	if !ok {
		s.logger.Error("unexpected event payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	// Delivery target is a log sink for now; an SMTP or webhook sender slots
	// in here without touching the publishing side.
	s.logger.Info("booking event dispatched",
		zap.String("event_type", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("time_slot_id", event.TimeSlotID),
		zap.String("provider_id", event.ProviderID),
		zap.String("customer_id", event.CustomerID),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
