package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tenant-rbac/internal/domain"
)

// Recorder appends every event to an EventRepository as JSON.
type Recorder struct {
	repo domain.EventRepository
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo domain.EventRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Handle implements Subscriber.
func (r *Recorder) Handle(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.EventName(), err)
	}
	return r.repo.Append(ctx, domain.StoredEvent{
		TenantID:   e.EventTenantID(),
		Name:       e.EventName(),
		Version:    e.EventVersion(),
		OccurredAt: e.OccurredAt(),
		Payload:    payload,
	})
}

// LogSubscriber writes a debug line per event.
func LogSubscriber(logger *slog.Logger) Subscriber {
	return SubscriberFunc(func(ctx context.Context, e domain.Event) error {
		logger.DebugContext(ctx, "domain event",
			"event", e.EventName(),
			"tenant", int64(e.EventTenantID()),
			"occurred_at", e.OccurredAt())
		return nil
	})
}
