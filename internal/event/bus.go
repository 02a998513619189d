// Package event delivers domain events to in-process subscribers.
package event

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"tenant-rbac/internal/domain"
)

const defaultFanOut = 8

// Subscriber receives published events.
type Subscriber interface {
	Handle(ctx context.Context, e domain.Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, e domain.Event) error

// Handle implements Subscriber.
func (f SubscriberFunc) Handle(ctx context.Context, e domain.Event) error { return f(ctx, e) }

type subscription struct {
	name string
	sub  Subscriber
}

// Bus is a domain.EventPublisher that hands each event to every
// subscriber concurrently. Delivery is synchronous: Publish returns once
// every subscriber has handled the event, so a Recorder has written it by
// then. A failing subscriber is logged and never fails the publishing
// operation.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
	fanOut int
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{logger: logger, fanOut: defaultFanOut}
}

// Subscribe registers s under name. name is only used in log output.
func (b *Bus) Subscribe(name string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, sub: s})
}

// Publish implements domain.EventPublisher. It waits for every subscriber
// to finish and only fails when ctx is already done.
func (b *Bus) Publish(ctx context.Context, e domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(b.fanOut)
	for _, s := range subs {
		g.Go(func() error {
			if err := s.sub.Handle(ctx, e); err != nil {
				b.logger.Warn("event subscriber failed",
					"subscriber", s.name, "event", e.EventName(), "tenant", int64(e.EventTenantID()), "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

var _ domain.EventPublisher = (*Bus)(nil)
