package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/testutil"
)

func TestBus_FansOutToEverySubscriber(t *testing.T) {
	bus := NewBus(nil)
	var calls atomic.Int32
	for i := 0; i < 20; i++ {
		bus.Subscribe("counter", SubscriberFunc(func(context.Context, domain.Event) error {
			calls.Add(1)
			return nil
		}))
	}

	err := bus.Publish(context.Background(), domain.NewTenantActivated(1))
	require.NoError(t, err)
	assert.Equal(t, int32(20), calls.Load())
}

func TestBus_SubscriberFailureIsNotReturned(t *testing.T) {
	bus := NewBus(nil)
	var (
		mu       sync.Mutex
		received []string
	)
	bus.Subscribe("broken", SubscriberFunc(func(context.Context, domain.Event) error {
		return errors.New("mailbox full")
	}))
	bus.Subscribe("healthy", SubscriberFunc(func(_ context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.EventName())
		return nil
	}))

	err := bus.Publish(context.Background(), domain.NewUserRegistered(1, "alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"UserRegistered"}, received)
}

func TestBus_CanceledContext(t *testing.T) {
	bus := NewBus(nil)
	called := false
	bus.Subscribe("s", SubscriberFunc(func(context.Context, domain.Event) error {
		called = true
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.Publish(ctx, domain.NewTenantActivated(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRecorder_PersistsJSON(t *testing.T) {
	store := testutil.NewMemoryStore()
	bus := NewBus(nil)
	bus.Subscribe("recorder", NewRecorder(store.Events()))
	bus.Subscribe("log", LogSubscriber(slog.New(slog.DiscardHandler)))

	ev := domain.NewUserAssignedToRole(7, "Support", "alice")
	require.NoError(t, bus.Publish(context.Background(), ev))

	stored, err := store.Events().List(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "UserAssignedToRole", stored[0].Name)
	assert.Equal(t, 1, stored[0].Version)
	assert.Equal(t, ev.OccurredAt(), stored[0].OccurredAt)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(stored[0].Payload, &payload))
	assert.Equal(t, "Support", payload["role_name"])
	assert.Equal(t, "alice", payload["username"])
	assert.EqualValues(t, 7, payload["tenant_id"])
}

func TestLogSubscriber(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := LogSubscriber(logger).Handle(context.Background(), domain.NewGroupUserAdded(7, "Engineering", "alice"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "event=GroupUserAdded")
	assert.Contains(t, buf.String(), "tenant=7")
}
