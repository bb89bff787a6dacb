package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/storage"
)

func newStored(t *testing.T, store *storage.MemoryStore) *notification.Notification {
	t.Helper()

	n, err := notification.New("user-1", "title", "message", notification.CategorySecurity, notification.PriorityHigh, map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), *n))
	return n
}

func TestMemoryStore_CreateGet(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	n := newStored(t, store)

	got, err := store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, notification.StatusPending, got.Status)

	// Stored copy must not alias the caller's maps.
	got.Payload["k"] = "changed"
	again, err := store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Payload["k"])
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	n := newStored(t, store)

	err := store.Create(context.Background(), *n)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	n := newStored(t, store)

	require.NoError(t, n.SetStatus(notification.StatusSent))
	n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: true})
	require.NoError(t, store.Update(context.Background(), *n))

	got, err := store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, got.Status)
	assert.Len(t, got.Attempts, 1)

	missing := *n
	missing.ID = "nope"
	assert.ErrorIs(t, store.Update(context.Background(), missing), notification.ErrNotFound)
}

func TestMemoryStore_ListUnacknowledged(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	sent := newStored(t, store)
	require.NoError(t, sent.SetStatus(notification.StatusSent))
	require.NoError(t, store.Update(ctx, *sent))

	acked := newStored(t, store)
	require.NoError(t, acked.SetStatus(notification.StatusSent))
	require.NoError(t, store.Update(ctx, *acked))
	require.NoError(t, store.Acknowledge(ctx, acked.ID))

	pending := newStored(t, store)
	_ = pending

	got, err := store.ListUnacknowledged(ctx,
		[]notification.Status{notification.StatusSent, notification.StatusPartiallyDelivered},
		time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)

	// A cutoff before creation excludes everything.
	got, err = store.ListUnacknowledged(ctx,
		[]notification.Status{notification.StatusSent},
		time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_Acknowledge(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	n := newStored(t, store)

	require.NoError(t, store.Acknowledge(context.Background(), n.ID))
	got, err := store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.True(t, got.Acknowledged)

	assert.ErrorIs(t, store.Acknowledge(context.Background(), "nope"), notification.ErrNotFound)
}
