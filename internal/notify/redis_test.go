package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/family-calendar/internal/application"
)

func TestEncodeChange(t *testing.T) {
	at := time.Date(2024, 3, 30, 11, 0, 0, 123456789, time.FixedZone("CET", 3600))
	payload, err := encodeChange(application.Change{
		Type:    application.ChangeCreated,
		EventID: "evt-1",
		OwnerID: "user-1",
		At:      at,
	})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "created", decoded["type"])
	assert.Equal(t, "evt-1", decoded["event_id"])
	assert.Equal(t, "user-1", decoded["owner_id"])
	assert.Equal(t, "2024-03-30T10:00:00.123Z", decoded["at"])
}

func TestIdempotencyKeyPrefix(t *testing.T) {
	assert.Equal(t, "famcal:idempotency:abc", idempotencyKey("abc"))
}

// TestRedisIntegration runs against a live server when FAMCAL_TEST_REDIS_URL
// is set.
func TestRedisIntegration(t *testing.T) {
	url := os.Getenv("FAMCAL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("FAMCAL_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	t.Run("publish", func(t *testing.T) {
		sub := client.Subscribe(ctx, "famcal-test")
		defer sub.Close()
		_, err := sub.Receive(ctx)
		require.NoError(t, err)

		pub := NewRedisPublisher(client, "famcal-test")
		require.NoError(t, pub.PublishChange(ctx, application.Change{Type: application.ChangeDeleted, EventID: "evt-9"}))

		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg.Payload, `"event_id":"evt-9"`)
	})

	t.Run("claim complete release", func(t *testing.T) {
		store := NewRedisIdempotencyStore(client)
		key := "test-" + time.Now().Format(time.RFC3339Nano)
		defer store.Release(ctx, key)

		rec := application.IdempotencyRecord{Fingerprint: "f1"}
		_, claimed, err := store.Claim(ctx, key, rec, time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)

		existing, claimed, err := store.Claim(ctx, key, rec, time.Minute)
		require.NoError(t, err)
		assert.False(t, claimed)
		assert.True(t, existing.Pending())

		require.NoError(t, store.Complete(ctx, key, application.IdempotencyRecord{Fingerprint: "f1", EventID: "evt-1"}, time.Minute))
		existing, _, err = store.Claim(ctx, key, rec, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "evt-1", existing.EventID)

		require.NoError(t, store.Release(ctx, key))
		_, claimed, err = store.Claim(ctx, key, rec, time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})
}
