package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestRedisMirror(t *testing.T) *RedisMirror {
	t.Helper()

	url := os.Getenv("WIREDM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WIREDM_TEST_REDIS_URL not set")
	}

	client, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test Redis")
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisMirror(client)
}

func TestRedisMirrorPublishAndLookup(t *testing.T) {
	mirror := getTestRedisMirror(t)
	ctx := context.Background()

	id := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { mirror.client.Del(ctx, presenceKey(id)) })

	missing, err := mirror.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, missing)

	seen := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, mirror.Publish(ctx, Status{UserID: id, Online: false, LastSeen: seen}))

	got, err := mirror.Lookup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Online)
	assert.True(t, seen.Equal(got.LastSeen))

	ttl, err := mirror.client.TTL(ctx, presenceKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
