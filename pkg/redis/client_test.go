package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		url         string
		expectError bool
	}{
		{
			name:        "Reachable server",
			url:         "redis://" + mr.Addr(),
			expectError: false,
		},
		{
			name:        "Invalid URL scheme",
			url:         "invalid://url",
			expectError: true,
		},
		{
			name:        "Empty URL",
			url:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, "test", nil)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, client)
			assert.NotNil(t, client.KeyBuilder)
			assert.NoError(t, client.Close())
		})
	}
}

func TestClient_IncrWindow(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	count, ttl, err := client.IncrWindow(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Hour, ttl)
	assert.Equal(t, time.Hour, mr.TTL("counter"))

	// later requests keep the window that started with the first one
	mr.FastForward(20 * time.Minute)
	count, ttl, err = client.IncrWindow(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 40*time.Minute, ttl)
	assert.Equal(t, 40*time.Minute, mr.TTL("counter"))

	mr.FastForward(40*time.Minute + time.Second)
	assert.False(t, mr.Exists("counter"))

	count, _, err = client.IncrWindow(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClient_IncrWindowRepairsMissingExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("counter", "5"))

	count, ttl, err := client.IncrWindow(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Minute, mr.TTL("counter"))
}

func TestClient_IncrWindowServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	_, _, err := client.IncrWindow(context.Background(), "counter", time.Minute)
	assert.Error(t, err)
}

func TestClient_HealthAfterServerClose(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, client.Health(ctx))

	mr.Close()
	assert.Error(t, client.Health(ctx))
}

func TestCloseNilSafe(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
