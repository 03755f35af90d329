package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-analytics/pkg/logger"
)

func TestNewCacheJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewCacheJanitor(newTestCacheService(newFakeCacheRepository()), "every now and then", logger.NewNop())
	assert.Error(t, err)
}

func TestCacheJanitorSweep(t *testing.T) {
	repo := newFakeCacheRepository()
	repo.put("expired", "1", true)
	repo.put("fresh", "2", false)

	j, err := NewCacheJanitor(newTestCacheService(repo), "", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepSchedule, j.schedule)

	j.Sweep()

	_, ok, _ := repo.GetStale(context.Background(), "expired")
	assert.False(t, ok)
	_, ok, _ = repo.GetStale(context.Background(), "fresh")
	assert.True(t, ok)
}

func TestCacheJanitorRunsOnSchedule(t *testing.T) {
	repo := newFakeCacheRepository()
	repo.put("expired", "1", true)

	j, err := NewCacheJanitor(newTestCacheService(repo), "@every 1s", logger.NewNop())
	require.NoError(t, err)

	j.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		j.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		_, ok, _ := repo.GetStale(context.Background(), "expired")
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}
