package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"site-analytics/pkg/logger"
)

// DefaultSweepSchedule runs the cache sweep hourly
const DefaultSweepSchedule = "@every 1h"

const sweepTimeout = 30 * time.Second

// CacheJanitor periodically deletes expired cache entries
type CacheJanitor struct {
	cache    CacheService
	cron     *cron.Cron
	schedule string
	logger   *logger.Logger
}

// NewCacheJanitor schedules ClearExpired on a cron spec such as "@every 1h" or "0 * * * *"
func NewCacheJanitor(cache CacheService, schedule string, logger *logger.Logger) (*CacheJanitor, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	j := &CacheJanitor{
		cache:    cache,
		cron:     cron.New(),
		schedule: schedule,
		logger:   logger.Named("janitor"),
	}

	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule cache sweep %q: %w", schedule, err)
	}

	return j, nil
}

// Start runs the scheduler in its own goroutine
func (j *CacheJanitor) Start() {
	j.cron.Start()
	j.logger.WithField("schedule", j.schedule).Info("Cache janitor started")
}

// Stop stops the scheduler and waits for a running sweep to finish or ctx to expire
func (j *CacheJanitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		j.logger.Warn("Cache janitor stop timed out")
	}
}

// Sweep removes expired entries once
func (j *CacheJanitor) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := j.cache.ClearExpired(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Cache sweep failed")
		return
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Expired cache entries removed")
	}
}
