package service

import (
	"context"
	"fmt"
	"time"

	"site-analytics/internal/domain"
	"site-analytics/internal/repository"
	"site-analytics/pkg/logger"
)

// Query window and page size bounds
const (
	DefaultDays  = 30
	MaxDays      = 365
	DefaultLimit = 20
	MaxLimit     = 100

	timeOnPageMinSamples = 3
	timeOnPageLimit      = 20
)

// analyticsService serves dashboard aggregations
type analyticsService struct {
	repo   repository.AnalyticsRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo repository.AnalyticsRepository, logger *logger.Logger) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		logger: logger.Named("analytics"),
		now:    time.Now,
	}
}

// GetDailyStats returns per-day visits, unique visitors and events, newest first
func (s *analyticsService) GetDailyStats(ctx context.Context, days int) ([]domain.DailyStats, error) {
	stats, err := s.repo.DailyStats(ctx, s.cutoff(days))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get daily stats")
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	return stats, nil
}

// GetTopPages returns the most visited paths
func (s *analyticsService) GetTopPages(ctx context.Context, limit, days int) ([]domain.TopPage, error) {
	pages, err := s.repo.TopPages(ctx, s.cutoff(days), ClampLimit(limit))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get top pages")
		return nil, fmt.Errorf("failed to get top pages: %w", err)
	}
	return pages, nil
}

// GetTopReferers returns the most frequent referers
func (s *analyticsService) GetTopReferers(ctx context.Context, limit, days int) ([]domain.TopReferer, error) {
	referers, err := s.repo.TopReferers(ctx, s.cutoff(days), ClampLimit(limit))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get top referers")
		return nil, fmt.Errorf("failed to get top referers: %w", err)
	}
	return referers, nil
}

// GetAverageTimeOnPage returns the mean time on page for paths with at least three samples
func (s *analyticsService) GetAverageTimeOnPage(ctx context.Context, days int) ([]domain.PageTime, error) {
	times, err := s.repo.AverageTimeOnPage(ctx, s.cutoff(days), timeOnPageMinSamples, timeOnPageLimit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get time on page")
		return nil, fmt.Errorf("failed to get time on page: %w", err)
	}
	return times, nil
}

// GetVisitorsByCountry returns visits per country
func (s *analyticsService) GetVisitorsByCountry(ctx context.Context, days int) ([]domain.CountryStats, error) {
	countries, err := s.repo.VisitorsByCountry(ctx, s.cutoff(days))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get visitors by country")
		return nil, fmt.Errorf("failed to get visitors by country: %w", err)
	}
	return countries, nil
}

// GetEventBreakdown returns counts per event type
func (s *analyticsService) GetEventBreakdown(ctx context.Context, days int) ([]domain.EventTypeCount, error) {
	breakdown, err := s.repo.EventBreakdown(ctx, s.cutoff(days))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get event breakdown")
		return nil, fmt.Errorf("failed to get event breakdown: %w", err)
	}
	return breakdown, nil
}

// GetSummary returns window totals
func (s *analyticsService) GetSummary(ctx context.Context, days int) (*domain.Summary, error) {
	days = ClampDays(days)

	summary, err := s.repo.Summary(ctx, s.cutoff(days))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get summary")
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	summary.Days = days
	return summary, nil
}

// GetRecentEvents returns the newest interaction events
func (s *analyticsService) GetRecentEvents(ctx context.Context, limit int) ([]domain.EventRecord, error) {
	events, err := s.repo.RecentEvents(ctx, ClampLimit(limit))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get recent events")
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	return events, nil
}

func (s *analyticsService) cutoff(days int) time.Time {
	return s.now().Add(-time.Duration(ClampDays(days)) * 24 * time.Hour)
}

// ClampDays maps days into 1..MaxDays, using DefaultDays for non-positive input
func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultDays
	case days > MaxDays:
		return MaxDays
	}
	return days
}

// ClampLimit maps limit into 1..MaxLimit, using DefaultLimit for non-positive input
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
