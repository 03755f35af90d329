package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"site-analytics/internal/domain"
	"site-analytics/internal/repository"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
	"site-analytics/pkg/redis"
)

// Collect defaults
const (
	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = time.Hour
	DefaultElementTextMax    = 50
)

// VisitorConfig tunes ingestion
type VisitorConfig struct {
	Buffer EventBufferConfig

	// RateLimitRequests is the per-client budget per window; 0 disables limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	ElementTextMax int
}

// visitorService records page views directly and buffers interaction events
type visitorService struct {
	hasher      *VisitorHasher
	visitRepo   repository.VisitRepository
	buffer      *EventBuffer
	redisClient *redis.Client
	logger      *logger.Logger
	metrics     *metrics.Metrics

	rateLimit      int
	rateWindow     time.Duration
	elementTextMax int

	mu        sync.Mutex
	isRunning bool
}

// NewVisitorService creates a new visitor service. redisClient may be nil, in
// which case every collect request is allowed.
func NewVisitorService(
	hasher *VisitorHasher,
	visitRepo repository.VisitRepository,
	eventRepo repository.EventRepository,
	redisClient *redis.Client,
	cfg VisitorConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) VisitorService {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = DefaultRateLimitWindow
	}
	if cfg.ElementTextMax <= 0 {
		cfg.ElementTextMax = DefaultElementTextMax
	}

	log := logger.Named("visitor")
	s := &visitorService{
		hasher:         hasher,
		visitRepo:      visitRepo,
		buffer:         NewEventBuffer(eventRepo, cfg.Buffer, logger, m),
		redisClient:    redisClient,
		logger:         log,
		metrics:        m,
		rateLimit:      cfg.RateLimitRequests,
		rateWindow:     cfg.RateLimitWindow,
		elementTextMax: cfg.ElementTextMax,
	}

	fields := map[string]interface{}{
		"rate_limit":      s.rateLimit,
		"rate_window":     s.rateWindow,
		"flush_interval":  s.buffer.interval,
		"flush_threshold": s.buffer.threshold,
	}
	if redisClient != nil {
		fields["key_prefix"] = redisClient.KeyBuilder.GetPrefix()
	}
	log.WithFields(fields).Info("Initialized visitor service")

	return s
}

// Start marks the service as running
func (s *visitorService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.isRunning = true
	s.logger.Info("Visitor service started")
	return nil
}

// Stop drains the event buffer. Safe to call more than once.
func (s *visitorService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("pending", s.buffer.Pending()).Info("Stopping visitor service...")

	if err := s.buffer.Stop(ctx); err != nil {
		return fmt.Errorf("failed to drain event buffer: %w", err)
	}

	s.isRunning = false
	s.logger.Info("Visitor service stopped")
	return nil
}

// RecordVisit stores a page view. Storage failures are logged and counted so
// that ingestion never fails the client request.
func (s *visitorService) RecordVisit(ctx context.Context, client domain.ClientInfo, path, referer string) {
	visit := &domain.VisitRecord{
		Path:        path,
		VisitorHash: s.hasher.Hash(client.IP, client.UserAgent),
		Referer:     referer,
		UserAgent:   client.UserAgent,
		Country:     client.Country,
	}

	if err := s.visitRepo.Create(ctx, visit); err != nil {
		s.metrics.VisitsRecordedTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).WithField("path", path).Error("Failed to record visit")
		return
	}

	s.metrics.VisitsRecordedTotal.WithLabelValues("success").Inc()
	s.logger.WithFields(map[string]interface{}{
		"id":           visit.ID,
		"path":         path,
		"visitor_hash": visit.VisitorHash[:8] + "...",
		"country":      client.Country,
	}).Debug("Visit recorded successfully")
}

// QueueEvent appends a click or time_on_page event to the buffer
func (s *visitorService) QueueEvent(ctx context.Context, client domain.ClientInfo, req *domain.CollectRequest) error {
	eventType := domain.EventType(req.Type)
	if !eventType.Buffered() {
		return fmt.Errorf("event type %q is not buffered", req.Type)
	}

	s.buffer.Enqueue(domain.EventRecord{
		Type:        eventType,
		Path:        req.Path,
		VisitorHash: s.hasher.Hash(client.IP, client.UserAgent),
		ElementTag:  req.ElementTag,
		ElementID:   req.ElementID,
		ElementText: truncateRunes(req.ElementText, s.elementTextMax),
		Href:        req.Href,
		Duration:    req.Duration,
		CreatedAt:   time.Now().UTC(),
	})

	return nil
}

// CheckRateLimit counts the request in a fixed window keyed by the salted IP
// hash. Redis errors fail open.
func (s *visitorService) CheckRateLimit(ctx context.Context, ip string) (*domain.RateLimitInfo, error) {
	info := &domain.RateLimitInfo{
		Limit:       int64(s.rateLimit),
		WindowStart: time.Now().Truncate(s.rateWindow),
		TTL:         s.rateWindow,
		IsAllowed:   true,
	}

	if s.redisClient == nil || s.rateLimit <= 0 {
		return info, nil
	}

	key := s.redisClient.KeyBuilder.KeyCollectRateLimit(s.hasher.HashIP(ip))

	count, ttl, err := s.redisClient.IncrWindow(ctx, key, s.rateWindow)
	if err != nil {
		s.logger.WithError(err).Warn("Rate limit check failed, allowing request")
		return info, nil
	}
	if ttl > 0 {
		info.TTL = ttl
	}

	info.RequestCount = count
	info.IsAllowed = count <= int64(s.rateLimit)

	if !info.IsAllowed {
		s.metrics.RateLimitedTotal.Inc()
		s.logger.WithFields(map[string]interface{}{
			"request_count": count,
			"limit":         s.rateLimit,
		}).Warn("Rate limit exceeded")
	}

	return info, nil
}

// FlushEvents forces a flush of the event buffer
func (s *visitorService) FlushEvents(ctx context.Context) error {
	return s.buffer.Flush(ctx)
}

// PendingEvents returns the number of buffered events
func (s *visitorService) PendingEvents() int {
	return s.buffer.Pending()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
