package feeds

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"site-analytics/pkg/logger"
)

// BreakerConfig tunes the circuit breaker in front of a live source
type BreakerConfig struct {
	// ConsecutiveFailures opens the circuit
	ConsecutiveFailures uint32

	// Timeout is how long the circuit stays open before a trial request
	Timeout time.Duration
}

// BreakerSource stops calling a failing remote API for a while, so the cache
// adapter answers from stale data without waiting on timeouts.
type BreakerSource struct {
	source DataSource
	cb     *gobreaker.CircuitBreaker[[]byte]
}

// NewBreakerSource wraps source with a circuit breaker
func NewBreakerSource(source DataSource, cfg BreakerConfig, logger *logger.Logger) *BreakerSource {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	log := logger.Named("breaker")
	threshold := cfg.ConsecutiveFailures

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        source.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"feed": name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Feed circuit breaker state changed")
		},
	})

	return &BreakerSource{source: source, cb: cb}
}

// Name returns the wrapped feed name
func (s *BreakerSource) Name() string {
	return s.source.Name()
}

// FetchRaw calls the wrapped source unless the circuit is open
func (s *BreakerSource) FetchRaw(ctx context.Context) ([]byte, error) {
	return s.cb.Execute(func() ([]byte, error) {
		return s.source.FetchRaw(ctx)
	})
}

// State reports the breaker state
func (s *BreakerSource) State() string {
	return s.cb.State().String()
}
