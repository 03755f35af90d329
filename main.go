package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"site-analytics/internal/config"
	"site-analytics/internal/container"
	"site-analytics/internal/middleware"
	"site-analytics/internal/service"
	"site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
)

const (
	version = "1.0.0"

	// coarse per-IP guard in front of every /api route
	apiRateLimit       = 300
	apiRateLimitWindow = time.Minute
)

// Resources holds all resources that need cleanup
type Resources struct {
	container      *container.Container
	visitorService service.VisitorService
	janitor        *service.CacheJanitor
	server         *http.Server
	log            *logger.Logger
	mu             sync.Mutex
	closed         bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Stop visitor service (flushes buffered events)
	if r.visitorService != nil {
		r.log.Info("Stopping visitor service...")
		if err := r.visitorService.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop visitor service")
			errs = append(errs, fmt.Errorf("visitor service shutdown: %w", err))
		} else {
			r.log.Info("Visitor service stopped successfully")
		}
	}

	if r.janitor != nil {
		r.janitor.Stop(ctx)
	}

	// GeoIP, Redis and the database
	if r.container != nil {
		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := r.container.DB.Health(healthCtx); err != nil {
			r.log.WithError(err).Warn("Database health check failed before closing")
		}
		healthCancel()

		if err := r.container.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close resources")
			errs = append(errs, err)
		} else {
			r.log.Info("Database and Redis connections closed successfully")
		}
	}

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"feed_mode":   cfg.Feeds.Mode,
	}).Info("Starting site-analytics server")

	// Create dependency injection container
	ctx := context.Background()
	c, err := container.New(ctx, cfg, log, version)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	visitorService := c.Services.Visitor
	if err := visitorService.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start visitor service")
	}
	c.Janitor.Start()

	// Setup router
	router := setupRouter(c)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Create resources manager for cleanup
	resources := &Resources{
		container:      c,
		visitorService: visitorService,
		janitor:        c.Janitor,
		server:         server,
		log:            log,
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	// Setup cleanup function that will be called regardless of how the program exits
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	// Perform cleanup - this will be called here and also in defer for safety
	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()
	h := c.Handlers

	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5)) // Add gzip compression with level 5 (balanced)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(metrics.HTTPMiddleware(c.Metrics))

	// Health check (no auth required)
	r.Get("/health", h.Health.Check)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler(c.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins), log))
		r.Use(httprate.LimitByIP(apiRateLimit, apiRateLimitWindow))

		// Public routes
		h.Collect.RegisterRoutes(r)
		h.Feeds.RegisterRoutes(r)

		// Dashboard routes (HTTP Basic Auth)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.Admin.User, cfg.Admin.Password, log))
			h.Admin.RegisterRoutes(r)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, r, errors.NewNotFoundError("Endpoint not found"), log)
	})

	log.Info("Router configured successfully")
	return r
}
