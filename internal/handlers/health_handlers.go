package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"billbook/internal/caching"
	"billbook/internal/services"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        Pinger
	cache     caching.CacheService
	storage   services.StorageService
	bucket    string
	version   string
	startedAt time.Time
}

// NewHealthHandlers creates a new health handlers instance. bucket is probed to check storage.
func NewHealthHandlers(db Pinger, cache caching.CacheService, storage services.StorageService, bucket, version string) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		cache:     cache,
		storage:   storage,
		bucket:    bucket,
		version:   version,
		startedAt: time.Now(),
	}
}

func (h *HealthHandlers) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.LivenessCheck)
	e.GET("/health/ready", h.ReadinessCheck)
	e.GET("/health/detailed", h.DetailedHealthCheck)
}

// CheckResult is the outcome of probing one dependency.
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

type HealthStatus struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Goroutines int                    `json:"goroutines"`
	Checks     map[string]CheckResult `json:"checks"`
}

func probe(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	result := CheckResult{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
	}
	return result
}

func (h *HealthHandlers) checkDatabase(ctx context.Context) CheckResult {
	return probe(ctx, h.db.Ping)
}

func (h *HealthHandlers) checkRedis(ctx context.Context) CheckResult {
	return probe(ctx, h.cache.Ping)
}

func (h *HealthHandlers) checkStorage(ctx context.Context) CheckResult {
	return probe(ctx, func(ctx context.Context) error {
		_, err := h.storage.BucketExists(ctx, h.bucket)
		return err
	})
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck reports ready only when the database and cache respond.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx := c.Request().Context()
	if h.checkDatabase(ctx).Status != "healthy" || h.checkRedis(ctx).Status != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Critical services unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// DetailedHealthCheck probes every dependency and answers 206 when any of them is down.
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    h.version,
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Checks: map[string]CheckResult{
			"database": h.checkDatabase(ctx),
			"redis":    h.checkRedis(ctx),
			"storage":  h.checkStorage(ctx),
		},
	}

	statusCode := http.StatusOK
	for _, check := range health.Checks {
		if check.Status != "healthy" {
			health.Status = "degraded"
			statusCode = http.StatusPartialContent
		}
	}
	return c.JSON(statusCode, health)
}
