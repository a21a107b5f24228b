package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ens-relayer/relayer_service/pkg/health"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	livenessChecker  *health.HealthChecker
	readinessChecker *health.HealthChecker
	logger           *zap.Logger
	version          string
	startTime        time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	livenessChecker *health.HealthChecker,
	readinessChecker *health.HealthChecker,
	logger *zap.Logger,
	version string,
) *HealthHandler {
	return &HealthHandler{
		livenessChecker:  livenessChecker,
		readinessChecker: readinessChecker,
		logger:           logger,
		version:          version,
		startTime:        time.Now(),
	}
}

func (h *HealthHandler) respond(c *gin.Context, checker *health.HealthChecker) health.Status {
	status, checks := checker.Check(c.Request.Context())

	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
	return status
}

// Liveness handles the liveness probe
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} health.HealthResponse
// @Failure 503 {object} health.HealthResponse
// @Router /health/liveness [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	status := h.respond(c, h.livenessChecker)
	h.logger.Debug("Liveness check", zap.String("status", string(status)))
}

// Readiness handles the readiness probe. Degraded still answers 200.
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} health.HealthResponse
// @Failure 503 {object} health.HealthResponse
// @Router /health/readiness [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	status := h.respond(c, h.readinessChecker)
	if status != health.StatusHealthy {
		h.logger.Warn("Readiness check not healthy", zap.String("status", string(status)))
	}
}

// Health is the general endpoint and runs the readiness probes
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	h.respond(c, h.readinessChecker)
}

// Ping handles simple ping endpoint (no checks, always returns 200)
// @Router /ping [get]
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().Unix(),
		"version": h.version,
	})
}

// Metrics exposes Prometheus metrics
func Metrics() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
