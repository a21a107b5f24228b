package idempotency

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderReplayed marks a response served from the store
	HeaderReplayed = "Idempotent-Replayed"

	// MaxBodySize is the maximum request body size for idempotency (1MB)
	MaxBodySize = 1 << 20
)

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched.
func Middleware(store Store, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodDelete &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(HeaderIdempotencyKey)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		if err := ValidateKey(idempotencyKey); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid idempotency key",
				"code":    "INVALID_IDEMPOTENCY_KEY",
				"details": gin.H{"reason": err.Error()},
			})
			return
		}

		bodyBytes, err := ReadBody(c.Request.Body, MaxBodySize)
		if err != nil {
			logger.Warn("Failed to read request body",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Failed to read request body",
			})
			return
		}

		// Restore body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		requestHash := HashRequest(bodyBytes)
		storeKey := c.Request.Method + ":" + c.FullPath() + ":" + idempotencyKey

		existing, err := store.Get(c.Request.Context(), storeKey)
		if err != nil {
			logger.Error("Failed to check idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
			// On error, proceed with request (fail open)
			c.Next()
			return
		}

		if existing != nil {
			if ok, reason := ShouldReturnCached(existing, requestHash); !ok {
				logger.Warn("Idempotency key conflict",
					zap.String("idempotency_key", idempotencyKey),
					zap.String("reason", reason))
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
					"success": false,
					"error":   "Idempotency key conflict",
					"code":    "IDEMPOTENCY_KEY_REUSED",
					"details": gin.H{"reason": reason},
				})
				return
			}

			logger.Info("Returning cached response",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int("status", existing.ResponseStatus))
			c.Header(HeaderReplayed, "true")
			c.Data(existing.ResponseStatus, "application/json; charset=utf-8", existing.ResponseBody)
			c.Abort()
			return
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		if !Cacheable(writer.status) {
			return
		}

		record := &Record{
			Key:            storeKey,
			RequestPath:    c.Request.URL.Path,
			RequestMethod:  c.Request.Method,
			RequestHash:    requestHash,
			ResponseStatus: writer.status,
			ResponseBody:   writer.body.Bytes(),
			CreatedAt:      time.Now().UTC(),
		}

		// The client may have gone away during a slow broadcast; the result is still worth keeping.
		if err := store.Save(context.WithoutCancel(c.Request.Context()), record, ttl); err != nil {
			logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
		} else {
			logger.Debug("Stored idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int("status", writer.status))
		}
	}
}
