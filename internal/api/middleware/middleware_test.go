package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ens-relayer/relayer_service/pkg/logger"
)

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", okHandler)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = serve(router, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	w = serve(router, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestInputValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(InputValidation())
	router.POST("/", okHandler)

	tests := []struct {
		name        string
		contentType string
		userAgent   string
		wantStatus  int
	}{
		{"json", "application/json; charset=utf-8", "", http.StatusOK},
		{"no content type", "", "", http.StatusOK},
		{"form", "application/x-www-form-urlencoded", "", http.StatusUnsupportedMediaType},
		{"long user agent", "application/json", strings.Repeat("a", 501), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			assert.Equal(t, tt.wantStatus, serve(router, req).Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(logger.NewLogger(zap.NewNop())))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name            string
		allowed         []string
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{"listed origin", []string{"https://app.example"}, "https://app.example", "https://app.example", "true"},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", "", ""},
		{"wildcard", []string{"*"}, "https://any.example", "https://any.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORS(tt.allowed))
			router.GET("/", okHandler)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			w := serve(router, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}

	router := gin.New()
	router.Use(CORS([]string{"*"}))
	router.POST("/", okHandler)
	w := serve(router, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
}

func TestIPRateLimiter_BlocksExcessRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(3)
	defer limiter.Stop()

	router := gin.New()
	router.Use(RateLimit(limiter))
	router.POST("/api/set-reverse", okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/set-reverse", nil)
		req.RemoteAddr = ip + ":12345"
		return serve(router, req).Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("192.168.1.1"), "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1"))

	// separate bucket per IP
	assert.Equal(t, http.StatusOK, send("192.168.1.2"))
	assert.Equal(t, 2, limiter.Size())
}

func TestIPRateLimiter_ZeroRequestsPerMinute(t *testing.T) {
	limiter := NewIPRateLimiter(0)
	defer limiter.Stop()
	assert.Equal(t, 1, limiter.burst)

	// Stop is idempotent
	limiter.Stop()
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	limiter := NewIPRateLimiterWithTTL(10, 100*time.Millisecond)
	defer limiter.Stop()

	limiter.getLimiter("10.0.0.1")
	limiter.getLimiter("10.0.0.2")
	assert.Equal(t, 2, limiter.Size())

	limiter.cleanup(time.Now())
	assert.Equal(t, 2, limiter.Size())

	limiter.cleanup(time.Now().Add(time.Second))
	assert.Equal(t, 0, limiter.Size())
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeaders(), MetricsMiddleware())
	router.GET("/", okHandler)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
