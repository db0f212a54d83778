// Middleware for the scrape server: panic recovery, request IDs, access
// logging and response headers.

package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Recovery middleware with custom error handling
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := c.GetString(RequestIDKey)
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}

		logger.Error("Panic recovered",
			zap.String("request_id", requestID),
			zap.Any("error", recovered),
			zap.ByteString("stack", debug.Stack()),
		)

		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "Internal server error",
			Code:      "INTERNAL_SERVER_ERROR",
			Timestamp: time.Now().UTC(),
			RequestID: requestID,
		})
	})
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		c.Header("X-Request-ID", requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}

// Logger logs one line per request. Scrapes are logged at debug, everything
// else at info.
func Logger(logger *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(RequestIDKey)),
		}
		if quiet[c.Request.URL.Path] {
			logger.Debug("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}

// Security middleware adds security headers
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		c.Header("Referrer-Policy", "no-referrer")

		c.Next()
	}
}

func generateRequestID() string {
	return uuid.NewString()
}
