package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ServiceKeyHeader carries the booking subsystem's key on /internal endpoints.
const ServiceKeyHeader = "X-Relay-Service-Key"

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServiceKeyMiddleware guards the internal ops surface. The configured
// value is a bcrypt hash so the plaintext key never lives in config;
// an empty hash disables the surface entirely.
func ServiceKeyMiddleware(keyHash string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
			c.Abort()
			return
		}

		key := c.GetHeader(ServiceKeyHeader)
		if key == "" {
			logger.Debug().Msg("missing service key header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing service key"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			logger.Debug().Msg("invalid service key")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid service key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
