package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"timekeeper/internal/apperr"
	"timekeeper/internal/auth"
)

// userIDKey is the gin context key the auth middleware stores the resolved
// user id under.
const userIDKey = "timekeeper_user_id"

// UserID returns the authenticated user id set by Auth, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// Auth extracts a bearer token from the Authorization header, resolves the
// user id, and stores it in the gin context. Requests without a resolvable
// identity are rejected with 401 before any handler runs.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
				"code":  apperr.CodeUnauthenticated,
			})
			return
		}
		userID, err := verifier.UserID(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid bearer token",
				"code":  apperr.CodeUnauthenticated,
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequestLogger provides basic request logging.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("remote", c.ClientIP()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}
