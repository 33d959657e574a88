package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/segmentio/ksuid"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/logger"
)

// requestIDHeader is the header a caller's correlation id arrives on, and
// the header every response echoes one back on.
const requestIDHeader = "X-Request-Id"

// RequestID assigns a ksuid-based correlation id to every request (reusing
// a caller-supplied one if present), attaches it to the logger in context,
// and echoes it back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		log := logger.FromContext(c.Request.Context()).With("request_id", id)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
		c.Next()
	}
}

// userIDContextKey is the gin context key the authenticated subject claim
// is stored under.
const userIDContextKey = "workflows.user_id"

// JWTAuth builds a gin middleware that validates the bearer token's HMAC
// signature and expiry. Role authorization is an external collaborator
// (spec.md §1 Non-goals) and is never performed here.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())
		header := c.GetHeader("Authorization")
		if header == "" {
			log.Debug("missing Authorization header")
			RespondError(c, apperrors.Auth("missing Authorization header", nil))
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			RespondError(c, apperrors.Auth("Authorization header must be 'Bearer <token>'", nil))
			c.Abort()
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperrors.Auth("unexpected signing method", nil)
			}
			return secret, nil
		})
		if err != nil {
			log.Debug("jwt validation failed", "error", err)
			RespondError(c, apperrors.Auth("invalid or expired token", err))
			c.Abort()
			return
		}
		if sub, ok := claims["sub"].(string); ok {
			c.Set(userIDContextKey, sub)
		}
		c.Next()
	}
}

// UserID returns the authenticated subject claim, or "" if absent.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDContextKey)
	s, _ := v.(string)
	return s
}
