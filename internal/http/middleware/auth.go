package middleware

import (
	"net/http"
	"strings"

	"gocart/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey   = "userID"
	usernameKey = "username"
	roleKey     = "userRole"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(raw string) (domain.RequestContext, error)
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller identity on the context.
func AuthRequired(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		rc, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		c.Set(userIDKey, rc.UserID)
		c.Set(usernameKey, rc.Username)
		c.Set(roleKey, rc.Role)
		c.Next()
	}
}

// GetRequestContext returns the identity stored by AuthRequired.
func GetRequestContext(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		UserID:   c.GetInt64(userIDKey),
		Username: c.GetString(usernameKey),
		Role:     c.GetString(roleKey),
	}
}
