package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wanderly/pushgate/internal/errors"
)

// APIKeyMiddleware guards the API routes with a static shared secret.
// Callers present it as a bearer token, the way the backend's serverless
// functions are invoked with a service credential.
type APIKeyMiddleware struct {
	apiKey string
}

func NewAPIKeyMiddleware(apiKey string) *APIKeyMiddleware {
	return &APIKeyMiddleware{apiKey: apiKey}
}

// RequireAuth validates the Authorization header against the configured key.
// With no key configured the middleware passes everything through.
func (m *APIKeyMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKey == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errors.AbortWithUnauthorized(c, "Authorization header is required", nil)
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			errors.AbortWithUnauthorized(c, "Authorization header must be a Bearer token", nil)
			return
		}

		presented := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(m.apiKey)) != 1 {
			errors.AbortWithUnauthorized(c, "Invalid service credential", nil)
			return
		}

		c.Next()
	}
}
