package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lifehub/reminder-engine/pkg/auth"
)

const ContextServiceName = "service_name"

type AuthMiddleware struct {
	tokens *auth.TokenService
}

func NewAuthMiddleware(tokens *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the caller's service token and stores the
// calling service name in the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextServiceName, claims.Service)
		c.Next()
	}
}
