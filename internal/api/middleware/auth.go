package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"listingpilot/backend/pkg/auth"
	"listingpilot/backend/pkg/response"
)

const OperatorKey = "operator"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		operator, ok := authenticate(c)
		if !ok {
			response.Unauthorized(c, "Missing or invalid token")
			c.Abort()
			return
		}
		c.Set(OperatorKey, operator)
		c.Next()
	}
}

// OptionalAuthMiddleware records the operator when a valid token is present
// and lets the request through either way. Handlers decide what needs it.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if operator, ok := authenticate(c); ok {
			c.Set(OperatorKey, operator)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		return "", false
	}
	return claims.Operator, true
}
