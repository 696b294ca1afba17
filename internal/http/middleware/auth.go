// README: Firebase bearer-token auth middleware.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rally/internal/infra"
)

const (
	ctxKeyUID  = "auth_uid"
	ctxKeyRole = "auth_role"
)

// Auth verifies the Authorization bearer token and stores the caller's UID
// and role claim on the request context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxKeyUID, token.UID)
		if role, ok := token.Claims["role"].(string); ok {
			c.Set(ctxKeyRole, role)
		}
		c.Next()
	}
}

// CallerUID returns the authenticated caller's UID, or "" when unauthenticated.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxKeyUID)
}

// CallerRole returns the caller's role claim, or "" when absent.
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxKeyRole)
}
