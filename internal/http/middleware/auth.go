// README: Bearer-token auth middleware backed by the Firebase verifier.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridepool/internal/infra"
)

const (
	ContextUID    = "auth_uid"
	ContextClaims = "auth_claims"
)

// Auth verifies the Authorization bearer token and stores the caller identity
// on the request context. Handlers do their own ownership/role checks.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextUID, token.UID)
		c.Set(ContextClaims, token.Claims)
		c.Next()
	}
}

// UID returns the authenticated caller's id, empty when unauthenticated.
func UID(c *gin.Context) string {
	v, _ := c.Get(ContextUID)
	uid, _ := v.(string)
	return uid
}

// HasRole reports whether the verified token carries the given role claim.
func HasRole(c *gin.Context, role string) bool {
	v, _ := c.Get(ContextClaims)
	claims, _ := v.(map[string]interface{})
	if claims == nil {
		return false
	}
	got, _ := claims["role"].(string)
	return got == role
}
