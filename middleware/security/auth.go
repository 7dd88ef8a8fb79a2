package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Mehdi856/Chat-Project/tools/errs"
	jwtlib "github.com/Mehdi856/Chat-Project/tools/security"
)

// Context key handlers read the authenticated user id from.
const CtxUserIDKey = "user_id"

// Middleware parses "Authorization: Bearer <token>" and rejects requests
// without a verifiable token.
func Middleware(opts jwtlib.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrTokenInvalid.Msg})
			return
		}
		claims, err := jwtlib.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrTokenInvalid.Msg})
			return
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// UserID reads the id the middleware stored, empty if unauthenticated.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
