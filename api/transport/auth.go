package transport

import (
	"net/http"
	"strings"

	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

// AuthMiddleware requires a valid bearer token and stores its claims on the
// request context.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access denied. No token provided"})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			logging.Log.Warnf("AUTH: rejected token on %s: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...storage.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := RoleOf(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		logging.Log.Warnf("AUTH: role %q denied on %s", role, c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized. Insufficient role for this action"})
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func RoleOf(c *gin.Context) storage.Role {
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(storage.Role); ok {
			return role
		}
	}
	return ""
}
