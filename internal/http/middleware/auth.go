// README: JWT bearer auth with role claims.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"courier/internal/types"
)

const (
	RoleAdmin  = "admin"
	RoleAgent  = "agent"
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

const (
	ctxUserID = "auth.userID"
	ctxRole   = "auth.role"
)

// AuthGuard validates the HS256 bearer token and, when roles are given,
// requires the token's role claim to be one of them.
func AuthGuard(secret string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if sub == "" || role == "" {
			abortUnauthorized(c, "invalid claims")
			return
		}
		if len(roles) > 0 && !contains(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": "FORBIDDEN", "message": "insufficient role",
			})
			return
		}

		c.Set(ctxUserID, types.ID(sub))
		c.Set(ctxRole, role)
		c.Next()
	}
}

// UserID returns the authenticated caller's typed id.
func UserID(c *gin.Context) types.ID {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(types.ID); ok {
			return id
		}
	}
	return ""
}

func Role(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": "UNAUTHORIZED", "message": msg,
	})
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
