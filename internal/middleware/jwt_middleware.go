package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// JWTMiddleware authenticates marketplace users by bearer token.
type JWTMiddleware struct {
	issuer  *utils.JWTIssuer
	limiter Limiter
}

// NewJWTMiddleware constructs a JWTMiddleware. limiter throttles failed
// attempts per IP and may be nil.
func NewJWTMiddleware(issuer *utils.JWTIssuer, limiter Limiter) *JWTMiddleware {
	return &JWTMiddleware{issuer: issuer, limiter: limiter}
}

func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// EventSource cannot set headers.
			if t := c.Query("access_token"); t != "" {
				authHeader = "Bearer " + t
			}
		}
		if authHeader == "" {
			m.handleAuthError(c, "UNAUTHORIZED", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.handleAuthError(c, "UNAUTHORIZED", "Invalid authorization header")
			return
		}

		claims, err := m.issuer.Validate(parts[1])
		if err != nil {
			m.handleAuthError(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", models.Role(claims.Role))
		c.Set("phone", claims.Phone)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, code, message string) {
	if m.limiter != nil {
		allowed, _, err := m.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err == nil && !allowed {
			utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
			c.Abort()
			return
		}
	}
	utils.Error(c, 401, code, message)
	c.Abort()
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		utils.Error(c, 403, "FORBIDDEN", "Not allowed to access this resource")
		c.Abort()
	}
}

// CurrentUserID returns the authenticated user ID, or 0.
func CurrentUserID(c *gin.Context) int {
	return c.GetInt("user_id")
}

// CurrentRole returns the authenticated user's role.
func CurrentRole(c *gin.Context) models.Role {
	v, _ := c.Get("role")
	role, _ := v.(models.Role)
	return role
}
