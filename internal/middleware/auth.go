package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/pkg/jwt"
	"github.com/komuness/core/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "user_role"
)

// Auth returns a middleware that enforces bearer JWT authentication.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ValidateToken(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the identity if a valid token is present, but does not block the request.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := ValidateToken(extractToken(c)); err == nil {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// RequireAdmin must run after Auth. It rejects non-moderator roles.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			response.Unauthorized(c)
			return
		}
		if !CurrentRole(c).IsAdmin() {
			response.ForbiddenMsg(c, "Acceso denegado: se requieren permisos de administrador")
			return
		}
		c.Next()
	}
}

// ValidateToken validates a raw JWT and returns its claims.
func ValidateToken(rawToken string) (*jwt.Claims, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, errors.New("token is required")
	}
	return jwt.Parse(token)
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyRole, claims.Role)
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentRole returns the authenticated role, or RoleBasic when unknown.
func CurrentRole(c *gin.Context) jwt.Role {
	v, ok := c.Get(ContextKeyRole)
	if !ok {
		return jwt.RoleBasic
	}
	role, ok := v.(jwt.Role)
	if !ok {
		return jwt.RoleBasic
	}
	return role
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

// IsAdmin reports whether the authenticated caller may moderate.
func IsAdmin(c *gin.Context) bool {
	return IsAuthenticated(c) && CurrentRole(c).IsAdmin()
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
