package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/careloop/patient-api/internal/handler"
	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/pkg/auth"
)

// Context keys for the authenticated actor.
const (
	ContextActorID   = "actor_id"
	ContextActorRole = "actor_role"
)

// TokenValidator validates an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	authService TokenValidator
}

func NewAuthMiddleware(authService TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate verifies the bearer token and sets actor identity and role
// in the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		role := model.Role(claims.Role)
		if !role.Valid() {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown role"))
			c.Abort()
			return
		}

		c.Set(ContextActorID, claims.UserID)
		c.Set(ContextActorRole, role)
		c.Next()
	}
}

// RequirePermission gates an endpoint on the role permission table.
func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := ActorRole(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor role"))
			c.Abort()
			return
		}

		if !role.HasPermission(permission) {
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("role not permitted for this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// ActorID extracts the authenticated actor's id from the gin context.
func ActorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextActorID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// ActorRole extracts the authenticated actor's role from the gin context.
func ActorRole(c *gin.Context) (model.Role, bool) {
	v, ok := c.Get(ContextActorRole)
	if !ok {
		return "", false
	}
	role, ok := v.(model.Role)
	return role, ok
}
