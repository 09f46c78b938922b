package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/leave-service/internal/authz"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
	apperrors "github.com/spec-kit/leave-service/pkg/util"
)

const principalKey = "auth_principal"

// Authenticator validates an access token end to end, including the
// revocation check. Satisfied by session.Manager.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*Claims, error)
}

// Principal represents the authenticated caller.
type Principal struct {
	User   *domain.User
	Claims *Claims
	Token  string
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	sessions Authenticator
	users    repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions Authenticator, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.sessions.Authenticate(c.UserContext(), parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user, Claims: claims, Token: parts[1]})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// RequireAdmin restricts a route to administrators.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.IsAdmin {
			return apperrors.NewForbidden("administrator required")
		}
		return c.Next()
	}
}

// RequireApprover restricts a route to callers who decide requests:
// managers, HR staff or administrators.
func RequireApprover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !authz.CanManageRequests(principal.User) {
			return apperrors.NewForbidden("approver role required")
		}
		return c.Next()
	}
}
