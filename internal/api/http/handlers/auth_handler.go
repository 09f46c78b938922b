package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/dto"
	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/observability"
	"github.com/spec-kit/leave-service/internal/session"
	apperrors "github.com/spec-kit/leave-service/pkg/util"
)

// AuthHandler manages account and session endpoints.
type AuthHandler struct {
	sessions *session.Manager
	metrics  *observability.Metrics
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *session.Manager, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{sessions: sessions, metrics: metrics}
}

// Register POST /auth/register. Admin only; accounts are provisioned, not
// self-service.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username, password required", nil)
	}

	user, err := h.sessions.Register(c.UserContext(), session.RegisterInput{
		Username:   strings.TrimSpace(req.Username),
		FullName:   strings.TrimSpace(req.FullName),
		Password:   req.Password,
		Department: strings.TrimSpace(req.Department),
		IsAdmin:    req.IsAdmin,
		IsManager:  req.IsManager,
		IsHR:       req.IsHR,
	})
	if err != nil {
		return mapCoreError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username, password required", nil)
	}

	user, pair, err := h.sessions.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		var locked *session.AccountLockedError
		if errors.As(err, &locked) {
			h.metrics.RecordAuthEvent("lockout")
		} else {
			h.metrics.RecordAuthEvent("login_failure")
		}
		return mapCoreError(err)
	}
	h.metrics.RecordAuthEvent("login_success")
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		User:   userResponse(user),
		Tokens: tokenPairResponse(pair),
	}})
}

// Refresh POST /auth/refresh. Rotates the refresh token: the presented one is
// consumed whether or not the caller ever uses the new pair.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	pair, err := h.sessions.Refresh(c.UserContext(), req.AccessToken, req.RefreshToken)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": tokenPairResponse(pair)})
}

// Logout POST /auth/logout. Revokes the presented access token and clears the
// stored refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.sessions.Logout(c.UserContext(), principal.Token); err != nil {
		return mapCoreError(err)
	}
	h.metrics.RecordAuthEvent("token_revoked")
	return c.JSON(fiber.Map{"data": fiber.Map{"logged_out": true}})
}

// ChangePassword POST /auth/password/change. Ends the current session: the
// access token is revoked and the refresh token cleared.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current_password, new_password required", nil)
	}

	if err := h.sessions.ChangePassword(c.UserContext(), principal.Claims, req.CurrentPassword, req.NewPassword); err != nil {
		return mapCoreError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		Department: user.Department,
		IsAdmin:    user.IsAdmin,
		IsManager:  user.IsManager,
		IsHR:       user.IsHR,
		CreatedAt:  user.CreatedAt,
	}
}

func tokenPairResponse(pair session.TokenPair) dto.TokenPairResponse {
	return dto.TokenPairResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
