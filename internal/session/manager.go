// Package session owns the credential and token lifecycle: login with
// failed-attempt lockout, refresh rotation, logout with revocation, and the
// per-request Authenticate check. Every failure mode has its own error value
// so transport code can choose status and messaging without the engine
// knowing about HTTP.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/config"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/internal/revocation"
)

var (
	// ErrInvalidCredentials covers both unknown username and wrong password;
	// the two are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired — the access token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — the token was invalidated by logout or forced
	// revocation before its natural expiry.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrRefreshTokenMismatch — the presented refresh token does not match
	// the one on record, or the record has expired. Covers replay of a
	// rotated-out token and concurrent rotation races.
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch or expired")

	// ErrMalformedToken — the token is missing, unparseable, or carries a
	// bad signature.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUsernameTaken — registration collided with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)

// AccountLockedError reports a lockout still in force and how long remains.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d minute(s)", e.RemainingMinutes())
}

// RemainingMinutes returns the remaining window rounded up to whole minutes,
// always at least 1 while the lock holds.
func (e *AccountLockedError) RemainingMinutes() int {
	minutes := int((e.Remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Clock supplies the current time; injected so lockout and expiry logic is
// deterministically testable.
type Clock func() time.Time

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Manager orchestrates the session lifecycle over the user store, the token
// manager, and the revocation registry. It holds no per-request state and is
// safe for concurrent use.
type Manager struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	registry   *revocation.Registry
	dispatcher events.Dispatcher
	cfg        config.AuthConfig
	clock      Clock
	logger     *zap.Logger
}

// Dependencies encapsulates requirements for the session manager.
type Dependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Registry   *revocation.Registry
	Dispatcher events.Dispatcher
	Clock      Clock
	Logger     *zap.Logger
}

// NewManager builds the manager. A nil Clock defaults to time.Now.
func NewManager(cfg config.AuthConfig, deps Dependencies) *Manager {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
	}
}

// RegisterInput describes a user provisioning payload.
type RegisterInput struct {
	Username   string
	FullName   string
	Password   string
	Department string
	IsAdmin    bool
	IsManager  bool
	IsHR       bool
}

// Register provisions a new employee account.
func (m *Manager) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if _, err := m.users.GetByUsername(ctx, input.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, m.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     input.Username,
		FullName:     input.FullName,
		PasswordHash: hash,
		Department:   input.Department,
		IsAdmin:      input.IsAdmin,
		IsManager:    input.IsManager,
		IsHR:         input.IsHR,
	}
	if err := m.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates a user and issues a fresh access+refresh pair.
//
// Lockout is evaluated before password verification, consistently: a locked
// account answers AccountLockedError even to the correct password, and the
// failure counter is not advanced while the lock holds.
func (m *Manager) Login(ctx context.Context, username, password string) (*domain.User, TokenPair, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}

	now := m.clock()
	if user.LockActive(now) {
		return nil, TokenPair{}, &AccountLockedError{Remaining: user.LockoutEnd.Sub(now)}
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, TokenPair{}, m.recordFailure(ctx, user, now)
	}

	pair, err := m.issuePair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := m.users.SaveLoginSuccess(ctx, user.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return nil, TokenPair{}, err
	}

	m.publish(ctx, events.Event{
		Type:    events.EventLoginSucceeded,
		ActorID: user.ID,
		Payload: events.LoginPayload{Username: user.Username},
	})
	return user, pair, nil
}

// Refresh validates the presented pair and rotates the refresh token. The old
// refresh token becomes unusable immediately; the old access token is left to
// expire on its own.
func (m *Manager) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	if accessToken == "" || refreshToken == "" {
		return TokenPair{}, ErrMalformedToken
	}

	// The access token is usually expired by now; only its signature and
	// identity matter here.
	claims, err := m.tokens.ParseAccessTokenAllowExpired(accessToken)
	if err != nil {
		return TokenPair{}, ErrMalformedToken
	}

	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrRefreshTokenMismatch
		}
		return TokenPair{}, err
	}

	now := m.clock()
	if !user.HasActiveRefreshToken(now) || *user.RefreshToken != refreshToken {
		return TokenPair{}, ErrRefreshTokenMismatch
	}

	pair, err := m.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}

	rotated, err := m.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken, pair.RefreshExpiresAt)
	if err != nil {
		return TokenPair{}, err
	}
	if !rotated {
		// A concurrent refresh won the conditional update; this caller's
		// token is stale.
		return TokenPair{}, ErrRefreshTokenMismatch
	}
	return pair, nil
}

// Logout clears the stored refresh token and places the access token's jti on
// the revocation denylist for the remainder of its natural life.
func (m *Manager) Logout(ctx context.Context, accessToken string) error {
	claims, err := m.tokens.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrMalformedToken
	}

	if err := m.users.ClearRefreshToken(ctx, claims.UserID); err != nil {
		return err
	}
	return m.revoke(ctx, claims)
}

// Authenticate is called on every protected action: signature and expiry are
// verified locally, then the shared revocation registry is consulted so a
// logout issued against any instance is honored here.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := m.tokens.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrMalformedToken
	}

	revoked, err := m.registry.IsRevoked(ctx, claims.JTI())
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// terminates the session: the refresh token is cleared and the current access
// token revoked, forcing a fresh login.
func (m *Manager) ChangePassword(ctx context.Context, claims *auth.Claims, currentPassword, newPassword string) error {
	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword, m.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := m.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := m.users.ClearRefreshToken(ctx, user.ID); err != nil {
		return err
	}
	return m.revoke(ctx, claims)
}

func (m *Manager) recordFailure(ctx context.Context, user *domain.User, now time.Time) error {
	state, err := m.users.RecordFailedLogin(ctx, user.ID, m.cfg.MaxFailedLogins, now.Add(m.cfg.LockoutDuration()))
	if err != nil {
		return err
	}

	m.publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		ActorID: user.ID,
		Payload: events.LoginPayload{Username: user.Username},
	})

	if state.IsLocked && state.LockoutEnd != nil {
		m.logger.Warn("account locked after repeated failures",
			zap.String("username", user.Username),
			zap.Int("failed_logins", state.FailedLogins))
		m.publish(ctx, events.Event{
			Type:    events.EventLockoutTriggered,
			ActorID: user.ID,
			Payload: events.LockoutPayload{Username: user.Username, Until: *state.LockoutEnd},
		})
		return &AccountLockedError{Remaining: state.LockoutEnd.Sub(now)}
	}
	return ErrInvalidCredentials
}

func (m *Manager) issuePair(user *domain.User) (TokenPair, error) {
	roles := auth.RoleClaims{IsAdmin: user.IsAdmin, IsManager: user.IsManager, IsHR: user.IsHR}
	accessToken, _, accessExp, err := m.tokens.IssueAccessToken(user.ID, roles)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, refreshExp := m.tokens.IssueRefreshToken()
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) revoke(ctx context.Context, claims *auth.Claims) error {
	token := domain.RevokedToken{
		JTI:       claims.JTI(),
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
		RevokedAt: m.clock(),
	}
	if err := m.registry.Revoke(ctx, token); err != nil {
		return err
	}
	m.publish(ctx, events.Event{
		Type:    events.EventTokenRevoked,
		ActorID: claims.UserID,
		Payload: events.TokenRevokedPayload{JTI: token.JTI, ExpiresAt: token.ExpiresAt},
	})
	return nil
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.clock()
	}
	_ = m.dispatcher.Publish(ctx, event)
}
