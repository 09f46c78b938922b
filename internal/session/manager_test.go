package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/config"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/internal/revocation"
)

type fakeUserRepo struct {
	users  map[int64]*domain.User
	byName map[string]int64
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*domain.User{}, byName: map[string]int64{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users[user.ID] = &copied
	r.byName[user.Username] = user.ID
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	id, ok := r.byName[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(context.Background(), id)
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) RecordFailedLogin(_ context.Context, id int64, threshold int, lockoutEnd time.Time) (*repository.LoginState, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.FailedLogins++
	if user.FailedLogins >= threshold {
		user.IsLocked = true
		end := lockoutEnd
		user.LockoutEnd = &end
	}
	return &repository.LoginState{
		FailedLogins: user.FailedLogins,
		IsLocked:     user.IsLocked,
		LockoutEnd:   user.LockoutEnd,
	}, nil
}

func (r *fakeUserRepo) SaveLoginSuccess(_ context.Context, id int64, refreshToken string, refreshExpires time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.FailedLogins = 0
	user.IsLocked = false
	user.LockoutEnd = nil
	user.RefreshToken = &refreshToken
	user.RefreshTokenExpires = &refreshExpires
	return nil
}

func (r *fakeUserRepo) RotateRefreshToken(_ context.Context, id int64, current, next string, expires time.Time) (bool, error) {
	user, ok := r.users[id]
	if !ok {
		return false, nil
	}
	if user.RefreshToken == nil || *user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = &next
	user.RefreshTokenExpires = &expires
	return true, nil
}

func (r *fakeUserRepo) ClearRefreshToken(_ context.Context, id int64) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.RefreshToken = nil
	user.RefreshTokenExpires = nil
	return nil
}

type memoryRevokedStore struct {
	tokens map[string]domain.RevokedToken
}

func (s *memoryRevokedStore) Insert(_ context.Context, token *domain.RevokedToken) error {
	s.tokens[token.JTI] = *token
	return nil
}

func (s *memoryRevokedStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	token, ok := s.tokens[jti]
	return ok && token.ExpiresAt.After(time.Now()), nil
}

func (s *memoryRevokedStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type managerFixture struct {
	manager *Manager
	users   *fakeUserRepo
	now     time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	cfg := config.AuthConfig{
		JWTSecret:              "test-secret",
		AccessTokenTTLMinutes:  15,
		RefreshTokenTTLHours:   1,
		MaxFailedLogins:        5,
		LockoutDurationMinutes: 15,
		BcryptCost:             bcrypt.MinCost,
	}

	users := newFakeUserRepo()
	store := &memoryRevokedStore{tokens: map[string]domain.RevokedToken{}}
	registry := revocation.NewRegistry(store, nil, time.Minute, zap.NewNop())
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	// The token manager stamps issued tokens with wall-clock time, so the
	// fixture clock starts there and tests advance it relatively.
	fixture := &managerFixture{users: users, now: time.Now()}

	fixture.manager = NewManager(cfg, Dependencies{
		UserRepo: users,
		Tokens:   tokens,
		Registry: registry,
		Clock:    func() time.Time { return fixture.now },
		Logger:   zap.NewNop(),
	})
	return fixture
}

func (f *managerFixture) seedUser(t *testing.T, username, password string) *domain.User {
	t.Helper()
	user, err := f.manager.Register(context.Background(), RegisterInput{
		Username:   username,
		FullName:   "Test User",
		Password:   password,
		Department: "IT-Support",
	})
	require.NoError(t, err)
	return user
}

func TestLoginUnknownUserFailsGenerically(t *testing.T) {
	f := newManagerFixture(t)

	_, _, err := f.manager.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongPasswordIncrementsCounter(t *testing.T) {
	f := newManagerFixture(t)
	user := f.seedUser(t, "alice", "correct horse")

	_, _, err := f.manager.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, f.users.users[user.ID].FailedLogins)
}

func TestLockoutAfterThresholdFailures(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _, err := f.manager.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Fifth failure crosses the threshold.
	_, _, err := f.manager.Login(ctx, "alice", "wrong")
	var locked *AccountLockedError
	require.ErrorAs(t, err, &locked)

	// Correct password is still rejected while the window holds.
	_, _, err = f.manager.Login(ctx, "alice", "correct horse")
	require.ErrorAs(t, err, &locked)
	assert.Positive(t, locked.RemainingMinutes())
}

func TestLockoutClearsOnceWindowElapses(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, _ = f.manager.Login(ctx, "alice", "wrong")
	}

	f.now = f.now.Add(16 * time.Minute)

	user, pair, err := f.manager.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, 0, f.users.users[user.ID].FailedLogins)
	assert.False(t, f.users.users[user.ID].IsLocked)
}

func TestLoginSuccessResetsCounterAndStoresRefreshToken(t *testing.T) {
	f := newManagerFixture(t)
	user := f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, _ = f.manager.Login(ctx, "alice", "wrong")
	}

	_, pair, err := f.manager.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	stored := f.users.users[user.ID]
	assert.Equal(t, 0, stored.FailedLogins)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *stored.RefreshToken)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	_, first, err := f.manager.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	second, err := f.manager.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Replaying the rotated-out refresh token always fails.
	_, err = f.manager.Refresh(ctx, first.AccessToken, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)

	// The new one keeps working.
	_, err = f.manager.Refresh(ctx, second.AccessToken, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsMissingOrMalformedTokens(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	_, pair, err := f.manager.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, "", pair.RefreshToken)
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = f.manager.Refresh(ctx, pair.AccessToken, "")
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = f.manager.Refresh(ctx, "garbage", pair.RefreshToken)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestRefreshRejectsExpiredStoredToken(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	_, pair, err := f.manager.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)

	_, err = f.manager.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestLogoutRevokesAccessTokenDespiteValidSignature(t *testing.T) {
	f := newManagerFixture(t)
	user := f.seedUser(t, "alice", "correct horse")

	ctx := context.Background()
	_, pair, err := f.manager.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	// Before logout the token authenticates fine.
	claims, err := f.manager.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	require.NoError(t, f.manager.Logout(ctx, pair.AccessToken))

	// Signature and expiry are still valid, but the jti is on the denylist.
	_, err = f.manager.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// The stored refresh token is gone too.
	assert.Nil(t, f.users.users[user.ID].RefreshToken)
	_, err = f.manager.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestAuthenticateRejectsMalformedToken(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestChangePasswordRequiresCurrentAndEndsSession(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "old password")

	ctx := context.Background()
	_, pair, err := f.manager.Login(ctx, "alice", "old password")
	require.NoError(t, err)

	claims, err := f.manager.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	err = f.manager.ChangePassword(ctx, claims, "wrong", "new password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.manager.ChangePassword(ctx, claims, "old password", "new password"))

	// Current token is revoked and the old password no longer works.
	_, err = f.manager.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, _, err = f.manager.Login(ctx, "alice", "old password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.manager.Login(ctx, "alice", "new password")
	assert.NoError(t, err)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUser(t, "alice", "password")

	_, err := f.manager.Register(context.Background(), RegisterInput{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestAccountLockedErrorRoundsUpRemainingMinutes(t *testing.T) {
	locked := &AccountLockedError{Remaining: 30 * time.Second}
	assert.Equal(t, 1, locked.RemainingMinutes())

	locked = &AccountLockedError{Remaining: 14*time.Minute + time.Second}
	assert.Equal(t, 15, locked.RemainingMinutes())

	var err error = locked
	assert.True(t, errors.As(err, &locked))
}
