package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leave-service/internal/domain"
)

// LoginState is the post-update snapshot of a user's failed-login accounting.
type LoginState struct {
	FailedLogins int
	IsLocked     bool
	LockoutEnd   *time.Time
}

// UserRepository defines persistence access for employees and their
// authentication fields. Counter increments and refresh rotation are single
// conditional statements so concurrent logins and refreshes cannot interleave.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	// RecordFailedLogin atomically increments the failed-login counter and,
	// when the counter crosses threshold, sets the lock flag and lockout end.
	RecordFailedLogin(ctx context.Context, id int64, threshold int, lockoutEnd time.Time) (*LoginState, error)

	// SaveLoginSuccess resets the failure counter, clears any lock, and stores
	// the fresh refresh token in one statement.
	SaveLoginSuccess(ctx context.Context, id int64, refreshToken string, refreshExpires time.Time) error

	// RotateRefreshToken replaces the stored refresh token only if it still
	// equals current. Returns false when the conditional update lost.
	RotateRefreshToken(ctx context.Context, id int64, current, next string, expires time.Time) (bool, error)

	ClearRefreshToken(ctx context.Context, id int64) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, full_name, password_hash, is_admin, is_manager, is_hr, department,
               failed_logins, is_locked, lockout_end, refresh_token, refresh_token_expires,
               created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, full_name, password_hash, is_admin, is_manager, is_hr, department)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Username,
		user.FullName,
		user.PasswordHash,
		user.IsAdmin,
		user.IsManager,
		user.IsHR,
		user.Department,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsManager,
		&user.IsHR,
		&user.Department,
		&user.FailedLogins,
		&user.IsLocked,
		&user.LockoutEnd,
		&user.RefreshToken,
		&user.RefreshTokenExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	const query = `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, hash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) RecordFailedLogin(ctx context.Context, id int64, threshold int, lockoutEnd time.Time) (*LoginState, error) {
	const query = `
        UPDATE users SET
            failed_logins = failed_logins + 1,
            is_locked = failed_logins + 1 >= $2,
            lockout_end = CASE WHEN failed_logins + 1 >= $2 THEN $3 ELSE lockout_end END,
            updated_at = NOW()
        WHERE id=$1
        RETURNING failed_logins, is_locked, lockout_end`

	var state LoginState
	if err := r.pool.QueryRow(ctx, query, id, threshold, lockoutEnd).Scan(
		&state.FailedLogins,
		&state.IsLocked,
		&state.LockoutEnd,
	); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *userRepository) SaveLoginSuccess(ctx context.Context, id int64, refreshToken string, refreshExpires time.Time) error {
	const query = `
        UPDATE users SET
            failed_logins = 0,
            is_locked = FALSE,
            lockout_end = NULL,
            refresh_token = $2,
            refresh_token_expires = $3,
            updated_at = NOW()
        WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id, refreshToken, refreshExpires)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) RotateRefreshToken(ctx context.Context, id int64, current, next string, expires time.Time) (bool, error) {
	const query = `
        UPDATE users SET refresh_token=$3, refresh_token_expires=$4, updated_at=NOW()
        WHERE id=$1 AND refresh_token=$2`

	cmd, err := r.pool.Exec(ctx, query, id, current, next, expires)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *userRepository) ClearRefreshToken(ctx context.Context, id int64) error {
	const query = `
        UPDATE users SET refresh_token=NULL, refresh_token_expires=NULL, updated_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
