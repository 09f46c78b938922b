package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leave-service/internal/domain"
)

// RevokedTokenRepository manages the durable denylist of access tokens
// invalidated before their natural expiry. Reads ignore rows whose original
// expiry has passed; DeleteExpired removes them for good.
type RevokedTokenRepository interface {
	Insert(ctx context.Context, token *domain.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type revokedTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRevokedTokenRepository constructs repository.
func NewRevokedTokenRepository(pool *pgxpool.Pool) RevokedTokenRepository {
	return &revokedTokenRepository{pool: pool}
}

func (r *revokedTokenRepository) Insert(ctx context.Context, token *domain.RevokedToken) error {
	const query = `
        INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (jti) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		token.JTI,
		token.UserID,
		token.ExpiresAt,
		token.RevokedAt,
	)
	return err
}

func (r *revokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())`
	var revoked bool
	if err := r.pool.QueryRow(ctx, query, jti).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

func (r *revokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
