package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenExpired indicates the access token passed signature checks but its
// lifetime has elapsed.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenMalformed indicates the token could not be parsed or its signature
// did not verify.
var ErrTokenMalformed = errors.New("token malformed")

// TokenManager issues and validates JWT access tokens and opaque refresh tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// RoleClaims carries the caller's role flags inside the access token.
type RoleClaims struct {
	IsAdmin   bool `json:"adm"`
	IsManager bool `json:"mgr"`
	IsHR      bool `json:"hr"`
}

// Claims describes the JWT payload. The registered ID claim holds the jti
// used as the revocation key.
type Claims struct {
	UserID int64      `json:"uid"`
	Roles  RoleClaims `json:"roles"`
	jwt.RegisteredClaims
}

// JTI returns the token's unique identifier.
func (c *Claims) JTI() string {
	return c.RegisteredClaims.ID
}

// IssueAccessToken builds and signs a short-lived JWT for the user.
func (tm *TokenManager) IssueAccessToken(userID int64, roles RoleClaims) (token string, jti string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(tm.accessTTL)
	jti = uuid.NewString()

	claims := &Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, expiresAt, nil
}

// IssueRefreshToken generates an opaque refresh token and its expiry.
func (tm *TokenManager) IssueRefreshToken() (string, time.Time) {
	return uuid.NewString() + uuid.NewString(), time.Now().Add(tm.refreshTTL)
}

// ParseAccessToken validates signature and expiry and returns the claims.
func (tm *TokenManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	claims, err := tm.parse(tokenStr, false)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// ParseAccessTokenAllowExpired validates the signature but tolerates an
// elapsed lifetime. Used during refresh, where the access token is typically
// already expired but still identifies the session owner.
func (tm *TokenManager) ParseAccessTokenAllowExpired(tokenStr string) (*Claims, error) {
	claims, err := tm.parse(tokenStr, true)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (tm *TokenManager) parse(tokenStr string, allowExpired bool) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.JTI() == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
