package domain

import "time"

// User is the domain model for employees.
//
// Role flags are independent booleans: a user may hold Manager and HR at the
// same time, and every permission rule evaluates the flags separately.
type User struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	IsAdmin      bool
	IsManager    bool
	IsHR         bool
	Department   string

	FailedLogins int
	IsLocked     bool
	LockoutEnd   *time.Time

	RefreshToken        *string
	RefreshTokenExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockActive reports whether the account lockout is still in force at the
// given instant. A lock whose window has elapsed is treated as cleared even
// if the flag has not been written back yet.
func (u *User) LockActive(now time.Time) bool {
	return u.IsLocked && u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// HasActiveRefreshToken reports whether a refresh token is on record and
// unexpired at the given instant.
func (u *User) HasActiveRefreshToken(now time.Time) bool {
	return u.RefreshToken != nil && u.RefreshTokenExpires != nil && now.Before(*u.RefreshTokenExpires)
}
