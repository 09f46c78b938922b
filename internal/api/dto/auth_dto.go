package dto

import "time"

// RegisterRequest payload for admin account provisioning.
type RegisterRequest struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Password   string `json:"password"`
	Department string `json:"department"`
	IsAdmin    bool   `json:"is_admin"`
	IsManager  bool   `json:"is_manager"`
	IsHR       bool   `json:"is_hr"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest carries the expired access token alongside the refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// TokenPairResponse returned on login and refresh.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// UserResponse describes an account without credential material.
type UserResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Department string    `json:"department"`
	IsAdmin    bool      `json:"is_admin"`
	IsManager  bool      `json:"is_manager"`
	IsHR       bool      `json:"is_hr"`
	CreatedAt  time.Time `json:"created_at"`
}

// LoginResponse bundles the account and its session tokens.
type LoginResponse struct {
	User   UserResponse      `json:"user"`
	Tokens TokenPairResponse `json:"tokens"`
}
