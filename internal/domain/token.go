package domain

import "time"

// RevokedToken records an access token invalidated before its natural expiry.
// An entry is meaningless once the wall clock passes ExpiresAt; the registry
// filters such rows on read and purges them in the background.
type RevokedToken struct {
	JTI       string
	UserID    int64
	ExpiresAt time.Time
	RevokedAt time.Time
}
