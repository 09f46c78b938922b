package events

import (
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated      EventType = "request_created"
	EventRequestTransitioned EventType = "request_transitioned"
	EventRequestDeleted      EventType = "request_deleted"
	EventLoginSucceeded      EventType = "login_succeeded"
	EventLoginFailed         EventType = "login_failed"
	EventLockoutTriggered    EventType = "lockout_triggered"
	EventTokenRevoked        EventType = "token_revoked"
)

// Track names the approval stage a transition belongs to.
type Track string

const (
	TrackManager Track = "MANAGER"
	TrackHR      Track = "HR"
)

// Event represents a domain event emitted by services. RequestID is zero for
// session events.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID int64       `json:"request_id,omitempty"`
	ActorID   int64       `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	Department string           `json:"department"`
	Type       domain.LeaveType `json:"type"`
	StartDate  time.Time        `json:"start_date"`
	EndDate    time.Time        `json:"end_date"`
}

// RequestTransitionedPayload payload.
type RequestTransitionedPayload struct {
	Track     Track  `json:"track"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Remarks   string `json:"remarks,omitempty"`
}

// RequestDeletedPayload payload.
type RequestDeletedPayload struct {
	OwnerID    int64  `json:"owner_id"`
	Department string `json:"department"`
}

// LoginPayload payload for login outcomes.
type LoginPayload struct {
	Username string `json:"username"`
}

// LockoutPayload payload.
type LockoutPayload struct {
	Username string    `json:"username"`
	Until    time.Time `json:"until"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}
