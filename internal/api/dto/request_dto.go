package dto

import (
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
)

// CreateLeaveRequest payload for both create and update.
type CreateLeaveRequest struct {
	Type      domain.LeaveType `json:"type"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	Reason    string           `json:"reason"`
}

// DecisionRequest payload for manager and HR decisions.
type DecisionRequest struct {
	Remarks string `json:"remarks"`
}

// LeaveRequestSummary response for list views.
type LeaveRequestSummary struct {
	ID         int64                `json:"id"`
	OwnerID    int64                `json:"owner_id"`
	Department string               `json:"department"`
	Type       domain.LeaveType     `json:"type"`
	StartDate  time.Time            `json:"start_date"`
	EndDate    time.Time            `json:"end_date"`
	Status     domain.RequestStatus `json:"status"`
	HRStatus   domain.HRStatus      `json:"hr_status"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// LeaveRequestDetail response including decision metadata.
type LeaveRequestDetail struct {
	ID         int64                `json:"id"`
	OwnerID    int64                `json:"owner_id"`
	Department string               `json:"department"`
	Type       domain.LeaveType     `json:"type"`
	StartDate  time.Time            `json:"start_date"`
	EndDate    time.Time            `json:"end_date"`
	Reason     string               `json:"reason"`
	Status     domain.RequestStatus `json:"status"`
	HRStatus   domain.HRStatus      `json:"hr_status"`

	ManagerRemarks    string     `json:"manager_remarks,omitempty"`
	ManagerApproverID *int64     `json:"manager_approver_id,omitempty"`
	ManagerDecidedAt  *time.Time `json:"manager_decided_at,omitempty"`

	HRRemarks    string     `json:"hr_remarks,omitempty"`
	HRApproverID *int64     `json:"hr_approver_id,omitempty"`
	HRDecidedAt  *time.Time `json:"hr_decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
