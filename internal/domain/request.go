package domain

import "time"

// RequestStatus enumerates manager-track states for a leave request.
type RequestStatus string

const (
	RequestStatusPending         RequestStatus = "PENDING"
	RequestStatusManagerApproved RequestStatus = "MANAGER_APPROVED"
	RequestStatusManagerRejected RequestStatus = "MANAGER_REJECTED"
)

// HRStatus enumerates HR-track states for a leave request.
type HRStatus string

const (
	HRStatusPending  HRStatus = "PENDING"
	HRStatusApproved HRStatus = "APPROVED"
	HRStatusRejected HRStatus = "REJECTED"
)

// LeaveType enumerates categories of time off.
type LeaveType string

const (
	LeaveTypeAnnual   LeaveType = "ANNUAL"
	LeaveTypeSick     LeaveType = "SICK"
	LeaveTypeUnpaid   LeaveType = "UNPAID"
	LeaveTypePersonal LeaveType = "PERSONAL"
)

// LeaveRequest is the aggregate for a single time-off submission.
//
// Status and HRStatus are two independent tracks; legal combinations are
// enforced by the request service, not by the type system. Department is
// captured from the owner at creation and never changes afterwards.
type LeaveRequest struct {
	ID         int64
	OwnerID    int64
	Department string
	Type       LeaveType
	StartDate  time.Time
	EndDate    time.Time
	Reason     string

	Status   RequestStatus
	HRStatus HRStatus

	ManagerRemarks    string
	ManagerApproverID *int64
	ManagerDecidedAt  *time.Time

	HRRemarks    string
	HRApproverID *int64
	HRDecidedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Undecided reports whether no approval stage has acted yet. Editing and
// deletion by the owner are only allowed while this holds.
func (r *LeaveRequest) Undecided() bool {
	return r.Status == RequestStatusPending && r.HRStatus == HRStatusPending
}

// Terminal reports whether the request has reached a final state from which
// no further transition is legal.
func (r *LeaveRequest) Terminal() bool {
	if r.Status == RequestStatusManagerRejected {
		return true
	}
	return r.Status == RequestStatusManagerApproved && r.HRStatus != HRStatusPending
}

// Consistent reports whether the two tracks are in a reachable combination.
// HRStatus may only leave PENDING after the manager track has approved;
// anything else indicates corrupted data and must fail loudly.
func (r *LeaveRequest) Consistent() bool {
	if r.HRStatus == HRStatusPending {
		return true
	}
	return r.Status == RequestStatusManagerApproved
}
