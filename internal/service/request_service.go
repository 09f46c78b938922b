package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/leave-service/internal/authz"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/repository"
)

var (
	// ErrAccessDenied is the flat authorization denial. It carries no hint
	// about whether the target exists.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidDateRange — the requested period is empty or inverted.
	ErrInvalidDateRange = errors.New("end date precedes start date")

	// ErrInconsistentState — the stored request violates the track invariant
	// (HR acted before the manager stage completed). This is a data defect,
	// not a user error, and fails loudly.
	ErrInconsistentState = errors.New("request state violates track invariant")
)

// RequestService coordinates leave request workflows: creation, owner edits,
// and the two-stage approval state machine. Transitions are applied as
// conditional updates so a concurrent decision surfaces as
// repository.ErrStatusConflict instead of silently overwriting.
type RequestService struct {
	requests   repository.RequestRepository
	dispatcher events.Dispatcher
	clock      func() time.Time
}

// RequestDependencies bundles requirements for the request service.
type RequestDependencies struct {
	RequestRepo repository.RequestRepository
	Dispatcher  events.Dispatcher
	Clock       func() time.Time
}

// NewRequestService constructs the service. A nil Clock defaults to time.Now.
func NewRequestService(deps RequestDependencies) *RequestService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &RequestService{
		requests:   deps.RequestRepo,
		dispatcher: deps.Dispatcher,
		clock:      clock,
	}
}

// RequestCreateInput describes a leave submission payload.
type RequestCreateInput struct {
	Type      domain.LeaveType
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

// RequestListFilter describes caller-facing listing filters; the visibility
// scope is derived from the actor, not the filter.
type RequestListFilter struct {
	Statuses    []domain.RequestStatus
	HRStatuses  []domain.HRStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// Create submits a new request for the owner. The owner's department is
// captured on the request and never changes afterwards.
func (s *RequestService) Create(ctx context.Context, owner *domain.User, input RequestCreateInput) (*domain.LeaveRequest, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, ErrInvalidDateRange
	}

	req := &domain.LeaveRequest{
		OwnerID:    owner.ID,
		Department: owner.Department,
		Type:       input.Type,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		Reason:     strings.TrimSpace(input.Reason),
		Status:     domain.RequestStatusPending,
		HRStatus:   domain.HRStatusPending,
	}
	if req.Type == "" {
		req.Type = domain.LeaveTypeAnnual
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: req.ID,
		ActorID:   owner.ID,
		Payload: events.RequestCreatedPayload{
			Department: req.Department,
			Type:       req.Type,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
		},
	})
	return req, nil
}

// Get fetches a request the actor is allowed to view.
func (s *RequestService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.LeaveRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(req, actor) {
		return nil, ErrAccessDenied
	}
	return req, nil
}

// List returns requests within the actor's visibility scope: own requests,
// the actor's department subtree, or everything.
func (s *RequestService) List(ctx context.Context, actor *domain.User, filter RequestListFilter) ([]domain.LeaveRequest, error) {
	repoFilter := repository.RequestFilter{
		Statuses:    filter.Statuses,
		HRStatuses:  filter.HRStatuses,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	s.applyScope(&repoFilter, actor)
	return s.requests.ListWithFilter(ctx, repoFilter)
}

// PendingForActor returns the dashboard projection: requests whose relevant
// track still awaits this actor's role. HR sees manager-approved requests
// with HR pending across the organization; managers see pending requests in
// their department subtree; everyone else sees their own undecided requests.
func (s *RequestService) PendingForActor(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.LeaveRequest, error) {
	filter := repository.RequestFilter{Limit: limit, Offset: offset}

	switch {
	case actor.IsHR || actor.IsAdmin:
		filter.Statuses = []domain.RequestStatus{domain.RequestStatusManagerApproved}
		filter.HRStatuses = []domain.HRStatus{domain.HRStatusPending}
	case actor.IsManager:
		filter.Statuses = []domain.RequestStatus{domain.RequestStatusPending}
		filter.Department = &actor.Department
		filter.IncludeSubDepartments = true
	default:
		filter.OwnerID = &actor.ID
		filter.AwaitingDecision = true
	}
	return s.requests.ListWithFilter(ctx, filter)
}

// Update rewrites the owner-editable fields. Owners may edit only while both
// tracks are untouched; admins may edit regardless. For owners the check is
// re-applied by the storage guard so an approval landing between read and
// write fails with a conflict.
func (s *RequestService) Update(ctx context.Context, actor *domain.User, id int64, input RequestCreateInput) (*domain.LeaveRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanEdit(req, actor.IsAdmin, actor.ID == req.OwnerID) {
		return nil, ErrAccessDenied
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, ErrInvalidDateRange
	}

	req.Type = input.Type
	req.StartDate = input.StartDate
	req.EndDate = input.EndDate
	req.Reason = strings.TrimSpace(input.Reason)

	requireUndecided := !actor.IsAdmin
	if err := s.requests.UpdateDetails(ctx, req, requireUndecided); err != nil {
		return nil, err
	}
	return req, nil
}

// Delete removes a request under the same rules as Update.
func (s *RequestService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanDelete(req, actor.IsAdmin, actor.ID == req.OwnerID) {
		return ErrAccessDenied
	}

	if err := s.requests.Delete(ctx, id, !actor.IsAdmin); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestDeleted,
		RequestID: req.ID,
		ActorID:   actor.ID,
		Payload:   events.RequestDeletedPayload{OwnerID: req.OwnerID, Department: req.Department},
	})
	return nil
}

// DecisionFunc is the shape shared by the four decision operations.
type DecisionFunc func(ctx context.Context, actor *domain.User, id int64, remarks string) (*domain.LeaveRequest, error)

// ManagerApprove moves the manager track from PENDING to MANAGER_APPROVED.
func (s *RequestService) ManagerApprove(ctx context.Context, actor *domain.User, id int64, remarks string) (*domain.LeaveRequest, error) {
	return s.managerDecision(ctx, actor, id, domain.RequestStatusManagerApproved, remarks)
}

// ManagerReject moves the manager track from PENDING to MANAGER_REJECTED,
// which is terminal: the HR track stays frozen at PENDING permanently.
func (s *RequestService) ManagerReject(ctx context.Context, actor *domain.User, id int64, remarks string) (*domain.LeaveRequest, error) {
	return s.managerDecision(ctx, actor, id, domain.RequestStatusManagerRejected, remarks)
}

// HRApprove moves the HR track from PENDING to APPROVED. Legal only once the
// manager track has approved.
func (s *RequestService) HRApprove(ctx context.Context, actor *domain.User, id int64, remarks string) (*domain.LeaveRequest, error) {
	return s.hrDecision(ctx, actor, id, domain.HRStatusApproved, remarks)
}

// HRReject moves the HR track from PENDING to REJECTED.
func (s *RequestService) HRReject(ctx context.Context, actor *domain.User, id int64, remarks string) (*domain.LeaveRequest, error) {
	return s.hrDecision(ctx, actor, id, domain.HRStatusRejected, remarks)
}

func (s *RequestService) managerDecision(ctx context.Context, actor *domain.User, id int64, newStatus domain.RequestStatus, remarks string) (*domain.LeaveRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageDepartment(actor, req.Department) {
		return nil, ErrAccessDenied
	}
	if req.Status != domain.RequestStatusPending {
		return nil, repository.ErrStatusConflict
	}

	now := s.clock()
	if err := s.requests.ApplyManagerDecision(ctx, id, newStatus, actor.ID, remarks, now); err != nil {
		return nil, err
	}

	oldStatus := req.Status
	req.Status = newStatus
	req.ManagerRemarks = remarks
	req.ManagerApproverID = &actor.ID
	req.ManagerDecidedAt = &now

	s.publishTransition(ctx, req, actor.ID, events.TrackManager, string(oldStatus), string(newStatus), remarks)
	return req, nil
}

func (s *RequestService) hrDecision(ctx context.Context, actor *domain.User, id int64, newStatus domain.HRStatus, remarks string) (*domain.LeaveRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	// HR authority is organization-wide; no department scoping at this stage.
	if !actor.IsHR && !actor.IsAdmin {
		return nil, ErrAccessDenied
	}
	if req.Status != domain.RequestStatusManagerApproved || req.HRStatus != domain.HRStatusPending {
		return nil, repository.ErrStatusConflict
	}

	now := s.clock()
	if err := s.requests.ApplyHRDecision(ctx, id, newStatus, actor.ID, remarks, now); err != nil {
		return nil, err
	}

	oldStatus := req.HRStatus
	req.HRStatus = newStatus
	req.HRRemarks = remarks
	req.HRApproverID = &actor.ID
	req.HRDecidedAt = &now

	s.publishTransition(ctx, req, actor.ID, events.TrackHR, string(oldStatus), string(newStatus), remarks)
	return req, nil
}

func (s *RequestService) load(ctx context.Context, id int64) (*domain.LeaveRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Consistent() {
		return nil, fmt.Errorf("request %d: %w", req.ID, ErrInconsistentState)
	}
	return req, nil
}

func (s *RequestService) applyScope(filter *repository.RequestFilter, actor *domain.User) {
	switch authz.AccessLevel(actor) {
	case authz.ScopeAll:
	case authz.ScopeDepartment:
		filter.Department = &actor.Department
		filter.IncludeSubDepartments = true
	default:
		filter.OwnerID = &actor.ID
	}
}

func (s *RequestService) publishTransition(ctx context.Context, req *domain.LeaveRequest, actorID int64, track events.Track, oldStatus, newStatus, remarks string) {
	s.publish(ctx, events.Event{
		Type:      events.EventRequestTransitioned,
		RequestID: req.ID,
		ActorID:   actorID,
		Payload: events.RequestTransitionedPayload{
			Track:     track,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Remarks:   remarks,
		},
	})
}

func (s *RequestService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
