package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
)

// fakeRequestRepo mirrors the storage guards: decisions only apply while the
// stored row still matches the expected pre-transition status.
type fakeRequestRepo struct {
	requests    map[int64]*domain.LeaveRequest
	nextID      int64
	lastFilter  repository.RequestFilter
	beforeApply func()
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[int64]*domain.LeaveRequest{}}
}

func (r *fakeRequestRepo) Create(_ context.Context, req *domain.LeaveRequest) error {
	r.nextID++
	req.ID = r.nextID
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *fakeRequestRepo) GetByID(_ context.Context, id int64) (*domain.LeaveRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (r *fakeRequestRepo) ListWithFilter(_ context.Context, filter repository.RequestFilter) ([]domain.LeaveRequest, error) {
	r.lastFilter = filter
	return nil, nil
}

func (r *fakeRequestRepo) UpdateDetails(_ context.Context, req *domain.LeaveRequest, requireUndecided bool) error {
	stored, ok := r.requests[req.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if requireUndecided && !stored.Undecided() {
		return repository.ErrStatusConflict
	}
	stored.Type = req.Type
	stored.StartDate = req.StartDate
	stored.EndDate = req.EndDate
	stored.Reason = req.Reason
	return nil
}

func (r *fakeRequestRepo) Delete(_ context.Context, id int64, requireUndecided bool) error {
	stored, ok := r.requests[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if requireUndecided && !stored.Undecided() {
		return repository.ErrStatusConflict
	}
	delete(r.requests, id)
	return nil
}

func (r *fakeRequestRepo) ApplyManagerDecision(_ context.Context, id int64, newStatus domain.RequestStatus, approverID int64, remarks string, decidedAt time.Time) error {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	stored, ok := r.requests[id]
	if !ok || stored.Status != domain.RequestStatusPending {
		return repository.ErrStatusConflict
	}
	stored.Status = newStatus
	stored.ManagerRemarks = remarks
	stored.ManagerApproverID = &approverID
	stored.ManagerDecidedAt = &decidedAt
	return nil
}

func (r *fakeRequestRepo) ApplyHRDecision(_ context.Context, id int64, newStatus domain.HRStatus, approverID int64, remarks string, decidedAt time.Time) error {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	stored, ok := r.requests[id]
	if !ok || stored.Status != domain.RequestStatusManagerApproved || stored.HRStatus != domain.HRStatusPending {
		return repository.ErrStatusConflict
	}
	stored.HRStatus = newStatus
	stored.HRRemarks = remarks
	stored.HRApproverID = &approverID
	stored.HRDecidedAt = &decidedAt
	return nil
}

var (
	employee = &domain.User{ID: 1, Username: "ulrich", Department: "Sales-East"}
	manager  = &domain.User{ID: 2, Username: "meredith", IsManager: true, Department: "Sales"}
	hrUser   = &domain.User{ID: 3, Username: "harriet", IsHR: true, Department: "HR"}
	admin    = &domain.User{ID: 4, Username: "root", IsAdmin: true}
	outsider = &domain.User{ID: 5, Username: "martin", IsManager: true, Department: "Finance"}
)

func newServiceFixture() (*RequestService, *fakeRequestRepo) {
	repo := newFakeRequestRepo()
	svc := NewRequestService(RequestDependencies{
		RequestRepo: repo,
		Clock:       func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	return svc, repo
}

func seedRequest(t *testing.T, svc *RequestService, owner *domain.User) *domain.LeaveRequest {
	t.Helper()
	req, err := svc.Create(context.Background(), owner, RequestCreateInput{
		Type:      domain.LeaveTypeAnnual,
		StartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC),
		Reason:    "summer leave",
	})
	require.NoError(t, err)
	return req
}

func TestCreateCapturesOwnerDepartmentAndPendingTracks(t *testing.T) {
	svc, _ := newServiceFixture()
	req := seedRequest(t, svc, employee)

	assert.Equal(t, employee.ID, req.OwnerID)
	assert.Equal(t, "Sales-East", req.Department)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, domain.HRStatusPending, req.HRStatus)
}

func TestCreateRejectsInvertedDateRange(t *testing.T) {
	svc, _ := newServiceFixture()

	_, err := svc.Create(context.Background(), employee, RequestCreateInput{
		StartDate: time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestManagerApproveByParentDepartmentManager(t *testing.T) {
	svc, repo := newServiceFixture()
	req := seedRequest(t, svc, employee)

	updated, err := svc.ManagerApprove(context.Background(), manager, req.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusManagerApproved, updated.Status)
	require.NotNil(t, updated.ManagerApproverID)
	assert.Equal(t, manager.ID, *updated.ManagerApproverID)
	assert.Equal(t, domain.RequestStatusManagerApproved, repo.requests[req.ID].Status)
}

func TestManagerDecisionDeniedOutsideDepartmentSubtree(t *testing.T) {
	svc, repo := newServiceFixture()
	req := seedRequest(t, svc, employee)

	_, err := svc.ManagerApprove(context.Background(), outsider, req.ID, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.ManagerReject(context.Background(), employee, req.ID, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Denied attempts never mutate state.
	assert.Equal(t, domain.RequestStatusPending, repo.requests[req.ID].Status)
}

func TestManagerDecisionConflictsOnceDecided(t *testing.T) {
	svc, repo := newServiceFixture()
	req := seedRequest(t, svc, employee)

	_, err := svc.ManagerApprove(context.Background(), manager, req.ID, "")
	require.NoError(t, err)

	_, err = svc.ManagerApprove(context.Background(), manager, req.ID, "")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	_, err = svc.ManagerReject(context.Background(), manager, req.ID, "")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	assert.Equal(t, domain.RequestStatusManagerApproved, repo.requests[req.ID].Status)
}

func TestManagerDecisionLostRaceSurfacesConflict(t *testing.T) {
	svc, repo := newServiceFixture()
	req := seedRequest(t, svc, employee)

	// A concurrent manager decides between this actor's read and write.
	repo.beforeApply = func() {
		repo.requests[req.ID].Status = domain.RequestStatusManagerRejected
		repo.beforeApply = nil
	}

	_, err := svc.ManagerApprove(context.Background(), manager, req.ID, "")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	assert.Equal(t, domain.RequestStatusManagerRejected, repo.requests[req.ID].Status)
}

func TestHRDecisionGatedOnManagerApproval(t *testing.T) {
	svc, repo := newServiceFixture()
	req := seedRequest(t, svc, employee)

	// HR cannot act before the manager stage completes.
	_, err := svc.HRApprove(context.Background(), hrUser, req.ID, "")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	_, err = svc.ManagerReject(context.Background(), manager, req.ID, "no cover")
	require.NoError(t, err)

	// Manager rejection is terminal; HR never reconsiders.
	_, err = svc.HRApprove(context.Background(), hrUser, req.ID, "")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	assert.Equal(t, domain.HRStatusPending, repo.requests[req.ID].HRStatus)
}

func TestHRDecisionRequiresHRorAdmin(t *testing.T) {
	svc, _ := newServiceFixture()
	req := seedRequest(t, svc, employee)

	_, err := svc.ManagerApprove(context.Background(), manager, req.ID, "")
	require.NoError(t, err)

	_, err = svc.HRApprove(context.Background(), manager, req.ID, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.HRApprove(context.Background(), admin, req.ID, "")
	assert.NoError(t, err)
}

func TestTwoStageScenarioEndsTerminal(t *testing.T) {
	svc, _ := newServiceFixture()
	req := seedRequest(t, svc, employee)

	_, err := svc.ManagerApprove(context.Background(), manager, req.ID, "covered")
	require.NoError(t, err)

	updated, err := svc.HRReject(context.Background(), hrUser, req.ID, "quota exhausted")
	require.NoError(t, err)
	assert.Equal(t, domain.HRStatusRejected, updated.HRStatus)
	assert.True(t, updated.Terminal())

	// Already decided by someone else: conflict, not denial.
	_, err = svc.HRApprove(context.Background(), hrUser, req.ID, "")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
}

func TestUpdateAndDeleteLockedOnceDecided(t *testing.T) {
	svc, _ := newServiceFixture()
	req := seedRequest(t, svc, employee)

	input := RequestCreateInput{
		Type:      domain.LeaveTypeSick,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	_, err := svc.Update(context.Background(), employee, req.ID, input)
	require.NoError(t, err)

	_, err = svc.ManagerApprove(context.Background(), manager, req.ID, "")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), employee, req.ID, input)
	assert.ErrorIs(t, err, ErrAccessDenied)
	err = svc.Delete(context.Background(), employee, req.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Admin override still works after a decision.
	_, err = svc.Update(context.Background(), admin, req.ID, input)
	assert.NoError(t, err)
	assert.NoError(t, svc.Delete(context.Background(), admin, req.ID))
}

func TestUpdateDeniedForStranger(t *testing.T) {
	svc, _ := newServiceFixture()
	req := seedRequest(t, svc, employee)

	_, err := svc.Update(context.Background(), outsider, req.ID, RequestCreateInput{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestGetAppliesViewPermissions(t *testing.T) {
	svc, _ := newServiceFixture()
	req := seedRequest(t, svc, employee)

	for _, actor := range []*domain.User{employee, manager, hrUser, admin} {
		_, err := svc.Get(context.Background(), actor, req.ID)
		assert.NoError(t, err, actor.Username)
	}

	stranger := &domain.User{ID: 9, Department: "Sales-East"}
	_, err := svc.Get(context.Background(), stranger, req.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestGetFailsLoudlyOnInconsistentTracks(t *testing.T) {
	svc, repo := newServiceFixture()
	req := seedRequest(t, svc, employee)

	// HR track decided while the manager track never approved: data defect.
	repo.requests[req.ID].HRStatus = domain.HRStatusApproved

	_, err := svc.Get(context.Background(), admin, req.ID)
	assert.ErrorIs(t, err, ErrInconsistentState)
}

func TestListScopesFollowAccessLevel(t *testing.T) {
	svc, repo := newServiceFixture()
	ctx := context.Background()

	_, err := svc.List(ctx, employee, RequestListFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.OwnerID)
	assert.Equal(t, employee.ID, *repo.lastFilter.OwnerID)

	_, err = svc.List(ctx, manager, RequestListFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.Department)
	assert.Equal(t, "Sales", *repo.lastFilter.Department)
	assert.True(t, repo.lastFilter.IncludeSubDepartments)

	_, err = svc.List(ctx, hrUser, RequestListFilter{})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.OwnerID)
	assert.Nil(t, repo.lastFilter.Department)
}

func TestPendingProjectionsPerRole(t *testing.T) {
	svc, repo := newServiceFixture()
	ctx := context.Background()

	_, err := svc.PendingForActor(ctx, hrUser, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.RequestStatus{domain.RequestStatusManagerApproved}, repo.lastFilter.Statuses)
	assert.Equal(t, []domain.HRStatus{domain.HRStatusPending}, repo.lastFilter.HRStatuses)

	_, err = svc.PendingForActor(ctx, manager, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.RequestStatus{domain.RequestStatusPending}, repo.lastFilter.Statuses)
	require.NotNil(t, repo.lastFilter.Department)
	assert.Equal(t, "Sales", *repo.lastFilter.Department)

	_, err = svc.PendingForActor(ctx, employee, 20, 0)
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.OwnerID)
	assert.True(t, repo.lastFilter.AwaitingDecision)
}
