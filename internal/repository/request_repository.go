package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leave-service/internal/domain"
)

// RequestFilter captures listing parameters. Department scoping follows the
// hyphen hierarchy when IncludeSubDepartments is set, and AwaitingDecision
// narrows to requests whose relevant track is still pending.
type RequestFilter struct {
	OwnerID               *int64
	Department            *string
	IncludeSubDepartments bool
	Statuses              []domain.RequestStatus
	HRStatuses            []domain.HRStatus
	AwaitingDecision      bool
	CreatedFrom           *time.Time
	CreatedTo             *time.Time
	Limit                 int
	Offset                int
}

// RequestRepository encapsulates leave request persistence. Decision methods
// are conditional updates guarded by the expected pre-transition status; a
// guard that matches no row yields ErrStatusConflict.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.LeaveRequest) error
	GetByID(ctx context.Context, id int64) (*domain.LeaveRequest, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.LeaveRequest, error)

	// UpdateDetails rewrites the owner-editable fields. When requireUndecided
	// is set the update only applies while both tracks are still pending.
	UpdateDetails(ctx context.Context, req *domain.LeaveRequest, requireUndecided bool) error
	Delete(ctx context.Context, id int64, requireUndecided bool) error

	ApplyManagerDecision(ctx context.Context, id int64, newStatus domain.RequestStatus, approverID int64, remarks string, decidedAt time.Time) error
	ApplyHRDecision(ctx context.Context, id int64, newStatus domain.HRStatus, approverID int64, remarks string, decidedAt time.Time) error
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, owner_id, department, type, start_date, end_date, reason,
               status, hr_status, manager_remarks, manager_approver_id, manager_decided_at,
               hr_remarks, hr_approver_id, hr_decided_at, created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, req *domain.LeaveRequest) error {
	const query = `
        INSERT INTO leave_requests (owner_id, department, type, start_date, end_date, reason, status, hr_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		req.OwnerID,
		req.Department,
		req.Type,
		req.StartDate,
		req.EndDate,
		req.Reason,
		req.Status,
		req.HRStatus,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.LeaveRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM leave_requests WHERE id=$1`
	var req domain.LeaveRequest
	if err := r.pool.QueryRow(ctx, query, id).Scan(scanTargets(&req)...); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) UpdateDetails(ctx context.Context, req *domain.LeaveRequest, requireUndecided bool) error {
	query := `
        UPDATE leave_requests SET type=$1, start_date=$2, end_date=$3, reason=$4, updated_at=NOW()
        WHERE id=$5`
	if requireUndecided {
		query += ` AND status='PENDING' AND hr_status='PENDING'`
	}

	cmd, err := r.pool.Exec(ctx, query,
		req.Type,
		req.StartDate,
		req.EndDate,
		req.Reason,
		req.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if requireUndecided {
			return ErrStatusConflict
		}
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, id int64, requireUndecided bool) error {
	query := `DELETE FROM leave_requests WHERE id=$1`
	if requireUndecided {
		query += ` AND status='PENDING' AND hr_status='PENDING'`
	}

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if requireUndecided {
			return ErrStatusConflict
		}
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) ApplyManagerDecision(ctx context.Context, id int64, newStatus domain.RequestStatus, approverID int64, remarks string, decidedAt time.Time) error {
	const query = `
        UPDATE leave_requests SET
            status=$2, manager_remarks=$3, manager_approver_id=$4, manager_decided_at=$5, updated_at=NOW()
        WHERE id=$1 AND status='PENDING'`

	cmd, err := r.pool.Exec(ctx, query, id, newStatus, remarks, approverID, decidedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *requestRepository) ApplyHRDecision(ctx context.Context, id int64, newStatus domain.HRStatus, approverID int64, remarks string, decidedAt time.Time) error {
	const query = `
        UPDATE leave_requests SET
            hr_status=$2, hr_remarks=$3, hr_approver_id=$4, hr_decided_at=$5, updated_at=NOW()
        WHERE id=$1 AND status='MANAGER_APPROVED' AND hr_status='PENDING'`

	cmd, err := r.pool.Exec(ctx, query, id, newStatus, remarks, approverID, decidedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.LeaveRequest, error) {
	base := `SELECT ` + requestColumns + ` FROM leave_requests`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.Department != nil {
		if filter.IncludeSubDepartments {
			args = append(args, *filter.Department)
			exact := fmt.Sprintf("$%d", len(args))
			args = append(args, *filter.Department+"-%")
			prefix := fmt.Sprintf("$%d", len(args))
			clauses = append(clauses, fmt.Sprintf("(department=%s OR department LIKE %s)", exact, prefix))
		} else {
			args = append(args, *filter.Department)
			clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.HRStatuses) > 0 {
		placeholders := make([]string, len(filter.HRStatuses))
		for i, status := range filter.HRStatuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("hr_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AwaitingDecision {
		clauses = append(clauses, "(status='PENDING' OR (status='MANAGER_APPROVED' AND hr_status='PENDING'))")
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanTargets(req *domain.LeaveRequest) []any {
	return []any{
		&req.ID,
		&req.OwnerID,
		&req.Department,
		&req.Type,
		&req.StartDate,
		&req.EndDate,
		&req.Reason,
		&req.Status,
		&req.HRStatus,
		&req.ManagerRemarks,
		&req.ManagerApproverID,
		&req.ManagerDecidedAt,
		&req.HRRemarks,
		&req.HRApproverID,
		&req.HRDecidedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	}
}

func scanRequests(rows pgx.Rows) ([]domain.LeaveRequest, error) {
	var result []domain.LeaveRequest
	for rows.Next() {
		var req domain.LeaveRequest
		if err := rows.Scan(scanTargets(&req)...); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
