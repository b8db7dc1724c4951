package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-eapproval-api/internal/models"
)

// RequestRepository persists approval requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `r.id, r.title, r.description, r.created_by, u.username AS creator_name,
       r.class_teacher_status, r.hod_status, r.principal_status, r.overall_status, r.created_at`

// Create inserts a new approval request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_requests
	(id, title, description, created_by, class_teacher_status, hod_status, principal_status, overall_status, created_at)
	VALUES (:id, :title, :description, :created_by, :class_teacher_status, :hod_status, :principal_status, :overall_status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

// GetByID fetches a request (with creator name) by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_requests r JOIN users u ON u.id = r.created_by WHERE r.id = $1`, requestColumns)
	var request models.ApprovalRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter, newest first. Role scoping is
// expressed through the filter by the service layer.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.ApprovalRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM approval_requests r JOIN users u ON u.id = r.created_by`, requestColumns))

	conditions := make([]string, 0, 4)
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("r.created_by = $%d", len(args)))
	}
	if filter.ClassTeacherApproved {
		args = append(args, models.StatusApproved)
		conditions = append(conditions, fmt.Sprintf("r.class_teacher_status = $%d", len(args)))
	}
	if filter.HODApproved {
		args = append(args, models.StatusApproved)
		conditions = append(conditions, fmt.Sprintf("r.hod_status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(r.title ILIKE $%d OR u.username ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY r.created_at DESC")

	var requests []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	return requests, nil
}

// StageUpdateParams carries a stage transition keyed by its prior state.
type StageUpdateParams struct {
	ID            string
	Prior         models.StageTriple
	Next          models.StageTriple
	OverallStatus string
}

// UpdateStageStatus persists a transition atomically. The WHERE clause pins
// the full prior stage-status triple, so a concurrent decision that already
// moved any stage makes this update match zero rows; that lost race is
// returned as sql.ErrNoRows and never double-applies.
func (r *RequestRepository) UpdateStageStatus(ctx context.Context, params StageUpdateParams) error {
	const query = `UPDATE approval_requests
	SET class_teacher_status = $1, hod_status = $2, principal_status = $3, overall_status = $4
	WHERE id = $5 AND class_teacher_status = $6 AND hod_status = $7 AND principal_status = $8`
	result, err := r.db.ExecContext(ctx, query,
		params.Next.ClassTeacher, params.Next.HOD, params.Next.Principal, params.OverallStatus,
		params.ID, params.Prior.ClassTeacher, params.Prior.HOD, params.Prior.Principal,
	)
	if err != nil {
		return fmt.Errorf("update stage status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check stage update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
