package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

// ChangeRequestRepository stores school transfer requests.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

const changeRequestColumns = `id, student_id, from_school_id, to_school_id, reason, status, resolved_by, resolved_at, resolution_note, created_at, updated_at`

// List returns change requests matching the filter.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM change_requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d", changeRequestColumns, clause, size, offset)
	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list change requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM change_requests"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count change requests: %w", err)
	}
	return requests, total, nil
}

// FindByID loads one change request.
func (r *ChangeRequestRepository) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM change_requests WHERE id = $1", changeRequestColumns)
	var request models.ChangeRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasOpenRequest reports whether the student already has a pending request.
func (r *ChangeRequestRepository) HasOpenRequest(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM change_requests WHERE student_id = $1 AND status = $2)`, studentID, models.ChangeRequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("check open change request: %w", err)
	}
	return exists, nil
}

// Create inserts a pending change request.
func (r *ChangeRequestRepository) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.ChangeRequestStatusPending
	}

	const query = `INSERT INTO change_requests (id, student_id, from_school_id, to_school_id, reason, status, created_at, updated_at)
        VALUES (:id, :student_id, :from_school_id, :to_school_id, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

// Resolve closes a pending request and, on approval, moves the student to
// the target school in the same transaction.
func (r *ChangeRequestRepository) Resolve(ctx context.Context, request *models.ChangeRequest, approved bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE change_requests SET status = $2, resolved_by = $3, resolved_at = $4, resolution_note = $5, updated_at = $4 WHERE id = $1 AND status = $6`,
		request.ID, request.Status, request.ResolvedBy, now, request.ResolutionNote, models.ChangeRequestStatusPending)
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrStatusGuard
		return err
	}

	if approved {
		if _, err = tx.ExecContext(ctx, `UPDATE users SET school_id = $2, updated_at = $3 WHERE id = $1`, request.StudentID, request.ToSchoolID, now); err != nil {
			return fmt.Errorf("move student school: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve tx: %w", err)
	}
	return nil
}
