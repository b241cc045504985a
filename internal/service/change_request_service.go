package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type changeRequestRepository interface {
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	HasOpenRequest(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, request *models.ChangeRequest) error
	Resolve(ctx context.Context, request *models.ChangeRequest, approved bool) error
}

// CreateChangeRequestPayload describes a student's school-move request.
type CreateChangeRequestPayload struct {
	ToSchoolID string `json:"to_school_id" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

// ResolveChangeRequestPayload closes a pending request.
type ResolveChangeRequestPayload struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// ChangeRequestService manages school-move requests.
type ChangeRequestService struct {
	repo      changeRequestRepository
	students  registrationStudentReader
	schools   schoolReader
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChangeRequestService constructs ChangeRequestService.
func NewChangeRequestService(repo changeRequestRepository, students registrationStudentReader, schools schoolReader, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *ChangeRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeRequestService{repo: repo, students: students, schools: schools, activity: activity, validator: validate, logger: logger}
}

// List returns change requests. Students only see their own.
func (s *ChangeRequestService) List(ctx context.Context, actor Actor, filter models.ChangeRequestFilter) ([]models.ChangeRequest, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create opens a pending school-move request for the student. At most one
// pending request per student.
func (s *ChangeRequestService) Create(ctx context.Context, studentID string, req CreateChangeRequestPayload) (*models.ChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request payload")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.schools.FindByID(ctx, req.ToSchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if student.SchoolID != nil && *student.SchoolID == req.ToSchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student already belongs to the target school")
	}

	open, err := s.repo.HasOpenRequest(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open requests")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a pending change request")
	}

	request := &models.ChangeRequest{
		StudentID:    studentID,
		FromSchoolID: student.SchoolID,
		ToSchoolID:   req.ToSchoolID,
		Reason:       req.Reason,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}
	if s.activity != nil {
		s.activity.Record(ctx, &studentID, models.ActivityChangeRequestCreate, "change_request", request.ID, map[string]string{"to_school_id": req.ToSchoolID})
	}
	return request, nil
}

// Resolve closes a pending request. Approval moves the student to the
// target school inside the repository transaction.
func (s *ChangeRequestService) Resolve(ctx context.Context, actor Actor, id string, req ResolveChangeRequestPayload) (*models.ChangeRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	if request.Status != models.ChangeRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "change request is already resolved")
	}

	request.Status = models.ChangeRequestStatusRejected
	if req.Approve {
		request.Status = models.ChangeRequestStatusApproved
	}
	request.ResolvedBy = &actor.ID
	now := time.Now().UTC()
	request.ResolvedAt = &now
	if req.Note != "" {
		request.ResolutionNote = &req.Note
	}

	if err := s.repo.Resolve(ctx, request, req.Approve); err != nil {
		if errors.Is(err, repository.ErrStatusGuard) {
			return nil, appErrors.Clone(appErrors.ErrConcurrencyConflict, "change request was resolved concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve change request")
	}
	if s.activity != nil {
		s.activity.Record(ctx, &actor.ID, models.ActivityChangeRequestClose, "change_request", request.ID, map[string]string{"status": string(request.Status)})
	}
	return request, nil
}
