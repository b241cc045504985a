package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindCurrent(ctx context.Context) (*models.Semester, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	SetCurrent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountCourses(ctx context.Context, id string) (int, error)
}

type semesterCache interface {
	GetCurrentSemester(ctx context.Context) (*models.Semester, bool)
	SetCurrentSemester(ctx context.Context, semester *models.Semester)
	InvalidateCurrentSemester(ctx context.Context)
}

// SemesterRequest describes semester create/update payloads.
type SemesterRequest struct {
	Code                  string    `json:"code" validate:"required"`
	Name                  string    `json:"name" validate:"required"`
	StartDate             time.Time `json:"start_date" validate:"required"`
	EndDate               time.Time `json:"end_date" validate:"required"`
	RegistrationStartDate time.Time `json:"registration_start_date" validate:"required"`
	RegistrationEndDate   time.Time `json:"registration_end_date" validate:"required"`
	WithdrawalDeadline    time.Time `json:"withdrawal_deadline" validate:"required"`
	MinCredits            int       `json:"min_credits" validate:"min=0"`
	MaxCredits            int       `json:"max_credits" validate:"min=0"`
}

// SemesterService manages semester calendars and the single current flag.
type SemesterService struct {
	repo      semesterRepository
	cache     semesterCache
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs SemesterService.
func NewSemesterService(repo semesterRepository, cache semesterCache, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, cache: cache, activity: activity, validator: validate, logger: logger}
}

// List returns semesters with pagination metadata.
func (s *SemesterService) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, *models.Pagination, error) {
	semesters, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return semesters, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one semester.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// GetCurrent returns the current semester, read through the cache.
func (s *SemesterService) GetCurrent(ctx context.Context) (*models.Semester, error) {
	if s.cache != nil {
		if semester, ok := s.cache.GetCurrentSemester(ctx); ok {
			return semester, nil
		}
	}
	semester, err := s.repo.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current semester")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current semester")
	}
	if s.cache != nil {
		s.cache.SetCurrentSemester(ctx, semester)
	}
	return semester, nil
}

// Create validates the date invariants and inserts a semester. New
// semesters start inactive and never current.
func (s *SemesterService) Create(ctx context.Context, req SemesterRequest) (*models.Semester, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate semester code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "semester code already in use")
	}

	semester := &models.Semester{
		Code:                  req.Code,
		Name:                  req.Name,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		RegistrationStartDate: req.RegistrationStartDate,
		RegistrationEndDate:   req.RegistrationEndDate,
		WithdrawalDeadline:    req.WithdrawalDeadline,
		MinCredits:            req.MinCredits,
		MaxCredits:            req.MaxCredits,
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	return semester, nil
}

// Update rewrites a semester's calendar and limits. The current flag is
// untouched; Activate owns it.
func (s *SemesterService) Update(ctx context.Context, id string, req SemesterRequest) (*models.Semester, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	semester, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate semester code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "semester code already in use")
	}

	semester.Code = req.Code
	semester.Name = req.Name
	semester.StartDate = req.StartDate
	semester.EndDate = req.EndDate
	semester.RegistrationStartDate = req.RegistrationStartDate
	semester.RegistrationEndDate = req.RegistrationEndDate
	semester.WithdrawalDeadline = req.WithdrawalDeadline
	semester.MinCredits = req.MinCredits
	semester.MaxCredits = req.MaxCredits
	if err := s.repo.Update(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update semester")
	}
	if s.cache != nil {
		s.cache.InvalidateCurrentSemester(ctx)
	}
	return semester, nil
}

// Activate makes the semester the single current one. Clearing and
// setting the flag is one transaction in the repository.
func (s *SemesterService) Activate(ctx context.Context, actor Actor, id string) (*models.Semester, error) {
	if err := s.repo.SetCurrent(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate semester")
	}
	if s.cache != nil {
		s.cache.InvalidateCurrentSemester(ctx)
	}
	if s.activity != nil {
		s.activity.Record(ctx, &actor.ID, models.ActivitySemesterActivate, "semester", id, nil)
	}
	return s.Get(ctx, id)
}

// Delete removes a semester without courses.
func (s *SemesterService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count semester courses")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "semester still has courses")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester")
	}
	if s.cache != nil {
		s.cache.InvalidateCurrentSemester(ctx)
	}
	return nil
}

func (s *SemesterService) validate(req SemesterRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	if !req.RegistrationStartDate.Before(req.RegistrationEndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "registration window start must precede its end")
	}
	if req.WithdrawalDeadline.After(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "withdrawal deadline must not pass the semester end")
	}
	if req.MinCredits > req.MaxCredits {
		return appErrors.Clone(appErrors.ErrValidation, "min credits must not exceed max credits")
	}
	return nil
}
