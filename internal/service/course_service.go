package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByClassCode(ctx context.Context, subjectID, semesterID, classCode, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course, slots []models.ScheduleSlot) error
	Update(ctx context.Context, course *models.Course, slots []models.ScheduleSlot) error
	DeleteCascade(ctx context.Context, courseID string, subjectCredits int) (int, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseCache interface {
	GetCourseDetail(ctx context.Context, courseID string) (*models.CourseDetail, bool)
	SetCourseDetail(ctx context.Context, detail *models.CourseDetail)
	InvalidateCourse(ctx context.Context, courseID string)
}

// ScheduleSlotRequest is one weekly meeting in a course payload.
type ScheduleSlotRequest struct {
	DayOfWeek   int    `json:"day_of_week" validate:"required,min=2,max=8"`
	Period      int    `json:"period" validate:"required,min=1,max=4"`
	ClassroomID string `json:"classroom_id" validate:"required"`
}

// CourseRequest describes course create/update payloads. The three
// grading weights must sum to 100.
type CourseRequest struct {
	SubjectID        string                `json:"subject_id" validate:"required"`
	SemesterID       string                `json:"semester_id" validate:"required"`
	TeacherID        string                `json:"teacher_id" validate:"required"`
	ClassCode        string                `json:"class_code" validate:"required"`
	MaxStudents      int                   `json:"max_students" validate:"required,min=1"`
	AttendanceWeight int                   `json:"attendance_weight" validate:"min=0,max=100"`
	MidtermWeight    int                   `json:"midterm_weight" validate:"min=0,max=100"`
	FinalWeight      int                   `json:"final_weight" validate:"min=0,max=100"`
	IsActive         *bool                 `json:"is_active"`
	Slots            []ScheduleSlotRequest `json:"slots" validate:"required,min=1,dive"`
}

// CourseService manages course sections and their schedule slots.
type CourseService struct {
	repo       courseRepository
	subjects   subjectReader
	semesters  semesterReader
	classrooms classroomReader
	teachers   teacherReader
	cache      courseCache
	activity   activityRecorder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, subjects subjectReader, semesters semesterReader, classrooms classroomReader, teachers teacherReader, cache courseCache, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:       repo,
		subjects:   subjects,
		semesters:  semesters,
		classrooms: classrooms,
		teachers:   teachers,
		cache:      cache,
		activity:   activity,
		validator:  validate,
		logger:     logger,
	}
}

// List returns courses with subject and slot context.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course detail, read through the cache.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	if s.cache != nil {
		if detail, ok := s.cache.GetCourseDetail(ctx, id); ok {
			return detail, nil
		}
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if s.cache != nil {
		s.cache.SetCourseDetail(ctx, detail)
	}
	return detail, nil
}

// Create inserts a course section with its schedule slots.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.CourseDetail, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByClassCode(ctx, req.SubjectID, req.SemesterID, req.ClassCode, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class code already in use for this subject and semester")
	}

	course := &models.Course{
		SubjectID:        req.SubjectID,
		SemesterID:       req.SemesterID,
		TeacherID:        req.TeacherID,
		ClassCode:        req.ClassCode,
		MaxStudents:      req.MaxStudents,
		AttendanceWeight: req.AttendanceWeight,
		MidtermWeight:    req.MidtermWeight,
		FinalWeight:      req.FinalWeight,
		IsActive:         true,
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, course, slotsFromRequest(req.Slots)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return s.loadFresh(ctx, course.ID)
}

// Update rewrites the course and replaces its slots. Seat counters are
// never written here.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.CourseDetail, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.repo.ExistsByClassCode(ctx, req.SubjectID, req.SemesterID, req.ClassCode, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class code already in use for this subject and semester")
	}
	if req.MaxStudents < course.CurrentStudents {
		return nil, appErrors.Clone(appErrors.ErrConflict, "max students below current approved count")
	}

	course.SubjectID = req.SubjectID
	course.SemesterID = req.SemesterID
	course.TeacherID = req.TeacherID
	course.ClassCode = req.ClassCode
	course.MaxStudents = req.MaxStudents
	course.AttendanceWeight = req.AttendanceWeight
	course.MidtermWeight = req.MidtermWeight
	course.FinalWeight = req.FinalWeight
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, course, slotsFromRequest(req.Slots)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return s.loadFresh(ctx, course.ID)
}

// Delete removes the course, its slots and its registrations. Students
// with an approved registration get their credits compensated in the
// same transaction.
func (s *CourseService) Delete(ctx context.Context, actor Actor, id string) error {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	compensated, err := s.repo.DeleteCascade(ctx, id, detail.SubjectCredits)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if s.cache != nil {
		s.cache.InvalidateCourse(ctx, id)
	}
	if s.activity != nil {
		s.activity.Record(ctx, &actor.ID, models.ActivityCourseDelete, "course", id, map[string]int{"compensated_students": compensated})
	}
	return nil
}

func (s *CourseService) loadFresh(ctx context.Context, id string) (*models.CourseDetail, error) {
	if s.cache != nil {
		s.cache.InvalidateCourse(ctx, id)
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

func (s *CourseService) validateRequest(ctx context.Context, req CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.AttendanceWeight+req.MidtermWeight+req.FinalWeight != 100 {
		return appErrors.Clone(appErrors.ErrValidation, "grading weights must sum to 100")
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user is not a teacher")
	}

	seen := make(map[[2]int]struct{}, len(req.Slots))
	for _, slot := range req.Slots {
		key := [2]int{slot.DayOfWeek, slot.Period}
		if _, dup := seen[key]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate schedule slot day %d period %d", slot.DayOfWeek, slot.Period))
		}
		seen[key] = struct{}{}

		classroom, err := s.classrooms.FindByID(ctx, slot.ClassroomID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
		}
		if !classroom.IsActive {
			return appErrors.Clone(appErrors.ErrValidation, "classroom is not active")
		}
	}
	return nil
}

func slotsFromRequest(reqs []ScheduleSlotRequest) []models.ScheduleSlot {
	slots := make([]models.ScheduleSlot, 0, len(reqs))
	for _, r := range reqs {
		slots = append(slots, models.ScheduleSlot{DayOfWeek: r.DayOfWeek, Period: r.Period, ClassroomID: r.ClassroomID})
	}
	return slots
}
