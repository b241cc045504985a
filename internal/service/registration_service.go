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

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role models.UserRole
}

func (a Actor) isAdmin() bool { return a.Role == models.RoleAdmin }

type registrationRepository interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	ListByStudentAndSemester(ctx context.Context, studentID, semesterID string) ([]models.RegistrationDetail, error)
	Create(ctx context.Context, registration *models.Registration) error
	Approve(ctx context.Context, registrationID, courseID, studentID, approverID string, credits int) error
	Withdraw(ctx context.Context, registrationID string, credits int) (*models.Registration, error)
	Switch(ctx context.Context, old *models.Registration, credits int, replacement *models.Registration) error
	StageRejection(ctx context.Context, registrationID, requesterID, note string) error
	FinalizeRejection(ctx context.Context, registrationID, resolverID, reason string) error
	UpdateGrade(ctx context.Context, registration *models.Registration) error
}

type courseStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	RecomputeSeats(ctx context.Context, courseID string) error
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type registrationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type activityRecorder interface {
	Record(ctx context.Context, userID *string, action, resource, resourceID string, detail interface{})
}

type courseCacheInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// CreateRegistrationRequest describes a student's registration attempt.
type CreateRegistrationRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// SwitchRegistrationRequest moves a registration to another section of the
// same subject.
type SwitchRegistrationRequest struct {
	TargetCourseID string `json:"target_course_id" validate:"required"`
}

// RejectRegistrationRequest carries the rejection reason.
type RejectRegistrationRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// GradeRegistrationRequest carries partial grading updates. Absent fields
// leave the stored values untouched. FinalGrade assigns a letter directly
// and overrides the component-derived result; I and W carry no points.
type GradeRegistrationRequest struct {
	AttendanceTotal    *int     `json:"attendance_total" validate:"omitempty,min=0"`
	AttendanceAttended *int     `json:"attendance_attended" validate:"omitempty,min=0"`
	MidtermScore       *float64 `json:"midterm_score" validate:"omitempty,min=0,max=100"`
	FinalScore         *float64 `json:"final_score" validate:"omitempty,min=0,max=100"`
	FinalGrade         *string  `json:"final_grade" validate:"omitempty"`
}

// RegistrationService orchestrates the registration state machine.
type RegistrationService struct {
	repo      registrationRepository
	courses   courseStore
	semesters semesterReader
	subjects  subjectReader
	students  registrationStudentReader
	activity  activityRecorder
	cache     courseCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, courses courseStore, semesters semesterReader, subjects subjectReader, students registrationStudentReader, activity activityRecorder, cache courseCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		repo:      repo,
		courses:   courses,
		semesters: semesters,
		subjects:  subjects,
		students:  students,
		activity:  activity,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns registrations with pagination metadata. Students only ever
// see their own rows.
func (s *RegistrationService) List(ctx context.Context, actor Actor, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	registrations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return registrations, pagination, nil
}

// Get returns one registration. Students may only read their own.
func (s *RegistrationService) Get(ctx context.Context, actor Actor, id string) (*models.RegistrationDetail, error) {
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && detail.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	return detail, nil
}

// Create inserts a pending registration after running the precondition
// chain: course active, subject eligible, window open, no conflicts, seats
// available, credit headroom. A same-subject non-approved registration in
// another section short-circuits into a switch candidate instead.
func (s *RegistrationService) Create(ctx context.Context, studentID string, req CreateRegistrationRequest) (*models.RegistrationDetail, *models.SwitchCandidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	course, err := s.courses.FindDetailByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsActive {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "course is not open for registration")
	}

	subject, err := s.subjects.FindByID(ctx, course.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	schoolID := ""
	if student.SchoolID != nil {
		schoolID = *student.SchoolID
	}
	if !subject.EligibleFor(schoolID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not open to the student's school")
	}

	semester, err := s.semesters.FindByID(ctx, course.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	if !registrationOpen(semester, s.now()) {
		return nil, nil, appErrors.Clone(appErrors.ErrRegistrationClosed, "")
	}

	existing, err := s.repo.ListByStudentAndSemester(ctx, studentID, course.SemesterID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing registrations")
	}
	candidate, err := checkRegistrationConflicts(existing, course)
	if err != nil {
		return nil, nil, err
	}
	if candidate != nil {
		return nil, candidate, nil
	}

	if course.CurrentStudents >= course.MaxStudents {
		return nil, nil, appErrors.Clone(appErrors.ErrCourseFull, "")
	}
	if student.CurrentCredits+subject.Credits > student.MaxCredits {
		return nil, nil, appErrors.Clone(appErrors.ErrCreditLimitExceeded, "")
	}

	registration := &models.Registration{
		StudentID:  studentID,
		CourseID:   course.ID,
		SemesterID: course.SemesterID,
		Status:     models.RegistrationStatusPending,
	}
	if err := s.repo.Create(ctx, registration); err != nil {
		if errors.Is(err, repository.ErrUniqueRegistration) {
			return nil, nil, appErrors.Clone(appErrors.ErrDuplicateRegistration, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	s.record(ctx, &studentID, models.ActivityRegistrationCreate, registration.ID, map[string]string{"course_id": course.ID})
	detail, err := s.loadDetail(ctx, registration.ID)
	if err != nil {
		return nil, nil, err
	}
	return detail, nil, nil
}

// Approve flips a pending registration to approved and books the seat and
// credits atomically. Only the course's teacher or an admin may approve.
func (s *RegistrationService) Approve(ctx context.Context, actor Actor, registrationID string) (*models.RegistrationDetail, error) {
	registration, course, err := s.loadForDecision(ctx, actor, registrationID)
	if err != nil {
		return nil, err
	}
	if !registration.Status.CanTransitionTo(models.RegistrationStatusApproved) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending registrations can be approved")
	}

	err = s.repo.Approve(ctx, registration.ID, registration.CourseID, registration.StudentID, actor.ID, course.SubjectCredits)
	switch {
	case errors.Is(err, repository.ErrStatusGuard):
		return nil, appErrors.Clone(appErrors.ErrConcurrencyConflict, "registration changed status during approval")
	case errors.Is(err, repository.ErrSeatGuard):
		return nil, appErrors.Clone(appErrors.ErrCourseFull, "")
	case errors.Is(err, repository.ErrCreditGuard):
		return nil, appErrors.Clone(appErrors.ErrCreditLimitExceeded, "")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve registration")
	}

	s.reconcileCourse(ctx, registration.CourseID)
	s.record(ctx, &actor.ID, models.ActivityRegistrationApprove, registration.ID, map[string]string{"student_id": registration.StudentID})
	return s.loadDetail(ctx, registration.ID)
}

// Reject is two-phase: teachers stage a rejection request, admins finalize
// the rejection. A staged request does not block a later approval.
func (s *RegistrationService) Reject(ctx context.Context, actor Actor, registrationID string, req RejectRegistrationRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	registration, _, err := s.loadForDecision(ctx, actor, registrationID)
	if err != nil {
		return nil, err
	}
	if !registration.Status.CanTransitionTo(models.RegistrationStatusRejected) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending registrations can be rejected")
	}

	if actor.isAdmin() {
		err = s.repo.FinalizeRejection(ctx, registration.ID, actor.ID, req.Reason)
	} else {
		err = s.repo.StageRejection(ctx, registration.ID, actor.ID, req.Reason)
	}
	if errors.Is(err, repository.ErrStatusGuard) {
		return nil, appErrors.Clone(appErrors.ErrConcurrencyConflict, "registration changed status during rejection")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject registration")
	}

	s.record(ctx, &actor.ID, models.ActivityRegistrationReject, registration.ID, map[string]string{"reason": req.Reason, "finalized": boolString(actor.isAdmin())})
	return s.loadDetail(ctx, registration.ID)
}

// Withdraw hard-deletes the student's pending or approved registration.
// An approved drop is blocked after the withdrawal deadline and releases
// its seat and credits.
func (s *RegistrationService) Withdraw(ctx context.Context, actor Actor, registrationID string) error {
	detail, err := s.loadDetail(ctx, registrationID)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleStudent && detail.StudentID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	if detail.Status != models.RegistrationStatusPending && detail.Status != models.RegistrationStatusApproved {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "completed or rejected registrations cannot be withdrawn")
	}

	if detail.Status == models.RegistrationStatusApproved {
		semester, err := s.semesters.FindByID(ctx, detail.SemesterID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
		if !withdrawalAllowed(semester, s.now()) {
			return appErrors.Clone(appErrors.ErrWithdrawalClosed, "")
		}
	}

	deleted, err := s.repo.Withdraw(ctx, registrationID, detail.SubjectCredits)
	if errors.Is(err, repository.ErrStatusGuard) {
		return appErrors.Clone(appErrors.ErrConcurrencyConflict, "registration changed status during withdrawal")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw registration")
	}

	if deleted.Status == models.RegistrationStatusApproved {
		s.reconcileCourse(ctx, deleted.CourseID)
	}
	s.record(ctx, &actor.ID, models.ActivityRegistrationDrop, registrationID, map[string]string{
		"course_id":       deleted.CourseID,
		"status_at_death": string(deleted.Status),
	})
	return nil
}

// Switch replaces a registration with another section of the same subject.
// The replacement restarts the workflow as pending.
func (s *RegistrationService) Switch(ctx context.Context, actor Actor, registrationID string, req SwitchRegistrationRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid switch payload")
	}
	old, err := s.loadDetail(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && old.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	if old.Status != models.RegistrationStatusPending && old.Status != models.RegistrationStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed or rejected registrations cannot be switched")
	}
	if old.CourseID == req.TargetCourseID {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRegistration, "already registered for this section")
	}

	target, err := s.courses.FindDetailByID(ctx, req.TargetCourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target course")
	}
	if !target.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "target course is not open for registration")
	}
	if target.SubjectID != old.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target course teaches a different subject")
	}

	semester, err := s.semesters.FindByID(ctx, old.SemesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	if !registrationOpen(semester, s.now()) {
		return nil, appErrors.Clone(appErrors.ErrRegistrationClosed, "")
	}

	existing, err := s.repo.ListByStudentAndSemester(ctx, old.StudentID, old.SemesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing registrations")
	}
	others := existing[:0:0]
	for _, reg := range existing {
		if reg.ID != old.ID {
			others = append(others, reg)
		}
	}
	if _, err := checkRegistrationConflicts(others, target); err != nil {
		return nil, err
	}

	if target.CurrentStudents >= target.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrCourseFull, "")
	}

	replacement := &models.Registration{
		StudentID:  old.StudentID,
		CourseID:   target.ID,
		SemesterID: old.SemesterID,
	}
	err = s.repo.Switch(ctx, &old.Registration, old.SubjectCredits, replacement)
	switch {
	case errors.Is(err, repository.ErrStatusGuard):
		return nil, appErrors.Clone(appErrors.ErrConcurrencyConflict, "registration changed status during switch")
	case errors.Is(err, repository.ErrUniqueRegistration):
		return nil, appErrors.Clone(appErrors.ErrDuplicateRegistration, "")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to switch registration")
	}

	if old.Status == models.RegistrationStatusApproved {
		s.reconcileCourse(ctx, old.CourseID)
	}
	s.record(ctx, &actor.ID, models.ActivityRegistrationSwitch, replacement.ID, map[string]string{
		"from_course_id": old.CourseID,
		"to_course_id":   target.ID,
	})
	return s.loadDetail(ctx, replacement.ID)
}

// Grade applies partial grading updates and, once attendance, midterm and
// final are all present, derives the weighted total, letter and GPA points
// and completes the registration. A direct letter grade completes it
// immediately with the table points for that letter.
func (s *RegistrationService) Grade(ctx context.Context, actor Actor, registrationID string, req GradeRegistrationRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	registration, course, err := s.loadForDecision(ctx, actor, registrationID)
	if err != nil {
		return nil, err
	}
	// Completed rows stay gradable so a correction can be posted.
	if registration.Status != models.RegistrationStatusCompleted && !registration.Status.CanTransitionTo(models.RegistrationStatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved registrations can be graded")
	}

	if req.AttendanceTotal != nil {
		registration.AttendanceTotal = req.AttendanceTotal
	}
	if req.AttendanceAttended != nil {
		registration.AttendanceAttended = req.AttendanceAttended
	}
	if registration.AttendanceTotal != nil && registration.AttendanceAttended != nil && *registration.AttendanceAttended > *registration.AttendanceTotal {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attended sessions exceed total sessions")
	}
	if req.MidtermScore != nil {
		registration.MidtermScore = req.MidtermScore
	}
	if req.FinalScore != nil {
		registration.FinalScore = req.FinalScore
	}

	if req.FinalGrade != nil {
		letter := *req.FinalGrade
		points, ok := models.PointsForLetter(letter)
		if !ok && letter != "I" && letter != "W" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown letter grade")
		}
		registration.GradeLetter = &letter
		if ok {
			passing := models.IsPassingPoints(points)
			registration.GradePoints = &points
			registration.IsPassing = &passing
		} else {
			registration.GradePoints = nil
			registration.IsPassing = nil
		}
		registration.Status = models.RegistrationStatusCompleted
	} else if registration.AttendanceTotal != nil && registration.AttendanceAttended != nil && registration.MidtermScore != nil && registration.FinalScore != nil {
		attendancePct := 0.0
		if *registration.AttendanceTotal > 0 {
			attendancePct = float64(*registration.AttendanceAttended) / float64(*registration.AttendanceTotal) * 100
		}
		total := attendancePct*float64(course.AttendanceWeight)/100 +
			*registration.MidtermScore*float64(course.MidtermWeight)/100 +
			*registration.FinalScore*float64(course.FinalWeight)/100
		letter, points := models.GradeFromTotal(total)
		passing := models.IsPassingPoints(points)
		registration.TotalScore = &total
		registration.GradeLetter = &letter
		registration.GradePoints = &points
		registration.IsPassing = &passing
		registration.Status = models.RegistrationStatusCompleted
	}

	if err := s.repo.UpdateGrade(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}

	s.record(ctx, &actor.ID, models.ActivityRegistrationGrade, registration.ID, map[string]string{"status": string(registration.Status)})
	return s.loadDetail(ctx, registration.ID)
}

func (s *RegistrationService) loadDetail(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return detail, nil
}

// loadForDecision loads the registration and its course, enforcing that a
// teacher only decides registrations of courses they teach.
func (s *RegistrationService) loadForDecision(ctx context.Context, actor Actor, registrationID string) (*models.Registration, *models.CourseDetail, error) {
	registration, err := s.repo.FindByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	course, err := s.courses.FindDetailByID(ctx, registration.CourseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !actor.isAdmin() && course.TeacherID != actor.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another teacher's course")
	}
	return registration, course, nil
}

// reconcileCourse recomputes the derived seat counter and drops the cached
// course payload. Failures are logged, not surfaced; the transaction that
// triggered them already committed.
func (s *RegistrationService) reconcileCourse(ctx context.Context, courseID string) {
	if err := s.courses.RecomputeSeats(ctx, courseID); err != nil {
		s.logger.Warn("failed to recompute course seats", zap.String("course_id", courseID), zap.Error(err))
	}
	if s.cache != nil {
		s.cache.InvalidateCourse(ctx, courseID)
	}
}

func (s *RegistrationService) record(ctx context.Context, userID *string, action, resourceID string, detail interface{}) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, userID, action, "registration", resourceID, detail)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
