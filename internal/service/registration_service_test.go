package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type mockRegistrationRepo struct {
	registrations map[string]models.Registration
	details       map[string]models.RegistrationDetail
	existing      []models.RegistrationDetail

	createErr  error
	approveErr error
	switchErr  error

	created   *models.Registration
	approved  []string
	staged    []string
	finalized []string
	withdrawn []string
	switched  bool
	graded    *models.Registration
}

func (m *mockRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	return m.existing, len(m.existing), nil
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if r, ok := m.registrations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	if r, ok := m.registrations[id]; ok {
		return &models.RegistrationDetail{Registration: r}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) ListByStudentAndSemester(ctx context.Context, studentID, semesterID string) ([]models.RegistrationDetail, error) {
	return m.existing, nil
}

func (m *mockRegistrationRepo) Create(ctx context.Context, registration *models.Registration) error {
	if m.createErr != nil {
		return m.createErr
	}
	if registration.ID == "" {
		registration.ID = "new-reg"
	}
	registration.Status = models.RegistrationStatusPending
	if m.registrations == nil {
		m.registrations = make(map[string]models.Registration)
	}
	m.registrations[registration.ID] = *registration
	m.created = registration
	return nil
}

func (m *mockRegistrationRepo) Approve(ctx context.Context, registrationID, courseID, studentID, approverID string, credits int) error {
	if m.approveErr != nil {
		return m.approveErr
	}
	if r, ok := m.registrations[registrationID]; ok {
		r.Status = models.RegistrationStatusApproved
		m.registrations[registrationID] = r
	}
	m.approved = append(m.approved, registrationID)
	return nil
}

func (m *mockRegistrationRepo) Withdraw(ctx context.Context, registrationID string, credits int) (*models.Registration, error) {
	r, ok := m.registrations[registrationID]
	if !ok {
		return nil, repository.ErrStatusGuard
	}
	delete(m.registrations, registrationID)
	delete(m.details, registrationID)
	m.withdrawn = append(m.withdrawn, registrationID)
	return &r, nil
}

func (m *mockRegistrationRepo) Switch(ctx context.Context, old *models.Registration, credits int, replacement *models.Registration) error {
	if m.switchErr != nil {
		return m.switchErr
	}
	delete(m.registrations, old.ID)
	delete(m.details, old.ID)
	if replacement.ID == "" {
		replacement.ID = "switched-reg"
	}
	replacement.Status = models.RegistrationStatusPending
	if m.registrations == nil {
		m.registrations = make(map[string]models.Registration)
	}
	m.registrations[replacement.ID] = *replacement
	m.switched = true
	return nil
}

func (m *mockRegistrationRepo) StageRejection(ctx context.Context, registrationID, requesterID, note string) error {
	m.staged = append(m.staged, registrationID)
	return nil
}

func (m *mockRegistrationRepo) FinalizeRejection(ctx context.Context, registrationID, resolverID, reason string) error {
	if r, ok := m.registrations[registrationID]; ok {
		r.Status = models.RegistrationStatusRejected
		m.registrations[registrationID] = r
	}
	m.finalized = append(m.finalized, registrationID)
	return nil
}

func (m *mockRegistrationRepo) UpdateGrade(ctx context.Context, registration *models.Registration) error {
	m.registrations[registration.ID] = *registration
	m.graded = registration
	return nil
}

type mockCourseStore struct {
	courses    map[string]*models.CourseDetail
	recomputed []string
}

func (m *mockCourseStore) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseStore) RecomputeSeats(ctx context.Context, courseID string) error {
	m.recomputed = append(m.recomputed, courseID)
	return nil
}

type mockSemesterReader struct {
	semesters map[string]*models.Semester
}

func (m *mockSemesterReader) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockSubjectReader struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentReader struct {
	users map[string]*models.User
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockRecorder struct {
	actions []string
}

func (m *mockRecorder) Record(ctx context.Context, userID *string, action, resource, resourceID string, detail interface{}) {
	m.actions = append(m.actions, action)
}

type mockInvalidator struct {
	invalidated []string
}

func (m *mockInvalidator) InvalidateCourse(ctx context.Context, courseID string) {
	m.invalidated = append(m.invalidated, courseID)
}

type registrationFixture struct {
	repo     *mockRegistrationRepo
	courses  *mockCourseStore
	recorder *mockRecorder
	cache    *mockInvalidator
	svc      *RegistrationService
	now      time.Time
}

func newRegistrationFixture() *registrationFixture {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockRegistrationRepo{
		registrations: map[string]models.Registration{},
		details:       map[string]models.RegistrationDetail{},
	}
	courses := &mockCourseStore{courses: map[string]*models.CourseDetail{
		"c1": {
			Course: models.Course{
				ID: "c1", SubjectID: "sub1", SemesterID: "sem1", TeacherID: "t1",
				ClassCode: "MATH-01", MaxStudents: 30, CurrentStudents: 0,
				AttendanceWeight: 20, MidtermWeight: 30, FinalWeight: 50, IsActive: true,
			},
			SubjectCode:    "MATH101",
			SubjectCredits: 3,
			Slots:          []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
		},
		"c2": {
			Course: models.Course{
				ID: "c2", SubjectID: "sub1", SemesterID: "sem1", TeacherID: "t2",
				ClassCode: "MATH-02", MaxStudents: 30, IsActive: true,
			},
			SubjectCode:    "MATH101",
			SubjectCredits: 3,
			Slots:          []models.ScheduleSlot{{DayOfWeek: 3, Period: 2}},
		},
	}}
	semesters := &mockSemesterReader{semesters: map[string]*models.Semester{
		"sem1": {
			ID:                    "sem1",
			Code:                  "2026-1",
			RegistrationStartDate: now.Add(-48 * time.Hour),
			RegistrationEndDate:   now.Add(48 * time.Hour),
			WithdrawalDeadline:    now.Add(30 * 24 * time.Hour),
			StartDate:             now.Add(-24 * time.Hour),
			EndDate:               now.Add(120 * 24 * time.Hour),
			IsActive:              true,
		},
	}}
	subjects := &mockSubjectReader{subjects: map[string]*models.Subject{
		"sub1": {ID: "sub1", Code: "MATH101", Credits: 3},
	}}
	students := &mockStudentReader{users: map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, CurrentCredits: 0, MaxCredits: 24, Active: true},
	}}
	recorder := &mockRecorder{}
	cache := &mockInvalidator{}

	svc := NewRegistrationService(repo, courses, semesters, subjects, students, recorder, cache, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return now }

	return &registrationFixture{repo: repo, courses: courses, recorder: recorder, cache: cache, svc: svc, now: now}
}

func (f *registrationFixture) seedRegistration(id string, status models.RegistrationStatus) {
	reg := models.Registration{ID: id, StudentID: "s1", CourseID: "c1", SemesterID: "sem1", Status: status}
	f.repo.registrations[id] = reg
	f.repo.details[id] = models.RegistrationDetail{
		Registration:   reg,
		SubjectID:      "sub1",
		SubjectCode:    "MATH101",
		SubjectCredits: 3,
		Slots:          []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
	}
}

func TestRegistrationServiceCreate(t *testing.T) {
	f := newRegistrationFixture()

	detail, candidate, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.NoError(t, err)
	require.Nil(t, candidate)
	require.NotNil(t, detail)
	assert.Equal(t, models.RegistrationStatusPending, detail.Status)
	assert.Equal(t, "c1", f.repo.created.CourseID)
	assert.Contains(t, f.recorder.actions, models.ActivityRegistrationCreate)
}

func TestRegistrationServiceCreateWindowClosed(t *testing.T) {
	f := newRegistrationFixture()
	f.svc.now = func() time.Time { return f.now.Add(100 * 24 * time.Hour) }

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRegistrationClosed.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateCourseFull(t *testing.T) {
	f := newRegistrationFixture()
	f.courses.courses["c1"].CurrentStudents = 30

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateCreditLimit(t *testing.T) {
	f := newRegistrationFixture()
	f.svc.students.(*mockStudentReader).users["s1"].CurrentCredits = 22

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCreditLimitExceeded.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateDuplicateCourse(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)
	f.repo.existing = []models.RegistrationDetail{f.repo.details["r1"]}

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRegistration.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateSubjectAlreadyApproved(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	f.repo.existing = []models.RegistrationDetail{f.repo.details["r1"]}

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSubjectAlreadyApproved.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateSwitchCandidate(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)
	f.repo.existing = []models.RegistrationDetail{f.repo.details["r1"]}

	detail, candidate, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c2"})
	require.NoError(t, err)
	assert.Nil(t, detail)
	require.NotNil(t, candidate)
	assert.Equal(t, "r1", candidate.ExistingRegistrationID)
	assert.Equal(t, "c1", candidate.ExistingCourseID)
	assert.Nil(t, f.repo.created)
}

func TestRegistrationServiceCreateScheduleConflict(t *testing.T) {
	f := newRegistrationFixture()
	other := models.RegistrationDetail{
		Registration: models.Registration{ID: "r9", StudentID: "s1", CourseID: "c9", SemesterID: "sem1", Status: models.RegistrationStatusApproved},
		SubjectID:    "sub9",
		Slots:        []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
	}
	f.repo.existing = []models.RegistrationDetail{other}

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateUniqueViolation(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.createErr = repository.ErrUniqueRegistration

	_, _, err := f.svc.Create(context.Background(), "s1", CreateRegistrationRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRegistration.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceApprove(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)

	detail, err := f.svc.Approve(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Contains(t, f.repo.approved, "r1")
	assert.Contains(t, f.courses.recomputed, "c1")
	assert.Contains(t, f.cache.invalidated, "c1")
	assert.Contains(t, f.recorder.actions, models.ActivityRegistrationApprove)
}

func TestRegistrationServiceApproveForbiddenTeacher(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)

	_, err := f.svc.Approve(context.Background(), Actor{ID: "t2", Role: models.RoleTeacher}, "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceApproveWrongStatus(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusRejected)

	_, err := f.svc.Approve(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceApproveGuardMapping(t *testing.T) {
	cases := []struct {
		name     string
		guardErr error
		want     string
	}{
		{"seat guard", repository.ErrSeatGuard, appErrors.ErrCourseFull.Code},
		{"credit guard", repository.ErrCreditGuard, appErrors.ErrCreditLimitExceeded.Code},
		{"status guard", repository.ErrStatusGuard, appErrors.ErrConcurrencyConflict.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRegistrationFixture()
			f.seedRegistration("r1", models.RegistrationStatusPending)
			f.repo.approveErr = tc.guardErr

			_, err := f.svc.Approve(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, "r1")
			require.Error(t, err)
			assert.Equal(t, tc.want, appErrors.FromError(err).Code)
		})
	}
}

func TestRegistrationServiceRejectStagesForTeacher(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)

	_, err := f.svc.Reject(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", RejectRegistrationRequest{Reason: "capacity planning"})
	require.NoError(t, err)
	assert.Contains(t, f.repo.staged, "r1")
	assert.Empty(t, f.repo.finalized)
}

func TestRegistrationServiceRejectFinalizesForAdmin(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)

	_, err := f.svc.Reject(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, "r1", RejectRegistrationRequest{Reason: "capacity planning"})
	require.NoError(t, err)
	assert.Contains(t, f.repo.finalized, "r1")
	assert.Empty(t, f.repo.staged)
}

func TestRegistrationServiceWithdrawApproved(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)

	err := f.svc.Withdraw(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1")
	require.NoError(t, err)
	assert.Contains(t, f.repo.withdrawn, "r1")
	assert.Contains(t, f.courses.recomputed, "c1")
	assert.Contains(t, f.recorder.actions, models.ActivityRegistrationDrop)
}

func TestRegistrationServiceWithdrawAfterDeadline(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	f.svc.now = func() time.Time { return f.now.Add(60 * 24 * time.Hour) }

	err := f.svc.Withdraw(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWithdrawalClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.withdrawn)
}

func TestRegistrationServiceWithdrawInactiveSemester(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	f.svc.semesters.(*mockSemesterReader).semesters["sem1"].IsActive = false

	err := f.svc.Withdraw(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWithdrawalClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.withdrawn)
}

func TestRegistrationServiceWithdrawPendingAfterDeadline(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)
	f.svc.now = func() time.Time { return f.now.Add(60 * 24 * time.Hour) }

	err := f.svc.Withdraw(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1")
	require.NoError(t, err)
	assert.Empty(t, f.courses.recomputed)
}

func TestRegistrationServiceWithdrawOtherStudent(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)

	err := f.svc.Withdraw(context.Background(), Actor{ID: "s2", Role: models.RoleStudent}, "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceSwitch(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	f.repo.existing = []models.RegistrationDetail{f.repo.details["r1"]}

	detail, err := f.svc.Switch(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1", SwitchRegistrationRequest{TargetCourseID: "c2"})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, f.repo.switched)
	assert.Equal(t, models.RegistrationStatusPending, detail.Status)
	assert.Equal(t, "c2", detail.CourseID)
	assert.Contains(t, f.courses.recomputed, "c1")
	assert.Contains(t, f.recorder.actions, models.ActivityRegistrationSwitch)
}

func TestRegistrationServiceSwitchDifferentSubject(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)
	f.courses.courses["c3"] = &models.CourseDetail{
		Course:         models.Course{ID: "c3", SubjectID: "sub2", SemesterID: "sem1", MaxStudents: 30, IsActive: true},
		SubjectCredits: 4,
	}

	_, err := f.svc.Switch(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1", SwitchRegistrationRequest{TargetCourseID: "c3"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceSwitchSameSection(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)

	_, err := f.svc.Switch(context.Background(), Actor{ID: "s1", Role: models.RoleStudent}, "r1", SwitchRegistrationRequest{TargetCourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRegistration.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceGradePartial(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	midterm := 80.0

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{MidtermScore: &midterm})
	require.NoError(t, err)
	require.NotNil(t, f.repo.graded)
	assert.Equal(t, models.RegistrationStatusApproved, f.repo.graded.Status)
	assert.Nil(t, f.repo.graded.TotalScore)
}

func TestRegistrationServiceGradeCompletes(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	total := 10
	attended := 9
	midterm := 80.0
	final := 90.0

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{
		AttendanceTotal:    &total,
		AttendanceAttended: &attended,
		MidtermScore:       &midterm,
		FinalScore:         &final,
	})
	require.NoError(t, err)
	require.NotNil(t, f.repo.graded)
	assert.Equal(t, models.RegistrationStatusCompleted, f.repo.graded.Status)
	// 90*0.2 + 80*0.3 + 90*0.5 = 87
	require.NotNil(t, f.repo.graded.TotalScore)
	assert.InDelta(t, 87.0, *f.repo.graded.TotalScore, 0.001)
	assert.Equal(t, "A-", *f.repo.graded.GradeLetter)
	assert.InDelta(t, 3.7, *f.repo.graded.GradePoints, 0.001)
	assert.True(t, *f.repo.graded.IsPassing)
}

func TestRegistrationServiceGradeLetterCompletes(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	letter := "B+"

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{FinalGrade: &letter})
	require.NoError(t, err)
	require.NotNil(t, f.repo.graded)
	assert.Equal(t, models.RegistrationStatusCompleted, f.repo.graded.Status)
	assert.Equal(t, "B+", *f.repo.graded.GradeLetter)
	assert.InDelta(t, 3.3, *f.repo.graded.GradePoints, 0.001)
	assert.True(t, *f.repo.graded.IsPassing)
	assert.Nil(t, f.repo.graded.TotalScore)
}

func TestRegistrationServiceGradeLetterIncomplete(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	letter := "I"

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{FinalGrade: &letter})
	require.NoError(t, err)
	require.NotNil(t, f.repo.graded)
	assert.Equal(t, models.RegistrationStatusCompleted, f.repo.graded.Status)
	assert.Equal(t, "I", *f.repo.graded.GradeLetter)
	assert.Nil(t, f.repo.graded.GradePoints)
	assert.Nil(t, f.repo.graded.IsPassing)
}

func TestRegistrationServiceGradeLetterUnknown(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	letter := "Z"

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{FinalGrade: &letter})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, f.repo.graded)
}

func TestRegistrationServiceGradeAttendanceBounds(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusApproved)
	total := 10
	attended := 12

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{
		AttendanceTotal:    &total,
		AttendanceAttended: &attended,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceGradeWrongStatus(t *testing.T) {
	f := newRegistrationFixture()
	f.seedRegistration("r1", models.RegistrationStatusPending)
	midterm := 70.0

	_, err := f.svc.Grade(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, "r1", GradeRegistrationRequest{MidtermScore: &midterm})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
