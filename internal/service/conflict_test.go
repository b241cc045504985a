package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

func conflictTarget() *models.CourseDetail {
	return &models.CourseDetail{
		Course: models.Course{ID: "c2", SubjectID: "sub1"},
		Slots:  []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
	}
}

func TestCheckRegistrationConflictsEmpty(t *testing.T) {
	candidate, err := checkRegistrationConflicts(nil, conflictTarget())
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestCheckRegistrationConflictsSameSection(t *testing.T) {
	existing := []models.RegistrationDetail{{
		Registration: models.Registration{ID: "r1", CourseID: "c2", Status: models.RegistrationStatusPending},
		SubjectID:    "sub1",
	}}

	_, err := checkRegistrationConflicts(existing, conflictTarget())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRegistration.Code, appErrors.FromError(err).Code)
}

func TestCheckRegistrationConflictsApprovedSubject(t *testing.T) {
	existing := []models.RegistrationDetail{{
		Registration: models.Registration{ID: "r1", CourseID: "c1", Status: models.RegistrationStatusApproved},
		SubjectID:    "sub1",
	}}

	_, err := checkRegistrationConflicts(existing, conflictTarget())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSubjectAlreadyApproved.Code, appErrors.FromError(err).Code)
}

func TestCheckRegistrationConflictsSwitchCandidate(t *testing.T) {
	existing := []models.RegistrationDetail{{
		Registration: models.Registration{ID: "r1", CourseID: "c1", Status: models.RegistrationStatusPending},
		SubjectID:    "sub1",
		SubjectCode:  "MATH101",
	}}

	candidate, err := checkRegistrationConflicts(existing, conflictTarget())
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "r1", candidate.ExistingRegistrationID)
	assert.Equal(t, "c1", candidate.ExistingCourseID)
	assert.Equal(t, "MATH101", candidate.SubjectCode)
}

func TestCheckRegistrationConflictsSlotOverlap(t *testing.T) {
	existing := []models.RegistrationDetail{{
		Registration: models.Registration{ID: "r1", CourseID: "c9", Status: models.RegistrationStatusApproved},
		SubjectID:    "sub9",
		SubjectCode:  "PHY101",
		Slots:        []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
	}}

	_, err := checkRegistrationConflicts(existing, conflictTarget())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "PHY101")
}

func TestCheckRegistrationConflictsIgnoresRejected(t *testing.T) {
	existing := []models.RegistrationDetail{{
		Registration: models.Registration{ID: "r1", CourseID: "c2", Status: models.RegistrationStatusRejected},
		SubjectID:    "sub1",
		Slots:        []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
	}}

	candidate, err := checkRegistrationConflicts(existing, conflictTarget())
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestCheckRegistrationConflictsSubjectBeforeSchedule(t *testing.T) {
	// Same section also collides on slots; the duplicate must win.
	existing := []models.RegistrationDetail{{
		Registration: models.Registration{ID: "r1", CourseID: "c2", Status: models.RegistrationStatusPending},
		SubjectID:    "sub1",
		Slots:        []models.ScheduleSlot{{DayOfWeek: 2, Period: 1}},
	}}

	_, err := checkRegistrationConflicts(existing, conflictTarget())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRegistration.Code, appErrors.FromError(err).Code)
}

func TestSemesterWindows(t *testing.T) {
	sem := &models.Semester{
		IsActive:              true,
		StartDate:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		RegistrationStartDate: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		RegistrationEndDate:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		WithdrawalDeadline:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.False(t, registrationOpen(sem, time.Date(2026, 2, 19, 23, 59, 59, 0, time.UTC)))
	assert.True(t, registrationOpen(sem, sem.RegistrationStartDate))
	assert.True(t, registrationOpen(sem, sem.RegistrationEndDate))
	assert.False(t, registrationOpen(sem, sem.RegistrationEndDate.Add(time.Second)))

	assert.True(t, withdrawalAllowed(sem, sem.WithdrawalDeadline))
	assert.False(t, withdrawalAllowed(sem, sem.WithdrawalDeadline.Add(time.Second)))

	assert.True(t, semesterInSession(sem, sem.StartDate))
	assert.True(t, semesterInSession(sem, sem.EndDate))
	assert.False(t, semesterInSession(sem, sem.EndDate.Add(time.Hour)))

	inactive := *sem
	inactive.IsActive = false
	assert.False(t, withdrawalAllowed(&inactive, inactive.WithdrawalDeadline))
	assert.False(t, semesterInSession(&inactive, inactive.StartDate))
}
